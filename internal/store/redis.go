package store

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/cachewatch/internal/cache"
	"github.com/kiranshivaraju/cachewatch/internal/fingerprint"
)

// RedisStore keeps the fingerprint set as a JSON array under a single key.
// SET replaces the value atomically, so readers never see a partial write.
type RedisStore struct {
	cache cache.Cache
	key   string
}

// NewRedisStore creates a RedisStore holding its state under key.
func NewRedisStore(c cache.Cache, key string) *RedisStore {
	return &RedisStore{cache: c, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (fingerprint.Set, error) {
	data, found, err := s.cache.Get(ctx, s.key)
	if err != nil {
		return fingerprint.Set{}, fmt.Errorf("%w: get %s: %w", ErrStoreIO, s.key, err)
	}
	if !found {
		return fingerprint.NewSet(), nil
	}

	set, err := decodeSet(data)
	if err != nil {
		return fingerprint.Set{}, fmt.Errorf("key %s: %w", s.key, err)
	}
	return set, nil
}

func (s *RedisStore) Save(ctx context.Context, set fingerprint.Set) error {
	data, err := encodeSet(set)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStoreIO, err)
	}
	if err := s.cache.Set(ctx, s.key, data, 0); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrStoreIO, s.key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping redis: %w", ErrStoreIO, err)
	}
	return nil
}
