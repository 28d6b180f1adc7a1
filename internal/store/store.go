// Package store persists the set of fingerprints that have already been notified.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/cachewatch/internal/fingerprint"
)

var (
	// ErrStoreCorrupt means persisted state exists but is not a JSON array of
	// strings. It is never repaired automatically.
	ErrStoreCorrupt = errors.New("fingerprint store corrupt")
	// ErrStoreIO covers every other read or write failure.
	ErrStoreIO = errors.New("fingerprint store I/O error")
)

// Store is the persistence interface for notified fingerprints.
type Store interface {
	// Load returns the persisted set. Missing state is an empty set, not an error.
	Load(ctx context.Context) (fingerprint.Set, error)
	// Save replaces the persisted set with set.
	Save(ctx context.Context, set fingerprint.Set) error
	Ping(ctx context.Context) error
}

// decodeSet parses the JSON array representation shared by the file and
// Redis backends.
func decodeSet(data []byte) (fingerprint.Set, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fingerprint.Set{}, fmt.Errorf("%w: expected a JSON array of strings", ErrStoreCorrupt)
	}

	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return fingerprint.Set{}, fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
	}
	return fingerprint.NewSet(list...), nil
}

// encodeSet renders set as a sorted, 2-space indented JSON array.
func encodeSet(set fingerprint.Set) ([]byte, error) {
	data, err := json.MarshalIndent(set.Sorted(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
