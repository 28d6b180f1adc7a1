package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/cachewatch/internal/fingerprint"
)

// PostgresStore keeps one row per notified fingerprint in notified_fingerprints.
// Save only inserts, so the stored set never shrinks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore. The schema must already be
// applied with RunMigrations.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStoreIO, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (fingerprint.Set, error) {
	rows, err := s.pool.Query(ctx, `SELECT fingerprint FROM notified_fingerprints`)
	if err != nil {
		return fingerprint.Set{}, fmt.Errorf("%w: load fingerprints: %w", ErrStoreIO, err)
	}
	fps, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fingerprint.Set{}, fmt.Errorf("%w: scan fingerprints: %w", ErrStoreIO, err)
	}

	for _, fp := range fps {
		if !fingerprint.Valid(fp) {
			return fingerprint.Set{}, fmt.Errorf("%w: invalid fingerprint %q in notified_fingerprints", ErrStoreCorrupt, fp)
		}
	}
	return fingerprint.NewSet(fps...), nil
}

// Save inserts every member of set in one transaction. Rows already present
// are left untouched.
func (s *PostgresStore) Save(ctx context.Context, set fingerprint.Set) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStoreIO, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO notified_fingerprints (fingerprint)
		 SELECT unnest($1::text[])
		 ON CONFLICT (fingerprint) DO NOTHING`, set.Sorted())
	if err != nil {
		return fmt.Errorf("%w: insert fingerprints: %w", ErrStoreIO, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStoreIO, err)
	}
	return nil
}
