// Package source reads the current failure records from the monitored table.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kiranshivaraju/cachewatch/pkg/models"
)

// ErrSourceUnavailable wraps every connection, query or scan failure.
var ErrSourceUnavailable = errors.New("failure source unavailable")

// Source is the interface for reading failure records.
type Source interface {
	// Fetch returns every row currently in the failure table.
	Fetch(ctx context.Context) ([]models.FailureRecord, error)
	// Ping checks that the source database accepts connections.
	Ping(ctx context.Context) error
}

// conn is the subset of *pgx.Conn used by PostgresSource.
type conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type dialFunc func(ctx context.Context, dsn string) (conn, error)

func dialPgx(ctx context.Context, dsn string) (conn, error) {
	return pgx.Connect(ctx, dsn)
}

// PostgresSource implements Source with a single pgx connection per call.
// The connection is opened inside Fetch and closed before it returns, so no
// database resources are held between monitor steps.
type PostgresSource struct {
	dsn     string
	query   string
	timeout time.Duration
	dial    dialFunc
}

// NewPostgresSource creates a source reading table through dsn. table may be
// schema qualified ("dbo.study_cache_failure"). A zero timeout disables the
// per-call deadline.
func NewPostgresSource(dsn, table string, timeout time.Duration) *PostgresSource {
	return &PostgresSource{
		dsn:     dsn,
		query:   buildQuery(table),
		timeout: timeout,
		dial:    dialPgx,
	}
}

func buildQuery(table string) string {
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	return `SELECT COALESCE(medical_study_id::text, ''), COALESCE(message::text, ''),
		COALESCE(corporate_entity_id::text, ''), COALESCE(username::text, ''), date
		FROM ` + ident + ` ORDER BY date`
}

func (s *PostgresSource) Fetch(ctx context.Context) (records []models.FailureRecord, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.dial(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrSourceUnavailable, err)
	}
	// Close with a fresh context: ctx may already be expired on the error path.
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if cerr := c.Close(closeCtx); cerr != nil && err == nil {
			records = nil
			err = fmt.Errorf("%w: close: %w", ErrSourceUnavailable, cerr)
		}
	}()

	rows, err := c.Query(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	records = []models.FailureRecord{}
	for rows.Next() {
		var r models.FailureRecord
		if err := rows.Scan(&r.StudyID, &r.Message, &r.EntityID, &r.Username, &r.Date); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrSourceUnavailable, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read rows: %w", ErrSourceUnavailable, err)
	}

	return records, nil
}

func (s *PostgresSource) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.dial(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("%w: connect: %w", ErrSourceUnavailable, err)
	}
	defer c.Close(context.Background())

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrSourceUnavailable, err)
	}
	return nil
}

func (s *PostgresSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
