package source_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kiranshivaraju/cachewatch/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupFailureDB spins up a Postgres container holding a study_cache_failure table.
func setupFailureDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("encapture_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `CREATE TABLE study_cache_failure (
		id                  SERIAL PRIMARY KEY,
		medical_study_id    INTEGER,
		message             TEXT,
		corporate_entity_id INTEGER,
		username            TEXT,
		date                TIMESTAMPTZ NOT NULL
	)`)
	require.NoError(t, err)

	return connStr
}

func TestPostgresSource_Fetch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dsn := setupFailureDB(t)
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `INSERT INTO study_cache_failure
		(medical_study_id, message, corporate_entity_id, username, date) VALUES
		(1042, 'cache rebuild failed', 77, 'jdoe', '2024-03-05T14:07:09.123456Z'),
		(1043, NULL, 77, NULL, '2024-03-05T14:07:08Z')`)
	require.NoError(t, err)

	src := source.NewPostgresSource(dsn, "study_cache_failure", 10*time.Second)
	records, err := src.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Ordered by date.
	assert.Equal(t, "1043", records[0].StudyID)
	assert.Equal(t, "", records[0].Message)
	assert.Equal(t, "", records[0].Username)

	assert.Equal(t, "1042", records[1].StudyID)
	assert.Equal(t, "cache rebuild failed", records[1].Message)
	assert.Equal(t, "77", records[1].EntityID)
	assert.Equal(t, "jdoe", records[1].Username)
	assert.True(t, records[1].Date.Equal(time.Date(2024, 3, 5, 14, 7, 9, 123456000, time.UTC)))
}

func TestPostgresSource_MissingTable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dsn := setupFailureDB(t)

	src := source.NewPostgresSource(dsn, "no_such_table", 10*time.Second)
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}

func TestPostgresSource_Unreachable(t *testing.T) {
	src := source.NewPostgresSource("postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1",
		"study_cache_failure", 2*time.Second)

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)

	assert.ErrorIs(t, src.Ping(context.Background()), source.ErrSourceUnavailable)
}
