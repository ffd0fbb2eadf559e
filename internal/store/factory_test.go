package store

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tether/internal/connection"
	"github.com/hpungsan/tether/internal/store/migrations"
	"github.com/hpungsan/tether/internal/testutil"
)

func testOptions(dsn string, production bool, logs *bytes.Buffer) Options {
	return Options{
		DSN:        dsn,
		Production: production,
		Clock:      testutil.FixedClock(),
		IDs:        testutil.NewStubIDGenerator(),
		Logger:     slog.New(slog.NewTextHandler(logs, nil)),
	}
}

func TestOpen_FallbackForInternalHostInProduction(t *testing.T) {
	var logs bytes.Buffer
	ctx := context.Background()

	s, sel, err := Open(ctx, testOptions("postgres://user:pw@helium/heliumdb", true, &logs))
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &Memory{}, s)
	assert.Equal(t, BackendMemory, sel.Backend)
	assert.False(t, sel.Durable)
	assert.True(t, sel.Degraded)
	assert.Contains(t, sel.Reason, "internal")
	assert.Contains(t, logs.String(), "level=WARN")
	assert.NotContains(t, logs.String(), "pw@")

	// Availability over durability: the volatile store still serves the contract.
	created, err := s.Create(ctx, connection.NewInput{HostID: "h", IntentionText: "grow"})
	require.NoError(t, err)
	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestOpen_UnsetDSNIsDegraded(t *testing.T) {
	var logs bytes.Buffer

	s, sel, err := Open(context.Background(), testOptions("", false, &logs))
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, sel.Degraded)
	assert.Equal(t, "DATABASE_URL not set", sel.Reason)
	assert.Contains(t, logs.String(), "DATABASE_URL not set")
}

func TestOpen_SQLiteIsDurable(t *testing.T) {
	var logs bytes.Buffer
	dir := t.TempDir()
	opts := testOptions("sqlite://nested/tether.db", true, &logs)
	opts.DataDir = dir

	s, sel, err := Open(context.Background(), opts)
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &SQL{}, s)
	assert.Equal(t, Selection{Backend: "sqlite", Durable: true}, sel)
	assert.FileExists(t, filepath.Join(dir, "nested", "tether.db"))
	assert.NotContains(t, logs.String(), "level=WARN")
}

func TestOpen_UnreachableDurableFallsBack(t *testing.T) {
	var logs bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, sel, err := Open(ctx, testOptions("postgres://user:pw@127.0.0.1:1/tether?connect_timeout=2", false, &logs))
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &Memory{}, s)
	assert.True(t, sel.Degraded)
	assert.Contains(t, sel.Reason, "durable postgres backend unavailable")
}

func TestOpen_CancelledContext(t *testing.T) {
	var logs bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := testOptions("sqlite://tether.db", false, &logs)
	opts.DataDir = t.TempDir()

	_, _, err := Open(ctx, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenSQL_ReopenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tether.db")
	d := Decision{Dialect: DialectSQLite, Target: path}
	clock := testutil.FixedClock()

	first, err := OpenSQL(ctx, d, "", PoolOptions{}, clock, testutil.NewStubIDGenerator())
	require.NoError(t, err)
	created, err := first.Create(ctx, connection.NewInput{HostID: "h", IntentionText: "grow"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := OpenSQL(ctx, d, "", PoolOptions{}, clock, testutil.NewStubIDGenerator())
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	// Version closes the handle it is given.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	version, dirty, err := migrations.Version(db, migrations.SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestOpenSQL_WALMode(t *testing.T) {
	ctx := context.Background()
	d := Decision{Dialect: DialectSQLite, Target: filepath.Join(t.TempDir(), "tether.db")}

	s, err := OpenSQL(ctx, d, "", PoolOptions{MaxOpenConns: 2, MaxIdleConns: 1}, testutil.FixedClock(), testutil.NewStubIDGenerator())
	require.NoError(t, err)
	defer s.Close()

	var journalMode string
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
	assert.Equal(t, 2, s.db.Stats().MaxOpenConnections)
	assert.Equal(t, DialectSQLite, s.Dialect())
	assert.NoError(t, s.Ping(ctx))
}
