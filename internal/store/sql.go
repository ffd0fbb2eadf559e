package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/hpungsan/tether/internal/connection"
	"github.com/hpungsan/tether/internal/errors"
	"github.com/hpungsan/tether/internal/store/migrations"
)

const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

const selectColumns = `
	id, host_id, intention_text, intention_summary, intention_captured_at, created_at,
	guest_email, host_email, location_lat, location_lng, vibe_depth, vibe_heart,
	guest_consented, consent_timestamp, audio_data, audio_duration_seconds, questions_asked,
	nps_score, feedback_text, transcript, ai_insights, poster_prompt, poster_image_url,
	reminder_sent, reminder_sent_at`

// SQL is the durable Store over SQLite or Postgres.
// Concurrent updates to one id are resolved by the engine, last write wins per column.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	clock   connection.Clock
	ids     connection.IDGenerator
}

// PoolOptions bounds the connection pool. Zero values keep the driver defaults.
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
}

// OpenSQL opens, pings, and migrates the durable store named by d.
// Relative SQLite paths are resolved against dataDir, which is created if needed.
func OpenSQL(ctx context.Context, d Decision, dataDir string, pool PoolOptions, clock connection.Clock, ids connection.IDGenerator) (*SQL, error) {
	driverName, dsn, path, err := driverDSN(d, dataDir)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ConfigurePool(db, pool)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if d.Dialect == DialectSQLite {
		if err := verifyWALMode(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	// migrate closes the handle it is given, so it gets its own.
	migrateDB, err := sql.Open(driverName, dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open migration handle: %w", err)
	}
	if err := migrations.MigrateUp(migrateDB, string(d.Dialect)); err != nil {
		db.Close()
		return nil, err
	}

	if path != "" {
		_ = os.Chmod(path, 0600)
	}
	return NewSQL(db, d.Dialect, clock, ids), nil
}

// NewSQL wraps an already migrated database.
func NewSQL(db *sql.DB, dialect Dialect, clock connection.Clock, ids connection.IDGenerator) *SQL {
	return &SQL{db: db, dialect: dialect, clock: clock, ids: ids}
}

// ConfigurePool applies pool limits. Only explicitly configured (non-zero) values are set.
// Exhaustion makes callers wait inside database/sql rather than opening more connections.
func ConfigurePool(db *sql.DB, pool PoolOptions) {
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
}

// driverDSN returns the database/sql driver name, its DSN, and the SQLite file path if any.
func driverDSN(d Decision, dataDir string) (string, string, string, error) {
	switch d.Dialect {
	case DialectPostgres:
		return "pgx", d.Target, "", nil
	case DialectSQLite:
		path := d.Target
		if !filepath.IsAbs(path) && dataDir != "" {
			path = filepath.Join(dataDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return "", "", "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return "sqlite", path + sqlitePragmas, path, nil
	default:
		return "", "", "", fmt.Errorf("unsupported dialect %q", d.Dialect)
	}
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(ctx context.Context, db *sql.DB) error {
	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// Dialect reports the engine behind the store.
func (s *SQL) Dialect() Dialect {
	return s.dialect
}

func (s *SQL) Create(ctx context.Context, in connection.NewInput) (*connection.Connection, error) {
	c, err := connection.New(s.ids.New(), s.clock.Now(), in)
	if err != nil {
		return nil, err
	}

	questions, err := toNullJSON(c.QuestionsAsked)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	query := `
		INSERT INTO connections (` + selectColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, s.rebind(query),
		c.ID, c.HostID, c.IntentionText, nullable(c.IntentionSummary),
		c.IntentionCapturedAt.UnixMilli(), c.CreatedAt.UnixMilli(),
		nullable(c.GuestEmail), nullable(c.HostEmail),
		nullable(c.LocationLat), nullable(c.LocationLng),
		c.VibeDepth, nullable(c.VibeHeart),
		c.GuestConsented, toNullMillis(c.ConsentTimestamp),
		nullable(c.AudioData), nullable(c.AudioDurationSeconds), questions,
		nullable(c.NPSScore), nullable(c.FeedbackText),
		nullable(c.Transcript), nullable(c.AIInsights), nullable(c.PosterPrompt), nullable(c.PosterImageURL),
		c.ReminderSent, toNullMillis(c.ReminderSentAt),
	)
	if err != nil {
		return nil, errors.NewStorage(fmt.Errorf("insert connection: %w", err))
	}
	return c, nil
}

func (s *SQL) Get(ctx context.Context, id string) (*connection.Connection, error) {
	query := `SELECT ` + selectColumns + ` FROM connections WHERE id = ?`
	c, err := scanConnection(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewStorage(fmt.Errorf("get connection: %w", err))
	}
	return c, nil
}

func (s *SQL) GetAll(ctx context.Context) ([]*connection.Connection, error) {
	query := `SELECT ` + selectColumns + ` FROM connections ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewStorage(fmt.Errorf("list connections: %w", err))
	}
	defer rows.Close()

	out := []*connection.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, errors.NewStorage(fmt.Errorf("scan connection: %w", err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(fmt.Errorf("list connections: %w", err))
	}
	return out, nil
}

// Update writes only the columns p mentions in a single statement.
// The consent and reminder stamps use COALESCE so the first stamp survives any later write.
func (s *SQL) Update(ctx context.Context, id string, p connection.Patch) (*connection.Connection, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.IsEmpty() {
		return s.Get(ctx, id)
	}

	now := connection.Timestamp(s.clock.Now()).UnixMilli()
	u := &updateBuilder{}
	if p.IntentionText != nil {
		u.set("intention_text", *p.IntentionText)
	}
	u.setNullable("intention_summary", nullable(p.IntentionSummary), p.IntentionSummary != nil)
	u.setNullable("guest_email", nullable(p.GuestEmail), p.GuestEmail != nil)
	u.setNullable("host_email", nullable(p.HostEmail), p.HostEmail != nil)
	u.setNullable("location_lat", nullable(p.LocationLat), p.LocationLat != nil)
	u.setNullable("location_lng", nullable(p.LocationLng), p.LocationLng != nil)
	if p.VibeDepth != nil {
		u.set("vibe_depth", *p.VibeDepth)
	}
	u.setNullable("vibe_heart", nullable(p.VibeHeart), p.VibeHeart != nil)
	if p.GuestConsented != nil {
		u.set("guest_consented", *p.GuestConsented)
		if *p.GuestConsented {
			u.setExpr("consent_timestamp = COALESCE(consent_timestamp, ?)", now)
		}
	}
	u.setNullable("audio_data", nullable(p.AudioData), p.AudioData != nil)
	u.setNullable("audio_duration_seconds", nullable(p.AudioDurationSeconds), p.AudioDurationSeconds != nil)
	if p.QuestionsAsked != nil {
		questions, err := toNullJSON(*p.QuestionsAsked)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		u.set("questions_asked", questions)
	}
	u.setNullable("nps_score", nullable(p.NPSScore), p.NPSScore != nil)
	u.setNullable("feedback_text", nullable(p.FeedbackText), p.FeedbackText != nil)
	u.setNullable("transcript", nullable(p.Transcript), p.Transcript != nil)
	u.setNullable("ai_insights", nullable(p.AIInsights), p.AIInsights != nil)
	u.setNullable("poster_prompt", nullable(p.PosterPrompt), p.PosterPrompt != nil)
	u.setNullable("poster_image_url", nullable(p.PosterImageURL), p.PosterImageURL != nil)
	if p.ReminderSent != nil {
		u.set("reminder_sent", *p.ReminderSent)
		if *p.ReminderSent {
			u.setExpr("reminder_sent_at = COALESCE(reminder_sent_at, ?)", now)
		}
	}

	query := `UPDATE connections SET ` + strings.Join(u.clauses, ", ") +
		` WHERE id = ? RETURNING ` + selectColumns
	args := append(u.args, id)

	c, err := scanConnection(s.db.QueryRowContext(ctx, s.rebind(query), args...))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewStorage(fmt.Errorf("update connection: %w", err))
	}
	return c, nil
}

// Ping checks the database is still reachable.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres. Queries never carry a literal '?'.
func (s *SQL) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type updateBuilder struct {
	clauses []string
	args    []any
}

func (u *updateBuilder) set(col string, val any) {
	u.setExpr(col+" = ?", val)
}

func (u *updateBuilder) setNullable(col string, val any, mentioned bool) {
	if mentioned {
		u.set(col, val)
	}
}

func (u *updateBuilder) setExpr(expr string, val any) {
	u.clauses = append(u.clauses, expr)
	u.args = append(u.args, val)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*connection.Connection, error) {
	var (
		c                                      connection.Connection
		summary, guestEmail, hostEmail         sql.NullString
		audio, questions, feedback, transcript sql.NullString
		insights, posterPrompt, posterURL      sql.NullString
		lat, lng                               sql.NullFloat64
		vibeHeart, duration, nps               sql.NullInt64
		capturedAt, createdAt                  int64
		consentAt, reminderAt                  sql.NullInt64
	)

	err := row.Scan(
		&c.ID, &c.HostID, &c.IntentionText, &summary, &capturedAt, &createdAt,
		&guestEmail, &hostEmail, &lat, &lng, &c.VibeDepth, &vibeHeart,
		&c.GuestConsented, &consentAt, &audio, &duration, &questions,
		&nps, &feedback, &transcript, &insights, &posterPrompt, &posterURL,
		&c.ReminderSent, &reminderAt,
	)
	if err != nil {
		return nil, err
	}

	c.IntentionSummary = fromNullString(summary)
	c.IntentionCapturedAt = fromMillis(capturedAt)
	c.CreatedAt = fromMillis(createdAt)
	c.GuestEmail = fromNullString(guestEmail)
	c.HostEmail = fromNullString(hostEmail)
	c.LocationLat = fromNullFloat(lat)
	c.LocationLng = fromNullFloat(lng)
	c.VibeHeart = fromNullInt(vibeHeart)
	c.ConsentTimestamp = fromNullMillis(consentAt)
	c.AudioData = fromNullString(audio)
	c.AudioDurationSeconds = fromNullInt(duration)
	c.NPSScore = fromNullInt(nps)
	c.FeedbackText = fromNullString(feedback)
	c.Transcript = fromNullString(transcript)
	c.AIInsights = fromNullString(insights)
	c.PosterPrompt = fromNullString(posterPrompt)
	c.PosterImageURL = fromNullString(posterURL)
	c.ReminderSentAt = fromNullMillis(reminderAt)

	if questions.Valid {
		if err := json.Unmarshal([]byte(questions.String), &c.QuestionsAsked); err != nil {
			return nil, fmt.Errorf("decode questions_asked: %w", err)
		}
	}
	return &c, nil
}

// nullable converts a pointer field to a driver value, nil meaning NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func toNullJSON(v []string) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}
