package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("error creating db directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// One connection serialises writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}
	if err := s.ensureSystemConfig(context.Background()); err != nil {
		return nil, fmt.Errorf("error initializing system config: %w", err)
	}

	return s, nil
}

// Timestamps are stored as unix milliseconds so range predicates compare
// numerically.
func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			organizer_id TEXT NOT NULL DEFAULT '',
			venue TEXT NOT NULL DEFAULT '',
			latitude REAL,
			longitude REAL,
			starts_at INTEGER NOT NULL,
			status TEXT NOT NULL,
			weather_status TEXT NOT NULL DEFAULT 'normal',
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			assigned_events TEXT NOT NULL DEFAULT '[]',
			preferences TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alert_configs (
			event_id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 0,
			units TEXT NOT NULL,
			thresholds TEXT NOT NULL,
			conditions TEXT NOT NULL,
			notifications TEXT NOT NULL,
			automation TEXT NOT NULL,
			polling_interval INTEGER NOT NULL,
			template TEXT NOT NULL DEFAULT '',
			last_checked INTEGER,
			created_by TEXT NOT NULL DEFAULT '',
			updated_by TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS system_config (
			id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL,
			auto_polling INTEGER NOT NULL,
			default_polling_interval INTEGER NOT NULL,
			allowed_roles TEXT NOT NULL,
			require_approval INTEGER NOT NULL,
			updated_by TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alert_logs (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			weather TEXT NOT NULL,
			risks TEXT NOT NULL,
			message TEXT NOT NULL,
			notifications TEXT NOT NULL,
			actions TEXT NOT NULL,
			pending_approvals INTEGER NOT NULL DEFAULT 0,
			trigger TEXT NOT NULL,
			triggered_by TEXT NOT NULL DEFAULT '',
			acknowledged INTEGER NOT NULL DEFAULT 0,
			acknowledged_by TEXT NOT NULL DEFAULT '',
			acknowledged_at INTEGER,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_starts_at ON events(starts_at);
		CREATE INDEX IF NOT EXISTS idx_bookings_event_id ON bookings(event_id);
		CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
		CREATE INDEX IF NOT EXISTS idx_alert_logs_event_created ON alert_logs(event_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_alert_logs_pending ON alert_logs(pending_approvals);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(data string, dest any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), dest)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
