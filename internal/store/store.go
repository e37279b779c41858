package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies the SQL backend behind a DB.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Schema groups the monitoring tables on backends that support schemas.
const Schema = "monitoring"

const (
	TableMetrics  = "time_metrics"
	TableFeedback = "feedback_users"
)

type DB struct {
	*sqlx.DB
	dialect Dialect
}

// Open connects to the database named by databaseURL and creates the
// monitoring tables if they are missing. Supported schemes are
// postgres://, postgresql:// and sqlite://<path>.
func Open(databaseURL string) (*DB, error) {
	dialect, driver, dsn, err := parseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		path := strings.SplitN(dsn, "?", 2)[0]
		if dir := filepath.Dir(path); dir != "." {
			_ = os.MkdirAll(dir, 0755)
		}
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: conn, dialect: dialect}
	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("Database ready", "dialect", dialect)
	return db, nil
}

func parseURL(databaseURL string) (Dialect, string, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, "postgres", databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dsn := strings.TrimPrefix(databaseURL, "sqlite://")
		if dsn == "" {
			return "", "", "", fmt.Errorf("sqlite database path is empty")
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		// Foreign keys are per connection in SQLite; the DSN applies them to
		// every pooled connection.
		dsn += sep + "_foreign_keys=on&_busy_timeout=5000"
		return DialectSQLite, "sqlite3", dsn, nil
	default:
		return "", "", "", fmt.Errorf("unsupported database url: %q", databaseURL)
	}
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Table returns the qualified name of a monitoring table.
func (db *DB) Table(name string) string {
	if db.dialect == DialectPostgres {
		return Schema + "." + name
	}
	return name
}

// Migrate creates the schema and tables. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	var stmts []string
	if db.dialect == DialectPostgres {
		stmts = []string{
			`CREATE SCHEMA IF NOT EXISTS ` + Schema,
			`CREATE TABLE IF NOT EXISTS ` + db.Table(TableMetrics) + ` (
				id SERIAL PRIMARY KEY,
				timestamp TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
				inference_time_ms DOUBLE PRECISION NOT NULL CHECK (inference_time_ms >= 0),
				success BOOLEAN NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS ` + db.Table(TableFeedback) + ` (
				id SERIAL PRIMARY KEY,
				image_path TEXT NOT NULL,
				timestamp TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
				feedback INTEGER NOT NULL CHECK (feedback IN (0, 1)),
				prediction VARCHAR(1) NOT NULL CHECK (prediction IN ('c', 'd')),
				time_metric_id INTEGER REFERENCES ` + db.Table(TableMetrics) + `(id) ON DELETE SET NULL
			)`,
		}
	} else {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS ` + TableMetrics + ` (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				inference_time_ms REAL NOT NULL CHECK (inference_time_ms >= 0),
				success BOOLEAN NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS ` + TableFeedback + ` (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				image_path TEXT NOT NULL,
				timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				feedback INTEGER NOT NULL CHECK (feedback IN (0, 1)),
				prediction TEXT NOT NULL CHECK (prediction IN ('c', 'd')),
				time_metric_id INTEGER REFERENCES ` + TableMetrics + `(id) ON DELETE SET NULL
			)`,
		}
	}
	stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_feedback_users_time_metric_id ON `+
		db.Table(TableFeedback)+` (time_metric_id)`)

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}
