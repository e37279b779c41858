package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite://" + filepath.Join(t.TempDir(), "nested", "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesTables(t *testing.T) {
	db := openTestDB(t)

	var names []string
	require.NoError(t, db.Select(&names,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name IN (?, ?) ORDER BY name`,
		TableFeedback, TableMetrics))
	assert.Equal(t, []string{TableFeedback, TableMetrics}, names)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.Migrate(context.Background()))
}

func TestForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)

	var enabled int
	require.NoError(t, db.Get(&enabled, `PRAGMA foreign_keys`))
	assert.Equal(t, 1, enabled)
}

func TestTableQualification(t *testing.T) {
	pg := &DB{dialect: DialectPostgres}
	lite := &DB{dialect: DialectSQLite}

	assert.Equal(t, "monitoring.time_metrics", pg.Table(TableMetrics))
	assert.Equal(t, "feedback_users", lite.Table(TableFeedback))
}

func TestParseURL(t *testing.T) {
	dialect, driver, dsn, err := parseURL("sqlite://data/x.sqlite?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, dialect)
	assert.Equal(t, "sqlite3", driver)
	assert.Equal(t, "data/x.sqlite?cache=shared&_foreign_keys=on&_busy_timeout=5000", dsn)

	dialect, driver, dsn, err = parseURL("postgres://u:p@localhost/db?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, dialect)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://u:p@localhost/db?sslmode=disable", dsn)

	_, _, _, err = parseURL("mysql://localhost")
	assert.Error(t, err)

	_, _, _, err = parseURL("sqlite://")
	assert.Error(t, err)
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23503"})))
	assert.False(t, IsForeignKeyViolation(&pq.Error{Code: "23505"}))
	assert.True(t, IsForeignKeyViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}))
	assert.False(t, IsForeignKeyViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, IsForeignKeyViolation(errors.New("boom")))
}
