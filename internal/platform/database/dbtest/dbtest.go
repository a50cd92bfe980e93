// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"controlhub/internal/platform/database"
)

// Open returns a fresh, fully migrated in-memory database. A single
// connection is used so every query sees the same memory database.
func Open(t testing.TB) *database.DB {
	t.Helper()

	raw, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { raw.Close() })

	db := database.New(raw, database.DialectSQLite)
	if _, err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// Exec runs a fixture statement and fails the test on error.
func Exec(t testing.TB, db *database.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("fixture %q failed: %v", query, err)
	}
}

// SeedUser inserts a user row with a fixed password hash.
func SeedUser(t testing.TB, db *database.DB, id, email string) {
	t.Helper()
	Exec(t, db, `INSERT INTO users (id, email, password_hash, full_name, role, created_at, updated_at)
		VALUES (?, ?, 'x', 'Test User', 'member', 1700000000, 1700000000)`, id, email)
}

// SeedAutomation inserts an automation owned by userID.
func SeedAutomation(t testing.TB, db *database.DB, id, userID, name, status string) {
	t.Helper()
	Exec(t, db, `INSERT INTO automations (id, user_id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1700000000, 1700000000)`, id, userID, name, status)
}

// Count returns SELECT COUNT(*) for the given table and optional where clause.
func Count(t testing.TB, db *database.DB, table, where string, args ...any) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}
