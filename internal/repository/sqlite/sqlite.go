// Package sqlite implements the Identity Store on SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain. Use ":memory:" for a throwaway database in tests.
//
// The pool is pinned to a single connection. SQLite serialises writers anyway,
// an in-memory database exists per connection, and a single connection means
// every compare-and-create statement sees the latest committed state.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.UserRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/auth.db"  → file-based database (persistent)
//   - ":memory:"      → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if dbPath != ":memory:" {
		// WAL lets readers proceed while a write is in progress.
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database still answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates or upgrades the schema. Every step is idempotent.
//
// Identity keys are indexed but deliberately NOT unique: uniqueness of a
// canonical user is the resolver's job, enforced through CreateIfAbsent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			external_id TEXT,
			google_id   TEXT,
			name        TEXT NOT NULL,
			email       TEXT,
			password    TEXT,
			picture     TEXT,
			role        TEXT NOT NULL CHECK (role IN ('student', 'employer')),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_name_role   ON users(name, role);
		CREATE INDEX IF NOT EXISTS idx_users_google_id   ON users(google_id);
		CREATE INDEX IF NOT EXISTS idx_users_email       ON users(email);
		CREATE INDEX IF NOT EXISTS idx_users_external_id ON users(external_id);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// company_id arrived with the employer-profile flow.
	if err := db.addColumnIfNotExists("users", "company_id", "TEXT"); err != nil {
		return fmt.Errorf("adding company_id to users: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
