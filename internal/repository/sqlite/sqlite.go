// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: a single file next to the binary, no separate
// server to run. It also gives us real transactions, which the article aggregate
// needs for its two-record operations (comment + comment list, favorite + count).
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite. No CGo, no C compiler, cross-compiles
// like any other Go package.
//
// SCHEMA OVERVIEW:
//
//	users ─┬─< follows >── users          (following set)
//	       └─< favorites >── articles     (favorites set)
//	articles ─< article_tags              (ordered tagList)
//	articles ─< article_comments >─ comments  (ordered comment-id list)
//
// CONNECTION SETTINGS:
// PRAGMAs are per connection, and database/sql opens connections on demand. For
// files they are therefore passed in the DSN (see fileDSN), which modernc runs
// on every new connection. Write transactions start with BEGIN IMMEDIATE, so a
// second writer waits on busy_timeout at BEGIN instead of failing with
// SQLITE_BUSY halfway through.
//
// QUERY DISCIPLINE:
// In-memory databases are pinned to a single connection (see New). With one
// connection, starting a second query while a *sql.Rows is still open would
// block forever, so every method here drains and closes its rows before it
// issues the next statement, and statements inside a transaction only ever use
// the *sql.Tx.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// querier is the subset of *sql.DB and *sql.Tx the read helpers need, so the
// same helper can run inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// busyTimeoutMillis is how long a connection waits for a competing writer.
const busyTimeoutMillis = 5000

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/conduit.db" → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	inMemory := dbPath == ":memory:"

	dsn := dbPath
	if !inMemory {
		dsn = fileDSN(dbPath)
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new, empty database.
	// One connection keeps all callers looking at the same data, and makes
	// setting the PRAGMA once enough.
	if inMemory {
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// fileDSN appends the per-connection settings to a file path:
//
//	busy_timeout  wait for a competing writer instead of failing
//	foreign_keys  OFF by default in SQLite
//	journal_mode  WAL lets readers proceed while a write is in progress
//	_txlock       BEGIN IMMEDIATE for every transaction
func fileDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMillis) +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_txlock=immediate"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				github_id     INTEGER UNIQUE,
				username      TEXT NOT NULL UNIQUE,
				email         TEXT NOT NULL UNIQUE,
				bio           TEXT NOT NULL DEFAULT '',
				image         TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL DEFAULT '',
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"follows", `
			CREATE TABLE IF NOT EXISTS follows (
				follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				followee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				PRIMARY KEY (follower_id, followee_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee_id);`},
		{"articles", `
			CREATE TABLE IF NOT EXISTS articles (
				id              TEXT PRIMARY KEY,
				slug            TEXT NOT NULL UNIQUE,
				title           TEXT NOT NULL,
				description     TEXT NOT NULL DEFAULT '',
				body            TEXT NOT NULL DEFAULT '',
				author_id       TEXT NOT NULL REFERENCES users(id),
				favorites_count INTEGER NOT NULL DEFAULT 0 CHECK (favorites_count >= 0),
				created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);
			CREATE INDEX IF NOT EXISTS idx_articles_author_id ON articles(author_id);`},
		{"article_tags", `
			CREATE TABLE IF NOT EXISTS article_tags (
				article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
				position   INTEGER NOT NULL,
				tag        TEXT NOT NULL,
				PRIMARY KEY (article_id, position)
			);
			CREATE INDEX IF NOT EXISTS idx_article_tags_tag ON article_tags(tag);`},
		{"favorites", `
			CREATE TABLE IF NOT EXISTS favorites (
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
				PRIMARY KEY (user_id, article_id)
			);
			CREATE INDEX IF NOT EXISTS idx_favorites_article ON favorites(article_id);`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         TEXT PRIMARY KEY,
				body       TEXT NOT NULL,
				author_id  TEXT NOT NULL REFERENCES users(id),
				article_id TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"article_comments", `
			CREATE TABLE IF NOT EXISTS article_comments (
				seq        INTEGER PRIMARY KEY AUTOINCREMENT,
				article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
				comment_id TEXT NOT NULL UNIQUE REFERENCES comments(id)
			);
			CREATE INDEX IF NOT EXISTS idx_article_comments_article ON article_comments(article_id);`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}

	return nil
}

// withTx runs fn inside a transaction, committing if fn returns nil and
// rolling back otherwise.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("sqlite: rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// now returns the current time in UTC. Stored timestamps share one offset so
// that ORDER BY created_at compares them correctly.
func now() time.Time {
	return time.Now().UTC()
}
