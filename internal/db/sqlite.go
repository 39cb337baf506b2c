// Package db implements the bookmark store on SQLite via sqlx.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	maxLifetimeConn = time.Hour
)

// SQLite is the bookmark store backed by a single SQLite database.
type SQLite struct {
	DB        *sqlx.DB
	closeOnce sync.Once
}

// Open opens the database at path, applies the connection pragmas and
// verifies the connection. The schema is not touched; call Migrate.
func Open(path string) (*SQLite, error) {
	slog.Debug("opening database", "path", path)

	inMemory := strings.Contains(path, ":memory:")

	db, err := sqlx.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if inMemory {
		// Every pooled connection would get its own private in-memory
		// database, so force a single one.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(maxLifetimeConn)
	}

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &SQLite{DB: db}, nil
}

// Close closes the database connection, once.
func (r *SQLite) Close() {
	r.closeOnce.Do(func() {
		if err := r.DB.Close(); err != nil {
			slog.Error("closing database", "error", err)
		} else {
			slog.Debug("database closed")
		}
	})
}

// buildDSN appends the connection pragmas to the database path.
func buildDSN(path string) string {
	pragmas := []string{
		"foreign_keys(1)",    // cascade tag rows on bookmark delete
		"journal_mode(WAL)",  // readers do not block the writer
		"synchronous(NORMAL)",
		"busy_timeout(5000)",
	}

	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + q.Encode()
}

// withTx executes fn inside a transaction, rolling back on error or
// panic.
func (r *SQLite) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "error", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}
