package userstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Options tunes the SQLite connection.
type Options struct {
	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
	// WAL enables write-ahead logging. Ignored for in-memory databases.
	WAL bool
	// MaxOpenConns bounds the pool. In-memory databases need 1.
	MaxOpenConns int
}

// DefaultOptions suits a single-process web service.
func DefaultOptions() Options {
	return Options{BusyTimeout: 5 * time.Second, WAL: true, MaxOpenConns: 1}
}

// Open opens the SQLite database at path (":memory:" for a private
// in-memory database) and verifies it within timeout.
func Open(ctx context.Context, path string, opts Options, timeout time.Duration) (*sql.DB, error) {
	memory := isMemory(path)
	if memory {
		opts.WAL = false
		opts.MaxOpenConns = 1
	}

	db, err := sql.Open("sqlite3", buildDSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(max(opts.MaxOpenConns, 1))
	db.SetMaxIdleConns(max(opts.MaxOpenConns, 1))
	if memory {
		// Closing the only connection of :memory: drops the database.
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if opts.WAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set journal_mode: %w", err)
		}
	}
	return db, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory") || strings.HasPrefix(path, "file::memory:")
}

func buildDSN(path string, opts Options) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	if opts.BusyTimeout > 0 {
		params.Set("_busy_timeout", fmt.Sprint(opts.BusyTimeout.Milliseconds()))
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}
