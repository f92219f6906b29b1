// Package sqlite implements the CommentStore port on SQLite.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB holds the split reader/writer connection pair for the comment store.
// Comment writes are frequent but tiny (one row per mutation), so a single
// writer connection sidesteps "database is locked" errors without costing
// throughput; reads fan out over a small pool.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

// NewDB opens the comment database at dbPath in WAL mode with a busy timeout,
// synchronous NORMAL, foreign keys on (reply cascade depends on it), and a
// 64MB page cache.
func NewDB(dbPath string) (*DB, error) {
	writer, err := openPool(dbPath, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader, err := openPool(dbPath, 4)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader}, nil
}

func openPool(dbPath string, maxConns int) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath,
	)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)

	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Close closes both connection pools and returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
