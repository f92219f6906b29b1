package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"testing"
)

// setupTestDB creates a migrated, named shared in-memory database. The writer
// and reader pools attach to the same database via cache=shared; the name is
// derived from t.Name() so parallel tests stay isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so subtest slashes cannot be read as URI
	// path separators or query parameters. WAL does not apply in memory, so
	// the journal_mode pragma is omitted.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	open := func(maxConns int) *sql.DB {
		pool, err := sql.Open("sqlite", dsn)
		if err != nil {
			t.Fatalf("open test db: %v", err)
		}
		pool.SetMaxOpenConns(maxConns)
		if err := pool.Ping(); err != nil {
			t.Fatalf("ping test db: %v", err)
		}
		return pool
	}

	db := &DB{Writer: open(1), Reader: open(4)}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db
}
