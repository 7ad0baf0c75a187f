package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/BikerAndy/site-signin/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the production
// schema. The shared-cache URI keeps the database alive while the pool
// recycles its connection.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed when the test
// finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// revision returns the write count stored for key, 0 if absent.
func revision(t *testing.T, conn *sql.DB, key string) int64 {
	t.Helper()

	var rev int64
	err := conn.QueryRow("SELECT revision FROM kv_blobs WHERE key = ?;", key).Scan(&rev)
	if err == sql.ErrNoRows {
		return 0
	}
	if err != nil {
		t.Fatalf("revision %s: %v", key, err)
	}
	return rev
}
