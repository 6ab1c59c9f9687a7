// Package testing holds shared test fixtures.
package testing

import (
	"database/sql"
	"testing"

	"github.com/teranos/finkg/db"
)

// CreateTestDB returns an in-memory SQLite database with every migration
// applied. It is closed on test cleanup.
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.Migrate(conn, nil); err != nil {
		conn.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
	})
	return conn
}
