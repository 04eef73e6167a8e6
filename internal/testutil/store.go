package testutil

import (
	"testing"

	"harbor-go/internal/store"
	"harbor-go/internal/store/migrations"
)

// NewTestStore creates an in-memory SQLite store with the full schema
// applied. The store is closed automatically when the test ends.
func NewTestStore(t *testing.T) *store.SQLite {
	t.Helper()

	s, err := store.NewSQLite(":memory:", store.DefaultTables())
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := migrations.MigrateUp(s.DB()); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	return s
}
