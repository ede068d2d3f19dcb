// Package storetest provides an in-memory, migrated SQLite store for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/mwantia/s3offload/pkg/db/store"
)

// New opens a fresh in-memory store and closes it when the test ends.
func New(t testing.TB) *store.SQLiteStore {
	t.Helper()

	st, err := store.NewSQLiteStore(store.SQLiteConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate sqlite store: %v", err)
	}
	return st
}
