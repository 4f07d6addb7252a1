package testutil

import (
	"context"
	"testing"

	"github.com/nhle/mailscope/internal/model"
	"github.com/nhle/mailscope/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedMessages upserts the given records into the store, failing the
// test on error.
func SeedMessages(t *testing.T, s store.Store, recs ...model.MessageRecord) {
	t.Helper()

	if err := s.UpsertMessages(context.Background(), recs); err != nil {
		t.Fatalf("seeding messages: %v", err)
	}
}
