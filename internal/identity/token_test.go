package identity

import (
	"testing"
	"time"
)

func TestMemoryStore_StoreRetrieveClear(t *testing.T) {
	store := NewMemoryStore()

	if _, ok := store.Retrieve(); ok {
		t.Fatal("expected empty store initially")
	}

	tok := Token{
		AccessToken:  "t1",
		RefreshToken: "r1",
		TokenType:    "Bearer",
	}
	store.Store(tok)

	got, ok := store.Retrieve()
	if !ok {
		t.Fatal("expected stored token")
	}
	if got != tok {
		t.Errorf("Retrieve() = %+v, want %+v", got, tok)
	}

	// Storing replaces unconditionally.
	tok2 := Token{AccessToken: "t2"}
	store.Store(tok2)
	got, _ = store.Retrieve()
	if got.AccessToken != "t2" {
		t.Errorf("AccessToken = %q after replace, want %q", got.AccessToken, "t2")
	}

	store.Clear()
	if _, ok := store.Retrieve(); ok {
		t.Error("expected empty store after Clear")
	}

	// Clear is idempotent.
	store.Clear()
	if _, ok := store.Retrieve(); ok {
		t.Error("expected empty store after second Clear")
	}
}

func TestMemoryStore_IsExpired(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		expired   bool
	}{
		{
			name:      "already past expiry",
			expiresAt: now.Add(-time.Hour),
			expired:   true,
		},
		{
			name:      "inside the grace buffer",
			expiresAt: now.Add(299 * time.Second),
			expired:   true,
		},
		{
			name:      "just outside the grace buffer",
			expiresAt: now.Add(301 * time.Second),
			expired:   false,
		},
		{
			name:      "far in the future",
			expiresAt: now.Add(24 * time.Hour),
			expired:   false,
		},
		{
			name:      "no expiry never expires",
			expiresAt: time.Time{},
			expired:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := Token{AccessToken: "t", ExpiresAt: tc.expiresAt}
			if got := store.IsExpired(tok); got != tc.expired {
				t.Errorf("IsExpired() = %v, want %v", got, tc.expired)
			}
		})
	}
}
