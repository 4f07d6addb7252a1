package identity

import (
	"context"
	"testing"
	"time"
)

// stubOAuth is a scriptable OAuth implementation for coordinator tests.
type stubOAuth struct {
	refreshTok   Token
	refreshErr   error
	refreshCalls int
	validateOK   bool
	authStatus   Status
}

func (s *stubOAuth) AuthorizationURL(string) (string, string, string, error) {
	return "https://auth.example.com/authorize", "state", "verifier", nil
}

func (s *stubOAuth) ExchangeCode(context.Context, string, string) (Token, error) {
	return Token{}, &AuthError{Op: "exchange"}
}

func (s *stubOAuth) Refresh(context.Context, string) (Token, error) {
	s.refreshCalls++
	if s.refreshErr != nil {
		return Token{}, s.refreshErr
	}
	return s.refreshTok, nil
}

func (s *stubOAuth) Validate(context.Context, Token) bool {
	return s.validateOK
}

func (s *stubOAuth) Authenticate(context.Context, map[string]any) (Status, error) {
	return s.authStatus, nil
}

func TestCoordinator_ValidToken(t *testing.T) {
	store := NewMemoryStore()
	coord := NewCoordinator(&stubOAuth{}, store)

	if _, ok := coord.ValidToken(); ok {
		t.Fatal("expected no token from an empty store")
	}

	store.Store(Token{
		AccessToken: "t1",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	tok, ok := coord.ValidToken()
	if !ok || tok.AccessToken != "t1" {
		t.Fatalf("ValidToken() = (%+v, %v), want t1", tok, ok)
	}

	// An expired token is treated as absent, with no auto-refresh.
	stub := &stubOAuth{refreshTok: Token{AccessToken: "t2"}}
	coord = NewCoordinator(stub, store)
	store.Store(Token{
		AccessToken:  "t1",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})
	if _, ok := coord.ValidToken(); ok {
		t.Error("expected no token when the stored one is expired")
	}
	if stub.refreshCalls != 0 {
		t.Error("ValidToken must not refresh implicitly")
	}
}

func TestCoordinator_RefreshStoredToken(t *testing.T) {
	t.Run("refresh success replaces the stored token", func(t *testing.T) {
		store := NewMemoryStore()
		stub := &stubOAuth{
			refreshTok: Token{
				AccessToken:  "t2",
				RefreshToken: "r1",
				ExpiresAt:    time.Now().Add(time.Hour),
			},
		}
		coord := NewCoordinator(stub, store)

		store.Store(Token{
			AccessToken:  "t1",
			RefreshToken: "r1",
			ExpiresAt:    time.Now().Add(-time.Hour),
		})

		tok, ok := coord.RefreshStoredToken(context.Background())
		if !ok {
			t.Fatal("expected refresh to succeed")
		}
		if tok.AccessToken != "t2" {
			t.Errorf("AccessToken = %q, want t2", tok.AccessToken)
		}

		got, ok := coord.ValidToken()
		if !ok || got.AccessToken != "t2" {
			t.Errorf("ValidToken() after refresh = (%+v, %v), want t2", got, ok)
		}
	})

	t.Run("refresh failure clears the store", func(t *testing.T) {
		store := NewMemoryStore()
		stub := &stubOAuth{refreshErr: &AuthError{Op: "refresh"}}
		coord := NewCoordinator(stub, store)

		store.Store(Token{AccessToken: "t1", RefreshToken: "r1"})

		if _, ok := coord.RefreshStoredToken(context.Background()); ok {
			t.Fatal("expected refresh to fail")
		}
		if _, ok := store.Retrieve(); ok {
			t.Error("expected store to be cleared after failed refresh")
		}
	})

	t.Run("no refresh token leaves the store unchanged", func(t *testing.T) {
		store := NewMemoryStore()
		stub := &stubOAuth{}
		coord := NewCoordinator(stub, store)

		original := Token{AccessToken: "t1"}
		store.Store(original)

		if _, ok := coord.RefreshStoredToken(context.Background()); ok {
			t.Fatal("expected no refresh without a refresh token")
		}
		got, ok := store.Retrieve()
		if !ok || got != original {
			t.Errorf("store = (%+v, %v), want untouched %+v", got, ok, original)
		}
		if stub.refreshCalls != 0 {
			t.Error("Refresh must not be called without a refresh token")
		}
	})

	t.Run("empty store is a no-op", func(t *testing.T) {
		coord := NewCoordinator(&stubOAuth{}, NewMemoryStore())
		if _, ok := coord.RefreshStoredToken(context.Background()); ok {
			t.Error("expected no refresh on an empty store")
		}
	})
}

func TestCoordinator_IsAuthenticated(t *testing.T) {
	tests := []struct {
		name       string
		token      *Token
		validateOK bool
		want       bool
	}{
		{
			name: "locally valid and remotely accepted",
			token: &Token{
				AccessToken: "t1",
				ExpiresAt:   time.Now().Add(time.Hour),
			},
			validateOK: true,
			want:       true,
		},
		{
			name: "locally valid but remotely rejected",
			token: &Token{
				AccessToken: "t1",
				ExpiresAt:   time.Now().Add(time.Hour),
			},
			validateOK: false,
			want:       false,
		},
		{
			name: "locally expired",
			token: &Token{
				AccessToken: "t1",
				ExpiresAt:   time.Now().Add(-time.Hour),
			},
			validateOK: true,
			want:       false,
		},
		{
			name: "no token",
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore()
			if tc.token != nil {
				store.Store(*tc.token)
			}
			coord := NewCoordinator(&stubOAuth{validateOK: tc.validateOK}, store)

			if got := coord.IsAuthenticated(context.Background()); got != tc.want {
				t.Errorf("IsAuthenticated() = %v, want %v", got, tc.want)
			}
		})
	}
}
