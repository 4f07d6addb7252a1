package identity

import (
	"sync"
	"time"
)

// Status is the outcome of a single Authenticate call. It describes the
// result of that call, not a persisted mode.
type Status string

const (
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusExpired         Status = "expired"
	StatusRefreshing      Status = "refreshing"

	// StatusFailed is reserved for a future distinction between a stale
	// token and one that was never valid; Authenticate currently reports
	// both as StatusExpired.
	StatusFailed Status = "failed"
)

// ExpiryGrace is subtracted from a token's expiry when checking
// freshness, so a token is never used right up to its last valid
// instant. The 5-minute buffer absorbs clock skew and in-flight
// request latency.
const ExpiryGrace = 5 * time.Minute

// Token holds one OAuth credential. A Token is a value: a refreshed
// credential is a new Token, never a mutation of the old one.
type Token struct {
	// AccessToken is the opaque bearer value.
	AccessToken string

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string

	// ExpiresAt is when the access token expires. The zero value means
	// the token never expires.
	ExpiresAt time.Time

	// TokenType is typically "Bearer".
	TokenType string

	// Scope is the granted scope(s), if the provider reported them.
	Scope string
}

// TokenStore holds at most one credential at a time.
type TokenStore interface {
	// Store unconditionally replaces any existing credential.
	Store(tok Token)

	// Retrieve returns the last stored credential, or ok=false if none
	// has been stored or the store was cleared.
	Retrieve() (tok Token, ok bool)

	// Clear removes the stored credential. Clearing an empty store is a
	// no-op.
	Clear()

	// IsExpired reports whether tok is within ExpiryGrace of its
	// expiry, or past it. Tokens without an expiry never expire.
	IsExpired(tok Token) bool
}

// MemoryStore is an in-memory, single-slot TokenStore. The single
// credential slot is guarded by a mutex so a background poller and the
// UI can share one store; the design still assumes one logical session
// per process.
type MemoryStore struct {
	mu      sync.Mutex
	current *Token
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Store replaces the stored credential with tok.
func (s *MemoryStore) Store(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &tok
}

// Retrieve returns the stored credential, if any.
func (s *MemoryStore) Retrieve() (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Token{}, false
	}
	return *s.current, true
}

// Clear removes the stored credential.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// IsExpired reports whether tok has expired, applying ExpiryGrace.
func (s *MemoryStore) IsExpired(tok Token) bool {
	if tok.ExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(tok.ExpiresAt.Add(-ExpiryGrace))
}
