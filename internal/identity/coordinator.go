package identity

import "context"

// Coordinator composes one OAuth client and one TokenStore into the
// authentication lifecycle policy: what counts as authenticated, when
// to refresh, and how refresh failures are handled.
//
// The coordinator never refreshes implicitly inside a read path.
// Callers are expected to call RefreshStoredToken themselves when
// ValidToken reports no usable credential.
type Coordinator struct {
	oauth OAuth
	store TokenStore
}

// NewCoordinator creates a Coordinator over the given client and store.
func NewCoordinator(oauth OAuth, store TokenStore) *Coordinator {
	return &Coordinator{oauth: oauth, store: store}
}

// Authenticate delegates to the OAuth client. It does not persist
// anything; the caller must StoreToken explicitly on success.
func (c *Coordinator) Authenticate(ctx context.Context, creds map[string]any) (Status, error) {
	return c.oauth.Authenticate(ctx, creds)
}

// ValidToken returns the stored credential only if one is present and
// not expired per the store's grace buffer. It does not auto-refresh.
func (c *Coordinator) ValidToken() (Token, bool) {
	tok, ok := c.store.Retrieve()
	if !ok || c.store.IsExpired(tok) {
		return Token{}, false
	}
	return tok, true
}

// RefreshStoredToken refreshes the stored credential if it carries a
// refresh token. On success the new credential is stored and returned.
// On an auth failure the stored credential is cleared and ok=false is
// returned: a failed refresh invalidates the session rather than
// retrying with stale data. With no stored credential or no refresh
// token, it returns ok=false with no side effects.
func (c *Coordinator) RefreshStoredToken(ctx context.Context) (Token, bool) {
	tok, ok := c.store.Retrieve()
	if !ok || tok.RefreshToken == "" {
		return Token{}, false
	}

	newTok, err := c.oauth.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		c.store.Clear()
		return Token{}, false
	}

	c.store.Store(newTok)
	return newTok, true
}

// IsAuthenticated reports whether a locally-valid stored token is also
// still accepted by the provider. The remote probe runs on every call;
// callers in a hot loop should cache the result themselves.
func (c *Coordinator) IsAuthenticated(ctx context.Context) bool {
	tok, ok := c.ValidToken()
	if !ok {
		return false
	}
	return c.oauth.Validate(ctx, tok)
}

// StoreToken stores tok, replacing any existing credential.
func (c *Coordinator) StoreToken(tok Token) {
	c.store.Store(tok)
}

// ClearStoredToken removes the stored credential.
func (c *Coordinator) ClearStoredToken() {
	c.store.Clear()
}
