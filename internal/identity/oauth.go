package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultTokenTTL is assumed when the token endpoint omits expires_in.
const defaultTokenTTL = 3600 * time.Second

// requestTimeout bounds every token-endpoint and probe request.
const requestTimeout = 30 * time.Second

// Endpoints holds the provider URLs the OAuth flow talks to.
type Endpoints struct {
	// AuthURL is the authorization endpoint the user's browser visits.
	AuthURL string

	// TokenURL is the token endpoint for code exchange and refresh.
	TokenURL string

	// ProbeURL is an authenticated resource endpoint used to check
	// whether an access token is still accepted remotely.
	ProbeURL string
}

// GmailEndpoints returns the Google OAuth endpoints with the Gmail
// profile resource as the validation probe.
func GmailEndpoints() Endpoints {
	return Endpoints{
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
		ProbeURL: "https://gmail.googleapis.com/gmail/v1/users/me/profile",
	}
}

// OAuth captures the protocol-level operations the identity layer
// performs against a provider. Client is the concrete implementation;
// the interface exists so the Coordinator and the UI can be exercised
// with stubs.
type OAuth interface {
	// AuthorizationURL builds the authorization URL for the given scope
	// and returns it with the fresh state and PKCE code verifier the
	// caller must retain to complete the flow.
	AuthorizationURL(scope string) (authURL, state, verifier string, err error)

	// ExchangeCode trades an authorization code (plus its PKCE
	// verifier) for a token.
	ExchangeCode(ctx context.Context, code, verifier string) (Token, error)

	// Refresh obtains a new token using a refresh token. The returned
	// token keeps the original refresh token when the provider omits
	// one in the response.
	Refresh(ctx context.Context, refreshToken string) (Token, error)

	// Validate probes the provider with the token and reports whether
	// it was accepted. It never returns an error; any failure is false.
	Validate(ctx context.Context, tok Token) bool

	// Authenticate evaluates a loosely-typed credentials bag and
	// reports the resulting status.
	Authenticate(ctx context.Context, creds map[string]any) (Status, error)
}

// Client implements the Authorization-Code-with-PKCE flow against a
// single OAuth-capable provider. It is stateless: every method is a
// pure protocol operation over the configured endpoints.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	endpoints    Endpoints
	httpClient   *http.Client
}

var _ OAuth = (*Client)(nil)

// NewClient creates an OAuth client for the given provider endpoints.
func NewClient(clientID, clientSecret, redirectURI string, eps Endpoints) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		endpoints:    eps,
		httpClient:   &http.Client{Timeout: requestTimeout},
	}
}

// randomToken returns a fresh URL-safe token with 32 bytes of entropy.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// challengeS256 derives the PKCE S256 code challenge for a verifier:
// the URL-safe base64 of its SHA-256 digest, padding stripped.
func challengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// AuthorizationURL builds the provider authorization URL with a fresh
// state and PKCE challenge. The state and verifier are returned to the
// caller; this method does not retain them.
func (c *Client) AuthorizationURL(scope string) (string, string, string, error) {
	state, err := randomToken()
	if err != nil {
		return "", "", "", &AuthError{Op: "authorization-url", Err: err}
	}
	verifier, err := randomToken()
	if err != nil {
		return "", "", "", &AuthError{Op: "authorization-url", Err: err}
	}

	u, err := url.Parse(c.endpoints.AuthURL)
	if err != nil {
		return "", "", "", &AuthError{
			Op:  "authorization-url",
			Err: fmt.Errorf("invalid authorization endpoint: %w", err),
		}
	}

	q := u.Query()
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("scope", scope)
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("code_challenge", challengeS256(verifier))
	q.Set("code_challenge_method", "S256")
	u.RawQuery = q.Encode()

	return u.String(), state, verifier, nil
}

// tokenResponse is the JSON body the token endpoint returns.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// ExchangeCode performs the authorization_code grant.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.redirectURI)

	resp, err := c.postToken(ctx, form)
	if err != nil {
		return Token{}, &AuthError{Op: "exchange", Err: err}
	}

	return c.tokenFromResponse(resp, ""), nil
}

// Refresh performs the refresh_token grant. Providers may omit the
// refresh token in the response, so the original one is carried over.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	resp, err := c.postToken(ctx, form)
	if err != nil {
		return Token{}, &AuthError{Op: "refresh", Err: err}
	}

	return c.tokenFromResponse(resp, refreshToken), nil
}

// postToken sends a form-encoded request to the token endpoint and
// decodes the response. Non-2xx statuses are errors.
func (c *Client) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoints.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &tr, nil
}

// tokenFromResponse builds a Token from a token-endpoint response,
// applying the default TTL and token type, and falling back to
// priorRefresh when the response omits a refresh token.
func (c *Client) tokenFromResponse(tr *tokenResponse, priorRefresh string) Token {
	ttl := defaultTokenTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}

	tok := Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(ttl),
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = priorRefresh
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	return tok
}

// Validate probes the provider resource endpoint with the token.
// True means the probe returned a success status; any transport
// failure or non-2xx status is false. Validation is a boolean gate on
// hot paths, so it never returns an error.
func (c *Client) Validate(ctx context.Context, tok Token) bool {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.endpoints.ProbeURL, nil,
	)
	if err != nil {
		return false
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	req.Header.Set("Authorization", tokenType+" "+tok.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Authenticate evaluates a loosely-typed credentials bag: no access
// token means unauthenticated; a token that validates remotely is
// authenticated; an invalid token is refreshed when possible, and
// reported expired otherwise.
func (c *Client) Authenticate(ctx context.Context, creds map[string]any) (Status, error) {
	access, ok := stringValue(creds["access_token"])
	if !ok || access == "" {
		return StatusUnauthenticated, nil
	}

	tok := Token{
		AccessToken: access,
		TokenType:   "Bearer",
	}
	if refresh, ok := stringValue(creds["refresh_token"]); ok {
		tok.RefreshToken = refresh
	}
	if tt, ok := stringValue(creds["token_type"]); ok && tt != "" {
		tok.TokenType = tt
	}
	if exp, ok := timeValue(creds["expires_at"]); ok {
		tok.ExpiresAt = exp
	}

	if c.Validate(ctx, tok) {
		return StatusAuthenticated, nil
	}

	if tok.RefreshToken == "" {
		return StatusExpired, nil
	}

	if _, err := c.Refresh(ctx, tok.RefreshToken); err != nil {
		if IsAuthError(err) {
			return StatusExpired, nil
		}
		return StatusUnauthenticated, &AuthError{Op: "authenticate", Err: err}
	}
	return StatusAuthenticated, nil
}

// stringValue extracts a string from a credentials-bag value.
func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// timeValue extracts an expiry from a credentials-bag value, accepting
// a time.Time or a numeric Unix timestamp.
func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case int64:
		return time.Unix(t, 0), true
	case int:
		return time.Unix(int64(t), 0), true
	case float64:
		return time.Unix(int64(t), 0), true
	}
	return time.Time{}, false
}
