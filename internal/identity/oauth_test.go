package identity

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestClient_AuthorizationURL(t *testing.T) {
	client := NewClient("client-id", "secret", "http://localhost:8080/callback", Endpoints{
		AuthURL: "https://auth.example.com/authorize",
	})

	authURL, state, verifier, err := client.AuthorizationURL("mail.read")
	if err != nil {
		t.Fatalf("AuthorizationURL() error: %v", err)
	}
	if state == "" || verifier == "" {
		t.Fatal("expected non-empty state and verifier")
	}

	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parsing returned URL: %v", err)
	}

	q := u.Query()
	want := map[string]string{
		"client_id":             "client-id",
		"redirect_uri":          "http://localhost:8080/callback",
		"scope":                 "mail.read",
		"response_type":         "code",
		"state":                 state,
		"code_challenge":        challengeS256(verifier),
		"code_challenge_method": "S256",
	}
	for key, value := range want {
		if got := q.Get(key); got != value {
			t.Errorf("query %s = %q, want %q", key, got, value)
		}
	}
}

func TestClient_AuthorizationURL_Freshness(t *testing.T) {
	client := NewClient("client-id", "secret", "http://localhost/cb", Endpoints{
		AuthURL: "https://auth.example.com/authorize",
	})

	url1, state1, verifier1, err := client.AuthorizationURL("mail.read")
	if err != nil {
		t.Fatalf("first AuthorizationURL() error: %v", err)
	}
	url2, state2, verifier2, err := client.AuthorizationURL("mail.read")
	if err != nil {
		t.Fatalf("second AuthorizationURL() error: %v", err)
	}

	if state1 == state2 {
		t.Error("state must be fresh on every call")
	}
	if verifier1 == verifier2 {
		t.Error("code verifier must be fresh on every call")
	}
	if url1 == url2 {
		t.Error("authorization URLs with fresh state must differ")
	}
}

func TestChallengeS256_Deterministic(t *testing.T) {
	sum := sha256.Sum256([]byte("abc"))
	want := base64.RawURLEncoding.EncodeToString(sum[:])

	if got := challengeS256("abc"); got != want {
		t.Errorf("challengeS256(%q) = %q, want %q", "abc", got, want)
	}
}

// tokenServer returns an httptest server that answers token-endpoint
// requests with the given JSON body and records the submitted form.
func tokenServer(t *testing.T, status int, body map[string]any, form *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if form != nil {
			*form = r.PostForm
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestClient_ExchangeCode(t *testing.T) {
	var form url.Values
	srv := tokenServer(t, http.StatusOK, map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"expires_in":    1800,
		"token_type":    "Bearer",
		"scope":         "mail.read",
	}, &form)
	defer srv.Close()

	client := NewClient("client-id", "secret", "http://localhost/cb", Endpoints{
		TokenURL: srv.URL,
	})

	before := time.Now()
	tok, err := client.ExchangeCode(context.Background(), "auth-code", "verifier-1")
	if err != nil {
		t.Fatalf("ExchangeCode() error: %v", err)
	}

	if tok.AccessToken != "access-1" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "access-1")
	}
	if tok.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want %q", tok.RefreshToken, "refresh-1")
	}
	if tok.Scope != "mail.read" {
		t.Errorf("Scope = %q, want %q", tok.Scope, "mail.read")
	}

	wantExpiry := before.Add(1800 * time.Second)
	if tok.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) ||
		tok.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about %v", tok.ExpiresAt, wantExpiry)
	}

	wantForm := map[string]string{
		"client_id":     "client-id",
		"client_secret": "secret",
		"code":          "auth-code",
		"code_verifier": "verifier-1",
		"grant_type":    "authorization_code",
		"redirect_uri":  "http://localhost/cb",
	}
	for key, value := range wantForm {
		if got := form.Get(key); got != value {
			t.Errorf("form %s = %q, want %q", key, got, value)
		}
	}
}

func TestClient_ExchangeCode_DefaultTTL(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, map[string]any{
		"access_token": "access-1",
	}, nil)
	defer srv.Close()

	client := NewClient("id", "secret", "http://localhost/cb", Endpoints{TokenURL: srv.URL})

	tok, err := client.ExchangeCode(context.Background(), "code", "verifier")
	if err != nil {
		t.Fatalf("ExchangeCode() error: %v", err)
	}

	if tok.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want default Bearer", tok.TokenType)
	}

	wantExpiry := time.Now().Add(3600 * time.Second)
	if tok.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) ||
		tok.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about one hour out", tok.ExpiresAt)
	}
}

func TestClient_ExchangeCode_Failure(t *testing.T) {
	srv := tokenServer(t, http.StatusBadRequest, map[string]any{
		"error": "invalid_grant",
	}, nil)
	defer srv.Close()

	client := NewClient("id", "secret", "http://localhost/cb", Endpoints{TokenURL: srv.URL})

	_, err := client.ExchangeCode(context.Background(), "bad-code", "verifier")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !IsAuthError(err) {
		t.Errorf("expected AuthError, got %T: %v", err, err)
	}
}

func TestClient_Refresh_PreservesRefreshToken(t *testing.T) {
	var form url.Values
	// The server omits refresh_token; the original must be carried over.
	srv := tokenServer(t, http.StatusOK, map[string]any{
		"access_token": "access-2",
		"expires_in":   3600,
		"token_type":   "Bearer",
	}, &form)
	defer srv.Close()

	client := NewClient("client-id", "secret", "http://localhost/cb", Endpoints{
		TokenURL: srv.URL,
	})

	tok, err := client.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	if tok.AccessToken != "access-2" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "access-2")
	}
	if tok.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want original %q", tok.RefreshToken, "refresh-1")
	}
	if got := form.Get("grant_type"); got != "refresh_token" {
		t.Errorf("grant_type = %q, want refresh_token", got)
	}
	if got := form.Get("refresh_token"); got != "refresh-1" {
		t.Errorf("refresh_token = %q, want refresh-1", got)
	}
}

func TestClient_Refresh_Failure(t *testing.T) {
	srv := tokenServer(t, http.StatusUnauthorized, map[string]any{
		"error": "invalid_grant",
	}, nil)
	defer srv.Close()

	client := NewClient("id", "secret", "http://localhost/cb", Endpoints{TokenURL: srv.URL})

	_, err := client.Refresh(context.Background(), "stale")
	if !IsAuthError(err) {
		t.Errorf("expected AuthError, got %v", err)
	}
}

func TestClient_Validate(t *testing.T) {
	tests := []struct {
		name   string
		status int
		valid  bool
	}{
		{name: "accepted", status: http.StatusOK, valid: true},
		{name: "rejected", status: http.StatusUnauthorized, valid: false},
		{name: "server error", status: http.StatusInternalServerError, valid: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client := NewClient("id", "secret", "http://localhost/cb", Endpoints{
				ProbeURL: srv.URL,
			})

			tok := Token{AccessToken: "access-1", TokenType: "Bearer"}
			if got := client.Validate(context.Background(), tok); got != tc.valid {
				t.Errorf("Validate() = %v, want %v", got, tc.valid)
			}
			if gotAuth != "Bearer access-1" {
				t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer access-1")
			}
		})
	}
}

func TestClient_Validate_TransportFailure(t *testing.T) {
	// A closed test server gives an endpoint that refuses connections.
	srv := httptest.NewServer(http.NotFoundHandler())
	probeURL := srv.URL
	srv.Close()

	client := NewClient("id", "secret", "http://localhost/cb", Endpoints{ProbeURL: probeURL})

	if client.Validate(context.Background(), Token{AccessToken: "t"}) {
		t.Error("Validate() must be false on transport failure")
	}
}

func TestClient_Authenticate(t *testing.T) {
	tests := []struct {
		name        string
		probeStatus int
		tokenStatus int
		creds       map[string]any
		want        Status
	}{
		{
			name:  "no access token",
			creds: map[string]any{"refresh_token": "r1"},
			want:  StatusUnauthenticated,
		},
		{
			name:        "valid access token",
			probeStatus: http.StatusOK,
			creds:       map[string]any{"access_token": "t1"},
			want:        StatusAuthenticated,
		},
		{
			name:        "invalid token, refresh succeeds",
			probeStatus: http.StatusUnauthorized,
			tokenStatus: http.StatusOK,
			creds: map[string]any{
				"access_token":  "t1",
				"refresh_token": "r1",
			},
			want: StatusAuthenticated,
		},
		{
			name:        "invalid token, refresh fails",
			probeStatus: http.StatusUnauthorized,
			tokenStatus: http.StatusBadRequest,
			creds: map[string]any{
				"access_token":  "t1",
				"refresh_token": "r1",
			},
			want: StatusExpired,
		},
		{
			name:        "invalid token, no refresh token",
			probeStatus: http.StatusUnauthorized,
			creds:       map[string]any{"access_token": "t1"},
			want:        StatusExpired,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.probeStatus)
			}))
			defer probe.Close()

			tokenEp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.tokenStatus)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"access_token": "t2",
				})
			}))
			defer tokenEp.Close()

			client := NewClient("id", "secret", "http://localhost/cb", Endpoints{
				TokenURL: tokenEp.URL,
				ProbeURL: probe.URL,
			})

			got, err := client.Authenticate(context.Background(), tc.creds)
			if err != nil {
				t.Fatalf("Authenticate() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Authenticate() = %q, want %q", got, tc.want)
			}
		})
	}
}
