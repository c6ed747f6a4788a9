package zoom

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCredentials = Credentials{
	ClientID:     "test_client_id",
	ClientSecret: "test_client_secret",
	RedirectURI:  "http://localhost:8080/zoom_login",
}

// tokenServer stubs the Zoom OAuth token endpoint
type tokenServer struct {
	*httptest.Server
	calls    atomic.Int32
	lastReq  atomic.Pointer[http.Request]
	status   int
	response string
}

func newTokenServer(t *testing.T, status int, response string) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: status, response: response}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		ts.lastReq.Store(r.Clone(context.Background()))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ts.status)
		w.Write([]byte(ts.response))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) session(opts ...SessionOption) *Session {
	opts = append([]SessionOption{WithEndpoint(EndpointFromBaseURL(ts.URL + "/oauth"))}, opts...)
	return NewSession(testCredentials, opts...)
}

func TestAuthorizationURL(t *testing.T) {
	tests := []struct {
		name        string
		credentials Credentials
	}{
		{
			name:        "plain values",
			credentials: testCredentials,
		},
		{
			name: "redirect with query and port",
			credentials: Credentials{
				ClientID:    "abc_DEF123",
				RedirectURI: "https://example.com:8443/oauth/callback?source=cli",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTokenServer(t, http.StatusOK, `{}`)
			session := NewSession(tt.credentials, WithEndpoint(EndpointFromBaseURL(ts.URL+"/oauth")))

			authURL := session.AuthorizationURL()

			parsed, err := url.Parse(authURL)
			require.NoError(t, err)
			assert.Equal(t, "/oauth/authorize", parsed.Path)

			query := parsed.Query()
			assert.Equal(t, "code", query.Get("response_type"))
			assert.Equal(t, tt.credentials.ClientID, query.Get("client_id"))
			assert.Equal(t, tt.credentials.RedirectURI, query.Get("redirect_uri"))
			assert.True(t, query.Has("state"), "state parameter must be present")
			assert.Empty(t, query.Get("state"))

			assert.Equal(t, authURL, session.AuthorizationURL(), "URL must be deterministic")
			assert.Zero(t, ts.calls.Load(), "building the URL must not touch the network")
		})
	}
}

func TestDefaultAuthorizationURL(t *testing.T) {
	session := NewSession(testCredentials)
	authURL := session.AuthorizationURL()

	assert.True(t, strings.HasPrefix(authURL, "https://zoom.us/oauth/authorize?response_type=code&redirect_uri="))
	assert.True(t, strings.HasSuffix(authURL, "&client_id=test_client_id&state="))
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{"code only", "http://localhost:8080/zoom_login?code=abc123", "abc123", false},
		{"code with state", "http://localhost:8080/zoom_login?code=A_b9&state=", "A_b9", false},
		{"code after other params", "http://localhost:8080/zoom_login?state=x&code=xyz", "xyz", false},
		{"bare query", "code=raw_code", "raw_code", false},
		{"missing code", "http://localhost:8080/zoom_login?state=", "", true},
		{"error redirect", "http://localhost:8080/zoom_login?error=access_denied", "", true},
		{"lookalike parameter", "http://localhost:8080/zoom_login?zipcode=12345", "", true},
		{"empty code", "http://localhost:8080/zoom_login?code=", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ExtractCode(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsParseError(err))
				assert.ErrorIs(t, err, ErrMissingCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestCompleteAuthorization(t *testing.T) {
	previous := TokenPair{AccessToken: "old_access", RefreshToken: "old_refresh"}

	tests := []struct {
		name           string
		redirectURL    string
		serverStatus   int
		serverResponse string
		expectedCalls  int32
		expectedTokens TokenPair
		checkErr       func(t *testing.T, err error)
	}{
		{
			name:           "successful exchange replaces tokens",
			redirectURL:    "http://localhost:8080/zoom_login?code=abc123&state=",
			serverStatus:   http.StatusOK,
			serverResponse: `{"access_token":"new_access","refresh_token":"new_refresh","token_type":"bearer","expires_in":3599,"scope":"recording:read"}`,
			expectedCalls:  1,
			expectedTokens: TokenPair{AccessToken: "new_access", RefreshToken: "new_refresh"},
		},
		{
			name:           "missing code fails without network call",
			redirectURL:    "http://localhost:8080/zoom_login?error=access_denied",
			serverStatus:   http.StatusOK,
			serverResponse: `{"access_token":"never","refresh_token":"never"}`,
			expectedCalls:  0,
			expectedTokens: previous,
			checkErr: func(t *testing.T, err error) {
				assert.True(t, IsParseError(err))
				assert.ErrorIs(t, err, ErrMissingCode)
			},
		},
		{
			name:           "non-200 leaves tokens unchanged",
			redirectURL:    "http://localhost:8080/zoom_login?code=expired_code",
			serverStatus:   http.StatusBadRequest,
			serverResponse: `{"reason":"Invalid authorization code","error":"invalid_request"}`,
			expectedCalls:  1,
			expectedTokens: previous,
			checkErr: func(t *testing.T, err error) {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
				assert.Equal(t, "invalid_request", authErr.Type)
			},
		},
		{
			name:           "200 without tokens is an auth error",
			redirectURL:    "http://localhost:8080/zoom_login?code=abc",
			serverStatus:   http.StatusOK,
			serverResponse: `{"token_type":"bearer"}`,
			expectedCalls:  1,
			expectedTokens: previous,
			checkErr: func(t *testing.T, err error) {
				assert.True(t, IsAuthError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTokenServer(t, tt.serverStatus, tt.serverResponse)
			session := ts.session()
			session.SetTokens(previous)

			err := session.CompleteAuthorization(context.Background(), tt.redirectURL)

			if tt.checkErr != nil {
				require.Error(t, err)
				tt.checkErr(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedCalls, ts.calls.Load())
			assert.Equal(t, tt.expectedTokens, session.Tokens())
		})
	}
}

func TestTokenExchangeRequest(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{"access_token":"A","refresh_token":"B"}`)
	session := ts.session()

	require.NoError(t, session.CompleteAuthorizationWithCode(context.Background(), "xyz"))

	req := ts.lastReq.Load()
	require.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/oauth/token", req.URL.Path)
	assert.Equal(t, "authorization_code", req.URL.Query().Get("grant_type"))
	assert.Equal(t, "xyz", req.URL.Query().Get("code"))
	assert.Equal(t, testCredentials.RedirectURI, req.URL.Query().Get("redirect_uri"))
	assert.Equal(t, "Basic "+BasicCredential(testCredentials.ClientID, testCredentials.ClientSecret), req.Header.Get("Authorization"))

	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, testCredentials.ClientID, user)
	assert.Equal(t, testCredentials.ClientSecret, pass)
}

func TestCompleteAuthorizationWithCodeEndToEnd(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{"access_token":"A","refresh_token":"B"}`)
	session := NewSession(
		Credentials{ClientID: "dummy", ClientSecret: "dummy", RedirectURI: "http://localhost/cb"},
		WithEndpoint(EndpointFromBaseURL(ts.URL+"/oauth")),
	)

	require.NoError(t, session.CompleteAuthorizationWithCode(context.Background(), "xyz"))
	assert.Equal(t, "A", session.AccessToken())
	assert.Equal(t, "B", session.Tokens().RefreshToken)
}

func TestRefresh(t *testing.T) {
	previous := TokenPair{AccessToken: "old_access", RefreshToken: "old_refresh"}

	tests := []struct {
		name           string
		stored         TokenPair
		serverStatus   int
		serverResponse string
		expectedOK     bool
		expectedCalls  int32
		expectedTokens TokenPair
	}{
		{
			name:           "successful refresh replaces both tokens",
			stored:         previous,
			serverStatus:   http.StatusOK,
			serverResponse: `{"access_token":"fresh_access","refresh_token":"fresh_refresh"}`,
			expectedOK:     true,
			expectedCalls:  1,
			expectedTokens: TokenPair{AccessToken: "fresh_access", RefreshToken: "fresh_refresh"},
		},
		{
			name:           "rejected refresh keeps tokens",
			stored:         previous,
			serverStatus:   http.StatusUnauthorized,
			serverResponse: `{"reason":"Invalid Token!","error":"invalid_request"}`,
			expectedOK:     false,
			expectedCalls:  1,
			expectedTokens: previous,
		},
		{
			name:           "no refresh token skips the request",
			stored:         TokenPair{AccessToken: "only_access"},
			serverStatus:   http.StatusOK,
			serverResponse: `{"access_token":"x","refresh_token":"y"}`,
			expectedOK:     false,
			expectedCalls:  0,
			expectedTokens: TokenPair{AccessToken: "only_access"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTokenServer(t, tt.serverStatus, tt.serverResponse)
			session := ts.session()
			session.SetTokens(tt.stored)

			ok := session.Refresh(context.Background())

			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expectedCalls, ts.calls.Load())
			assert.Equal(t, tt.expectedTokens, session.Tokens())

			if tt.expectedCalls > 0 {
				query := ts.lastReq.Load().URL.Query()
				assert.Equal(t, "refresh_token", query.Get("grant_type"))
				assert.Equal(t, tt.stored.RefreshToken, query.Get("refresh_token"))
			}
		})
	}
}

func TestRefreshTransportFailure(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{}`)
	session := ts.session()
	session.SetTokens(TokenPair{AccessToken: "a", RefreshToken: "r"})
	ts.Close()

	assert.False(t, session.Refresh(context.Background()))
	assert.Equal(t, TokenPair{AccessToken: "a", RefreshToken: "r"}, session.Tokens())
}

func TestCompleteAuthorizationTransportFailure(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{}`)
	session := ts.session()
	ts.Close()

	err := session.CompleteAuthorizationWithCode(context.Background(), "abc")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "request_failed", authErr.Type)
	assert.Empty(t, session.AccessToken())
}

func TestBasicCredential(t *testing.T) {
	assert.Equal(t, "Y2xpZW50OnNlY3JldA==", BasicCredential("client", "secret"))
	assert.Equal(t, "Og==", BasicCredential("", ""))
}

func TestAccessTokenExpiry(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"aud": "https://oauth.zoom.us",
		"exp": expiry.Unix(),
	}).SignedString([]byte("zoom-signing-key"))
	require.NoError(t, err)

	session := NewSession(testCredentials)

	_, err = session.AccessTokenExpiry()
	assert.ErrorIs(t, err, ErrNoAccessToken)

	session.SetTokens(TokenPair{AccessToken: signed, RefreshToken: "r"})
	got, err := session.AccessTokenExpiry()
	require.NoError(t, err)
	assert.True(t, expiry.Equal(got), "expected %v, got %v", expiry, got)

	session.SetTokens(TokenPair{AccessToken: "not-a-jwt"})
	_, err = session.AccessTokenExpiry()
	assert.Error(t, err)
}

func TestTokenSource(t *testing.T) {
	session := NewSession(testCredentials)

	_, err := session.TokenSource().Token()
	assert.True(t, errors.Is(err, ErrNoAccessToken))

	session.SetTokens(TokenPair{AccessToken: "A", RefreshToken: "B"})
	token, err := session.TokenSource().Token()
	require.NoError(t, err)
	assert.Equal(t, "A", token.AccessToken)
	assert.Equal(t, "B", token.RefreshToken)
	assert.Equal(t, "Bearer", token.Type())
}
