// Package zoom provides Zoom OAuth authentication, recording listing and file downloads
package zoom

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/curtbushko/zoom-recordings/internal/logging"
)

// Endpoint is Zoom's user-level OAuth endpoint
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://zoom.us/oauth/authorize",
	TokenURL:  "https://zoom.us/oauth/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// EndpointFromBaseURL builds an endpoint from an OAuth base such as https://zoom.us/oauth
func EndpointFromBaseURL(baseURL string) oauth2.Endpoint {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return oauth2.Endpoint{
		AuthURL:   baseURL + "/authorize",
		TokenURL:  baseURL + "/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// Credentials identify the OAuth app. They never change for the lifetime of a Session.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// TokenPair is the access and refresh token issued by the token endpoint
type TokenPair struct {
	AccessToken  string `yaml:"access_token" json:"access_token"`
	RefreshToken string `yaml:"refresh_token" json:"refresh_token"`
}

// tokenResponse represents the response from the OAuth token endpoint
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// AccessTokenProvider supplies the access token current at call time
type AccessTokenProvider interface {
	AccessToken() string
}

// TokenRefresher is an AccessTokenProvider that can renew its token
type TokenRefresher interface {
	AccessTokenProvider
	Refresh(ctx context.Context) bool
}

// Session holds the OAuth credentials and the current token pair for one Zoom user.
// A Session is not safe for concurrent use; callers must serialize access.
type Session struct {
	credentials Credentials
	endpoint    oauth2.Endpoint
	httpClient  *http.Client
	logger      logging.Logger
	tokens      TokenPair
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithEndpoint overrides the OAuth endpoint
func WithEndpoint(endpoint oauth2.Endpoint) SessionOption {
	return func(s *Session) {
		s.endpoint = endpoint
	}
}

// WithSessionHTTPClient sets the client used for token requests
func WithSessionHTTPClient(client *http.Client) SessionOption {
	return func(s *Session) {
		s.httpClient = client
	}
}

// WithSessionLogger sets the logger used for token requests
func WithSessionLogger(logger logging.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session for the given OAuth app credentials
func NewSession(credentials Credentials, opts ...SessionOption) *Session {
	s := &Session{
		credentials: credentials,
		endpoint:    Endpoint,
		httpClient:  NewHTTPClient(HTTPClientConfig{Timeout: 30 * time.Second}),
		logger:      logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthorizationURL returns the consent URL the user must open in a browser.
// The state parameter is always empty.
func (s *Session) AuthorizationURL() string {
	state := ""
	return fmt.Sprintf("%s?response_type=code&redirect_uri=%s&client_id=%s&state=%s",
		s.endpoint.AuthURL,
		url.QueryEscape(s.credentials.RedirectURI),
		url.QueryEscape(s.credentials.ClientID),
		url.QueryEscape(state),
	)
}

var codePattern = regexp.MustCompile(`(?:^|[?&#])code=([a-zA-Z0-9_]+)`)

// ExtractCode returns the authorization code carried by a redirect URL
func ExtractCode(redirectedURL string) (string, error) {
	match := codePattern.FindStringSubmatch(redirectedURL)
	if match == nil {
		return "", &ParseError{Field: "redirect_url", Value: redirectedURL, Err: ErrMissingCode}
	}
	return match[1], nil
}

// CompleteAuthorization extracts the code from the URL the user was redirected to
// and exchanges it for a token pair.
func (s *Session) CompleteAuthorization(ctx context.Context, redirectedURL string) error {
	code, err := ExtractCode(redirectedURL)
	if err != nil {
		return err
	}
	return s.CompleteAuthorizationWithCode(ctx, code)
}

// CompleteAuthorizationWithCode exchanges an authorization code for a token pair.
// On failure the previously stored tokens are left untouched.
func (s *Session) CompleteAuthorizationWithCode(ctx context.Context, code string) error {
	query := url.Values{}
	query.Set("grant_type", "authorization_code")
	query.Set("code", code)
	query.Set("redirect_uri", s.credentials.RedirectURI)

	tokens, err := s.requestTokens(ctx, query)
	if err != nil {
		return err
	}

	s.tokens = tokens
	s.logger.InfoWithContext(ctx, "Zoom authorization completed")
	return nil
}

// Refresh exchanges the stored refresh token for a new token pair. It reports
// failure through its return value and leaves the stored tokens untouched.
func (s *Session) Refresh(ctx context.Context) bool {
	if s.tokens.RefreshToken == "" {
		s.logger.WarnWithContext(ctx, "Cannot refresh access token: no refresh token stored")
		return false
	}

	query := url.Values{}
	query.Set("grant_type", "refresh_token")
	query.Set("refresh_token", s.tokens.RefreshToken)

	tokens, err := s.requestTokens(ctx, query)
	if err != nil {
		s.logger.WarnWithContext(ctx, "Failed to refresh access token: %v", err)
		return false
	}

	s.tokens = tokens
	s.logger.InfoWithContext(ctx, "Zoom access token refreshed")
	return true
}

// requestTokens posts to the token endpoint with the given query parameters
func (s *Session) requestTokens(ctx context.Context, query url.Values) (TokenPair, error) {
	grantType := query.Get("grant_type")
	endpoint := s.endpoint.TokenURL + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return TokenPair{}, &AuthError{
			Type:   "request_creation",
			Reason: "failed to create OAuth request",
			Err:    err,
		}
	}
	req.Header.Set("Authorization", "Basic "+BasicCredential(s.credentials.ClientID, s.credentials.ClientSecret))

	resp, err := doLogged(ctx, s.httpClient, s.logger, req)
	if err != nil {
		return TokenPair{}, &AuthError{
			Type:   "request_failed",
			Reason: fmt.Sprintf("%s request failed", grantType),
			Err:    err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenPair{}, &AuthError{
			Type:       "response_read",
			Reason:     "failed to read token response",
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	var tokenResp tokenResponse
	decodeErr := json.Unmarshal(body, &tokenResp)

	if resp.StatusCode != http.StatusOK {
		authErr := &AuthError{
			Type:       "http_error",
			Reason:     fmt.Sprintf("HTTP %d: failed to acquire tokens", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
		if decodeErr == nil && tokenResp.Error != "" {
			authErr.Type = tokenResp.Error
			authErr.Reason = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, tokenResp.Reason)
		}
		return TokenPair{}, authErr
	}

	if decodeErr != nil {
		return TokenPair{}, &AuthError{
			Type:       "response_parsing",
			Reason:     "failed to parse token response",
			StatusCode: resp.StatusCode,
			Err:        decodeErr,
		}
	}
	if tokenResp.AccessToken == "" || tokenResp.RefreshToken == "" {
		return TokenPair{}, &AuthError{
			Type:       "response_parsing",
			Reason:     "token response is missing access_token or refresh_token",
			StatusCode: resp.StatusCode,
		}
	}

	return TokenPair{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	}, nil
}

// AccessToken returns the current access token, empty before authorization
func (s *Session) AccessToken() string {
	return s.tokens.AccessToken
}

// Tokens returns a copy of the current token pair
func (s *Session) Tokens() TokenPair {
	return s.tokens
}

// SetTokens replaces the token pair, e.g. with one restored from disk
func (s *Session) SetTokens(tokens TokenPair) {
	s.tokens = tokens
}

// Credentials returns the OAuth app credentials
func (s *Session) Credentials() Credentials {
	return s.credentials
}

// AccessTokenExpiry reads the exp claim of the current access token.
// Zoom issues JWT access tokens; the signature is not verified.
func (s *Session) AccessTokenExpiry() (time.Time, error) {
	if s.tokens.AccessToken == "" {
		return time.Time{}, ErrNoAccessToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.tokens.AccessToken, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return exp.Time, nil
}

// TokenSource adapts the session to oauth2.TokenSource. It never refreshes.
func (s *Session) TokenSource() oauth2.TokenSource {
	return sessionTokenSource{session: s}
}

type sessionTokenSource struct {
	session *Session
}

// Token implements oauth2.TokenSource
func (t sessionTokenSource) Token() (*oauth2.Token, error) {
	tokens := t.session.Tokens()
	if tokens.AccessToken == "" {
		return nil, ErrNoAccessToken
	}
	return &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "Bearer",
	}, nil
}

// BasicCredential encodes client_id:client_secret for HTTP Basic authentication
func BasicCredential(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}
