package zoom

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCode is returned when a redirect URL carries no authorization code
	ErrMissingCode = errors.New("authorization code not found in redirect url")

	// ErrInvalidTimestamp is returned when a response timestamp is not in YYYY-MM-DDTHH:MM:SSZ form
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrAccessTokenExpired marks a listing response that reported an expired access token
	ErrAccessTokenExpired = errors.New("access token is expired")

	// ErrNoAccessToken is returned when an operation needs a token before authorization completed
	ErrNoAccessToken = errors.New("no access token available")

	// ErrDetached is returned when saving a recording or file that was not produced by a Catalog
	ErrDetached = errors.New("recording is not attached to a fetcher")
)

// ParseError reports input that could not be parsed: a redirect URL without a
// code, or a response timestamp in an unexpected format.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// AuthError represents a failed token exchange against the OAuth endpoint
type AuthError struct {
	Type       string
	Reason     string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error %s: %s (%v)", e.Type, e.Reason, e.Err)
	}
	return fmt.Sprintf("auth error %s: %s", e.Type, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError represents a Zoom API error payload
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zoom API error %d: %s", e.Code, e.Message)
}

// HTTPError represents a failed listing or download request. StatusCode is
// zero when the request never produced a response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
	API        *APIError
	Err        error
}

func (e *HTTPError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("HTTP %s %s failed: %v", e.Method, e.URL, e.Err)
	case e.API != nil:
		return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.API.Error())
	default:
		return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Status)
	}
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is a token exchange failure
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsParseError reports whether err is a parse failure
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// IsHTTPError reports whether err is a listing or download failure
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}
