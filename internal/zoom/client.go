package zoom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/curtbushko/zoom-recordings/internal/logging"
)

const (
	// DefaultBaseURL is the Zoom REST API base
	DefaultBaseURL = "https://api.zoom.us/v2"

	// DefaultPageSize is the largest page the recordings endpoint accepts
	DefaultPageSize = 300

	// expiredTokenMessage is the phrase Zoom returns when the bearer token has expired
	expiredTokenMessage = "Access token is expired"

	dateLayout = "2006-01-02"
)

var (
	defaultFrom = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultTo   = time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC)
)

// listingState tracks one ListRecordingsRaw call through its single refresh-and-retry
type listingState int

const (
	stateRequesting listingState = iota
	stateExpiredDetected
	stateRefreshing
	stateRetrying
	stateDone
	stateFailed
)

func (s listingState) String() string {
	switch s {
	case stateRequesting:
		return "requesting"
	case stateExpiredDetected:
		return "expired_detected"
	case stateRefreshing:
		return "refreshing"
	case stateRetrying:
		return "retrying"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Catalog lists cloud recordings of the authorized user
type Catalog struct {
	session    TokenRefresher
	fetcher    *Fetcher
	httpClient *http.Client
	baseURL    string
	logger     logging.Logger
}

// CatalogOption configures a Catalog
type CatalogOption func(*Catalog)

// WithBaseURL overrides the API base URL
func WithBaseURL(baseURL string) CatalogOption {
	return func(c *Catalog) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithCatalogHTTPClient sets the client used for listing requests
func WithCatalogHTTPClient(client *http.Client) CatalogOption {
	return func(c *Catalog) {
		c.httpClient = client
	}
}

// WithFetcher sets the fetcher that listed recordings download through
func WithFetcher(fetcher *Fetcher) CatalogOption {
	return func(c *Catalog) {
		c.fetcher = fetcher
	}
}

// WithCatalogLogger sets the logger
func WithCatalogLogger(logger logging.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// NewCatalog creates a recording catalog backed by session for authentication
func NewCatalog(session TokenRefresher, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		session:    session,
		httpClient: NewHTTPClient(HTTPClientConfig{Timeout: 30 * time.Second}),
		baseURL:    DefaultBaseURL,
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = NewFetcher(session)
	}
	return c
}

// ListRecordings returns the recordings between from and to, attached to the
// catalog's fetcher so they can be saved. Only the first page of at most
// pageSize meetings is returned.
func (c *Catalog) ListRecordings(ctx context.Context, from, to time.Time, pageSize int) ([]Recording, error) {
	page, err := c.ListRecordingsRaw(ctx, from, to, pageSize)
	if err != nil {
		return nil, err
	}

	recordings := make([]Recording, 0, len(page.Meetings))
	for _, meeting := range page.Meetings {
		meeting.attach(c.fetcher)
		recordings = append(recordings, meeting)
	}
	return recordings, nil
}

// ListRecordingsRaw fetches one page of the recordings listing. If the response
// reports an expired access token the session is refreshed and the request
// retried exactly once; when the refresh fails the expiry response is returned
// as an *HTTPError wrapping ErrAccessTokenExpired.
func (c *Catalog) ListRecordingsRaw(ctx context.Context, from, to time.Time, pageSize int) (*ListRecordingsResponse, error) {
	endpoint := c.listingURL(from, to, pageSize)

	var page *ListRecordingsResponse
	var err error
	state := stateRequesting

	for {
		c.logger.DebugWithContext(ctx, "Recording listing state: %s", state)
		switch state {
		case stateRequesting, stateRetrying:
			page, err = c.fetchPage(ctx, endpoint)
			switch {
			case err == nil:
				state = stateDone
			case state == stateRequesting && isExpired(err):
				state = stateExpiredDetected
			default:
				state = stateFailed
			}

		case stateExpiredDetected:
			c.logger.InfoWithContext(ctx, "Access token expired while listing recordings, refreshing")
			state = stateRefreshing

		case stateRefreshing:
			if c.session.Refresh(ctx) {
				state = stateRetrying
			} else {
				state = stateFailed
			}

		case stateDone:
			return page, nil

		case stateFailed:
			return nil, err
		}
	}
}

// listingURL builds the recordings URL with from, to and page_size
func (c *Catalog) listingURL(from, to time.Time, pageSize int) string {
	if from.IsZero() {
		from = defaultFrom
	}
	if to.IsZero() {
		to = defaultTo
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	query := url.Values{}
	query.Set("from", from.Format(dateLayout))
	query.Set("to", to.Format(dateLayout))
	query.Set("page_size", strconv.Itoa(pageSize))

	return c.baseURL + "/users/me/recordings?" + query.Encode()
}

// fetchPage performs a single authenticated listing request
func (c *Catalog) fetchPage(ctx context.Context, endpoint string) (*ListRecordingsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken())

	resp, err := doLogged(ctx, c.httpClient, c.logger, req)
	if err != nil {
		return nil, &HTTPError{Method: req.Method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	apiErr := parseAPIError(body)
	if apiErr != nil && strings.Contains(apiErr.Message, expiredTokenMessage) {
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
			API:        apiErr,
			Err:        ErrAccessTokenExpired,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
			API:        apiErr,
		}
	}

	var page ListRecordingsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode recordings response: %w", err)
	}
	return &page, nil
}

// parseAPIError attempts to parse a Zoom API error payload
func parseAPIError(body []byte) *APIError {
	if len(body) == 0 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return nil
	}
	if apiErr.Code == 0 && apiErr.Message == "" {
		return nil
	}
	return &apiErr
}

func isExpired(err error) bool {
	return errors.Is(err, ErrAccessTokenExpired)
}
