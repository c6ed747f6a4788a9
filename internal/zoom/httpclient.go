package zoom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/curtbushko/zoom-recordings/internal/logging"
)

// HTTPClientConfig holds configuration for the HTTP client shared by the session, catalog and fetcher
type HTTPClientConfig struct {
	Timeout      time.Duration     // Request timeout, zero means no timeout
	MaxRedirects int               // Maximum number of redirects to follow
	Transport    http.RoundTripper // Optional transport, e.g. an instrumented one
}

// NewHTTPClient creates an HTTP client with a bounded redirect policy.
// Download URLs redirect to the storage host, so redirects are followed.
func NewHTTPClient(config HTTPClientConfig) *http.Client {
	if config.MaxRedirects == 0 {
		config.MaxRedirects = 10
	}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: config.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("too many redirects: %d", len(via))
			}
			return nil
		},
	}
}

// doLogged executes req, logging the request and response at debug level
func doLogged(ctx context.Context, client *http.Client, logger logging.Logger, req *http.Request) (*http.Response, error) {
	requestID, ok := logging.GetRequestID(ctx)
	if !ok {
		requestID = logging.GenerateRequestID()
	}

	headers := make(map[string]string, len(req.Header))
	for key := range req.Header {
		headers[key] = req.Header.Get(key)
	}
	logger.LogAPIRequest(logging.APIRequest{
		Method:    req.Method,
		URL:       req.URL.String(),
		Headers:   headers,
		RequestID: requestID,
	})

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		err = redactURLError(err)
		logger.LogAPIResponse(logging.APIResponse{
			RequestID: requestID,
			Duration:  time.Since(start),
			Error:     err.Error(),
		})
		return nil, err
	}

	logger.LogAPIResponse(logging.APIResponse{
		StatusCode: resp.StatusCode,
		RequestID:  requestID,
		Duration:   time.Since(start),
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
	})
	return resp, nil
}

// redactURLError strips query credentials from the URL embedded in a *url.Error
func redactURLError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{Op: urlErr.Op, URL: logging.SanitizeURL(urlErr.URL), Err: urlErr.Err}
}
