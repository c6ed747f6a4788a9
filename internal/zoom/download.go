package zoom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/curtbushko/zoom-recordings/internal/logging"
)

// DefaultChunkSize is the number of bytes copied per read during a download
const DefaultChunkSize = 8192

// ProgressFunc is called after every chunk written during a download.
// total is the size advertised by the listing, zero when unknown.
type ProgressFunc func(file RecordingFile, written, total int64)

// Fetcher streams recording files to disk using the token current at download time
type Fetcher struct {
	tokens     AccessTokenProvider
	httpClient *http.Client
	chunkSize  int
	output     io.Writer
	logger     logging.Logger
	onProgress ProgressFunc
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithDownloadHTTPClient sets the client used for downloads
func WithDownloadHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithChunkSize sets the copy buffer size
func WithChunkSize(size int) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.chunkSize = size
		}
	}
}

// WithOutput sets where verbose start/finish messages are written
func WithOutput(w io.Writer) FetcherOption {
	return func(f *Fetcher) {
		f.output = w
	}
}

// WithFetcherLogger sets the logger
func WithFetcherLogger(logger logging.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithProgress registers a per-chunk progress callback
func WithProgress(fn ProgressFunc) FetcherOption {
	return func(f *Fetcher) {
		f.onProgress = fn
	}
}

// NewFetcher creates a fetcher that authenticates downloads with tokens.AccessToken()
func NewFetcher(tokens AccessTokenProvider, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		tokens:     tokens,
		httpClient: NewHTTPClient(HTTPClientConfig{}),
		chunkSize:  DefaultChunkSize,
		output:     os.Stdout,
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DestinationPath appends ".<ext>" to path unless it already ends with that
// extension, compared case-insensitively.
func DestinationPath(path, extension string) string {
	ext := strings.ToLower(extension)
	if ext == "" {
		return path
	}
	if strings.HasSuffix(strings.ToLower(path), "."+ext) {
		return path
	}
	return path + "." + ext
}

// Save downloads file to path. The destination directory is created if needed
// and an existing file is overwritten. A failed download may leave a partial file.
func (f *Fetcher) Save(ctx context.Context, file RecordingFile, path string, verbose bool) error {
	dest := DestinationPath(path, file.FileExtension)

	if err := ensureDir(filepath.Dir(dest)); err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(f.output, "Starting download of %s\n", dest)
	}

	start := time.Now()
	written, err := f.download(ctx, file, dest)
	f.logger.LogPerformance(logging.PerformanceMetrics{
		Operation:      "download",
		Duration:       time.Since(start),
		BytesProcessed: written,
		Success:        err == nil,
		Error:          errorString(err),
		Metadata: map[string]interface{}{
			"file_id":   file.ID,
			"file_type": file.FileType,
		},
	})
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(f.output, "Download of %s finished (%s)\n", dest, humanize.Bytes(uint64(written)))
	}
	return nil
}

// SaveAll downloads every file of recording, each to pathPrefix plus its extension
func (f *Fetcher) SaveAll(ctx context.Context, recording Recording, pathPrefix string, verbose bool) error {
	if err := ensureDir(filepath.Dir(pathPrefix)); err != nil {
		return err
	}

	for _, file := range recording.RecordingFiles {
		if err := f.Save(ctx, file, pathPrefix, verbose); err != nil {
			return fmt.Errorf("failed to save file %s of recording %s: %w", file.ID, recording.UUID, err)
		}
	}
	return nil
}

// download streams the file body to dest and returns the bytes written
func (f *Fetcher) download(ctx context.Context, file RecordingFile, dest string) (int64, error) {
	downloadURL, err := withAccessToken(file.DownloadURL, f.tokens.AccessToken())
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := doLogged(ctx, f.httpClient, f.logger, req)
	if err != nil {
		return 0, &HTTPError{Method: req.Method, URL: file.DownloadURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &HTTPError{
			Method:     req.Method,
			URL:        file.DownloadURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
			API:        parseAPIError(body),
		}
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	written, err := f.copyChunks(out, resp.Body, file)
	if err != nil {
		return written, err
	}

	if err := out.Sync(); err != nil {
		return written, fmt.Errorf("failed to sync file: %w", err)
	}
	return written, nil
}

// copyChunks copies src to dst in chunkSize reads, reporting progress after each write
func (f *Fetcher) copyChunks(dst io.Writer, src io.Reader, file RecordingFile) (int64, error) {
	buffer := make([]byte, f.chunkSize)
	var written int64

	for {
		n, readErr := src.Read(buffer)
		if n > 0 {
			if _, err := dst.Write(buffer[:n]); err != nil {
				return written, fmt.Errorf("failed to write to file: %w", err)
			}
			written += int64(n)
			if f.onProgress != nil {
				f.onProgress(file, written, file.FileSize)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, &HTTPError{Method: http.MethodGet, URL: file.DownloadURL, Err: fmt.Errorf("failed to read response body: %w", readErr)}
		}
	}
}

// withAccessToken appends the access_token query credential to a download URL
func withAccessToken(downloadURL, token string) (string, error) {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return "", &ParseError{Field: "download_url", Value: downloadURL, Err: err}
	}
	query := u.Query()
	query.Set("access_token", token)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// ensureDir creates dir and any parents; it succeeds if dir already exists
func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
