package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/curtbushko/zoom-recordings/internal/config"
	"github.com/curtbushko/zoom-recordings/internal/logging"
	"github.com/curtbushko/zoom-recordings/internal/metrics"
	"github.com/curtbushko/zoom-recordings/internal/tokenstore"
	"github.com/curtbushko/zoom-recordings/internal/zoom"
)

const defaultConfigPath = "config.yaml"

// app wires configuration, logging, metrics and token persistence for one command run
type app struct {
	cfg       *config.Config
	logger    logging.Logger
	metrics   *metrics.Metrics
	transport http.RoundTripper
	downloads http.RoundTripper
	store     tokenstore.TokenStore
	session   *guardedSession
}

// loadConfig reads the explicit config file, else config.yaml when present,
// else defaults plus environment variables.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.LoadConfig(defaultConfigPath)
	}
	return config.LoadFromEnvironment()
}

func newApp(opts *cliOptions) (*app, error) {
	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if opts.verbose {
		logger.SetLevel(logging.DebugLevel)
	}
	logging.SetDefaultLogger(logger)

	store, err := tokenstore.NewStore(tokenstore.StoreConfig{FilePath: cfg.Tokens.File}, logger)
	if err != nil {
		logger.Close()
		return nil, err
	}

	m := metrics.New()
	transport := m.InstrumentTransport(http.DefaultTransport)
	downloads := m.InstrumentTransport(downloadTransport(cfg.Download.TimeoutDuration()))

	session := zoom.NewSession(
		zoom.Credentials{
			ClientID:     cfg.Zoom.ClientID,
			ClientSecret: cfg.Zoom.ClientSecret,
			RedirectURI:  cfg.Zoom.RedirectURI,
		},
		zoom.WithEndpoint(zoom.EndpointFromBaseURL(cfg.Zoom.OAuthURL)),
		zoom.WithSessionHTTPClient(zoom.NewHTTPClient(zoom.HTTPClientConfig{
			Timeout:   30 * time.Second,
			Transport: transport,
		})),
		zoom.WithSessionLogger(logger),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		transport: transport,
		downloads: downloads,
		store:     store,
		session:   &guardedSession{session: session, store: store, logger: logger},
	}, nil
}

// downloadTransport bounds the wait for response headers only. A total client
// timeout would also cut off long recordings while their bodies stream.
func downloadTransport(headerTimeout time.Duration) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return transport
}

// restoreTokens loads the saved token pair into the session and, when
// configured, follows later rewrites of the token file.
func (a *app) restoreTokens() error {
	tokens, err := a.store.Load()
	if err != nil {
		return err
	}
	a.session.SetTokens(tokens)

	if a.cfg.Tokens.Watch {
		if err := a.store.Watch(a.session.SetTokens); err != nil {
			a.logger.Warn("Token file watching disabled: %v", err)
		}
	}
	return nil
}

// catalog builds a recording catalog whose downloads report to onProgress
func (a *app) catalog(output io.Writer, onProgress zoom.ProgressFunc) *zoom.Catalog {
	refresher := a.metrics.InstrumentRefresher(a.session)

	fetcherOpts := []zoom.FetcherOption{
		zoom.WithDownloadHTTPClient(zoom.NewHTTPClient(zoom.HTTPClientConfig{
			Transport: a.downloads,
		})),
		zoom.WithChunkSize(a.cfg.Download.ChunkSize),
		zoom.WithOutput(output),
		zoom.WithFetcherLogger(a.logger),
	}
	if onProgress != nil {
		fetcherOpts = append(fetcherOpts, zoom.WithProgress(onProgress))
	}

	return zoom.NewCatalog(refresher,
		zoom.WithBaseURL(a.cfg.Zoom.BaseURL),
		zoom.WithCatalogHTTPClient(zoom.NewHTTPClient(zoom.HTTPClientConfig{
			Timeout:   30 * time.Second,
			Transport: a.transport,
		})),
		zoom.WithFetcher(zoom.NewFetcher(refresher, fetcherOpts...)),
		zoom.WithCatalogLogger(a.logger),
	)
}

// close flushes metrics and releases the token watcher and log file
func (a *app) close() error {
	var errs []error
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeInto closes the app and joins any failure into *err
func (a *app) closeInto(err *error) {
	if closeErr := a.close(); closeErr != nil {
		*err = errors.Join(*err, closeErr)
	}
}

// guardedSession serializes access to the session, which is not safe for
// concurrent use, and persists every token pair it obtains.
type guardedSession struct {
	mu      sync.Mutex
	session *zoom.Session
	store   tokenstore.TokenStore
	logger  logging.Logger
}

func (g *guardedSession) AccessToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.AccessToken()
}

func (g *guardedSession) Refresh(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.session.Refresh(ctx) {
		return false
	}
	if err := g.store.Save(g.session.Tokens()); err != nil {
		g.logger.ErrorWithContext(ctx, "Refreshed tokens could not be saved: %v", err)
	}
	return true
}

func (g *guardedSession) SetTokens(tokens zoom.TokenPair) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.SetTokens(tokens)
}

func (g *guardedSession) completeAuthorization(ctx context.Context, redirectedURL string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.session.CompleteAuthorization(ctx, redirectedURL); err != nil {
		return err
	}
	return g.store.Save(g.session.Tokens())
}

func (g *guardedSession) authorizationURL() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.AuthorizationURL()
}

func (g *guardedSession) accessTokenExpiry() (time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.AccessTokenExpiry()
}
