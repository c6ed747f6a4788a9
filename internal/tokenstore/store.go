// Package tokenstore persists the Zoom token pair between CLI runs
package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/curtbushko/zoom-recordings/internal/logging"
	"github.com/curtbushko/zoom-recordings/internal/zoom"
)

// ErrNoTokens is returned by Load when the token file does not exist yet
var ErrNoTokens = errors.New("no stored tokens, run 'auth login' first")

// TokenStore reads and writes the token file
type TokenStore interface {
	Load() (zoom.TokenPair, error)
	Save(tokens zoom.TokenPair) error
	Watch(onChange func(zoom.TokenPair)) error
	GetStats() StoreStats
	Close() error
}

// StoreConfig holds configuration for the token store
type StoreConfig struct {
	FilePath string // Path to the YAML token file
}

// StoreStats provides statistics about the token file
type StoreStats struct {
	FilePath   string    // Path to the token file
	LastLoaded time.Time // When the file was last read
	LastSaved  time.Time // When this store last wrote the file
	Reloads    int       // Number of changes picked up by the watcher
	IsWatching bool      // Whether file watching is active
}

// tokenFile is the on-disk layout
type tokenFile struct {
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

type fileStore struct {
	config    StoreConfig
	logger    logging.Logger
	current   zoom.TokenPair
	mutex     sync.RWMutex
	watcher   *fsnotify.Watcher
	stopWatch chan struct{}
	done      chan struct{}
	stats     StoreStats
}

// NewStore creates a token store for the configured file
func NewStore(config StoreConfig, logger logging.Logger) (TokenStore, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("token file path cannot be empty")
	}
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &fileStore{
		config: config,
		logger: logger,
		stats:  StoreStats{FilePath: config.FilePath},
	}, nil
}

// Load reads the token pair from disk
func (s *fileStore) Load() (zoom.TokenPair, error) {
	tokens, err := s.read()
	if err != nil {
		return zoom.TokenPair{}, err
	}

	s.mutex.Lock()
	s.current = tokens
	s.stats.LastLoaded = time.Now()
	s.mutex.Unlock()

	return tokens, nil
}

func (s *fileStore) read() (zoom.TokenPair, error) {
	data, err := os.ReadFile(s.config.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zoom.TokenPair{}, ErrNoTokens
		}
		return zoom.TokenPair{}, fmt.Errorf("failed to read token file: %w", err)
	}

	var file tokenFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return zoom.TokenPair{}, fmt.Errorf("failed to parse token file %s: %w", s.config.FilePath, err)
	}
	if file.AccessToken == "" && file.RefreshToken == "" {
		return zoom.TokenPair{}, ErrNoTokens
	}

	return zoom.TokenPair{AccessToken: file.AccessToken, RefreshToken: file.RefreshToken}, nil
}

// Save writes the token pair with owner-only permissions. The file is written
// to a temporary sibling and renamed so readers never see a partial file.
func (s *fileStore) Save(tokens zoom.TokenPair) error {
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return fmt.Errorf("refusing to save incomplete token pair")
	}

	data, err := yaml.Marshal(tokenFile{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		UpdatedAt:    time.Now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}

	dir := filepath.Dir(s.config.FilePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	// Record the pair before the rename so the watcher treats it as our own write
	s.mutex.Lock()
	previous := s.current
	s.current = tokens
	s.mutex.Unlock()

	if err := os.Rename(tmpName, s.config.FilePath); err != nil {
		s.mutex.Lock()
		s.current = previous
		s.mutex.Unlock()
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	s.mutex.Lock()
	s.stats.LastSaved = time.Now()
	s.mutex.Unlock()

	s.logger.Debug("Saved tokens to %s", s.config.FilePath)
	return nil
}

// Watch calls onChange whenever another process rewrites the token file with
// a different token pair. The directory is watched because Save replaces the
// file by rename.
func (s *fileStore) Watch(onChange func(zoom.TokenPair)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.watcher != nil {
		return fmt.Errorf("token file is already being watched")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(s.config.FilePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.watcher = watcher
	s.stopWatch = make(chan struct{})
	s.done = make(chan struct{})
	s.stats.IsWatching = true

	go s.watchFileChanges(watcher, s.stopWatch, s.done, onChange)
	return nil
}

// watchFileChanges handles file system events for the token file
func (s *fileStore) watchFileChanges(watcher *fsnotify.Watcher, stop, done chan struct{}, onChange func(zoom.TokenPair)) {
	defer close(done)
	defer watcher.Close()

	target := filepath.Clean(s.config.FilePath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// Small delay to let an in-place writer finish
			time.Sleep(10 * time.Millisecond)

			tokens, err := s.read()
			if err != nil {
				s.logger.Warn("Failed to reload token file %s: %v", target, err)
				continue
			}

			s.mutex.Lock()
			changed := tokens != s.current
			if changed {
				s.current = tokens
				s.stats.LastLoaded = time.Now()
				s.stats.Reloads++
			}
			s.mutex.Unlock()

			if changed {
				s.logger.Info("Token file %s changed, reloaded tokens", target)
				onChange(tokens)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Token file watcher error: %v", err)

		case <-stop:
			return
		}
	}
}

// GetStats returns statistics about the token store
func (s *fileStore) GetStats() StoreStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.stats
}

// Close stops watching the token file
func (s *fileStore) Close() error {
	s.mutex.Lock()
	if s.watcher == nil {
		s.mutex.Unlock()
		return nil
	}
	close(s.stopWatch)
	done := s.done
	s.watcher = nil
	s.stats.IsWatching = false
	s.mutex.Unlock()

	<-done
	return nil
}
