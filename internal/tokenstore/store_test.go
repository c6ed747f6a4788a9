package tokenstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/curtbushko/zoom-recordings/internal/config"
	"github.com/curtbushko/zoom-recordings/internal/logging"
	"github.com/curtbushko/zoom-recordings/internal/zoom"
)

func newTestStore(t *testing.T, path string) TokenStore {
	t.Helper()
	store, err := NewStore(StoreConfig{FilePath: path}, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStoreRequiresPath(t *testing.T) {
	if _, err := NewStore(StoreConfig{}, nil); err == nil {
		t.Error("NewStore() with empty path should fail")
	}
}

func TestNewStoreFallsBackToDefaultLogger(t *testing.T) {
	original := logging.GetDefaultLogger()
	defer logging.SetDefaultLogger(original)

	var buffer bytes.Buffer
	logger, err := logging.NewLogger(config.LoggingConfig{Level: "debug", Console: true})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.SetOutput(&buffer)
	logging.SetDefaultLogger(logger)

	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store := newTestStore(t, path)
	if err := store.Save(zoom.TokenPair{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !strings.Contains(buffer.String(), "Saved tokens to "+path) {
		t.Errorf("Expected save to be logged through the default logger, got %q", buffer.String())
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "zoom-tokens.yaml")
	store := newTestStore(t, path)

	tokens := zoom.TokenPair{AccessToken: "access_1", RefreshToken: "refresh_1"}
	if err := store.Save(tokens); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file permissions = %o, want 600", perm)
	}

	data, _ := os.ReadFile(path)
	for _, key := range []string{"access_token: access_1", "refresh_token: refresh_1", "updated_at:"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("token file missing %q:\n%s", key, data)
		}
	}

	loaded, err := newTestStore(t, path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != tokens {
		t.Errorf("Load() = %+v, want %+v", loaded, tokens)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the token file in its directory, found %d entries", len(entries))
	}
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store := newTestStore(t, path)

	if err := store.Save(zoom.TokenPair{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(zoom.TokenPair{AccessToken: "a2", RefreshToken: "r2"}); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.AccessToken != "a2" || loaded.RefreshToken != "r2" {
		t.Errorf("Load() = %+v, want the second pair", loaded)
	}
	if store.GetStats().LastSaved.IsZero() {
		t.Error("LastSaved should be set after Save")
	}
}

func TestSaveRejectsIncompletePair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store := newTestStore(t, path)

	tests := []zoom.TokenPair{
		{},
		{AccessToken: "a"},
		{RefreshToken: "r"},
	}
	for _, tokens := range tests {
		if err := store.Save(tokens); err == nil {
			t.Errorf("Save(%+v) should fail", tokens)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be written for incomplete pairs")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		content   *string
		wantNoTok bool
	}{
		{name: "missing file", wantNoTok: true},
		{name: "empty file", content: ptr(""), wantNoTok: true},
		{name: "invalid yaml", content: ptr("access_token: [unclosed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0600); err != nil {
					t.Fatal(err)
				}
			}

			_, err := newTestStore(t, path).Load()
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if got := errors.Is(err, ErrNoTokens); got != tt.wantNoTok {
				t.Errorf("errors.Is(err, ErrNoTokens) = %v, want %v (err: %v)", got, tt.wantNoTok, err)
			}
		})
	}
}

func TestWatchPicksUpExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	watched := newTestStore(t, path)
	if err := watched.Save(zoom.TokenPair{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatal(err)
	}

	changes := make(chan zoom.TokenPair, 4)
	if err := watched.Watch(func(tokens zoom.TokenPair) { changes <- tokens }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if !watched.GetStats().IsWatching {
		t.Error("IsWatching should be true after Watch")
	}
	if err := watched.Watch(func(zoom.TokenPair) {}); err == nil {
		t.Error("second Watch() should fail")
	}

	other := newTestStore(t, path)
	refreshed := zoom.TokenPair{AccessToken: "a2", RefreshToken: "r2"}
	if err := other.Save(refreshed); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got != refreshed {
			t.Errorf("onChange got %+v, want %+v", got, refreshed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for token file change")
	}

	if reloads := watched.GetStats().Reloads; reloads != 1 {
		t.Errorf("Reloads = %d, want 1", reloads)
	}

	if err := watched.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if watched.GetStats().IsWatching {
		t.Error("IsWatching should be false after Close")
	}
}

func TestWatchIgnoresOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store := newTestStore(t, path)

	changes := make(chan zoom.TokenPair, 4)
	if err := store.Watch(func(tokens zoom.TokenPair) { changes <- tokens }); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(zoom.TokenPair{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		t.Errorf("own write should not trigger onChange, got %+v", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCloseWithoutWatch(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "tokens.yaml"))
	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func ptr(s string) *string { return &s }
