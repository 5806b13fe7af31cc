package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/gitsync"
	"go.uber.org/zap"
)

var (
	errMissingPath = errors.New("catalog: document path is required")
	noOpLogger     = zap.NewNop()
)

// Pusher publishes the saved document; gitsync.Adapter satisfies it.
type Pusher interface {
	Push(ctx context.Context, message string) gitsync.Result
}

// StoreConfig describes the document a Store owns.
type StoreConfig struct {
	Path   string
	Clock  func() time.Time
	Pusher Pusher
	Logger *zap.Logger
}

// Store loads and saves the catalog document as a whole.
type Store struct {
	path   string
	clock  func() time.Time
	pusher Pusher
	logger *zap.Logger
}

// SaveResult reports a save and the optional push that followed it.
type SaveResult struct {
	Saved bool
	Err   error
	// Push is nil when no push was attempted.
	Push *gitsync.Result
}

// Pushed reports whether a push was attempted and succeeded.
func (r SaveResult) Pushed() bool {
	return r.Push != nil && r.Push.OK
}

// NewStore constructs a Store for cfg.Path.
func NewStore(cfg StoreConfig) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errMissingPath
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{path: path, clock: clock, pusher: cfg.Pusher, logger: logger}, nil
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document and fills missing members with defaults.
// The returned catalog is always usable: when the document cannot be read or
// parsed, an empty catalog is returned together with the failure.
func (s *Store) Load() (*Catalog, error) {
	now := s.clock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("catalog load failed", zap.String("path", s.path), zap.Error(err))
		return NewCatalog(now), fmt.Errorf("catalog: read %s: %w", s.path, err)
	}

	var loaded Catalog
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("catalog parse failed", zap.String("path", s.path), zap.Error(err))
		return NewCatalog(now), fmt.Errorf("catalog: parse %s: %w", s.path, err)
	}
	loaded.migrate(now)
	return &loaded, nil
}

// Save recomputes derived fields, writes the whole document and, when
// autoPush is set and the write succeeded, publishes it. A push failure is
// reported in the result but never turns a successful write into a failure.
func (s *Store) Save(ctx context.Context, catalog *Catalog, autoPush bool) SaveResult {
	if catalog == nil {
		return SaveResult{Err: errors.New("catalog: nil catalog")}
	}
	catalog.recompute(s.clock())

	if err := s.write(catalog); err != nil {
		s.logger.Error("catalog save failed", zap.String("path", s.path), zap.Error(err))
		return SaveResult{Saved: false, Err: err}
	}
	s.logger.Info("catalog saved",
		zap.String("path", s.path),
		zap.Int("games", len(catalog.Games)),
		zap.Int("total_codes", catalog.TotalCodes))

	result := SaveResult{Saved: true}
	if autoPush && s.pusher != nil {
		push := s.pusher.Push(ctx, "")
		result.Push = &push
	}
	return result
}

func (s *Store) write(catalog *Catalog) error {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(catalog); err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	temp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("catalog: create temp file: %w", err)
	}
	tempPath := temp.Name()
	cleanup := func() { _ = os.Remove(tempPath) }

	if _, err := temp.Write(buffer.Bytes()); err != nil {
		_ = temp.Close()
		cleanup()
		return fmt.Errorf("catalog: write: %w", err)
	}
	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		cleanup()
		return fmt.Errorf("catalog: sync: %w", err)
	}
	if err := temp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("catalog: close: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("catalog: chmod: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("catalog: replace %s: %w", s.path, err)
	}
	return nil
}
