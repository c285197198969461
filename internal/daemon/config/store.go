package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce is the delay between the last store request and the write.
const DefaultDebounce = 5 * time.Second

// Store persists the settings document with a debounce: each Request arms
// a timer, later requests reset it, and only the latest settings are
// written when it fires. Every write regenerates the bridge document.
type Store struct {
	path       string
	bridgePath string
	delay      time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending *Settings
	closed  bool

	writes atomic.Int64
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Path is the settings document path.
	Path string
	// BridgePath is the bridge document path.
	BridgePath string
	// Debounce overrides DefaultDebounce.
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewStore creates a settings store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:       cfg.Path,
		bridgePath: cfg.BridgePath,
		delay:      cfg.Debounce,
		logger:     logger,
	}
}

// Request schedules s to be written after the debounce delay.
func (st *Store) Request(s *Settings) {
	cp := *s

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return
	}
	st.pending = &cp
	if st.timer != nil {
		st.timer.Stop()
	}
	st.gen++
	gen := st.gen
	st.timer = time.AfterFunc(st.delay, func() { st.fire(gen) })
}

// fire flushes unless a later request superseded the timer.
func (st *Store) fire(gen uint64) {
	st.mu.Lock()
	stale := gen != st.gen
	st.mu.Unlock()
	if stale {
		return
	}
	if err := st.Flush(); err != nil {
		st.logger.Error("failed to store settings", "path", st.path, "error", err)
	}
}

// Flush writes pending settings immediately.
func (st *Store) Flush() error {
	st.mu.Lock()
	pending := st.pending
	st.pending = nil
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.mu.Unlock()

	if pending == nil {
		return nil
	}
	return st.Save(pending)
}

// Save writes s and the bridge document atomically.
func (st *Store) Save(s *Settings) error {
	if err := SaveSettings(st.path, s); err != nil {
		return err
	}
	if st.bridgePath != "" {
		if err := WriteBridgeConfig(st.bridgePath, s.Bridge); err != nil {
			return err
		}
	}
	st.writes.Add(1)
	st.logger.Debug("settings stored", "path", st.path)
	return nil
}

// Writes returns the number of completed writes.
func (st *Store) Writes() int64 {
	return st.writes.Load()
}

// Close flushes pending settings and stops accepting requests.
func (st *Store) Close() error {
	err := st.Flush()
	st.mu.Lock()
	st.closed = true
	st.mu.Unlock()
	return err
}

// SaveSettings encodes s as TOML and writes it atomically.
func SaveSettings(path string, s *Settings) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return writeFileAtomic(path, data, 0600)
}

// WriteBridgeConfig writes the bridge document the bridge binary reads.
func WriteBridgeConfig(path string, b BridgeSettings) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bridge config: %w", err)
	}
	return writeFileAtomic(path, data, 0644)
}

// ReadBridgeConfig reads a bridge document.
func ReadBridgeConfig(path string) (BridgeSettings, error) {
	var b BridgeSettings
	data, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := yaml.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("invalid bridge config %s: %w", path, err)
	}
	return b, nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
