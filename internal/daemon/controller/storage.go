package controller

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

var (
	// ErrNodeRunning is returned by Remove while a node may still use the
	// data directory.
	ErrNodeRunning = errors.New("node is running; disable it before removing its data")
	// ErrNoStorageRoot is returned by Remove when nothing is tracked.
	ErrNoStorageRoot = errors.New("no storage directory tracked")
)

// DefaultStorageInterval is the rescan cadence.
const DefaultStorageInterval = 60 * time.Second

// StorageTrackerConfig configures the Storage Tracker.
type StorageTrackerConfig struct {
	Interval time.Duration
	// Guard returns an error while the data directory may be in use.
	// Remove refuses to run until it returns nil.
	Guard func() error
	// Bus receives StorageUpdate events.
	Bus    events.Publisher
	Logger *slog.Logger
}

// StorageTracker reports the on-disk size of the node data directory.
type StorageTracker struct {
	*lifecycle

	cfg    StorageTrackerConfig
	logger *slog.Logger
	rescan chan struct{}

	mu   sync.Mutex
	root string
	info types.StorageInfo

	// removeMu serialises Remove against scans.
	removeMu sync.Mutex
}

// NewStorageTracker creates a tracker with no root.
func NewStorageTracker(cfg StorageTrackerConfig) *StorageTracker {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultStorageInterval
	}
	if cfg.Guard == nil {
		cfg.Guard = func() error { return nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StorageTracker{
		lifecycle: newLifecycle(),
		cfg:       cfg,
		logger:    cfg.Logger.With("service", "storage"),
		rescan:    make(chan struct{}, 1),
	}
}

func (t *StorageTracker) Name() string { return "storage" }

// TrackStorageRoot sets the observed directory; an empty path clears it.
// A scan follows immediately.
func (t *StorageTracker) TrackStorageRoot(path string) {
	if path != "" {
		path = filepath.Clean(path)
	}
	t.mu.Lock()
	t.root = path
	t.mu.Unlock()
	t.requestScan()
}

// Folder returns the observed directory.
func (t *StorageTracker) Folder() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root, t.root != ""
}

// Info returns the last scan result.
func (t *StorageTracker) Info() types.StorageInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}

func (t *StorageTracker) requestScan() {
	select {
	case t.rescan <- struct{}{}:
	default:
	}
}

// Remove deletes the observed directory recursively and rescans. The guard
// must report the directory free.
func (t *StorageTracker) Remove(ctx context.Context) error {
	if err := t.cfg.Guard(); err != nil {
		return err
	}
	root, ok := t.Folder()
	if !ok {
		return ErrNoStorageRoot
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.removeMu.Lock()
	t.logger.Info("removing node data", "path", root)
	err := os.RemoveAll(root)
	t.removeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", root, err)
	}

	t.Scan()
	return nil
}

// Scan measures the observed directory now, publishes the result and
// returns it.
func (t *StorageTracker) Scan() types.StorageInfo {
	t.removeMu.Lock()
	root, _ := t.Folder()
	var size uint64
	if root != "" {
		size = dirSize(root)
	}
	t.removeMu.Unlock()

	info := types.StorageInfo{Path: root, Bytes: size, Human: humanize.IBytes(size)}

	t.mu.Lock()
	// The root may have changed while scanning; the next scan reports it.
	if t.root == root {
		t.info = info
	}
	t.mu.Unlock()

	if t.cfg.Bus != nil {
		t.cfg.Bus.Publish(events.StorageUpdate{Info: info})
	}
	return info
}

// dirSize sums regular file sizes below root. Unreadable entries are
// skipped; a missing root is empty.
func dirSize(root string) uint64 {
	var total uint64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

// Launch rescans on the interval, on request and when the root appears or
// disappears in its parent directory.
func (t *StorageTracker) Launch(ctx context.Context) error {
	defer t.finish()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Warn("storage watch unavailable", "error", err)
	} else {
		defer watcher.Close()
	}
	var watched string

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if watcher != nil {
		fsEvents, fsErrors = watcher.Events, watcher.Errors
	}

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	t.Scan()
	for {
		select {
		case <-t.terminate:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Scan()
		case <-t.rescan:
			if watcher != nil {
				watched = t.rewatch(watcher, watched)
			}
			t.Scan()
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if root, _ := t.Folder(); root != "" && filepath.Clean(ev.Name) == root &&
				ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				t.logger.Debug("storage root changed", "op", ev.Op.String())
				t.Scan()
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			t.logger.Debug("storage watch error", "error", err)
		}
	}
}

// rewatch moves the watch to the parent of the current root.
func (t *StorageTracker) rewatch(w *fsnotify.Watcher, watched string) string {
	root, _ := t.Folder()
	parent := ""
	if root != "" {
		parent = filepath.Dir(root)
	}
	if parent == watched {
		return watched
	}
	if watched != "" {
		_ = w.Remove(watched)
	}
	if parent == "" {
		return ""
	}
	if err := w.Add(parent); err != nil {
		t.logger.Debug("cannot watch storage parent", "path", parent, "error", err)
		return ""
	}
	return parent
}
