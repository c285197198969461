package runtime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nxadm/tail"
)

// LogConfig configures child log files.
type LogConfig struct {
	MaxSize  int64 // max file size before rotation (bytes)
	MaxFiles int   // rotated files kept next to the live one
}

// DefaultLogConfig returns default log configuration
func DefaultLogConfig() LogConfig {
	return LogConfig{
		MaxSize:  50 * 1024 * 1024,
		MaxFiles: 3,
	}
}

// LogOptions select what Open returns.
type LogOptions struct {
	Follow bool // keep reading as the file grows, across rotations
	Lines  int  // last N lines (0 = all)
}

// LogFiles owns the rotating log files of the child processes, one per
// name, all under one directory.
type LogFiles struct {
	dir     string
	config  LogConfig
	writers map[string]*rotatingWriter
	mu      sync.Mutex
}

// NewLogFiles creates a log file set rooted at dir.
func NewLogFiles(dir string, config LogConfig) *LogFiles {
	if config.MaxSize == 0 {
		config = DefaultLogConfig()
	}
	return &LogFiles{
		dir:     dir,
		config:  config,
		writers: make(map[string]*rotatingWriter),
	}
}

// Path returns the live file path of name.
func (lf *LogFiles) Path(name string) string {
	return filepath.Join(lf.dir, name)
}

// Writer returns the shared writer of name, creating the file if needed.
func (lf *LogFiles) Writer(name string) (io.Writer, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if w, ok := lf.writers[name]; ok {
		return w, nil
	}
	if err := os.MkdirAll(lf.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	w, err := newRotatingWriter(lf.Path(name), lf.config.MaxSize, lf.config.MaxFiles)
	if err != nil {
		return nil, err
	}
	lf.writers[name] = w
	return w, nil
}

// Open returns a reader over the log of name. With Follow the reader blocks
// for new lines until ctx is done or it is closed.
func (lf *LogFiles) Open(ctx context.Context, name string, opts LogOptions) (io.ReadCloser, error) {
	path := lf.Path(name)

	if opts.Follow {
		return followFile(ctx, path, opts.Lines)
	}
	if opts.Lines > 0 {
		return lastLines(path, opts.Lines)
	}
	return os.Open(path)
}

// Close closes every open writer.
func (lf *LogFiles) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	var firstErr error
	for name, w := range lf.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(lf.writers, name)
	}
	return firstErr
}

// followFile prints the last lines of path and then follows it with
// nxadm/tail, reopening across rotations.
func followFile(ctx context.Context, path string, lines int) (io.ReadCloser, error) {
	var backlog []byte
	var offset int64
	if lines > 0 {
		rc, err := lastLines(path, lines)
		if err != nil {
			return nil, err
		}
		backlog, _ = io.ReadAll(rc)
		rc.Close()
	}
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:    log.New(io.Discard, "", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to tail file: %w", err)
	}

	return &tailReader{ctx: ctx, t: t, buf: backlog, done: make(chan struct{})}, nil
}

// tailReader adapts a tail.Tail to io.ReadCloser.
type tailReader struct {
	ctx    context.Context
	t      *tail.Tail
	buf    []byte
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

func (tr *tailReader) Read(p []byte) (int, error) {
	tr.mu.Lock()
	if tr.closed {
		tr.mu.Unlock()
		return 0, io.EOF
	}
	if len(tr.buf) > 0 {
		n := copy(p, tr.buf)
		tr.buf = tr.buf[n:]
		tr.mu.Unlock()
		return n, nil
	}
	tr.mu.Unlock()

	select {
	case <-tr.ctx.Done():
		return 0, tr.ctx.Err()
	case <-tr.done:
		return 0, io.EOF
	case line, ok := <-tr.t.Lines:
		if !ok {
			return 0, io.EOF
		}
		if line.Err != nil {
			return 0, line.Err
		}
		data := line.Text + "\n"
		n := copy(p, data)
		if n < len(data) {
			tr.mu.Lock()
			tr.buf = []byte(data[n:])
			tr.mu.Unlock()
		}
		return n, nil
	}
}

func (tr *tailReader) Close() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.closed {
		return nil
	}
	tr.closed = true
	close(tr.done)
	err := tr.t.Stop()
	tr.t.Cleanup()
	return err
}

// lastLines returns the last n lines of path, keeping only n lines in
// memory while scanning.
func lastLines(path string, n int) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, n)
	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	kept := count
	if kept > n {
		kept = n
	}
	var sb strings.Builder
	for i := count - kept; i < count; i++ {
		sb.WriteString(ring[i%n])
		sb.WriteByte('\n')
	}
	return io.NopCloser(strings.NewReader(sb.String())), nil
}

// rotatingWriter appends to path and shifts it to path.1 … path.N when it
// would exceed maxSize.
type rotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int
	file     *os.File
	size     int64
	mu       sync.Mutex
}

func newRotatingWriter(path string, maxSize int64, maxFiles int) (*rotatingWriter, error) {
	w := &rotatingWriter{path: path, maxSize: maxSize, maxFiles: maxFiles}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) rotate() error {
	w.file.Close()

	// The oldest generation falls off the end.
	_ = os.Remove(fmt.Sprintf("%s.%d", w.path, w.maxFiles))
	for i := w.maxFiles - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", w.path, i), fmt.Sprintf("%s.%d", w.path, i+1))
	}
	if w.maxFiles > 0 {
		if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	} else if err := os.Truncate(w.path, 0); err != nil {
		return fmt.Errorf("failed to truncate log file: %w", err)
	}

	return w.open()
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
