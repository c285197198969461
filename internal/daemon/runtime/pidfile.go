package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrAlreadyRunning is returned when a live process holds the pid file.
var ErrAlreadyRunning = errors.New("supervisor already running")

// PIDFile marks an application directory as in use by one process.
type PIDFile struct {
	path string
	pid  int
}

// AcquirePIDFile writes the current pid to path. A file left by a process
// that is gone is replaced.
func AcquirePIDFile(path string) (*PIDFile, error) {
	if pid, alive, err := ReadPIDFile(path); err != nil {
		return nil, err
	} else if alive && pid != os.Getpid() {
		return nil, fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}
	return &PIDFile{path: path, pid: pid}, nil
}

// Release removes the file unless another process has taken it over.
func (p *PIDFile) Release() error {
	pid, _, err := ReadPIDFile(p.path)
	if err != nil || pid != p.pid {
		return err
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReadPIDFile returns the pid stored at path and whether that process is
// still alive. A missing or unreadable file reports pid 0.
func ReadPIDFile(path string) (int, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false, nil
	}
	return pid, processAlive(pid), nil
}
