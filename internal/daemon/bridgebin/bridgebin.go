// Package bridgebin ships the stratum bridge executable inside the
// supervisor binary and writes it to disk on demand.
package bridgebin

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/waglayla/waglayla-supervisor/internal/paths"
)

// ErrNoPayload is returned when the binary was built without the bridge.
var ErrNoPayload = errors.New("bridge binary is not embedded in this build")

// Available reports whether a bridge payload is embedded.
func Available() bool {
	return len(payload) > 0
}

// Size returns the embedded payload size.
func Size() int {
	return len(payload)
}

// Materialize writes the embedded bridge into dir and returns its path.
func Materialize(dir string) (string, error) {
	return MaterializePayload(dir, payload)
}

// MaterializePayload writes data as the bridge executable in dir. An
// existing file with the same size and hash is left untouched.
func MaterializePayload(dir string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoPayload
	}

	path := filepath.Join(dir, paths.BridgeBinaryName())
	same, err := sameContent(path, data)
	if err != nil {
		return "", err
	}
	if same {
		return path, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create bridge dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".bridge-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write bridge binary: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync bridge binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpName, 0755); err != nil {
			return "", fmt.Errorf("failed to mark bridge executable: %w", err)
		}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("failed to install bridge binary: %w", err)
	}
	return path, nil
}

func sameContent(path string, data []byte) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open bridge binary: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() != int64(len(data)) {
		return false, nil
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	want := sha256.Sum256(data)
	return bytes.Equal(h.Sum(nil), want[:]), nil
}
