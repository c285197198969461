package runtime

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gonePID is far above any pid_max, so no process can own it.
const gonePID = 0x7ffffff0

func TestPIDFileAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app", "wagsupd.pid")

	p, err := AcquirePIDFile(path)
	require.NoError(t, err)

	pid, alive, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, alive)

	require.NoError(t, p.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	pid, alive, err = ReadPIDFile(path)
	require.NoError(t, err)
	assert.Zero(t, pid)
	assert.False(t, alive)
}

func TestPIDFileHeldByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagsupd.pid")
	other := os.Getppid()
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(other)), 0644))

	_, err := AcquirePIDFile(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Contains(t, err.Error(), strconv.Itoa(other))
}

func TestPIDFileStaleIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagsupd.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(gonePID)), 0644))

	pid, alive, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, gonePID, pid)
	assert.False(t, alive)

	p, err := AcquirePIDFile(path)
	require.NoError(t, err)
	defer p.Release()

	pid, _, err = ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFileReleaseKeepsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagsupd.pid")
	p, err := AcquirePIDFile(path)
	require.NoError(t, err)

	// Another supervisor took the directory over after a stale check.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(gonePID)), 0644))
	require.NoError(t, p.Release())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestReadPIDFileGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagsupd.pid")
	require.NoError(t, os.WriteFile(path, []byte("not a pid\n"), 0644))

	pid, alive, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Zero(t, pid)
	assert.False(t, alive)
}
