package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/config"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/logs"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
	"github.com/waglayla/waglayla-supervisor/internal/output"
	"github.com/waglayla/waglayla-supervisor/internal/paths"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	f := cmd.Flags()
	f.StringVar(&flagLogLevel, "log-level", "", "")
	f.StringVar(&flagMetricsListen, "metrics-listen", "", "")
	f.StringVar(&flagNodeKind, "node", "", "")
	f.StringVar(&flagNetwork, "network", "", "")
	f.StringVar(&flagWrpcURL, "wrpc-url", "", "")
	require.NoError(t, f.Parse(args))
	return cmd
}

func TestApplyFlagOverrides(t *testing.T) {
	s := config.DefaultSettings()
	cmd := newFlagCmd(t, "--node=integrated-daemon", "--network=testnet", "--log-level=debug", "--metrics-listen=:9100")

	require.NoError(t, applyFlagOverrides(cmd, s))
	assert.Equal(t, types.NodeKindIntegratedDaemon, s.Node.Kind)
	assert.Equal(t, types.NetworkTestnet, s.Node.Network)
	assert.Equal(t, "debug", s.Developer.LogLevel)
	assert.Equal(t, ":9100", s.Developer.MetricsListen)
}

func TestApplyFlagOverridesWrpcURL(t *testing.T) {
	s := config.DefaultSettings()
	cmd := newFlagCmd(t, "--wrpc-url=ws://10.0.0.2:14110")

	require.NoError(t, applyFlagOverrides(cmd, s))
	assert.Equal(t, types.NodeKindRemote, s.Node.Kind)
	assert.Equal(t, types.ConnectionCustom, s.Node.ConnectionKind)
	assert.Equal(t, "ws://10.0.0.2:14110", s.Node.WrpcURL)
}

func TestApplyFlagOverridesUnchanged(t *testing.T) {
	s := config.DefaultSettings()
	require.NoError(t, applyFlagOverrides(newFlagCmd(t), s))
	assert.Equal(t, config.DefaultSettings(), s)
}

func TestApplyFlagOverridesErrors(t *testing.T) {
	s := config.DefaultSettings()
	assert.Error(t, applyFlagOverrides(newFlagCmd(t, "--node=bogus"), s))
	assert.Error(t, applyFlagOverrides(newFlagCmd(t, "--network=devnet"), s))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.name))
		})
	}
}

func TestDaemonBinaryConfigured(t *testing.T) {
	assert.Equal(t, "/opt/waglayla/bin/waglaylad", daemonBinary("/opt/waglayla/bin/waglaylad"))
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer := newLogger(dir, "info", nil)
	logger.Debug("hidden")
	logger.Info("visible", "key", "value")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(filepath.Join(paths.LogsPath(dir), paths.SupervisorLog))
	require.NoError(t, err)
	data := string(raw)
	assert.Contains(t, data, "msg=visible key=value")
	assert.NotContains(t, data, "hidden")
}

// lockedBuffer is a bytes.Buffer safe for a writer and a polling reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMirrorConsole(t *testing.T) {
	console := logs.NewLogCollector(logs.NewRingBuffer(10))
	var out lockedBuffer
	printer := output.NewPrinter(&out, &out)
	prev := color.NoColor
	t.Cleanup(func() { color.NoColor = prev })
	printer.SetNoColor(true)

	ctx, cancel := context.WithCancel(context.Background())
	sub := console.Subscribe()
	done := make(chan struct{})
	go func() {
		mirrorConsole(ctx, "bridge", sub, printer)
		close(done)
	}()

	console.Push(logs.SourceStdout, "listening on :5555")
	console.Push(logs.SourceStderr, "share rejected")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "bridge [stderr] share rejected")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "bridge [stdout] listening on :5555")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mirrorConsole did not return after cancel")
	}
}
