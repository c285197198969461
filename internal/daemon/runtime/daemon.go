package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/logs"
)

var (
	// ErrDaemonSpawn is returned when the node daemon cannot be started.
	ErrDaemonSpawn = errors.New("failed to spawn node daemon")
	// ErrDaemonExited reports an unexpected node daemon exit.
	ErrDaemonExited = errors.New("node daemon exited")
)

// DefaultReadyPattern matches the node's announcement that its wRPC
// listeners are up.
const DefaultReadyPattern = `(?i)wrpc server (is )?(starting|listening|started) on`

// DaemonGracePeriod leaves the node time to flush its database.
const DaemonGracePeriod = 30 * time.Second

// Daemon is a running node daemon.
type Daemon interface {
	PID() int
	WaitReady(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
	Stop(ctx context.Context) error
}

// DaemonConfig configures the node daemon launcher.
type DaemonConfig struct {
	Binary       string
	WorkDir      string
	Collector    *logs.LogCollector
	ReadyPattern string
	GracePeriod  time.Duration
	Logger       *slog.Logger
}

// Launcher spawns the node daemon.
type Launcher struct {
	cfg   DaemonConfig
	ready *regexp.Regexp
}

// NewLauncher validates the ready pattern and returns a launcher.
func NewLauncher(cfg DaemonConfig) (*Launcher, error) {
	if cfg.ReadyPattern == "" {
		cfg.ReadyPattern = DefaultReadyPattern
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = DaemonGracePeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	re, err := regexp.Compile(cfg.ReadyPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid ready pattern: %w", err)
	}
	return &Launcher{cfg: cfg, ready: re}, nil
}

// Launch starts the daemon with args.
func (l *Launcher) Launch(_ context.Context, args []string) (Daemon, error) {
	p, err := StartProcess(ProcessConfig{
		Name:         "waglaylad",
		Binary:       l.cfg.Binary,
		Args:         args,
		WorkDir:      l.cfg.WorkDir,
		Collector:    l.cfg.Collector,
		ReadyPattern: l.ready,
		GracePeriod:  l.cfg.GracePeriod,
		Logger:       l.cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonSpawn, err)
	}
	return p, nil
}
