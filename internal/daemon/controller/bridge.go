package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/bridgebin"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/config"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/logs"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/rpc"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/runtime"
	"github.com/waglayla/waglayla-supervisor/internal/paths"
)

// BridgeServiceConfig configures the Bridge Service.
type BridgeServiceConfig struct {
	// AppDir is where the bridge directory is created. Required.
	AppDir   string
	Settings config.BridgeSettings
	Enabled  bool
	// Collector is the bridge console channel. Optional.
	Collector *logs.LogCollector
	// Materialize installs the bridge binary into a directory and returns
	// its path. Defaults to the embedded payload.
	Materialize func(dir string) (string, error)
	Backoff     *runtime.Backoff
	// After replaces time.After for restart delays.
	After       func(time.Duration) <-chan time.Time
	GracePeriod time.Duration
	Bus         events.Publisher
	Logger      *slog.Logger
}

type bridgeCommand int

const (
	bridgeEnable bridgeCommand = iota
	bridgeDisable
	bridgeReconfigure
	bridgeExit
)

// BridgeService runs the embedded stratum bridge while enabled and
// restarts it with backoff whenever it exits.
type BridgeService struct {
	*lifecycle

	cfg     BridgeServiceConfig
	backoff *runtime.Backoff
	cmds    chan bridgeCommand
	logger  *slog.Logger

	mu       sync.Mutex
	settings config.BridgeSettings
	enabled  bool

	// Written by the Launch goroutine under mu.
	sup     *runtime.BridgeSupervisor
	cancel  context.CancelFunc
	runDone chan struct{}
}

// NewBridgeService creates the Bridge Service.
func NewBridgeService(cfg BridgeServiceConfig) *BridgeService {
	if cfg.Materialize == nil {
		cfg.Materialize = bridgebin.Materialize
	}
	if cfg.Backoff == nil {
		cfg.Backoff = runtime.NewBackoff(runtime.DefaultBackoffInitial, runtime.DefaultBackoffMax)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &BridgeService{
		lifecycle: newLifecycle(),
		cfg:       cfg,
		backoff:   cfg.Backoff,
		cmds:      make(chan bridgeCommand, 16),
		logger:    cfg.Logger.With("service", "bridge"),
		settings:  cfg.Settings,
		enabled:   cfg.Enabled,
	}
}

func (b *BridgeService) Name() string { return "bridge" }

func (b *BridgeService) send(cmd bridgeCommand) {
	select {
	case b.cmds <- cmd:
	case <-b.terminate:
	}
}

// Enable starts the supervision loop.
func (b *BridgeService) Enable() {
	b.mu.Lock()
	b.enabled = true
	b.mu.Unlock()
	b.send(bridgeEnable)
}

// Disable stops the child and leaves the loop idle.
func (b *BridgeService) Disable() {
	b.mu.Lock()
	b.enabled = false
	b.mu.Unlock()
	b.send(bridgeDisable)
}

// Exit stops the child and ends the service.
func (b *BridgeService) Exit() {
	b.send(bridgeExit)
}

// SetEnabled is Enable or Disable.
func (b *BridgeService) SetEnabled(enabled bool) {
	if enabled {
		b.Enable()
	} else {
		b.Disable()
	}
}

// Configure replaces the bridge settings. A running child is restarted so
// it reads the new document.
func (b *BridgeService) Configure(settings config.BridgeSettings) {
	b.mu.Lock()
	changed := b.settings != settings
	b.settings = settings
	b.mu.Unlock()
	if changed {
		b.send(bridgeReconfigure)
	}
}

// Enabled reports whether the bridge should be running.
func (b *BridgeService) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// RPCAttach resets the restart backoff: the node is back.
func (b *BridgeService) RPCAttach(_ context.Context, _ rpc.Client) error {
	b.backoff.Reset()
	return nil
}

func (b *BridgeService) RPCDetach(_ context.Context) error {
	return nil
}

// Launch runs until terminated or Exit.
func (b *BridgeService) Launch(ctx context.Context) error {
	defer b.finish()
	defer b.stopChild()

	if b.Enabled() {
		b.startChild(ctx)
	}

	for {
		select {
		case <-b.terminate:
			return nil
		case <-ctx.Done():
			return nil
		case cmd := <-b.cmds:
			switch cmd {
			case bridgeEnable:
				b.startChild(ctx)
			case bridgeDisable:
				b.stopChild()
			case bridgeReconfigure:
				if b.sup != nil {
					b.logger.Info("bridge settings changed, restarting")
					b.stopChild()
					b.startChild(ctx)
				}
			case bridgeExit:
				b.logger.Info("bridge exit requested")
				return nil
			}
		}
	}
}

func (b *BridgeService) startChild(ctx context.Context) {
	if b.sup != nil {
		return
	}

	dir := paths.BridgeDirPath(b.cfg.AppDir)
	sup := runtime.NewBridgeSupervisor(runtime.BridgeConfig{
		Resolve:     func() (string, error) { return b.install(dir) },
		WorkDir:     dir,
		Collector:   b.cfg.Collector,
		Backoff:     b.backoff,
		GracePeriod: b.cfg.GracePeriod,
		After:       b.cfg.After,
		OnStatus:    b.report,
		Logger:      b.cfg.Logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(runCtx)
	}()

	b.mu.Lock()
	b.sup, b.cancel, b.runDone = sup, cancel, done
	b.mu.Unlock()
	b.logger.Info("bridge enabled", "dir", dir)
}

func (b *BridgeService) stopChild() {
	if b.sup == nil {
		return
	}
	b.cancel()
	<-b.runDone
	b.mu.Lock()
	b.sup, b.cancel, b.runDone = nil, nil, nil
	b.mu.Unlock()
	b.logger.Info("bridge stopped")
}

// install materialises the binary and writes the config document next to
// it. It runs before every spawn.
func (b *BridgeService) install(dir string) (string, error) {
	if err := paths.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create bridge dir: %w", err)
	}
	bin, err := b.cfg.Materialize(dir)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	settings := b.settings
	b.mu.Unlock()
	if err := config.WriteBridgeConfig(paths.BridgeConfigPath(b.cfg.AppDir), settings); err != nil {
		return "", err
	}
	return bin, nil
}

// bridgeTailLines is how much console output is logged with a failed exit.
const bridgeTailLines = 5

func (b *BridgeService) report(st runtime.BridgeStatus) {
	if !st.Running && (st.Err != nil || st.ExitCode != 0) {
		attrs := []any{"restarts", st.Restarts, "exitCode", st.ExitCode}
		if st.Err != nil {
			attrs = append(attrs, "error", st.Err)
		}
		if b.cfg.Collector != nil {
			attrs = append(attrs, "output", b.cfg.Collector.Lines(bridgeTailLines))
		}
		b.logger.Warn("bridge not running", attrs...)
	}
	if b.cfg.Bus != nil {
		b.cfg.Bus.Publish(events.BridgeStatus{Running: st.Running, PID: st.PID, Restarts: st.Restarts})
	}
}

// PID returns the running bridge pid, or 0.
func (b *BridgeService) PID() int {
	if sup := b.supervisor(); sup != nil {
		return sup.PID()
	}
	return 0
}

func (b *BridgeService) supervisor() *runtime.BridgeSupervisor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sup
}

// Kill force-kills the running child. The loop treats it as a crash and
// respawns after the backoff delay.
func (b *BridgeService) Kill() error {
	if sup := b.supervisor(); sup != nil {
		return sup.Kill()
	}
	return nil
}
