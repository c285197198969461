package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/logs"
)

// BridgeStatus is reported on every spawn, spawn failure and exit.
type BridgeStatus struct {
	Running  bool
	PID      int
	Restarts int
	ExitCode int
	Err      error
}

// BridgeConfig configures a BridgeSupervisor.
type BridgeConfig struct {
	// Resolve returns the bridge binary path. Called before every spawn so a
	// missing payload goes through the backoff loop like any spawn failure.
	Resolve     func() (string, error)
	Args        []string
	WorkDir     string
	Collector   *logs.LogCollector
	Backoff     *Backoff
	GracePeriod time.Duration
	// After is the restart timer. Defaults to time.After.
	After    func(time.Duration) <-chan time.Time
	OnStatus func(BridgeStatus)
	Logger   *slog.Logger
}

// BridgeSupervisor keeps the bridge running until its context is done.
type BridgeSupervisor struct {
	cfg     BridgeConfig
	backoff *Backoff
	logger  *slog.Logger

	mu       sync.Mutex
	proc     *Process
	restarts int
}

// NewBridgeSupervisor creates a supervisor. Run starts it.
func NewBridgeSupervisor(cfg BridgeConfig) *BridgeSupervisor {
	if cfg.Backoff == nil {
		cfg.Backoff = NewBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &BridgeSupervisor{
		cfg:     cfg,
		backoff: cfg.Backoff,
		logger:  cfg.Logger.With("component", "bridge-supervisor"),
	}
}

// Run spawns the bridge and respawns it after every exit or spawn failure
// with backoff. On ctx done the child is stopped gracefully and Run returns.
func (b *BridgeSupervisor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		proc, err := b.spawn()
		if err != nil {
			b.logger.Error("failed to spawn bridge", "error", err)
			b.report(BridgeStatus{Restarts: b.Restarts(), ExitCode: -1, Err: err})
		} else {
			b.setProc(proc)
			b.report(BridgeStatus{Running: true, PID: proc.PID(), Restarts: b.Restarts()})

			select {
			case <-proc.Done():
			case <-ctx.Done():
				stopCtx, cancel := context.WithTimeout(context.Background(), b.cfg.GracePeriod*2)
				if err := proc.Stop(stopCtx); err != nil {
					b.logger.Warn("failed to stop bridge", "error", err)
				}
				cancel()
				b.setProc(nil)
				b.report(BridgeStatus{PID: proc.PID(), Restarts: b.Restarts(), ExitCode: proc.ExitCode()})
				return
			}

			b.setProc(nil)
			b.logger.Warn("bridge exited", "pid", proc.PID(), "exitCode", proc.ExitCode())
			b.report(BridgeStatus{PID: proc.PID(), Restarts: b.Restarts(), ExitCode: proc.ExitCode(), Err: proc.Err()})
		}

		delay := b.backoff.Next()
		b.logger.Info("restarting bridge", "backoff", delay, "attempt", b.backoff.Attempt())

		select {
		case <-ctx.Done():
			return
		case <-b.cfg.After(delay):
		}

		b.mu.Lock()
		b.restarts++
		b.mu.Unlock()
	}
}

func (b *BridgeSupervisor) spawn() (*Process, error) {
	binary, err := b.cfg.Resolve()
	if err != nil {
		return nil, err
	}
	return StartProcess(ProcessConfig{
		Name:        "bridge",
		Binary:      binary,
		Args:        b.cfg.Args,
		WorkDir:     b.cfg.WorkDir,
		Collector:   b.cfg.Collector,
		GracePeriod: b.cfg.GracePeriod,
		Logger:      b.cfg.Logger,
	})
}

func (b *BridgeSupervisor) setProc(p *Process) {
	b.mu.Lock()
	b.proc = p
	b.mu.Unlock()
}

func (b *BridgeSupervisor) report(st BridgeStatus) {
	if b.cfg.OnStatus != nil {
		b.cfg.OnStatus(st)
	}
}

// ResetBackoff restarts the delay sequence at its initial value.
func (b *BridgeSupervisor) ResetBackoff() {
	b.backoff.Reset()
}

// Restarts returns how many times the bridge has been respawned.
func (b *BridgeSupervisor) Restarts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.restarts
}

// PID returns the running child's pid, or 0.
func (b *BridgeSupervisor) PID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.proc == nil {
		return 0
	}
	return b.proc.PID()
}

// Kill force-kills the running child. The supervisor treats it as a crash.
func (b *BridgeSupervisor) Kill() error {
	pid := b.PID()
	if pid == 0 {
		return nil
	}
	return killGroup(pid)
}
