// Package runtime runs the supervisor's child processes: the node daemon,
// which is started once and declared crashed when it exits, and the stratum
// bridge, which is restarted with backoff.
package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/logs"
)

// ErrProcessExited is returned by WaitReady when the child exits first.
var ErrProcessExited = errors.New("process exited")

// DefaultGracePeriod is how long Stop waits after the stop signal before
// killing the process group.
const DefaultGracePeriod = 10 * time.Second

// DefaultDrainTimeout bounds how long output is read after the child exits.
// A grandchild that inherited the pipes cannot hold Done open past it.
const DefaultDrainTimeout = 2 * time.Second

// ProcessConfig describes a child process.
type ProcessConfig struct {
	Name    string
	Binary  string
	Args    []string
	WorkDir string
	Env     map[string]string
	// Collector receives stdout/stderr lines. Optional.
	Collector *logs.LogCollector
	// ReadyPattern marks the process ready when an output line matches.
	// Without it the process is ready as soon as it starts.
	ReadyPattern *regexp.Regexp
	StopSignal   syscall.Signal
	GracePeriod  time.Duration
	DrainTimeout time.Duration
	Logger       *slog.Logger
}

// Process is a running child with piped output.
type Process struct {
	cfg       ProcessConfig
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	logger    *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	pipes     sync.WaitGroup
	outputs   []*os.File

	mu       sync.Mutex
	exitCode int
	exitErr  error
}

// StartProcess spawns the child and starts its pipe readers.
func StartProcess(cfg ProcessConfig) (*Process, error) {
	if cfg.StopSignal == 0 {
		cfg.StopSignal = syscall.SIGTERM
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}

	cmd := exec.Command(cfg.Binary, cfg.Args...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	setProcAttr(cmd)

	// The read ends stay ours so reaping the child never closes them.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		stdout.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Name, err)
	}

	p := &Process{
		cfg:       cfg,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		logger:    cfg.Logger.With("process", cfg.Name, "pid", cmd.Process.Pid),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
		outputs:   []*os.File{stdout, stderr},
	}
	if cfg.ReadyPattern == nil {
		p.markReady()
	}

	p.pipes.Add(2)
	go p.pipe(stdout, logs.SourceStdout)
	go p.pipe(stderr, logs.SourceStderr)
	go p.wait()

	p.logger.Info("process started", "args", cfg.Args)
	return p, nil
}

func (p *Process) pipe(r io.Reader, source logs.Source) {
	defer p.pipes.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if p.cfg.Collector != nil {
			p.cfg.Collector.Push(source, line)
		}
		if p.cfg.ReadyPattern != nil && p.cfg.ReadyPattern.MatchString(line) {
			p.markReady()
		}
	}
}

func (p *Process) closeOutputs() {
	for _, f := range p.outputs {
		_ = f.Close()
	}
}

func (p *Process) markReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

// wait reaps the child, then gives the pipe readers DrainTimeout to reach
// EOF before cutting the pipes.
func (p *Process) wait() {
	err := p.cmd.Wait()

	drained := make(chan struct{})
	go func() {
		p.pipes.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(p.cfg.DrainTimeout):
		p.logger.Warn("output still open after exit; closing pipes", "timeout", p.cfg.DrainTimeout)
		p.closeOutputs()
		<-drained
	}
	p.closeOutputs()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	p.mu.Lock()
	p.exitCode = code
	p.exitErr = err
	p.mu.Unlock()

	p.logger.Info("process exited", "exitCode", code, "uptime", time.Since(p.startedAt).Round(time.Millisecond))
	close(p.done)
}

func (p *Process) PID() int             { return p.pid }
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Done is closed once the process has exited and its output is drained.
func (p *Process) Done() <-chan struct{} { return p.done }

// Ready is closed when the ready pattern matched.
func (p *Process) Ready() <-chan struct{} { return p.ready }

// ExitCode returns the exit code, or -1 if the process was killed by a
// signal. Only meaningful after Done.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Err returns the wait error. Only meaningful after Done.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// WaitReady blocks until the process is ready, exits, or ctx is done.
func (p *Process) WaitReady(ctx context.Context) error {
	select {
	case <-p.ready:
		return nil
	case <-p.done:
		return fmt.Errorf("%w: %s (exit code %d)", ErrProcessExited, p.cfg.Name, p.ExitCode())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals the process group, waits the grace period and then kills it.
// It returns once the process has been reaped.
func (p *Process) Stop(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := signalGroup(p.pid, p.cfg.StopSignal); err != nil {
		p.logger.Warn("failed to signal process", "error", err)
	}

	timer := time.NewTimer(p.cfg.GracePeriod)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
		p.logger.Warn("grace period elapsed, killing process", "grace", p.cfg.GracePeriod)
	case <-ctx.Done():
		p.logger.Warn("stop cancelled, killing process")
	}

	if err := killGroup(p.pid); err != nil {
		return fmt.Errorf("failed to kill %s: %w", p.cfg.Name, err)
	}
	<-p.done
	return nil
}
