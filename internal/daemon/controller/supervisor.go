package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/rpc"
)

// ErrAlreadyStarted is returned by Register after Start.
var ErrAlreadyStarted = errors.New("supervisor already started")

// DefaultAttachWarn is the RPCAttach duration above which a warning is logged.
const DefaultAttachWarn = 1000 * time.Millisecond

// RPCFanout distributes RPC lifecycle hooks to every registered service.
// The Node Service drives it; the Supervisor implements it.
type RPCFanout interface {
	AttachRPC(ctx context.Context, client rpc.Client) error
	DetachRPC(ctx context.Context, client rpc.Client, preemptive bool) error
	ConnectRPC(ctx context.Context) error
	DisconnectRPC(ctx context.Context) error
}

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Bus receives Exit on shutdown and is closed afterwards. Required.
	Bus        *events.Bus
	AttachWarn time.Duration
	Logger     *slog.Logger
}

// Supervisor owns the services in registration order.
type Supervisor struct {
	bus        *events.Bus
	attachWarn time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	services []Service
	started  bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewSupervisor creates a supervisor with no services.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.AttachWarn == 0 {
		cfg.AttachWarn = DefaultAttachWarn
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Supervisor{
		bus:        cfg.Bus,
		attachWarn: cfg.AttachWarn,
		logger:     cfg.Logger.With("component", "supervisor"),
	}
}

// Bus returns the event bus.
func (s *Supervisor) Bus() *events.Bus {
	return s.bus
}

// Register appends svc. Launch order and join order follow registration.
func (s *Supervisor) Register(svc Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("%w: cannot register %s", ErrAlreadyStarted, svc.Name())
	}
	s.services = append(s.services, svc)
	return nil
}

// Services returns the registered services in order.
func (s *Supervisor) Services() []Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Service(nil), s.services...)
}

// Start launches every service in its own goroutine.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	services := append([]Service(nil), s.services...)
	s.mu.Unlock()

	for _, svc := range services {
		s.logger.Debug("launching service", "service", svc.Name())
		go func(svc Service) {
			if err := svc.Launch(ctx); err != nil {
				s.logger.Error("service failed", "service", svc.Name(), "error", err)
				s.Notify(events.NewErrorNotify(fmt.Errorf("%s: %w", svc.Name(), err)))
			}
		}(svc)
	}
	return nil
}

// Notify publishes a user-visible notification.
func (s *Supervisor) Notify(n events.Notify) {
	s.bus.Publish(n)
}

// AttachRPC hands client to every RPCAttacher, one after another.
func (s *Supervisor) AttachRPC(ctx context.Context, client rpc.Client) error {
	var errs []error
	for _, svc := range s.Services() {
		a, ok := svc.(RPCAttacher)
		if !ok {
			continue
		}

		start := time.Now()
		err := a.RPCAttach(ctx, client)
		if elapsed := time.Since(start); elapsed > s.attachWarn {
			s.logger.Warn("rpc attach is slow",
				"service", svc.Name(),
				"elapsed", elapsed.Round(time.Millisecond))
		}
		if err != nil {
			s.logger.Error("rpc attach failed", "service", svc.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", svc.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// DetachRPC takes the client back from every RPCAttacher. With preemptive
// set, a wRPC client is disconnected first so no service blocks on it.
func (s *Supervisor) DetachRPC(ctx context.Context, client rpc.Client, preemptive bool) error {
	if preemptive && client != nil && client.Kind() == rpc.KindWrpc {
		if err := client.Disconnect(ctx); err != nil {
			s.logger.Warn("preemptive rpc disconnect failed", "error", err)
		}
	}

	var errs []error
	for _, svc := range s.Services() {
		a, ok := svc.(RPCAttacher)
		if !ok {
			continue
		}
		if err := a.RPCDetach(ctx); err != nil {
			s.logger.Error("rpc detach failed", "service", svc.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", svc.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ConnectRPC notifies every RPCConnector that the client is connected.
func (s *Supervisor) ConnectRPC(ctx context.Context) error {
	return s.fanout("rpc connect", func(c RPCConnector) error { return c.RPCConnect(ctx) })
}

// DisconnectRPC notifies every RPCConnector that the client disconnected.
func (s *Supervisor) DisconnectRPC(ctx context.Context) error {
	return s.fanout("rpc disconnect", func(c RPCConnector) error { return c.RPCDisconnect(ctx) })
}

func (s *Supervisor) fanout(op string, fn func(RPCConnector) error) error {
	var errs []error
	for _, svc := range s.Services() {
		c, ok := svc.(RPCConnector)
		if !ok {
			continue
		}
		if err := fn(c); err != nil {
			s.logger.Error(op+" failed", "service", svc.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", svc.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown terminates every service, joins them in launch order, publishes
// Exit and closes the bus. It returns ctx.Err() if a join does not finish
// in time. Later calls return the first result.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Supervisor) shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	services := append([]Service(nil), s.services...)
	s.mu.Unlock()

	s.logger.Info("shutting down", "services", len(services))
	for _, svc := range services {
		svc.Terminate()
	}

	if started {
		for _, svc := range services {
			joined := make(chan struct{})
			go func(svc Service) {
				svc.Join()
				close(joined)
			}(svc)

			select {
			case <-joined:
				s.logger.Debug("service stopped", "service", svc.Name())
			case <-ctx.Done():
				s.logger.Error("service did not stop in time", "service", svc.Name())
				return fmt.Errorf("join %s: %w", svc.Name(), ctx.Err())
			}
		}
	}

	s.bus.Publish(events.Exit{})
	s.bus.Close()
	s.logger.Info("shutdown complete")
	return nil
}
