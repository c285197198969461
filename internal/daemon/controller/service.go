// Package controller runs the supervisor services: the Node Service state
// machine, the stratum bridge, the stats poller and the storage tracker,
// all coordinated by a Supervisor.
package controller

import (
	"context"
	"sync"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/rpc"
)

// Service is a long-lived supervisor task.
type Service interface {
	Name() string
	// Launch runs the service until Terminate is called or ctx is done.
	Launch(ctx context.Context) error
	// Terminate signals the service to stop. It does not block.
	Terminate()
	// Join blocks until Launch has returned.
	Join()
}

// RPCAttacher is implemented by services that use the shared RPC client.
// The client is handed over on attach and must be dropped on detach.
type RPCAttacher interface {
	RPCAttach(ctx context.Context, client rpc.Client) error
	RPCDetach(ctx context.Context) error
}

// RPCConnector is implemented by services that react to the attached
// client connecting and disconnecting.
type RPCConnector interface {
	RPCConnect(ctx context.Context) error
	RPCDisconnect(ctx context.Context) error
}

// lifecycle is the Terminate/Join half of a Service.
type lifecycle struct {
	terminate chan struct{}
	termOnce  sync.Once
	done      chan struct{}
	doneOnce  sync.Once
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		terminate: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (l *lifecycle) Terminate() {
	l.termOnce.Do(func() { close(l.terminate) })
}

func (l *lifecycle) Join() {
	<-l.done
}

// finish marks Launch as returned.
func (l *lifecycle) finish() {
	l.doneOnce.Do(func() { close(l.done) })
}

func (l *lifecycle) terminated() bool {
	select {
	case <-l.terminate:
		return true
	default:
		return false
	}
}

// abortable returns a context cancelled by ctx or by Terminate.
func (l *lifecycle) abortable(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-l.terminate:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
