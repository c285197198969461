package events

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed is returned by Send after Close.
var ErrBusClosed = errors.New("event bus closed")

// Publisher accepts events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// Bus is an unbounded multi-producer single-consumer queue. Send never
// blocks; events from one producer are received in the order they were sent.
type Bus struct {
	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{notify: make(chan struct{}, 1)}
}

// Send enqueues e.
func (b *Bus) Send(e Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.queue = append(b.queue, e)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Publish enqueues e, dropping it silently if the bus is closed.
func (b *Bus) Publish(e Event) {
	_ = b.Send(e)
}

// TryRecv returns the next queued event without blocking.
func (b *Bus) TryRecv() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.popLocked()
}

func (b *Bus) popLocked() (Event, bool) {
	if len(b.queue) == 0 {
		return nil, false
	}
	e := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	return e, true
}

// Recv blocks until an event is available, the bus is closed and drained,
// or ctx is done.
func (b *Bus) Recv(ctx context.Context) (Event, error) {
	for {
		b.mu.Lock()
		e, ok := b.popLocked()
		closed := b.closed
		b.mu.Unlock()

		if ok {
			return e, nil
		}
		if closed {
			return nil, ErrBusClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.notify:
		}
	}
}

// Ready returns a channel signalled after Send and Close. Consumers that
// select on it must drain with TryRecv before selecting again.
func (b *Bus) Ready() <-chan struct{} {
	return b.notify
}

// Drain returns every queued event without blocking.
func (b *Bus) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

// Len returns the number of queued events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close stops accepting events. Queued events can still be received.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}
