package logs

import (
	"context"
	"errors"
	"sync"
)

// ErrSubscriptionClosed is returned by Subscription.Recv after Close.
var ErrSubscriptionClosed = errors.New("log subscription closed")

// DefaultCapacity is the ring size used for a non-positive capacity.
const DefaultCapacity = 1000

// RingBuffer keeps the newest console lines of one child process and fans
// every added line out to its subscribers.
type RingBuffer struct {
	mu       sync.RWMutex
	entries  []*LogEntry
	capacity int
	head     int
	size     int
	subs     map[*Subscription]struct{}
}

// NewRingBuffer creates a ring holding up to capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{
		entries:  make([]*LogEntry, capacity),
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Add stores entry, dropping the oldest one when full, and queues it for
// every subscriber.
func (r *RingBuffer) Add(entry *LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.head] = entry
	r.head = (r.head + 1) % r.capacity

	if r.size < r.capacity {
		r.size++
	}

	for s := range r.subs {
		s.push(entry)
	}
}

// Last returns the newest n entries in chronological order.
func (r *RingBuffer) Last(n int) []*LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}

	// head is the next write position, so the newest entry sits at head-1.
	start := (r.head - n + r.capacity) % r.capacity
	out := make([]*LogEntry, n)
	for i := range out {
		out[i] = r.entries[(start+i)%r.capacity]
	}
	return out
}

// Subscribe returns a subscription receiving every entry added from now on.
// The subscription queue is unbounded; the caller must Close it when done.
func (r *RingBuffer) Subscribe() *Subscription {
	s := &Subscription{
		notify: make(chan struct{}, 1),
		owner:  r,
	}
	r.mu.Lock()
	r.subs[s] = struct{}{}
	r.mu.Unlock()
	return s
}

func (r *RingBuffer) unsubscribe(s *Subscription) {
	r.mu.Lock()
	delete(r.subs, s)
	r.mu.Unlock()
}

// Subscription is an unbounded per-subscriber queue of log entries.
type Subscription struct {
	mu     sync.Mutex
	queue  []*LogEntry
	notify chan struct{}
	closed bool
	owner  *RingBuffer
}

func (s *Subscription) push(e *LogEntry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv blocks until an entry is available, the subscription is closed, or
// ctx is done.
func (s *Subscription) Recv(ctx context.Context) (*LogEntry, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			e := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return e, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, ErrSubscriptionClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close detaches the subscription and drops queued entries.
func (s *Subscription) Close() {
	s.owner.unsubscribe(s)

	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
