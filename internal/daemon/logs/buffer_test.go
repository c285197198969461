package logs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raws(entries []*LogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Raw)
	}
	return out
}

func fill(r *RingBuffer, lines ...string) {
	for _, l := range lines {
		r.Add(&LogEntry{Source: SourceStdout, Raw: l})
	}
}

func TestRingBufferLast(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		lines    []string
		n        int
		want     []string
	}{
		{"empty", 4, nil, 3, []string{}},
		{"partial", 4, []string{"a", "b"}, 5, []string{"a", "b"}},
		{"newest only", 4, []string{"a", "b", "c"}, 2, []string{"b", "c"}},
		{"wrapped", 3, []string{"a", "b", "c", "d", "e"}, 3, []string{"c", "d", "e"}},
		{"wrapped tail", 3, []string{"a", "b", "c", "d"}, 2, []string{"c", "d"}},
		{"zero", 3, []string{"a"}, 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRingBuffer(tt.capacity)
			fill(r, tt.lines...)
			assert.Equal(t, tt.want, raws(r.Last(tt.n)))
		})
	}
}

func TestRingBufferDefaultCapacity(t *testing.T) {
	r := NewRingBuffer(0)
	for i := 0; i < DefaultCapacity+5; i++ {
		fill(r, fmt.Sprintf("line %d", i))
	}
	got := r.Last(DefaultCapacity + 5)
	require.Len(t, got, DefaultCapacity)
	assert.Equal(t, "line 5", got[0].Raw)
}

func TestSubscriptionSeesOverwrittenLines(t *testing.T) {
	r := NewRingBuffer(2)
	sub := r.Subscribe()
	defer sub.Close()

	fill(r, "a", "b", "c", "d")
	assert.Equal(t, []string{"c", "d"}, raws(r.Last(4)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, want := range []string{"a", "b", "c", "d"} {
		e, err := sub.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, e.Raw)
	}
}

func TestSubscriptionRecvBlocks(t *testing.T) {
	r := NewRingBuffer(4)
	sub := r.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := sub.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan string, 1)
	go func() {
		e, err := sub.Recv(context.Background())
		if err == nil {
			got <- e.Raw
		}
	}()
	fill(r, "late")
	select {
	case raw := <-got:
		assert.Equal(t, "late", raw)
	case <-time.After(time.Second):
		t.Fatal("Recv did not wake up")
	}
}

func TestSubscriptionClose(t *testing.T) {
	r := NewRingBuffer(4)
	sub := r.Subscribe()
	fill(r, "queued")

	done := make(chan error, 1)
	sub.Close()
	go func() {
		_, err := sub.Recv(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSubscriptionClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv blocked after Close")
	}

	// Lines added after Close only reach the ring.
	fill(r, "after")
	assert.Equal(t, []string{"queued", "after"}, raws(r.Last(4)))
}

func TestRingBufferConcurrentWriters(t *testing.T) {
	r := NewRingBuffer(50)
	sub := r.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				fill(r, fmt.Sprintf("%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, r.Last(100), 50)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 400; i++ {
		_, err := sub.Recv(ctx)
		require.NoError(t, err)
	}
}
