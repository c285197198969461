package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

func TestBusPerProducerOrder(t *testing.T) {
	bus := NewBus()

	const producers, perProducer = 4, 500
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, bus.Send(PeerCount{Count: p*perProducer + i}))
			}
		}(p)
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for n := 0; n < producers*perProducer; n++ {
		e, err := bus.Recv(ctx)
		require.NoError(t, err)
		v := e.(PeerCount).Count
		p, i := v/perProducer, v%perProducer
		assert.Greater(t, i, last[p], "producer %d out of order", p)
		last[p] = i
	}
	assert.Equal(t, 0, bus.Len())
}

func TestBusRecvBlocksUntilSend(t *testing.T) {
	bus := NewBus()

	got := make(chan Event, 1)
	go func() {
		e, err := bus.Recv(context.Background())
		if err == nil {
			got <- e
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, bus.Send(Exit{}))

	select {
	case e := <-got:
		assert.Equal(t, "exit", e.Kind())
	case <-time.After(time.Second):
		t.Fatal("Recv did not return")
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Send(NodeDisconnected{}))
	bus.Close()

	assert.ErrorIs(t, bus.Send(NodeDisconnected{}), ErrBusClosed)
	bus.Publish(NodeDisconnected{})

	e, err := bus.Recv(context.Background())
	require.NoError(t, err)
	assert.IsType(t, NodeDisconnected{}, e)

	_, err = bus.Recv(context.Background())
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestBusRecvContextCancel(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := bus.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewNotify(t *testing.T) {
	a := NewNotify("hello", types.SeverityInfo, NotifyShort)
	b := NewNotify("hello", types.SeverityInfo, NotifyShort)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	n := NewErrorNotify(assert.AnError)
	assert.Equal(t, types.SeverityError, n.Severity)
	assert.ErrorIs(t, n.Err, assert.AnError)
}

func TestBusReadySignalsSend(t *testing.T) {
	bus := NewBus()
	bus.Publish(PeerCount{Count: 1})
	bus.Publish(PeerCount{Count: 2})

	select {
	case <-bus.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready not signalled")
	}

	var got []int
	for {
		e, ok := bus.TryRecv()
		if !ok {
			break
		}
		got = append(got, e.(PeerCount).Count)
	}
	assert.Equal(t, []int{1, 2}, got)
}
