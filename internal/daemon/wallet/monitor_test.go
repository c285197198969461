package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/rpc"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// scriptedClient answers calls from a mutable response table.
type scriptedClient struct {
	mu        sync.Mutex
	responses map[string]any
	states    chan rpc.StateEvent
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{
		responses: map[string]any{},
		states:    make(chan rpc.StateEvent, 8),
	}
}

func (c *scriptedClient) set(method string, v any) {
	c.mu.Lock()
	c.responses[method] = v
	c.mu.Unlock()
}

func (c *scriptedClient) Kind() rpc.Kind                                    { return rpc.KindWrpc }
func (c *scriptedClient) URL() string                                       { return "ws://127.0.0.1:14110" }
func (c *scriptedClient) Encoding() types.Encoding                          { return types.EncodingJSON }
func (c *scriptedClient) Connect(context.Context, rpc.ConnectOptions) error { return nil }
func (c *scriptedClient) Disconnect(context.Context) error                  { return nil }
func (c *scriptedClient) IsConnected() bool                                 { return true }
func (c *scriptedClient) States() <-chan rpc.StateEvent                     { return c.states }

func (c *scriptedClient) Call(_ context.Context, method string, _, result any) error {
	c.mu.Lock()
	v, ok := c.responses[method]
	c.mu.Unlock()
	if !ok {
		return &rpc.RPCError{Method: method, Message: "not scripted"}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func nextEvent(t *testing.T, m *Monitor) Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for wallet event")
		return nil
	}
}

// waitFor skips events until one of type T arrives.
func waitFor[T Event](t *testing.T, m *Monitor) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if v, ok := ev.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func serverInfo(synced bool, daa uint64) rpc.ServerInfo {
	return rpc.ServerInfo{ServerVersion: "0.3.1", NetworkID: "mainnet", IsSynced: synced, VirtualDaa: daa}
}

func TestMonitorStartRequiresBind(t *testing.T) {
	m := NewMonitor(MonitorConfig{})
	assert.ErrorIs(t, m.Start(context.Background()), ErrNotBound)
	assert.NoError(t, m.Stop(context.Background()))
}

func TestMonitorConnectLifecycle(t *testing.T) {
	c := newScriptedClient()
	c.set(rpc.MethodGetServerInfo, serverInfo(false, 10))
	c.set(rpc.MethodGetBlockDagInfo, rpc.BlockDagInfo{HeaderCount: 200, BlockCount: 50})

	m := NewMonitor(MonitorConfig{PollInterval: 20 * time.Millisecond})
	require.NoError(t, m.Bind(c))
	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Bind(c), ErrRunning)

	c.states <- rpc.StateEvent{State: rpc.StateConnected, URL: c.URL()}

	conn, ok := nextEvent(t, m).(Connect)
	require.True(t, ok, "first event is Connect")
	assert.Equal(t, c.URL(), conn.URL)
	assert.Equal(t, types.NetworkMainnet, conn.Network)

	status := waitFor[ServerStatus](t, m)
	assert.False(t, status.IsSynced)
	assert.Equal(t, "0.3.1", status.ServerVersion)

	st := waitFor[SyncState](t, m)
	assert.Equal(t, types.SyncBlocks, st.State.Phase)
	assert.InDelta(t, 25.0, st.State.Progress, 0.01)

	c.set(rpc.MethodGetServerInfo, serverInfo(true, 20))
	st = waitFor[SyncState](t, m)
	assert.True(t, st.State.IsSynced())
	waitFor[UtxoProcStart](t, m)

	c.states <- rpc.StateEvent{State: rpc.StateDisconnected, URL: c.URL()}
	waitFor[UtxoProcStop](t, m)
	waitFor[Disconnect](t, m)

	require.NoError(t, m.Stop(context.Background()))
	require.NoError(t, m.Bind(c))
}

func TestMonitorDuplicateConnectIgnored(t *testing.T) {
	c := newScriptedClient()
	c.set(rpc.MethodGetServerInfo, serverInfo(true, 1))

	m := NewMonitor(MonitorConfig{PollInterval: time.Hour})
	require.NoError(t, m.Bind(c))
	require.NoError(t, m.Start(context.Background()))

	c.states <- rpc.StateEvent{State: rpc.StateConnected, URL: c.URL()}
	c.states <- rpc.StateEvent{State: rpc.StateConnected, URL: c.URL()}
	c.states <- rpc.StateEvent{State: rpc.StateDisconnected, URL: c.URL()}

	var connects, disconnects int
	for disconnects == 0 {
		switch nextEvent(t, m).(type) {
		case Connect:
			connects++
		case Disconnect:
			disconnects++
		}
	}
	assert.Equal(t, 1, connects)
	require.NoError(t, m.Stop(context.Background()))
}

func TestMonitorStopEmitsDisconnect(t *testing.T) {
	c := newScriptedClient()
	c.set(rpc.MethodGetServerInfo, serverInfo(false, 1))
	c.set(rpc.MethodGetBlockDagInfo, rpc.BlockDagInfo{})

	m := NewMonitor(MonitorConfig{PollInterval: time.Hour})
	require.NoError(t, m.Bind(c))
	require.NoError(t, m.Start(context.Background()))
	c.states <- rpc.StateEvent{State: rpc.StateConnected, URL: c.URL()}
	waitFor[Connect](t, m)

	require.NoError(t, m.Stop(context.Background()))
	waitFor[Disconnect](t, m)
}

func TestMonitorUtxoMaturity(t *testing.T) {
	c := newScriptedClient()
	c.set(rpc.MethodGetServerInfo, serverInfo(true, 1000))

	utxo := func(tx string, amount, daa uint64, coinbase bool) rpc.UtxoByAddress {
		return rpc.UtxoByAddress{
			Address:   "waglayla:qq",
			Outpoint:  rpc.Outpoint{TransactionID: tx},
			UtxoEntry: rpc.UtxoEntry{Amount: amount, BlockDaaScore: daa, IsCoinbase: coinbase},
		}
	}
	c.set(rpc.MethodGetUtxosByAddresses, map[string]any{
		"entries": []rpc.UtxoByAddress{utxo("old", 500, 10, false)},
	})

	m := NewMonitor(MonitorConfig{
		PollInterval:     20 * time.Millisecond,
		Addresses:        []string{"waglayla:qq"},
		UserMaturity:     100,
		CoinbaseMaturity: 1000,
	})
	m.Open(nil)
	assert.True(t, m.IsOpen())
	require.NoError(t, m.Bind(c))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	c.states <- rpc.StateEvent{State: rpc.StateConnected, URL: c.URL()}

	d := waitFor[Discovery](t, m)
	assert.Equal(t, 1, d.Count)
	bal := waitFor[Balance](t, m)
	assert.Equal(t, Balance{Mature: 500}, bal, "already mature outputs count without a Maturity event")

	c.set(rpc.MethodGetUtxosByAddresses, map[string]any{
		"entries": []rpc.UtxoByAddress{utxo("old", 500, 10, false), utxo("cb", 700, 990, true)},
	})
	bal = waitFor[Balance](t, m)
	assert.Equal(t, Balance{Mature: 500, Pending: 700}, bal)

	c.set(rpc.MethodGetServerInfo, serverInfo(true, 1990))
	mat := waitFor[Maturity](t, m)
	assert.Equal(t, "cb", mat.Record.ID)
	assert.True(t, mat.Record.IsCoinbase)
	assert.False(t, mat.Record.IsChange)
	bal = waitFor[Balance](t, m)
	assert.Equal(t, Balance{Mature: 1200}, bal)
}

func TestEventNames(t *testing.T) {
	names := map[string]bool{}
	for _, ev := range []Event{
		Connect{}, Disconnect{}, ServerStatus{}, SyncState{}, DaaScoreChange{},
		UtxoProcStart{}, UtxoProcStop{}, Balance{}, Discovery{}, Maturity{},
	} {
		name := ev.Name()
		assert.False(t, names[name], fmt.Sprintf("duplicate name %s", name))
		names[name] = true
	}
}
