package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

func TestObserveNodeEvents(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe(events.NodeConnected{URL: "ws://127.0.0.1:14110", Network: types.NetworkMainnet})
	m.Observe(events.DaaScoreChanged{Score: 1234})
	m.Observe(events.PeerCount{Count: 8})
	m.Observe(events.CoinSupplyUpdate{Circulating: 10, Max: 20})
	m.Observe(events.SyncStateChanged{State: types.SyncState{Phase: types.SyncSynced}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.connected))
	assert.Equal(t, 1234.0, testutil.ToFloat64(m.daaScore))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.peers))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.maxSupply))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.synced))

	m.Observe(events.NodeDisconnected{})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connected))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.daaScore))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.synced))
}

func TestObserveNodeState(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe(events.NodeStateChanged{State: types.NodeStateConnecting})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeState.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.nodeState.WithLabelValues("idle")))

	m.Observe(events.NodeStateChanged{State: types.NodeStateAttached})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.nodeState.WithLabelValues("connecting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeState.WithLabelValues("attached")))
}

func TestObserveBridgeRestarts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe(events.BridgeStatus{Running: true, PID: 10})
	m.Observe(events.BridgeStatus{Running: false, PID: 10})
	m.Observe(events.BridgeStatus{Running: true, PID: 11, Restarts: 1})
	m.Observe(events.BridgeStatus{Running: true, PID: 12, Restarts: 3})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.bridgeRestarts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bridgeRunning))

	// A new supervisor starts counting from zero again.
	m.Observe(events.BridgeStatus{Running: true, PID: 20})
	m.Observe(events.BridgeStatus{Running: true, PID: 21, Restarts: 1})
	assert.Equal(t, 4.0, testutil.ToFloat64(m.bridgeRestarts))

	n, err := testutil.GatherAndCount(reg, "wagsup_bridge_restarts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe(events.PeerCount{Count: 1}) })
}
