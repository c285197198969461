// Package metrics exposes the node snapshot and the bridge restart count as
// prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

const namespace = "wagsup"

// Metrics holds the supervisor collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	connected   prometheus.Gauge
	synced      prometheus.Gauge
	nodeState   *prometheus.GaugeVec
	daaScore    prometheus.Gauge
	peers       prometheus.Gauge
	mempool     prometheus.Gauge
	tps         prometheus.Gauge
	blockReward prometheus.Gauge
	circulating prometheus.Gauge
	maxSupply   prometheus.Gauge
	hashrate    prometheus.Gauge
	difficulty  prometheus.Gauge
	storage     prometheus.Gauge

	bridgeRunning  prometheus.Gauge
	bridgeRestarts prometheus.Counter
	notifications  *prometheus.CounterVec

	mu           sync.Mutex
	lastRestarts int
}

var nodeStates = []types.NodeServiceState{
	types.NodeStateIdle,
	types.NodeStateStartingDaemon,
	types.NodeStateConnecting,
	types.NodeStateAttached,
	types.NodeStateStopping,
	types.NodeStateDisabled,
}

func gauge(subsystem, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connected:   gauge("node", "connected", "Whether the RPC connection is up (1=yes, 0=no)"),
		synced:      gauge("node", "synced", "Whether the node reports itself synced (1=yes, 0=no)"),
		daaScore:    gauge("node", "daa_score", "Virtual DAA score of the node"),
		peers:       gauge("node", "peers", "Connected peers"),
		mempool:     gauge("node", "mempool_size", "Transactions in the mempool"),
		tps:         gauge("network", "tps", "Transactions per second processed by the node"),
		blockReward: gauge("network", "block_reward_sompi", "Current block reward in sompi"),
		circulating: gauge("network", "circulating_supply_sompi", "Circulating supply in sompi"),
		maxSupply:   gauge("network", "max_supply_sompi", "Maximum supply in sompi"),
		hashrate:    gauge("network", "hashrate", "Estimated network hashes per second"),
		difficulty:  gauge("network", "difficulty", "Network difficulty"),
		storage:     gauge("node", "storage_bytes", "Size of the node data directory"),
		nodeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "service_state",
			Help:      "Node service state (1 for the current state)",
		}, []string{"state"}),
		bridgeRunning: gauge("bridge", "running", "Whether the stratum bridge is running (1=yes, 0=no)"),
		bridgeRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "restarts_total",
			Help:      "Total number of stratum bridge restarts",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "User notifications by severity",
		}, []string{"severity"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.connected, m.synced, m.nodeState, m.daaScore, m.peers, m.mempool,
			m.tps, m.blockReward, m.circulating, m.maxSupply, m.hashrate,
			m.difficulty, m.storage, m.bridgeRunning, m.bridgeRestarts, m.notifications,
		)
	}
	return m
}

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

// Observe updates the collectors from a bus event.
func (m *Metrics) Observe(e events.Event) {
	if m == nil {
		return
	}

	switch ev := e.(type) {
	case events.NodeConnected:
		m.connected.Set(1)
	case events.NodeDisconnected:
		m.connected.Set(0)
		m.synced.Set(0)
		m.daaScore.Set(0)
		m.peers.Set(0)
		m.mempool.Set(0)
	case events.NodeStateChanged:
		for _, st := range nodeStates {
			boolGauge(m.nodeState.WithLabelValues(string(st)), st == ev.State)
		}
	case events.ServerStatus:
		boolGauge(m.synced, ev.Synced)
	case events.SyncStateChanged:
		boolGauge(m.synced, ev.State.IsSynced())
	case events.DaaScoreChanged:
		m.daaScore.Set(float64(ev.Score))
	case events.PeerCount:
		m.peers.Set(float64(ev.Count))
	case events.MempoolSize:
		m.mempool.Set(float64(ev.Count))
	case events.NetworkTPSUpdate:
		m.tps.Set(ev.TPS)
	case events.BlockRewardUpdate:
		m.blockReward.Set(float64(ev.Sompi))
	case events.CoinSupplyUpdate:
		m.circulating.Set(float64(ev.Circulating))
		m.maxSupply.Set(float64(ev.Max))
	case events.HashrateUpdate:
		m.hashrate.Set(float64(ev.HashesPerSecond))
	case events.DifficultyUpdate:
		m.difficulty.Set(float64(ev.Difficulty))
	case events.StorageUpdate:
		m.storage.Set(float64(ev.Info.Bytes))
	case events.BridgeStatus:
		boolGauge(m.bridgeRunning, ev.Running)
		// Restarts is cumulative per bridge supervisor; only count increments.
		m.mu.Lock()
		if ev.Restarts > m.lastRestarts {
			m.bridgeRestarts.Add(float64(ev.Restarts - m.lastRestarts))
		}
		m.lastRestarts = ev.Restarts
		m.mu.Unlock()
	case events.Notify:
		m.notifications.WithLabelValues(string(ev.Severity)).Inc()
	}
}
