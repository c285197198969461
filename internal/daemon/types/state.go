package types

import "sync"

// Balance is the aggregate wallet balance in sompi.
type Balance struct {
	Mature  uint64 `json:"mature"`
	Pending uint64 `json:"pending"`
}

// StorageInfo is the on-disk footprint of the node data directory.
type StorageInfo struct {
	Path  string `json:"path"`
	Bytes uint64 `json:"bytes"`
	Human string `json:"human"`
}

// NodeSnapshot is a point-in-time copy of NodeState.
type NodeSnapshot struct {
	State             NodeServiceState `json:"state"`
	IsOpen            bool             `json:"isOpen"`
	IsConnected       bool             `json:"isConnected"`
	IsSynced          bool             `json:"isSynced"`
	SyncState         SyncState        `json:"syncState"`
	ServerVersion     string           `json:"serverVersion,omitempty"`
	URL               string           `json:"url,omitempty"`
	NetworkID         Network          `json:"networkId,omitempty"`
	DaaScore          uint64           `json:"daaScore"`
	PeerCount         int              `json:"peerCount"`
	MempoolSize       int              `json:"mempoolSize"`
	NetworkTPS        float64          `json:"networkTps"`
	BlockReward       uint64           `json:"blockReward"`
	CirculatingSupply uint64           `json:"circulatingSupply"`
	MaxSupply         uint64           `json:"maxSupply"`
	Hashrate          uint64           `json:"hashrate"`
	Difficulty        uint64           `json:"difficulty"`
	Balance           Balance          `json:"balance"`
	DiscoveredUTXOs   uint64           `json:"discoveredUtxos"`
	Storage           StorageInfo      `json:"storage"`
	Error             string           `json:"error,omitempty"`
}

// NodeState is the observable node snapshot. The Node Service is its only
// writer; readers may call Snapshot at any time. Each setter holds the lock
// for one mutation, so a snapshot is consistent per field but may be torn
// across fields, except URL and network id which are written together.
type NodeState struct {
	mu sync.RWMutex
	s  NodeSnapshot
}

// NewNodeState creates a state in the idle position.
func NewNodeState() *NodeState {
	return &NodeState{s: NodeSnapshot{State: NodeStateIdle}}
}

// Snapshot returns a copy of the current state.
func (n *NodeState) Snapshot() NodeSnapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.s
}

func (n *NodeState) update(fn func(s *NodeSnapshot)) {
	n.mu.Lock()
	fn(&n.s)
	n.mu.Unlock()
}

func (n *NodeState) State() NodeServiceState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.s.State
}

func (n *NodeState) SetState(st NodeServiceState) {
	n.update(func(s *NodeSnapshot) { s.State = st })
}

func (n *NodeState) IsConnected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.s.IsConnected
}

// SetConnected marks the node connected and records url and network in one
// critical section. It reports false if the state was already connected.
func (n *NodeState) SetConnected(url string, network Network) bool {
	changed := false
	n.update(func(s *NodeSnapshot) {
		if s.IsConnected {
			return
		}
		changed = true
		s.IsConnected = true
		s.URL = url
		s.NetworkID = network
		s.Error = ""
	})
	return changed
}

// SetDisconnected clears every connection-scoped field. It reports false if
// the state was not connected.
func (n *NodeState) SetDisconnected() bool {
	changed := false
	n.update(func(s *NodeSnapshot) {
		changed = s.IsConnected
		s.IsConnected = false
		s.IsSynced = false
		s.SyncState = SyncState{}
		s.ServerVersion = ""
		s.URL = ""
		s.NetworkID = ""
		s.DaaScore = 0
		s.PeerCount = 0
		s.MempoolSize = 0
	})
	return changed
}

func (n *NodeState) SetOpen(open bool) {
	n.update(func(s *NodeSnapshot) { s.IsOpen = open })
}

func (n *NodeState) IsOpen() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.s.IsOpen
}

func (n *NodeState) SetSyncState(st SyncState) {
	n.update(func(s *NodeSnapshot) {
		if st.IsSynced() {
			st = st.Cleared()
		}
		s.SyncState = st
		s.IsSynced = st.IsSynced()
	})
}

// SetServerStatus records the server version and sync flag.
func (n *NodeState) SetServerStatus(version string, synced bool) {
	n.update(func(s *NodeSnapshot) {
		s.ServerVersion = version
		s.IsSynced = synced
	})
}

func (n *NodeState) SetDaaScore(v uint64) {
	n.update(func(s *NodeSnapshot) { s.DaaScore = v })
}

func (n *NodeState) SetPeerCount(v int) {
	n.update(func(s *NodeSnapshot) { s.PeerCount = v })
}

func (n *NodeState) SetMempoolSize(v int) {
	n.update(func(s *NodeSnapshot) { s.MempoolSize = v })
}

func (n *NodeState) SetNetworkTPS(v float64) {
	n.update(func(s *NodeSnapshot) { s.NetworkTPS = v })
}

func (n *NodeState) SetBlockReward(v uint64) {
	n.update(func(s *NodeSnapshot) { s.BlockReward = v })
}

// SetSupply records circulating and max supply together.
func (n *NodeState) SetSupply(circulating, max uint64) {
	n.update(func(s *NodeSnapshot) {
		s.CirculatingSupply = circulating
		s.MaxSupply = max
	})
}

func (n *NodeState) SetHashrate(v uint64) {
	n.update(func(s *NodeSnapshot) { s.Hashrate = v })
}

func (n *NodeState) SetDifficulty(v uint64) {
	n.update(func(s *NodeSnapshot) { s.Difficulty = v })
}

func (n *NodeState) SetBalance(b Balance) {
	n.update(func(s *NodeSnapshot) { s.Balance = b })
}

func (n *NodeState) AddDiscoveredUTXOs(v uint64) {
	n.update(func(s *NodeSnapshot) { s.DiscoveredUTXOs += v })
}

func (n *NodeState) SetStorage(info StorageInfo) {
	n.update(func(s *NodeSnapshot) { s.Storage = info })
}

func (n *NodeState) SetError(msg string) {
	n.update(func(s *NodeSnapshot) { s.Error = msg })
}

func (n *NodeState) Error() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.s.Error
}
