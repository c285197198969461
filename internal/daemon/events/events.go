// Package events defines the supervisor event taxonomy and the unbounded
// event bus that carries it to the single consumer.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// Event is a value carried by the Bus. Concrete event types are plain
// structs; consumers switch on the dynamic type.
type Event interface {
	// Kind returns a stable short name for logging.
	Kind() string
}

type NodeConnected struct {
	URL     string
	Network types.Network
}

type NodeDisconnected struct{}

type NodeStateChanged struct {
	State types.NodeServiceState
}

type SyncStateChanged struct {
	State types.SyncState
}

type ServerStatus struct {
	Synced  bool
	Version string
	URL     string
	Network types.Network
}

type PeerCount struct {
	Count int
}

type MempoolSize struct {
	Count int
}

type DaaScoreChanged struct {
	Score uint64
}

// BlockRewardUpdate carries the current block reward in sompi.
type BlockRewardUpdate struct {
	Sompi uint64
}

// CoinSupplyUpdate carries circulating and max supply in sompi.
type CoinSupplyUpdate struct {
	Circulating uint64
	Max         uint64
}

type HashrateUpdate struct {
	HashesPerSecond uint64
}

type DifficultyUpdate struct {
	Difficulty uint64
}

type NetworkTPSUpdate struct {
	TPS float64
}

type StorageUpdate struct {
	Info types.StorageInfo
}

type BridgeStatus struct {
	Running  bool
	PID      int
	Restarts int
}

// WalletEvent wraps an opaque event produced by the wallet subsystem.
type WalletEvent struct {
	Payload any
}

// Notify is a user-visible notification.
type Notify struct {
	ID       string
	Message  string
	Severity types.Severity
	Duration time.Duration
	// Err is the underlying error for error notifications.
	Err error
}

// Exit is published once when the supervisor has shut down.
type Exit struct{}

func (NodeConnected) Kind() string     { return "node-connected" }
func (NodeDisconnected) Kind() string  { return "node-disconnected" }
func (NodeStateChanged) Kind() string  { return "node-state" }
func (SyncStateChanged) Kind() string  { return "sync-state" }
func (ServerStatus) Kind() string      { return "server-status" }
func (PeerCount) Kind() string         { return "peer-count" }
func (MempoolSize) Kind() string       { return "mempool-size" }
func (DaaScoreChanged) Kind() string   { return "daa-score" }
func (BlockRewardUpdate) Kind() string { return "block-reward" }
func (CoinSupplyUpdate) Kind() string  { return "coin-supply" }
func (HashrateUpdate) Kind() string    { return "hashrate" }
func (DifficultyUpdate) Kind() string  { return "difficulty" }
func (NetworkTPSUpdate) Kind() string  { return "network-tps" }
func (StorageUpdate) Kind() string     { return "storage" }
func (BridgeStatus) Kind() string      { return "bridge-status" }
func (WalletEvent) Kind() string       { return "wallet" }
func (Notify) Kind() string            { return "notify" }
func (Exit) Kind() string              { return "exit" }

// Default notification durations.
const (
	NotifyShort = 3 * time.Second
	NotifyLong  = 10 * time.Second
)

// NewNotify builds a notification with a fresh id.
func NewNotify(message string, severity types.Severity, duration time.Duration) Notify {
	return Notify{
		ID:       uuid.NewString(),
		Message:  message,
		Severity: severity,
		Duration: duration,
	}
}

// NewErrorNotify builds an error notification carrying err.
func NewErrorNotify(err error) Notify {
	n := NewNotify(err.Error(), types.SeverityError, NotifyLong)
	n.Err = err
	return n
}
