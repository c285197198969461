// Package wallet defines the boundary between the supervisor and a wallet
// subsystem: the API the Node Service drives and the events it consumes.
package wallet

import (
	"context"
	"errors"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/rpc"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

var (
	// ErrNotBound is returned by Start when no RPC client has been bound.
	ErrNotBound = errors.New("wallet is not bound to an rpc client")
	// ErrRunning is returned by Bind while the wallet is started.
	ErrRunning = errors.New("wallet is running")
)

// API is what the Node Service needs from a wallet subsystem. Events are
// delivered on a single long-lived channel that survives Bind/Start/Stop
// cycles.
type API interface {
	// Bind attaches the wallet to a new RPC client. Only valid while stopped.
	Bind(client rpc.Client) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Events() <-chan Event
	// IsOpen reports whether a wallet is currently open.
	IsOpen() bool
	// Reload rescans the open wallet's UTXO set.
	Reload(ctx context.Context, reactivate bool) error
}

// Event is a wallet subsystem notification.
type Event interface {
	Name() string
}

// Connect is emitted when the bound RPC connection comes up.
type Connect struct {
	URL     string
	Network types.Network
}

// Disconnect is emitted when the bound RPC connection drops.
type Disconnect struct{}

// ServerStatus carries the node identity after connect and on change.
type ServerStatus struct {
	IsSynced      bool
	ServerVersion string
	URL           string
	Network       types.Network
}

// SyncState reports node synchronisation progress.
type SyncState struct {
	State types.SyncState
}

// DaaScoreChange reports the virtual DAA score.
type DaaScoreChange struct {
	Score uint64
}

// UtxoProcStart is emitted when the UTXO processor starts on a synced node.
type UtxoProcStart struct{}

// UtxoProcStop is emitted when the UTXO processor stops.
type UtxoProcStop struct{}

// Balance reports the open wallet balance in sompi.
type Balance struct {
	Mature  uint64
	Pending uint64
}

// Discovery reports newly seen UTXOs of the open wallet.
type Discovery struct {
	Count int
}

// Record describes a wallet transaction output.
type Record struct {
	ID         string
	Value      uint64
	DaaScore   uint64
	IsChange   bool
	IsCoinbase bool
}

// Maturity is emitted when a record becomes spendable.
type Maturity struct {
	Record Record
}

func (Connect) Name() string        { return "connect" }
func (Disconnect) Name() string     { return "disconnect" }
func (ServerStatus) Name() string   { return "server-status" }
func (SyncState) Name() string      { return "sync-state" }
func (DaaScoreChange) Name() string { return "daa-score-change" }
func (UtxoProcStart) Name() string  { return "utxo-proc-start" }
func (UtxoProcStop) Name() string   { return "utxo-proc-stop" }
func (Balance) Name() string        { return "balance" }
func (Discovery) Name() string      { return "discovery" }
func (Maturity) Name() string       { return "maturity" }
