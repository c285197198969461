package types

import "fmt"

// SyncPhase orders the node synchronisation phases.
type SyncPhase int

const (
	SyncUnknown SyncPhase = iota
	SyncProof
	SyncHeaders
	SyncBlocks
	SyncUtxoSync
	SyncUtxoResync
	SyncTrustSync
	SyncSynced
)

func (p SyncPhase) String() string {
	switch p {
	case SyncProof:
		return "proof"
	case SyncHeaders:
		return "headers"
	case SyncBlocks:
		return "blocks"
	case SyncUtxoSync:
		return "utxo-sync"
	case SyncUtxoResync:
		return "utxo-resync"
	case SyncTrustSync:
		return "trust-sync"
	case SyncSynced:
		return "synced"
	}
	return "unknown"
}

// SyncState is the node synchronisation progress. Progress fields are only
// meaningful for the phase that carries them.
type SyncState struct {
	Phase SyncPhase `json:"phase"`
	// Progress is a percentage for Headers and Blocks.
	Progress float64 `json:"progress,omitempty"`
	// Processed/Total carry UtxoSync chunks and TrustSync counters.
	Processed uint64 `json:"processed,omitempty"`
	Total     uint64 `json:"total,omitempty"`
}

// IsSynced reports whether the phase is terminal.
func (s SyncState) IsSynced() bool {
	return s.Phase == SyncSynced
}

// Cleared returns the state with progress fields removed.
func (s SyncState) Cleared() SyncState {
	return SyncState{Phase: s.Phase}
}

func (s SyncState) String() string {
	switch s.Phase {
	case SyncHeaders, SyncBlocks:
		return fmt.Sprintf("%s %.1f%%", s.Phase, s.Progress)
	case SyncUtxoSync, SyncTrustSync:
		return fmt.Sprintf("%s %d/%d", s.Phase, s.Processed, s.Total)
	}
	return s.Phase.String()
}
