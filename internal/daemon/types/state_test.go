package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeStateConnectAlternation(t *testing.T) {
	s := NewNodeState()
	assert.Equal(t, NodeStateIdle, s.State())

	assert.True(t, s.SetConnected("127.0.0.1", NetworkMainnet))
	assert.False(t, s.SetConnected("10.0.0.1", NetworkTestnet), "second connect must be ignored")

	snap := s.Snapshot()
	assert.Equal(t, "127.0.0.1", snap.URL)
	assert.Equal(t, NetworkMainnet, snap.NetworkID)

	s.SetDaaScore(42)
	s.SetPeerCount(8)
	assert.True(t, s.SetDisconnected())
	assert.False(t, s.SetDisconnected())

	snap = s.Snapshot()
	assert.False(t, snap.IsConnected)
	assert.Empty(t, snap.URL)
	assert.Zero(t, snap.DaaScore)
	assert.Zero(t, snap.PeerCount)
}

func TestNodeStateSyncedClearsProgress(t *testing.T) {
	s := NewNodeState()
	s.SetSyncState(SyncState{Phase: SyncBlocks, Progress: 55})
	assert.False(t, s.Snapshot().IsSynced)

	s.SetSyncState(SyncState{Phase: SyncSynced, Progress: 100, Processed: 3, Total: 3})
	snap := s.Snapshot()
	assert.True(t, snap.IsSynced)
	assert.Equal(t, SyncState{Phase: SyncSynced}, snap.SyncState)
}

func TestSyncPhaseOrdering(t *testing.T) {
	phases := []SyncPhase{SyncProof, SyncHeaders, SyncBlocks, SyncUtxoSync, SyncUtxoResync, SyncTrustSync, SyncSynced}
	for i := 1; i < len(phases); i++ {
		assert.Less(t, phases[i-1], phases[i])
	}
}

func TestParseNodeKind(t *testing.T) {
	tests := []struct {
		in      string
		want    NodeKind
		wantErr bool
	}{
		{"disabled", NodeKindDisabled, false},
		{" Remote ", NodeKindRemote, false},
		{"integrated-daemon", NodeKindIntegratedDaemon, false},
		{"docker", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNodeKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
