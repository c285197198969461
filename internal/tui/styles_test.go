package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

func TestBoxStyle_HasBorder(t *testing.T) {
	rendered := BoxStyle.Render("test")
	assert.Contains(t, rendered, "─")
}

func TestStateColor(t *testing.T) {
	assert.Equal(t, ColorSuccess, StateColor(types.NodeStateAttached))
	assert.Equal(t, ColorInfo, StateColor(types.NodeStateConnecting))
	assert.Equal(t, ColorWarning, StateColor(types.NodeStateStopping))
	assert.Equal(t, ColorMuted, StateColor(types.NodeStateIdle))
}

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, ColorError, SeverityColor(types.SeverityError))
	assert.Equal(t, ColorInfo, SeverityColor(types.SeverityInfo))
}

func TestPanelDisabled(t *testing.T) {
	out := Panel{Kind: types.NodeKindDisabled, Snapshot: types.NodeSnapshot{State: types.NodeStateDisabled}}.Render()
	assert.Contains(t, out, "waglayla supervisor")
	assert.Contains(t, out, "disabled")
	assert.NotContains(t, out, "endpoint")
}

func TestPanelAttached(t *testing.T) {
	snap := types.NodeSnapshot{
		State:             types.NodeStateAttached,
		IsConnected:       true,
		IsSynced:          true,
		URL:               "ws://127.0.0.1:14110",
		NetworkID:         types.NetworkMainnet,
		DaaScore:          1234567,
		PeerCount:         8,
		BlockReward:       150_000_000,
		CirculatingSupply: 10 * 100_000_000,
		MaxSupply:         20 * 100_000_000,
		Storage:           types.StorageInfo{Path: "/data", Human: "1.0 GiB"},
	}
	out := Panel{
		Kind:     types.NodeKindIntegratedDaemon,
		Snapshot: snap,
		Bridge:   &events.BridgeStatus{Running: true, PID: 42, Restarts: 1},
		Width:    80,
	}.Render()

	assert.Contains(t, out, "ws://127.0.0.1:14110")
	assert.Contains(t, out, "1,234,567")
	assert.Contains(t, out, "1.5 WALA")
	assert.Contains(t, out, "10 / 20 WALA")
	assert.Contains(t, out, "1.0 GiB")
	assert.Contains(t, out, "pid 42")
	assert.Contains(t, out, "synced")
}

func TestPanelError(t *testing.T) {
	snap := types.NodeSnapshot{State: types.NodeStateIdle, Error: "node daemon exited"}
	out := Panel{Kind: types.NodeKindIntegratedDaemon, Snapshot: snap}.Render()
	assert.Contains(t, out, "not connected")
	assert.Contains(t, out, "node daemon exited")
}
