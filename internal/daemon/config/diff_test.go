package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

func TestDiffNode(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*NodeSettings)
		wantRestart bool
		wantHot     bool
		wantBridge  bool
	}{
		{"unchanged", func(*NodeSettings) {}, false, false, false},
		{"kind", func(n *NodeSettings) { n.Kind = types.NodeKindRemote }, true, false, false},
		{"url", func(n *NodeSettings) { n.WrpcURL = "ws://other" }, true, false, false},
		{"grpc iface", func(n *NodeSettings) { n.GrpcInterface.Kind = InterfaceAny }, true, false, false},
		{"borsh toggle", func(n *NodeSettings) { n.EnableWrpcBorsh = true }, true, false, false},
		{"bridge only", func(n *NodeSettings) { n.EnableBridge = true }, false, true, true},
		{"disabled args ignored", func(n *NodeSettings) { n.DaemonArgs = "--loglevel=debug" }, false, false, false},
		{"enabled args", func(n *NodeSettings) {
			n.DaemonArgsEnable = true
			n.DaemonArgs = "--loglevel=debug"
		}, true, false, false},
		{"bridge and restart", func(n *NodeSettings) {
			n.EnableBridge = true
			n.EnableUpnp = false
		}, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := DefaultNodeSettings()
			updated := old
			tt.modify(&updated)

			v := DiffNode(old, updated)
			assert.Equal(t, tt.wantRestart, v.RestartRequired, "restart")
			assert.Equal(t, tt.wantHot, v.HotApply, "hot")
			assert.Equal(t, tt.wantBridge, v.BridgeToggled, "bridge")
		})
	}
}

func TestDiffHotFields(t *testing.T) {
	old := DefaultSettings()
	updated := *old
	updated.UserInterface.Theme = "light"
	updated.Bridge.SharesPerMin = 30

	v := Diff(old, &updated)
	assert.False(t, v.RestartRequired)
	assert.True(t, v.HotApply)
	assert.True(t, v.BridgeChanged)
	assert.ElementsMatch(t, []string{"bridge", "user_interface"}, v.Fields)
	assert.True(t, v.Changed())
}
