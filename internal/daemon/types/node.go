// internal/daemon/types/node.go
package types

import (
	"fmt"
	"strings"
)

// NodeKind selects how the supervisor reaches a node.
type NodeKind string

const (
	NodeKindDisabled         NodeKind = "disabled"
	NodeKindRemote           NodeKind = "remote"
	NodeKindIntegratedDaemon NodeKind = "integrated-daemon"
)

// ParseNodeKind parses a node kind name.
func ParseNodeKind(s string) (NodeKind, error) {
	switch k := NodeKind(strings.ToLower(strings.TrimSpace(s))); k {
	case NodeKindDisabled, NodeKindRemote, NodeKindIntegratedDaemon:
		return k, nil
	}
	return "", fmt.Errorf("unknown node kind %q (want disabled, remote or integrated-daemon)", s)
}

// ConnectionConfigKind selects how a remote endpoint is chosen.
type ConnectionConfigKind string

const (
	ConnectionPublicServerRandom ConnectionConfigKind = "public-server-random"
	// ConnectionPublicServerCustom is an alias of ConnectionCustom.
	ConnectionPublicServerCustom ConnectionConfigKind = "public-server-custom"
	ConnectionCustom             ConnectionConfigKind = "custom"
)

// Encoding is the wRPC payload encoding.
type Encoding string

const (
	EncodingBorsh Encoding = "borsh"
	EncodingJSON  Encoding = "json"
)

// DefaultPort returns the node's default wRPC listen port for the encoding.
func (e Encoding) DefaultPort() int {
	if e == EncodingJSON {
		return DefaultWrpcJSONPort
	}
	return DefaultWrpcBorshPort
}

// Default node ports.
const (
	DefaultGrpcPort      = 12110
	DefaultWrpcBorshPort = 13110
	DefaultWrpcJSONPort  = 14110
)

// Network identifies the chain the node follows.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// String returns the display form used in NodeConnected events.
func (n Network) String() string {
	switch n {
	case NetworkMainnet:
		return "Mainnet"
	case NetworkTestnet:
		return "Testnet"
	}
	return string(n)
}

// ParseNetworkID maps a node network id such as "waglayla-mainnet" or
// "testnet-10" onto a Network.
func ParseNetworkID(id string) Network {
	id = strings.ToLower(id)
	if strings.Contains(id, "testnet") {
		return NetworkTestnet
	}
	return NetworkMainnet
}

// NodeServiceState is the Node Service state machine position.
type NodeServiceState string

const (
	NodeStateIdle           NodeServiceState = "idle"
	NodeStateStartingDaemon NodeServiceState = "starting-daemon"
	NodeStateConnecting     NodeServiceState = "connecting"
	NodeStateAttached       NodeServiceState = "attached"
	NodeStateStopping       NodeServiceState = "stopping"
	NodeStateDisabled       NodeServiceState = "disabled"
)

// Severity classifies user-visible notifications.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)
