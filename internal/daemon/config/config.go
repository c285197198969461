// internal/daemon/config/config.go
package config

import (
	"net"
	"strconv"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// Revision is the settings document revision this build understands. A
// document carrying any other revision is replaced by defaults.
const Revision = "3"

// Settings is the persisted supervisor settings document.
// Priority: defaults < settings file < environment variables < CLI flags
type Settings struct {
	Revision      string                `toml:"revision"`
	Initialized   bool                  `toml:"initialized"`
	Node          NodeSettings          `toml:"node"`
	Bridge        BridgeSettings        `toml:"bridge"`
	UserInterface UserInterfaceSettings `toml:"user_interface"`
	LanguageCode  string                `toml:"language_code"`
	Features      FeatureSettings       `toml:"features"`
	Developer     DeveloperSettings     `toml:"developer"`
}

// NodeSettings selects and parameterises the node the supervisor reaches.
// Every field except EnableBridge is restart-sensitive.
type NodeSettings struct {
	Kind           types.NodeKind             `toml:"kind"`
	ConnectionKind types.ConnectionConfigKind `toml:"connection_config_kind"`
	Network        types.Network              `toml:"network"`

	WrpcURL      string         `toml:"wrpc_url"`
	WrpcEncoding types.Encoding `toml:"wrpc_encoding"`

	EnableWrpcBorsh bool             `toml:"enable_wrpc_borsh"`
	EnableWrpcJSON  bool             `toml:"enable_wrpc_json"`
	EnableGrpc      bool             `toml:"enable_grpc"`
	GrpcInterface   NetworkInterface `toml:"grpc_network_interface"`
	EnableUpnp      bool             `toml:"enable_upnp"`

	EnableBridge bool `toml:"enable_bridge"`

	DaemonArgsEnable bool   `toml:"daemon_args_enable"`
	DaemonArgs       string `toml:"daemon_args"`

	DataDirEnable bool   `toml:"data_dir_enable"`
	DataDir       string `toml:"data_dir"`

	// RAMScale is passed to the daemon; 0 selects a value from host memory.
	RAMScale float64 `toml:"ram_scale"`
}

// InterfaceKind selects a bind address for a node listener.
type InterfaceKind string

const (
	InterfaceLocal  InterfaceKind = "local"
	InterfaceAny    InterfaceKind = "any"
	InterfaceCustom InterfaceKind = "custom"
)

// NetworkInterface is a listener bind address.
type NetworkInterface struct {
	Kind   InterfaceKind `toml:"kind"`
	Custom string        `toml:"custom"`
}

// Address returns host:port for the interface, using port when the custom
// address carries none.
func (n NetworkInterface) Address(port int) string {
	switch n.Kind {
	case InterfaceAny:
		return net.JoinHostPort("0.0.0.0", strconv.Itoa(port))
	case InterfaceCustom:
		if _, _, err := net.SplitHostPort(n.Custom); err == nil {
			return n.Custom
		}
		return net.JoinHostPort(n.Custom, strconv.Itoa(port))
	}
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// BridgeSettings configures the stratum bridge. It is written as a YAML
// document next to the bridge binary.
type BridgeSettings struct {
	StratumPort     string `toml:"stratum_port" yaml:"stratum_port"`
	NodeAddress     string `toml:"node_address" yaml:"waglaylad_address"`
	MinShareDiff    uint64 `toml:"min_share_diff" yaml:"min_share_diff"`
	VarDiff         bool   `toml:"var_diff" yaml:"var_diff"`
	SharesPerMin    uint32 `toml:"shares_per_min" yaml:"shares_per_min"`
	VarDiffStats    bool   `toml:"var_diff_stats" yaml:"var_diff_stats"`
	SoloMining      bool   `toml:"solo_mining" yaml:"solo_mining"`
	BlockWaitTime   string `toml:"block_wait_time" yaml:"block_wait_time"`
	ExtranonceSize  uint8  `toml:"extranonce_size" yaml:"extranonce_size"`
	LogToFile       bool   `toml:"log_to_file" yaml:"log_to_file"`
	PrometheusPort  string `toml:"prom_port" yaml:"prom_port"`
	PrintStats      bool   `toml:"print_stats" yaml:"print_stats"`
	HealthCheckPort string `toml:"health_check_port" yaml:"health_check_port"`
}

// UserInterfaceSettings are hot settings consumed outside the supervisor,
// except the coinbase notification toggle.
type UserInterfaceSettings struct {
	Theme                       string  `toml:"theme"`
	Scale                       float64 `toml:"scale"`
	EnableCoinbaseNotifications bool    `toml:"enable_coinbase_notifications"`
}

// FeatureSettings toggles optional supervisor services.
type FeatureSettings struct {
	EnableStats        bool `toml:"enable_stats"`
	EnableStatsHistory bool `toml:"enable_stats_history"`
	// StatsHistoryLimit bounds the number of stored samples.
	StatsHistoryLimit  int  `toml:"stats_history_limit"`
	EnableStorageTrack bool `toml:"enable_storage_tracker"`
}

// DeveloperSettings holds operator-level options of the launcher.
type DeveloperSettings struct {
	LogLevel      string `toml:"log_level"`
	MetricsListen string `toml:"metrics_listen"`
	// DaemonBinary overrides the node daemon executable lookup.
	DaemonBinary string `toml:"daemon_binary"`
}

// DefaultSettings returns a settings document with defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Revision:    Revision,
		Initialized: false,
		Node:        DefaultNodeSettings(),
		Bridge:      DefaultBridgeSettings(),
		UserInterface: UserInterfaceSettings{
			Theme:                       "dark",
			Scale:                       1.0,
			EnableCoinbaseNotifications: false,
		},
		LanguageCode: "en",
		Features: FeatureSettings{
			EnableStats:        true,
			EnableStatsHistory: true,
			StatsHistoryLimit:  86400,
			EnableStorageTrack: true,
		},
		Developer: DeveloperSettings{
			LogLevel: "info",
		},
	}
}

// DefaultNodeSettings returns node settings for a fresh installation.
func DefaultNodeSettings() NodeSettings {
	return NodeSettings{
		Kind:            types.NodeKindDisabled,
		ConnectionKind:  types.ConnectionPublicServerRandom,
		Network:         types.NetworkMainnet,
		WrpcURL:         "127.0.0.1",
		WrpcEncoding:    types.EncodingJSON,
		EnableWrpcBorsh: false,
		EnableWrpcJSON:  false,
		EnableGrpc:      true,
		GrpcInterface:   NetworkInterface{Kind: InterfaceLocal},
		EnableUpnp:      true,
		EnableBridge:    false,
	}
}

// DefaultBridgeSettings returns the stratum bridge defaults.
func DefaultBridgeSettings() BridgeSettings {
	return BridgeSettings{
		StratumPort:    ":5555",
		NodeAddress:    net.JoinHostPort("localhost", strconv.Itoa(types.DefaultGrpcPort)),
		MinShareDiff:   4096,
		VarDiff:        true,
		SharesPerMin:   20,
		SoloMining:     false,
		BlockWaitTime:  "3s",
		ExtranonceSize: 0,
		LogToFile:      true,
		PrometheusPort: ":2114",
		PrintStats:     true,
	}
}
