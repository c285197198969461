// internal/daemon/config/file.go
package config

import "github.com/waglayla/waglayla-supervisor/internal/daemon/types"

// FileSettings represents the raw settings file contents.
// All fields are pointers to distinguish "not set" from "set to zero/false".
type FileSettings struct {
	Revision      *string                   `toml:"revision"`
	Initialized   *bool                     `toml:"initialized"`
	Node          FileNodeSettings          `toml:"node"`
	Bridge        FileBridgeSettings        `toml:"bridge"`
	UserInterface FileUserInterfaceSettings `toml:"user_interface"`
	LanguageCode  *string                   `toml:"language_code"`
	Features      FileFeatureSettings       `toml:"features"`
	Developer     FileDeveloperSettings     `toml:"developer"`
}

// FileNodeSettings is the TOML representation of NodeSettings.
type FileNodeSettings struct {
	Kind             *types.NodeKind             `toml:"kind"`
	ConnectionKind   *types.ConnectionConfigKind `toml:"connection_config_kind"`
	Network          *types.Network              `toml:"network"`
	WrpcURL          *string                     `toml:"wrpc_url"`
	WrpcEncoding     *types.Encoding             `toml:"wrpc_encoding"`
	EnableWrpcBorsh  *bool                       `toml:"enable_wrpc_borsh"`
	EnableWrpcJSON   *bool                       `toml:"enable_wrpc_json"`
	EnableGrpc       *bool                       `toml:"enable_grpc"`
	GrpcInterface    *NetworkInterface           `toml:"grpc_network_interface"`
	EnableUpnp       *bool                       `toml:"enable_upnp"`
	EnableBridge     *bool                       `toml:"enable_bridge"`
	DaemonArgsEnable *bool                       `toml:"daemon_args_enable"`
	DaemonArgs       *string                     `toml:"daemon_args"`
	DataDirEnable    *bool                       `toml:"data_dir_enable"`
	DataDir          *string                     `toml:"data_dir"`
	RAMScale         *float64                    `toml:"ram_scale"`
}

// FileBridgeSettings is the TOML representation of BridgeSettings.
type FileBridgeSettings struct {
	StratumPort     *string `toml:"stratum_port"`
	NodeAddress     *string `toml:"node_address"`
	MinShareDiff    *uint64 `toml:"min_share_diff"`
	VarDiff         *bool   `toml:"var_diff"`
	SharesPerMin    *uint32 `toml:"shares_per_min"`
	VarDiffStats    *bool   `toml:"var_diff_stats"`
	SoloMining      *bool   `toml:"solo_mining"`
	BlockWaitTime   *string `toml:"block_wait_time"`
	ExtranonceSize  *uint8  `toml:"extranonce_size"`
	LogToFile       *bool   `toml:"log_to_file"`
	PrometheusPort  *string `toml:"prom_port"`
	PrintStats      *bool   `toml:"print_stats"`
	HealthCheckPort *string `toml:"health_check_port"`
}

// FileUserInterfaceSettings is the TOML representation of UserInterfaceSettings.
type FileUserInterfaceSettings struct {
	Theme                       *string  `toml:"theme"`
	Scale                       *float64 `toml:"scale"`
	EnableCoinbaseNotifications *bool    `toml:"enable_coinbase_notifications"`
}

// FileFeatureSettings is the TOML representation of FeatureSettings.
type FileFeatureSettings struct {
	EnableStats        *bool `toml:"enable_stats"`
	EnableStatsHistory *bool `toml:"enable_stats_history"`
	StatsHistoryLimit  *int  `toml:"stats_history_limit"`
	EnableStorageTrack *bool `toml:"enable_storage_tracker"`
}

// FileDeveloperSettings is the TOML representation of DeveloperSettings.
type FileDeveloperSettings struct {
	LogLevel      *string `toml:"log_level"`
	MetricsListen *string `toml:"metrics_listen"`
	DaemonBinary  *string `toml:"daemon_binary"`
}

// mergeFileSettings merges non-nil FileSettings values into Settings.
func mergeFileSettings(s *Settings, f *FileSettings) {
	if f.Initialized != nil {
		s.Initialized = *f.Initialized
	}
	if f.LanguageCode != nil {
		s.LanguageCode = *f.LanguageCode
	}

	// Node
	n := &s.Node
	setIf(&n.Kind, f.Node.Kind)
	setIf(&n.ConnectionKind, f.Node.ConnectionKind)
	setIf(&n.Network, f.Node.Network)
	setIf(&n.WrpcURL, f.Node.WrpcURL)
	setIf(&n.WrpcEncoding, f.Node.WrpcEncoding)
	setIf(&n.EnableWrpcBorsh, f.Node.EnableWrpcBorsh)
	setIf(&n.EnableWrpcJSON, f.Node.EnableWrpcJSON)
	setIf(&n.EnableGrpc, f.Node.EnableGrpc)
	setIf(&n.GrpcInterface, f.Node.GrpcInterface)
	setIf(&n.EnableUpnp, f.Node.EnableUpnp)
	setIf(&n.EnableBridge, f.Node.EnableBridge)
	setIf(&n.DaemonArgsEnable, f.Node.DaemonArgsEnable)
	setIf(&n.DaemonArgs, f.Node.DaemonArgs)
	setIf(&n.DataDirEnable, f.Node.DataDirEnable)
	setIf(&n.DataDir, f.Node.DataDir)
	setIf(&n.RAMScale, f.Node.RAMScale)

	// Bridge
	b := &s.Bridge
	setIf(&b.StratumPort, f.Bridge.StratumPort)
	setIf(&b.NodeAddress, f.Bridge.NodeAddress)
	setIf(&b.MinShareDiff, f.Bridge.MinShareDiff)
	setIf(&b.VarDiff, f.Bridge.VarDiff)
	setIf(&b.SharesPerMin, f.Bridge.SharesPerMin)
	setIf(&b.VarDiffStats, f.Bridge.VarDiffStats)
	setIf(&b.SoloMining, f.Bridge.SoloMining)
	setIf(&b.BlockWaitTime, f.Bridge.BlockWaitTime)
	setIf(&b.ExtranonceSize, f.Bridge.ExtranonceSize)
	setIf(&b.LogToFile, f.Bridge.LogToFile)
	setIf(&b.PrometheusPort, f.Bridge.PrometheusPort)
	setIf(&b.PrintStats, f.Bridge.PrintStats)
	setIf(&b.HealthCheckPort, f.Bridge.HealthCheckPort)

	// User interface
	setIf(&s.UserInterface.Theme, f.UserInterface.Theme)
	setIf(&s.UserInterface.Scale, f.UserInterface.Scale)
	setIf(&s.UserInterface.EnableCoinbaseNotifications, f.UserInterface.EnableCoinbaseNotifications)

	// Features
	setIf(&s.Features.EnableStats, f.Features.EnableStats)
	setIf(&s.Features.EnableStatsHistory, f.Features.EnableStatsHistory)
	setIf(&s.Features.StatsHistoryLimit, f.Features.StatsHistoryLimit)
	setIf(&s.Features.EnableStorageTrack, f.Features.EnableStorageTrack)

	// Developer
	setIf(&s.Developer.LogLevel, f.Developer.LogLevel)
	setIf(&s.Developer.MetricsListen, f.Developer.MetricsListen)
	setIf(&s.Developer.DaemonBinary, f.Developer.DaemonBinary)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
