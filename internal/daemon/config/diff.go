package config

// Verdict is the result of comparing two settings documents.
type Verdict struct {
	// RestartRequired is set when a restart-sensitive node field changed.
	RestartRequired bool
	// HotApply is set when only fields that apply without restart changed.
	HotApply bool
	// BridgeToggled is set when the bridge enable flag changed.
	BridgeToggled bool
	// BridgeChanged is set when the bridge document changed.
	BridgeChanged bool
	// Fields names every changed field, for logging.
	Fields []string
}

// Changed reports whether anything differs.
func (v Verdict) Changed() bool {
	return len(v.Fields) > 0
}

// DiffNode compares node settings.
func DiffNode(old, new NodeSettings) Verdict {
	var v Verdict
	restart := func(name string, changed bool) {
		if changed {
			v.RestartRequired = true
			v.Fields = append(v.Fields, "node."+name)
		}
	}

	restart("kind", old.Kind != new.Kind)
	restart("connection_config_kind", old.ConnectionKind != new.ConnectionKind)
	restart("network", old.Network != new.Network)
	restart("wrpc_url", old.WrpcURL != new.WrpcURL)
	restart("wrpc_encoding", old.WrpcEncoding != new.WrpcEncoding)
	restart("enable_wrpc_borsh", old.EnableWrpcBorsh != new.EnableWrpcBorsh)
	restart("enable_wrpc_json", old.EnableWrpcJSON != new.EnableWrpcJSON)
	restart("enable_grpc", old.EnableGrpc != new.EnableGrpc)
	restart("grpc_network_interface", old.GrpcInterface != new.GrpcInterface)
	restart("enable_upnp", old.EnableUpnp != new.EnableUpnp)
	restart("daemon_args", old.DaemonArgsEnable != new.DaemonArgsEnable ||
		(new.DaemonArgsEnable && old.DaemonArgs != new.DaemonArgs))
	restart("data_dir", old.DataDirEnable != new.DataDirEnable ||
		(new.DataDirEnable && old.DataDir != new.DataDir))
	restart("ram_scale", old.RAMScale != new.RAMScale)

	if old.EnableBridge != new.EnableBridge {
		v.BridgeToggled = true
		v.Fields = append(v.Fields, "node.enable_bridge")
	}

	v.HotApply = !v.RestartRequired && len(v.Fields) > 0
	return v
}

// Diff compares two settings documents.
func Diff(old, new *Settings) Verdict {
	v := DiffNode(old.Node, new.Node)

	hot := func(name string, changed bool) {
		if changed {
			v.Fields = append(v.Fields, name)
		}
	}
	if old.Bridge != new.Bridge {
		v.BridgeChanged = true
		v.Fields = append(v.Fields, "bridge")
	}
	hot("user_interface", old.UserInterface != new.UserInterface)
	hot("language_code", old.LanguageCode != new.LanguageCode)
	hot("features", old.Features != new.Features)
	hot("developer", old.Developer != new.Developer)

	v.HotApply = !v.RestartRequired && len(v.Fields) > 0
	return v
}
