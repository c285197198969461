// internal/daemon/config/validate.go
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// Configuration errors surfaced to the user.
var (
	ErrDataDirEmpty          = errors.New("custom data directory is empty")
	ErrDataDirNotFound       = errors.New("data directory not found")
	ErrInvalidBridgeSettings = errors.New("invalid bridge settings")
)

// ValidLogLevels are the allowed log level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// MaxExtranonceSize is the largest extranonce the bridge accepts.
const MaxExtranonceSize = 3

// Validate validates the settings and returns an error listing every problem.
func Validate(s *Settings) error {
	var errs []string

	validLevel := false
	for _, level := range ValidLogLevels {
		if s.Developer.LogLevel == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		errs = append(errs, fmt.Sprintf("invalid log_level %q (must be one of: %s)",
			s.Developer.LogLevel, strings.Join(ValidLogLevels, ", ")))
	}

	if _, err := types.ParseNodeKind(string(s.Node.Kind)); err != nil {
		errs = append(errs, err.Error())
	}

	switch s.Node.ConnectionKind {
	case types.ConnectionPublicServerRandom, types.ConnectionPublicServerCustom, types.ConnectionCustom:
	default:
		errs = append(errs, fmt.Sprintf("invalid connection_config_kind %q", s.Node.ConnectionKind))
	}

	switch s.Node.WrpcEncoding {
	case types.EncodingBorsh, types.EncodingJSON:
	default:
		errs = append(errs, fmt.Sprintf("invalid wrpc_encoding %q (must be borsh or json)", s.Node.WrpcEncoding))
	}

	switch s.Node.Network {
	case types.NetworkMainnet, types.NetworkTestnet:
	default:
		errs = append(errs, fmt.Sprintf("invalid network %q (must be mainnet or testnet)", s.Node.Network))
	}

	switch s.Node.GrpcInterface.Kind {
	case InterfaceLocal, InterfaceAny:
	case InterfaceCustom:
		if strings.TrimSpace(s.Node.GrpcInterface.Custom) == "" {
			errs = append(errs, "grpc_network_interface.custom is required when kind is custom")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid grpc_network_interface.kind %q", s.Node.GrpcInterface.Kind))
	}

	if s.Node.RAMScale < 0 || s.Node.RAMScale > 10 {
		errs = append(errs, "ram_scale must be between 0 and 10")
	}

	if s.Node.DataDirEnable && strings.TrimSpace(s.Node.DataDir) == "" {
		errs = append(errs, ErrDataDirEmpty.Error())
	}

	if err := ValidateBridge(s.Bridge); err != nil {
		errs = append(errs, err.Error())
	}

	if s.Features.StatsHistoryLimit < 0 {
		errs = append(errs, "stats_history_limit must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ValidateBridge checks the bridge settings. The returned error wraps
// ErrInvalidBridgeSettings.
func ValidateBridge(b BridgeSettings) error {
	var errs []string

	if b.ExtranonceSize > MaxExtranonceSize {
		errs = append(errs, fmt.Sprintf("extranonce_size must be between 0 and %d", MaxExtranonceSize))
	}
	if b.SharesPerMin == 0 {
		errs = append(errs, "shares_per_min must be positive")
	}
	if b.MinShareDiff == 0 {
		errs = append(errs, "min_share_diff must be positive")
	}
	if b.BlockWaitTime != "" {
		if d, err := time.ParseDuration(b.BlockWaitTime); err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("block_wait_time %q is not a positive duration", b.BlockWaitTime))
		}
	}
	for name, addr := range map[string]string{
		"stratum_port":      b.StratumPort,
		"prom_port":         b.PrometheusPort,
		"health_check_port": b.HealthCheckPort,
		"node_address":      b.NodeAddress,
	} {
		if addr == "" && name != "stratum_port" && name != "node_address" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Sprintf("%s %q is not host:port", name, addr))
		}
	}

	if len(errs) > 0 {
		// Map iteration order is random.
		sort.Strings(errs)
		return fmt.Errorf("%w: %s", ErrInvalidBridgeSettings, strings.Join(errs, "; "))
	}
	return nil
}

// ValidateDataDir checks a custom data directory before the daemon starts.
// A directory that does not exist yet is created by the daemon, so only its
// parent must exist.
func ValidateDataDir(n NodeSettings) error {
	if !n.DataDirEnable {
		return nil
	}
	dir := strings.TrimSpace(n.DataDir)
	if dir == "" {
		return ErrDataDirEmpty
	}
	parent := filepath.Dir(filepath.Clean(dir))
	if _, err := os.Stat(parent); err != nil {
		return fmt.Errorf("%w: %s", ErrDataDirNotFound, parent)
	}
	return nil
}
