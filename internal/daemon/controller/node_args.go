// internal/daemon/controller/node_args.go
package controller

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/pbnjay/memory"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/config"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// Memory scale bounds used when the settings leave it on auto.
const (
	minRAMScale = 0.25
	maxRAMScale = 1.0
	// ramScaleUnit is the host memory that maps to a scale of 1.0.
	ramScaleUnit = 16 << 30
)

// DaemonArgsOptions carries the values the argument list needs besides
// the node settings.
type DaemonArgsOptions struct {
	UAComment string
	// TotalMemory overrides host memory detection for the auto scale.
	TotalMemory func() uint64
}

// AutoRAMScale derives the daemon memory scale from host memory: 16 GiB and
// above run at full scale, smaller hosts scale down to a floor of 0.25.
func AutoRAMScale(total uint64) float64 {
	if total == 0 {
		return maxRAMScale
	}
	scale := float64(total) / float64(ramScaleUnit)
	if scale < minRAMScale {
		return minRAMScale
	}
	if scale > maxRAMScale {
		return maxRAMScale
	}
	return scale
}

func listenAddr(public bool, port int) string {
	host := "127.0.0.1"
	if public {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// DaemonArgs builds the integrated daemon command line.
func DaemonArgs(ns config.NodeSettings, opts DaemonArgsOptions) ([]string, error) {
	scale := ns.RAMScale
	if scale <= 0 {
		total := memory.TotalMemory
		if opts.TotalMemory != nil {
			total = opts.TotalMemory
		}
		scale = AutoRAMScale(total())
	}

	args := []string{
		"--perf-metrics",
		"--perf-metrics-interval-sec=1",
		"--yes",
		"--utxoindex",
		"--ram-scale=" + strconv.FormatFloat(scale, 'f', 2, 64),
	}

	if !ns.EnableUpnp {
		args = append(args, "--disable-upnp")
	}

	if ns.EnableGrpc {
		args = append(args, "--rpclisten="+ns.GrpcInterface.Address(types.DefaultGrpcPort))
	} else {
		args = append(args, "--nogrpc")
	}

	args = append(args,
		"--rpclisten-borsh="+listenAddr(ns.EnableWrpcBorsh, types.DefaultWrpcBorshPort),
		// The supervisor's own client needs the JSON listener even when it
		// is not published.
		"--rpclisten-json="+listenAddr(ns.EnableWrpcJSON, types.DefaultWrpcJSONPort),
	)

	if ns.Network == types.NetworkTestnet {
		args = append(args, "--testnet")
	}

	if opts.UAComment != "" {
		args = append(args, "--uacomment="+opts.UAComment)
	}

	if ns.DataDirEnable {
		dir := strings.TrimSpace(ns.DataDir)
		if dir == "" {
			return nil, config.ErrDataDirEmpty
		}
		args = append(args, "--appdir="+dir)
	}

	if ns.DaemonArgsEnable && strings.TrimSpace(ns.DaemonArgs) != "" {
		extra, err := shlex.Split(ns.DaemonArgs)
		if err != nil {
			return nil, fmt.Errorf("invalid daemon arguments: %w", err)
		}
		args = append(args, extra...)
	}

	return args, nil
}
