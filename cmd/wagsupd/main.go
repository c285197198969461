// cmd/wagsupd/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waglayla/waglayla-supervisor/internal/paths"
	"github.com/waglayla/waglayla-supervisor/internal/version"
)

// Flag variables for CLI overrides
var (
	flagAppDir        string
	flagSettingsPath  string
	flagLogLevel      string
	flagMetricsListen string
	flagNodeKind      string
	flagNetwork       string
	flagWrpcURL       string
	flagWatchAddress  []string
	flagNoColor       bool
	flagNoPanel       bool
	flagVerbose       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wagsupd",
		Short: "Waglayla node supervisor",
		Long: `wagsupd runs or connects to a Waglayla node, keeps the embedded stratum
bridge alive and reports node health on the console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSupervisor,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagAppDir, "appdir", "", fmt.Sprintf("Application directory (default: %s)", paths.DefaultAppDir()))
	pf.StringVar(&flagSettingsPath, "settings", "", "Settings file path (default: <appdir>/"+paths.SettingsFile+")")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colored output")

	f := rootCmd.Flags()
	f.StringVar(&flagMetricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address")
	f.StringVar(&flagNodeKind, "node", "", "Node kind: disabled, remote, integrated-daemon")
	f.StringVar(&flagNetwork, "network", "", "Network: mainnet, testnet")
	f.StringVar(&flagWrpcURL, "wrpc-url", "", "wRPC URL of a custom remote node")
	f.StringSliceVar(&flagWatchAddress, "watch-address", nil, "Wallet address to watch for incoming funds (repeatable)")
	f.BoolVar(&flagNoPanel, "no-panel", false, "Do not draw the status panel")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "Print every supervisor event")

	rootCmd.AddCommand(version.NewCmd("wagsupd"))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newStorageCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// appDir returns the application directory selected by flag or default.
func appDir() string {
	if flagAppDir != "" {
		return flagAppDir
	}
	return paths.DefaultAppDir()
}
