// cmd/wagsupd/logs.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/runtime"
	"github.com/waglayla/waglayla-supervisor/internal/paths"
)

// logNames maps the logs command argument onto a log file.
var logNames = map[string]string{
	"daemon":     paths.DaemonLog,
	"bridge":     paths.BridgeLog,
	"supervisor": paths.SupervisorLog,
}

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
	)

	cmd := &cobra.Command{
		Use:       "logs [daemon|bridge|supervisor]",
		Short:     "Show node daemon, bridge or supervisor logs",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"daemon", "bridge", "supervisor"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := "daemon"
			if len(args) == 1 {
				which = args[0]
			}
			name, ok := logNames[which]
			if !ok {
				return fmt.Errorf("unknown log %q (want daemon, bridge or supervisor)", which)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			files := runtime.NewLogFiles(paths.LogsPath(appDir()), runtime.DefaultLogConfig())
			r, err := files.Open(ctx, name, runtime.LogOptions{Follow: follow, Lines: lines})
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no %s log yet at %s", which, files.Path(name))
				}
				return err
			}
			defer r.Close()

			if _, err := io.Copy(cmd.OutOrStdout(), r); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "Number of lines to show (0 = all)")

	return cmd
}
