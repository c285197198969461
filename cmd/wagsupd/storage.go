// cmd/wagsupd/storage.go
package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/config"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/controller"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/runtime"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
	"github.com/waglayla/waglayla-supervisor/internal/paths"
)

func newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Show the node data directory size",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, _, err := storageTracker()
			if err != nil {
				return err
			}
			info := tracker.Scan()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.Human, info.Path)
			return nil
		},
	}

	cmd.AddCommand(newStorageRemoveCmd())
	return cmd
}

func newStorageRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete the node data directory",
		Long: `Deletes the node data directory. No supervisor may be running on the
application directory and the node kind must be disabled in the settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, s, err := storageTracker()
			if err != nil {
				return err
			}
			if err := storageGuard(appDir(), s.Node.Kind)(); err != nil {
				return err
			}

			root, _ := tracker.Folder()
			if !yes {
				ok, err := confirm(fmt.Sprintf("Delete %s", root))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}

			if err := tracker.Remove(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", root)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// storageTracker returns a tracker following the data directory the
// settings select.
func storageTracker() (*controller.StorageTracker, *config.Settings, error) {
	s, err := config.NewLoader(appDir(), flagSettingsPath).Load()
	if err != nil {
		return nil, nil, err
	}

	dir := paths.DaemonDefaultDataDir()
	if s.Node.DataDirEnable && strings.TrimSpace(s.Node.DataDir) != "" {
		dir = strings.TrimSpace(s.Node.DataDir)
	}

	tracker := controller.NewStorageTracker(controller.StorageTrackerConfig{
		Guard: storageGuard(appDir(), s.Node.Kind),
	})
	tracker.TrackStorageRoot(dir)
	return tracker, s, nil
}

// storageGuard refuses removal while a supervisor holds the application
// directory or the settings still select a node.
func storageGuard(dir string, kind types.NodeKind) func() error {
	return func() error {
		pid, alive, err := runtime.ReadPIDFile(paths.PIDPath(dir))
		if err != nil {
			return err
		}
		if alive {
			return fmt.Errorf("%w: supervisor (pid %d) is running on %s", controller.ErrNodeRunning, pid, dir)
		}
		if kind != types.NodeKindDisabled {
			return fmt.Errorf("%w: set the node kind to disabled first", controller.ErrNodeRunning)
		}
		return nil
	}
}

// confirm asks a yes/no question; the default is no.
func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, errors.New("interrupted")
		}
		return false, err
	}
	return true, nil
}
