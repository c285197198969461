// cmd/wagsupd/config_cmd.go
package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect supervisor settings",
		Long:  `Commands for inspecting the supervisor settings document.`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective settings",
		Long:  `Displays the effective settings after merging defaults, file, and environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.NewLoader(appDir(), flagSettingsPath).Load()
			if err != nil {
				return err
			}
			data, err := toml.Marshal(s)
			if err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.NewLoader(appDir(), flagSettingsPath).Path())
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(appDir(), flagSettingsPath)
			s, err := loader.Load()
			if err != nil {
				return err
			}
			if err := config.Validate(s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", loader.Path())
			return nil
		},
	}
}
