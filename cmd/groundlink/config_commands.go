package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"groundlink/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented sample configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "data_dir:  %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(stdout, "log_dir:   %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(stdout, "api_bind:  %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(stdout, "database:  %s\n", cfg.DatabasePath())
			fmt.Fprintf(stdout, "telemetry: %.1f events/sec (burst %d)\n",
				cfg.Simulation.TelemetryRatePerSec, cfg.Simulation.TelemetryBurst)
			return nil
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}
