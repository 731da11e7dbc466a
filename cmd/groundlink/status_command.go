package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and fleet status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon status: %w", err)
			}

			running := "stopped"
			if status.Running {
				running = fmt.Sprintf("running (pid %d)", status.PID)
			}
			if shouldColorize(stdout) {
				if status.Running {
					running = "\x1b[32m" + running + "\x1b[0m"
				} else {
					running = "\x1b[31m" + running + "\x1b[0m"
				}
			}
			fmt.Fprintf(stdout, "Daemon:     %s\n", running)
			fmt.Fprintf(stdout, "Listening:  %s\n", status.ListenAddress)
			fmt.Fprintf(stdout, "Observers:  %d connected\n", status.Observers)
			if len(status.Executing) > 0 {
				fmt.Fprintf(stdout, "Executing:  %s\n", strings.Join(status.Executing, ", "))
			}
			fmt.Fprintf(stdout, "Database:   %s\n", status.DatabasePath)
			fmt.Fprintf(stdout, "Lock file:  %s\n", status.LockFilePath)

			headers := []string{"ENTITY", "COUNT"}
			rows := [][]string{
				{"missions", fmt.Sprintf("%d", status.EntityCounts["missions"])},
				{"executing missions", fmt.Sprintf("%d", status.EntityCounts["executing_missions"])},
				{"active capture sessions", fmt.Sprintf("%d", status.EntityCounts["active_sessions"])},
				{"processing jobs", fmt.Sprintf("%d", status.EntityCounts["processing_jobs"])},
				{"devices", fmt.Sprintf("%d", status.EntityCounts["devices"])},
			}
			fmt.Fprintln(stdout, renderTable(headers, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
