package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"groundlink/internal/ipc"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Manage imagery processing jobs",
	}

	var listStatus string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List processing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []string
			if listStatus != "" {
				statuses = append(statuses, listStatus)
			}
			resp, err := ctx.client().JobList(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			headers := []string{"ID", "OWNER", "KIND", "STATUS", "UNITS", "COVERAGE", "QUALITY", "UPDATED"}
			rows := make([][]string, 0, len(resp.Jobs))
			for _, job := range resp.Jobs {
				rows = append(rows, []string{
					shortID(job.ID),
					shortID(job.OwnerID),
					job.Kind,
					string(job.Status),
					fmt.Sprintf("%d/%d", job.ProcessedUnits, job.TotalUnits),
					formatPercent(job.Coverage),
					formatPercent(job.QualityScore),
					formatWhen(job.UpdatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}))
			return nil
		},
	}
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (processing, completed, failed)")

	var createKind string
	var createUnits int
	createCmd := &cobra.Command{
		Use:   "create <session-id>",
		Short: "Start a processing job over a capture session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().JobCreate(cmd.Context(), ipc.CreateJobRequest{
				SessionID:  args[0],
				Kind:       createKind,
				TotalUnits: createUnits,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s created (%s, %d units)\n",
				resp.Job.ID, resp.Job.Kind, resp.Job.TotalUnits)
			return nil
		},
	}
	createCmd.Flags().StringVar(&createKind, "kind", "orthomosaic", "Job kind (orthomosaic, thermal-map, alignment)")
	createCmd.Flags().IntVar(&createUnits, "units", 100, "Total work units")

	advanceCmd := &cobra.Command{
		Use:   "advance <job-id> <fraction>",
		Short: "Advance a job's progress to a fraction in [0, 1]",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fraction, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("parse fraction: %w", err)
			}
			resp, err := ctx.client().JobAdvance(cmd.Context(), args[0], fraction)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s at %s coverage, quality %s\n",
				resp.Job.ID, formatPercent(resp.Job.Coverage), formatPercent(resp.Job.QualityScore))
			return nil
		},
	}

	completeCmd := &cobra.Command{
		Use:   "complete <job-id> [artifact...]",
		Short: "Complete a job, recording its output artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().JobComplete(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s completed with %d artifacts\n",
				resp.Job.ID, len(resp.Job.Artifacts))
			return nil
		},
	}

	var failReason string
	failCmd := &cobra.Command{
		Use:   "fail <job-id>",
		Short: "Mark a job failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().JobFail(cmd.Context(), args[0], failReason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s failed: %s\n", resp.Job.ID, failReason)
			return nil
		},
	}
	failCmd.Flags().StringVar(&failReason, "reason", "operator abort", "Failure reason")

	var runStages int
	var runDelay float64
	runCmd := &cobra.Command{
		Use:   "run <job-id>",
		Short: "Drive a job through the simulated staged pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().JobRun(cmd.Context(), args[0], runStages, runDelay); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s running (%d stages)\n", args[0], runStages)
			return nil
		},
	}
	runCmd.Flags().IntVar(&runStages, "stages", 5, "Number of pipeline stages")
	runCmd.Flags().Float64Var(&runDelay, "stage-delay", 1, "Seconds between stages")

	jobCmd.AddCommand(listCmd, createCmd, advanceCmd, completeCmd, failCmd, runCmd)
	return jobCmd
}
