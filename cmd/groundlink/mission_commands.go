package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"groundlink/internal/ipc"
)

func newMissionCommand(ctx *commandContext) *cobra.Command {
	missionCmd := &cobra.Command{
		Use:   "mission",
		Short: "Inspect and control missions",
	}

	var listStatuses []string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().MissionList(cmd.Context(), listStatuses...)
			if err != nil {
				return err
			}
			headers := []string{"ID", "NAME", "STATUS", "WAYPOINTS", "DURATION", "DISTANCE", "CREATED"}
			rows := make([][]string, 0, len(resp.Missions))
			for _, mission := range resp.Missions {
				rows = append(rows, []string{
					shortID(mission.ID),
					mission.Name,
					string(mission.Status),
					fmt.Sprintf("%d", len(mission.Waypoints)),
					formatDuration(mission.EstimatedDurationSecs),
					formatDistance(mission.TotalDistanceM),
					formatWhen(mission.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}))
			return nil
		},
	}
	listCmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (ready, executing, completed, failed)")

	showCmd := &cobra.Command{
		Use:   "show <mission-id>",
		Short: "Show one mission in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			resp, err := ctx.client().MissionDescribe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			mission := resp.Mission
			fmt.Fprintf(stdout, "Mission:    %s (%s)\n", mission.Name, mission.ID)
			fmt.Fprintf(stdout, "Status:     %s\n", mission.Status)
			fmt.Fprintf(stdout, "Duration:   %s estimated\n", formatDuration(mission.EstimatedDurationSecs))
			fmt.Fprintf(stdout, "Distance:   %s\n", formatDistance(mission.TotalDistanceM))
			fmt.Fprintf(stdout, "Created:    %s\n", formatWhen(mission.CreatedAt))

			headers := []string{"#", "LAT", "LON", "ALT", "SPEED", "ACTIONS"}
			rows := make([][]string, 0, len(mission.Waypoints))
			for i, waypoint := range mission.Waypoints {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i),
					fmt.Sprintf("%.6f", waypoint.Latitude),
					fmt.Sprintf("%.6f", waypoint.Longitude),
					fmt.Sprintf("%.1f m", waypoint.AltitudeM),
					fmt.Sprintf("%.1f m/s", waypoint.SpeedMS),
					fmt.Sprintf("%v", waypoint.Actions),
				})
			}
			fmt.Fprintln(stdout, renderTable(headers, rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}))
			return nil
		},
	}

	var createFile string
	createCmd := &cobra.Command{
		Use:   "create --file <plan.json>",
		Short: "Register a planned mission from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(createFile)
			if err != nil {
				return fmt.Errorf("read mission plan: %w", err)
			}
			var req ipc.CreateMissionRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse mission plan: %w", err)
			}
			resp, err := ctx.client().MissionCreate(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mission %s created (%s)\n", resp.Mission.ID, resp.Mission.Name)
			return nil
		},
	}
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "Mission plan JSON file")
	_ = createCmd.MarkFlagRequired("file")

	startCmd := &cobra.Command{
		Use:   "start <mission-id>",
		Short: "Begin executing a ready mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().MissionStart(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mission executing, flight log %s\n", resp.FlightLog.ID)
			return nil
		},
	}

	abortCmd := &cobra.Command{
		Use:   "abort <mission-id>",
		Short: "Abort an executing mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().MissionAbort(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Abort requested")
			return nil
		},
	}

	logsCmd := &cobra.Command{
		Use:   "logs <mission-id>",
		Short: "List flight logs recorded for a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().FlightLogList(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			headers := []string{"ID", "STATUS", "STARTED", "DURATION", "DISTANCE", "SAMPLES", "NOTE"}
			rows := make([][]string, 0, len(resp.FlightLogs))
			for _, flightLog := range resp.FlightLogs {
				rows = append(rows, []string{
					shortID(flightLog.ID),
					string(flightLog.Status),
					formatWhen(flightLog.StartTime),
					formatDuration(flightLog.ActualDurationSecs),
					formatDistance(flightLog.ActualDistanceM),
					fmt.Sprintf("%d", len(flightLog.Telemetry)),
					flightLog.FailureNote,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}))
			return nil
		},
	}

	missionCmd.AddCommand(listCmd, showCmd, createCmd, startCmd, abortCmd, logsCmd)
	return missionCmd
}
