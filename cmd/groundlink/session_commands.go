package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"groundlink/internal/ipc"
	"groundlink/internal/store"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage dual-sensor capture sessions",
	}

	var listStatus string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List capture sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []string
			if listStatus != "" {
				statuses = append(statuses, listStatus)
			}
			resp, err := ctx.client().SessionList(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			headers := []string{"ID", "FLIGHT LOG", "TYPE", "STATUS", "THERMAL", "RGB", "STARTED"}
			rows := make([][]string, 0, len(resp.Sessions))
			for _, session := range resp.Sessions {
				rows = append(rows, []string{
					shortID(session.ID),
					shortID(session.FlightLogID),
					string(session.Type),
					string(session.Status),
					yesNo(session.Settings.ThermalEnabled),
					yesNo(session.Settings.RGBEnabled),
					formatWhen(session.StartedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (active, ended)")

	var (
		createType     string
		createThermal  bool
		createRGB      bool
		createAutoSync bool
		createSpatial  bool
		createModel    string
		createOffsetMs int
	)
	createCmd := &cobra.Command{
		Use:   "create <flight-log-id>",
		Short: "Open a capture session against a flight log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().SessionCreate(cmd.Context(), ipc.CreateSessionRequest{
				FlightLogID: args[0],
				SessionType: createType,
				Settings: store.CaptureSettings{
					ThermalEnabled:    createThermal,
					RGBEnabled:        createRGB,
					AutoSync:          createAutoSync,
					MaxTimingOffsetMs: createOffsetMs,
					SpatialAlignment:  createSpatial,
					DeviceModel:       createModel,
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Capture session %s started (%s)\n", resp.Session.ID, resp.Session.Type)
			return nil
		},
	}
	createCmd.Flags().StringVar(&createType, "type", string(store.SessionSynchronized), "Session type (synchronized, thermal_only, rgb_only, manual)")
	createCmd.Flags().BoolVar(&createThermal, "thermal", true, "Enable the thermal sensor")
	createCmd.Flags().BoolVar(&createRGB, "rgb", true, "Enable the RGB sensor")
	createCmd.Flags().BoolVar(&createAutoSync, "auto-sync", true, "Trigger both sensors together")
	createCmd.Flags().BoolVar(&createSpatial, "spatial", false, "Request spatial alignment against the active calibration")
	createCmd.Flags().StringVar(&createModel, "device-model", "", "Camera device model for calibration lookup")
	createCmd.Flags().IntVar(&createOffsetMs, "max-offset-ms", 0, "Maximum acceptable timing offset in ms (0 = configured default)")

	triggerCmd := &cobra.Command{
		Use:   "trigger <session-id> <capture-type>",
		Short: "Fire a capture within an active session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			resp, err := ctx.client().SessionTrigger(cmd.Context(), args[0], args[1], nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Capture fired (%s)\n", resp.CaptureType)
			fmt.Fprintf(stdout, "Timing offset:   %.2f ms (max %d ms, met: %s)\n",
				resp.TimingOffsetMs, resp.MaxTimingOffsetMs, yesNo(resp.TimingMet))
			fmt.Fprintf(stdout, "Spatial aligned: %s\n", yesNo(resp.SpatialAligned))
			return nil
		},
	}

	endCmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "End an active capture session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().SessionEnd(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Capture session %s ended\n", resp.Session.ID)
			return nil
		},
	}

	sessionCmd.AddCommand(listCmd, createCmd, triggerCmd, endCmd)
	return sessionCmd
}
