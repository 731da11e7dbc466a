package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"groundlink/internal/ipc"
)

func newCalibrationCommand(ctx *commandContext) *cobra.Command {
	calibrationCmd := &cobra.Command{
		Use:   "calibration",
		Short: "Manage camera calibrations",
	}

	var (
		saveModel    string
		saveError    float64
		saveCoverage float64
		saveImages   int
	)
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Record a calibration and activate it for its device model",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().CalibrationSave(cmd.Context(), ipc.SaveCalibrationRequest{
				DeviceModel:       saveModel,
				ReprojectionError: saveError,
				CoveragePercent:   saveCoverage,
				ImageCount:        saveImages,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Calibration %d active for %s (reprojection error %.3f px)\n",
				resp.Calibration.ID, resp.Calibration.DeviceModel, resp.Calibration.ReprojectionError)
			return nil
		},
	}
	saveCmd.Flags().StringVar(&saveModel, "device-model", "", "Camera device model")
	saveCmd.Flags().Float64Var(&saveError, "reprojection-error", 0, "Mean reprojection error in pixels")
	saveCmd.Flags().Float64Var(&saveCoverage, "coverage", 0, "Calibration board coverage percent")
	saveCmd.Flags().IntVar(&saveImages, "images", 0, "Number of calibration images")
	_ = saveCmd.MarkFlagRequired("device-model")

	calibrationCmd.AddCommand(saveCmd)
	return calibrationCmd
}
