package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List devices registered over the observer channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().DeviceList(cmd.Context())
			if err != nil {
				return err
			}
			headers := []string{"NAME", "KIND", "ADDRESS", "LAST SEEN"}
			rows := make([][]string, 0, len(resp.Devices))
			for _, device := range resp.Devices {
				rows = append(rows, []string{
					device.Name,
					device.Kind,
					device.Address,
					formatWhen(device.LastSeen),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}
