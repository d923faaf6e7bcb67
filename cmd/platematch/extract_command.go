package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plate-match/internal/plate"
	"plate-match/internal/report"
)

func newExtractCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "extract <message...>",
		Short: "List the plate numbers named in a claim message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			info := plate.ExtractVehicleNumbers(message)
			if asJSON {
				return writeJSON(cmd, info)
			}

			out := cmd.OutOrStdout()
			if len(info.AllPlates) == 0 {
				fmt.Fprintln(out, report.NoVehicleNumbers(message))
				return nil
			}
			fmt.Fprintf(out, "User vehicle:  %s\n", orNone(info.UserVehicle))
			fmt.Fprintf(out, "Other vehicle: %s\n", orNone(info.OtherVehicle))
			fmt.Fprintf(out, "All plates:    %s\n", strings.Join(info.AllPlates, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
