package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/doodlekiosk/internal/screens"
)

func init() {
	rootCmd.AddCommand(monitorsCmd)
}

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "List monitors usable for kiosk placement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		monitors, err := screens.List()
		if err != nil {
			return fmt.Errorf("list monitors: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, m := range monitors {
			fmt.Fprintln(out, m.String())
		}
		if screens.Wayland() {
			fmt.Fprintln(out, "note: Wayland session, positions reflect the XWayland layout")
		}
		return nil
	},
}
