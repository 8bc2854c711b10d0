// Package cli wires the gwd command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the gwd root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gwd",
		Short: "View Gridworks energy-system operational events",
		Long: "gwd views operational events from Gridworks SCADA and atomic transactive\n" +
			"nodes: live over MQTT, historical from the S3 archive, and cached locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newCSVCmd())

	return cmd
}

// Execute runs the root command with the provided args.
func Execute(args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}
