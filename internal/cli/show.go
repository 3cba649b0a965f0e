package cli

import (
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List the persisted alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowAlerts(cmd.Context(), cmd.OutOrStdout())
	},
}
