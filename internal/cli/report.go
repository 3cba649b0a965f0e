package cli

import (
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Send the closing-quote digest once, outside the daily schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SendClosingQuotes(cmd.Context())
	},
}
