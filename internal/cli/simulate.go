package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"b3-alerts/internal/app"
)

var (
	simulateState string
	simulateSend  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <ticker> <compra|venda> <target> <price>",
	Short: "Evaluate one alert against a given price",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("parse target: %w", err)
		}
		price, err := decimal.NewFromString(args[3])
		if err != nil {
			return fmt.Errorf("parse price: %w", err)
		}

		direction := args[1]
		switch direction {
		case "compra":
			direction = "buy"
		case "venda":
			direction = "sell"
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Ticker:    args[0],
			Direction: direction,
			Target:    target,
			Price:     price,
			State:     simulateState,
			Send:      simulateSend,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateState, "state", "armed", "Starting alert state (armed|triggered)")
	simulateCmd.Flags().BoolVar(&simulateSend, "send", false, "Deliver the resulting notification to the admin chat")
}
