package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"b3-alerts/internal/market"
	"b3-alerts/internal/monitor"
	"b3-alerts/internal/storage"
)

// SimulateOptions describe a hypothetical alert evaluation.
type SimulateOptions struct {
	Ticker    string
	Direction string
	Target    decimal.Decimal
	Price     decimal.Decimal
	State     string
	Send      bool
}

// SimulateAlert runs one alert through the state machine against a given
// price and reports the decision. With Send it also pushes the resulting
// notification to the admin chat, exercising the real transport.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	direction, err := storage.ParseDirection(opts.Direction)
	if err != nil {
		return err
	}
	state := storage.StateArmed
	if opts.State != "" {
		if state, err = storage.ParseState(opts.State); err != nil {
			return err
		}
	}
	if !opts.Target.IsPositive() || !opts.Price.IsPositive() {
		return fmt.Errorf("target and price must be positive")
	}

	alert := storage.Alert{
		Ticker:      market.SanitizeTicker(opts.Ticker),
		Direction:   direction,
		TargetPrice: opts.Target,
		ChatID:      a.Config.Telegram.AdminChatID,
		State:       state,
	}

	decision := monitor.Evaluate(alert, opts.Price, true)
	a.Logger.Info().
		Str("ticker", alert.Ticker).
		Str("from", string(alert.State)).
		Str("to", string(decision.Next)).
		Bool("changed", decision.Changed).
		Bool("event", decision.Event != nil).
		Msg("simulated evaluation")

	if decision.Event == nil || !opts.Send {
		return nil
	}

	tg, err := a.newTelegram()
	if err != nil {
		return err
	}
	dispatcher := &directDispatcher{client: tg}
	return dispatcher.Deliver(ctx, *decision.Event)
}
