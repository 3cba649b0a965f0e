package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"b3-alerts/internal/alerting"
	"b3-alerts/internal/storage"
)

// PriceFetcher resolves prices for a set of tickers. Unresolved tickers are
// absent from the result; the fetch itself never fails.
type PriceFetcher interface {
	Fetch(ctx context.Context, tickers []string) map[string]decimal.Decimal
}

// Options tune the evaluation loop.
type Options struct {
	Interval time.Duration
}

// Monitor drives the periodic alert evaluation cycle.
type Monitor struct {
	store      storage.AlertStore
	oracle     PriceFetcher
	dispatcher alerting.Dispatcher
	opts       Options
	logger     zerolog.Logger
}

// New constructs the monitoring engine.
func New(store storage.AlertStore, oracle PriceFetcher, dispatcher alerting.Dispatcher, opts Options, logger zerolog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 20 * time.Minute
	}
	return &Monitor{
		store:      store,
		oracle:     oracle,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger.With().Str("component", "monitor").Logger(),
	}
}

// Run executes evaluation cycles until the context is cancelled. A failed
// cycle is logged and followed by a doubled sleep interval; the loop itself
// never terminates on its own.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.opts.Interval).Msg("starting monitoring loop")

	for {
		sleep := m.opts.Interval
		if err := m.safeCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error().Err(err).Msg("cycle failed, backing off")
			sleep = 2 * m.opts.Interval
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// safeCycle shields the loop from programming errors inside a cycle.
func (m *Monitor) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return m.Cycle(ctx)
}

// Cycle runs one evaluation pass: load alerts, resolve prices once for the
// distinct tickers, evaluate every alert, persist all state changes, then
// dispatch notifications. State is durable before anyone is told about it.
func (m *Monitor) Cycle(ctx context.Context) error {
	alerts, err := m.store.ListAlerts(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	if len(alerts) == 0 {
		m.logger.Debug().Msg("no alerts registered, skipping cycle")
		return nil
	}

	tickers := lo.Uniq(lo.Map(alerts, func(a storage.Alert, _ int) string {
		return a.Ticker
	}))

	prices := m.oracle.Fetch(ctx, tickers)
	m.logger.Info().
		Int("alerts", len(alerts)).
		Int("tickers", len(tickers)).
		Int("prices", len(prices)).
		Msg("evaluating alerts")

	type transition struct {
		alert storage.Alert
		next  storage.State
	}
	var (
		transitions []transition
		events      []alerting.Event
	)

	for _, alert := range alerts {
		price, known := prices[alert.Ticker]
		decision := Evaluate(alert, price, known)
		if !decision.Changed {
			continue
		}
		transitions = append(transitions, transition{alert: alert, next: decision.Next})
		if decision.Event != nil {
			events = append(events, *decision.Event)
		}
		m.logger.Info().
			Str("ticker", alert.Ticker).
			Str("direction", string(alert.Direction)).
			Str("from", string(alert.State)).
			Str("to", string(decision.Next)).
			Msg("alert transition")
	}

	now := time.Now().UTC()
	for _, t := range transitions {
		if err := m.store.UpdateAlertState(ctx, t.alert.ID, t.next, now); err != nil {
			return fmt.Errorf("persist alert %d state: %w", t.alert.ID, err)
		}
	}

	for _, event := range events {
		if err := m.dispatcher.Deliver(ctx, event); err != nil {
			m.logger.Error().Err(err).
				Int64("chat_id", event.ChatID).
				Str("subject", event.Subject).
				Msg("failed to deliver notification")
		}
	}

	return nil
}
