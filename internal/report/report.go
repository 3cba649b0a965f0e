package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"b3-alerts/internal/alerting"
	"b3-alerts/internal/market"
	"b3-alerts/internal/monitor"
	"b3-alerts/internal/storage"
)

// Reporter builds the daily closing-quote digest, one message per owner.
// It reuses the price oracle but never touches alert state.
type Reporter struct {
	store      storage.AlertStore
	oracle     monitor.PriceFetcher
	dispatcher alerting.Dispatcher
	location   *time.Location
	logger     zerolog.Logger
}

// New constructs the reporter.
func New(store storage.AlertStore, oracle monitor.PriceFetcher, dispatcher alerting.Dispatcher, location *time.Location, logger zerolog.Logger) *Reporter {
	if location == nil {
		location = time.UTC
	}
	return &Reporter{
		store:      store,
		oracle:     oracle,
		dispatcher: dispatcher,
		location:   location,
		logger:     logger.With().Str("component", "report").Logger(),
	}
}

// SendClosingQuotes resolves prices for every watched ticker and delivers
// one digest per owner. Tickers without a resolved price are omitted; an
// owner with no resolved prices receives nothing.
func (r *Reporter) SendClosingQuotes(ctx context.Context) error {
	alerts, err := r.store.ListAlerts(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	if len(alerts) == 0 {
		r.logger.Info().Msg("no alerts registered, skipping closing quotes")
		return nil
	}

	tickers := lo.Uniq(lo.Map(alerts, func(a storage.Alert, _ int) string {
		return a.Ticker
	}))
	prices := r.oracle.Fetch(ctx, tickers)
	r.logger.Info().Int("tickers", len(tickers)).Int("prices", len(prices)).Msg("building closing digests")

	byOwner := lo.GroupBy(alerts, func(a storage.Alert) int64 {
		return a.ChatID
	})

	for owner, ownerAlerts := range byOwner {
		body, resolved := r.buildDigest(ownerAlerts, prices)
		if resolved == 0 {
			r.logger.Debug().Int64("chat_id", owner).Msg("no resolved prices for owner, skipping digest")
			continue
		}

		event := alerting.Event{ChatID: owner, Body: body}
		if err := r.dispatcher.Deliver(ctx, event); err != nil {
			r.logger.Error().Err(err).Int64("chat_id", owner).Msg("failed to deliver closing digest")
			continue
		}
		r.logger.Info().Int64("chat_id", owner).Int("tickers", resolved).Msg("closing digest sent")
	}

	return nil
}

func (r *Reporter) buildDigest(alerts []storage.Alert, prices map[string]decimal.Decimal) (string, int) {
	// One line per distinct ticker; duplicated directions collapse into the
	// emoji choice.
	type detail struct {
		buy  bool
		sell bool
	}
	details := make(map[string]*detail)
	order := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		d, ok := details[alert.Ticker]
		if !ok {
			d = &detail{}
			details[alert.Ticker] = d
			order = append(order, alert.Ticker)
		}
		if alert.Direction == storage.DirectionBuy {
			d.buy = true
		} else {
			d.sell = true
		}
	}

	var builder strings.Builder
	builder.WriteString("*Cotações de Fechamento B3* 📊\n")
	builder.WriteString(fmt.Sprintf("Referência: %s\n\n", time.Now().In(r.location).Format("02/01/2006 15:04")))

	resolved := 0
	for _, ticker := range order {
		price, ok := prices[ticker]
		if !ok || !price.IsPositive() {
			continue
		}
		emoji := "📈"
		if details[ticker].sell {
			emoji = "💰"
		}
		builder.WriteString(fmt.Sprintf("%s *%s*: R$ %s\n", emoji, market.DisplayTicker(ticker), price.StringFixed(2)))
		resolved++
	}

	if resolved > 0 {
		builder.WriteString(fmt.Sprintf("\n_Total de %d ativos com cotações disponíveis_", resolved))
	}
	return builder.String(), resolved
}
