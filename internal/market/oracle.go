package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OracleOptions tune the two-phase price resolution.
type OracleOptions struct {
	// Workers bounds concurrent per-symbol fetches in phase one.
	Workers int
	// FetchTimeout caps every individual provider call.
	FetchTimeout time.Duration
	// CoverageThreshold is the fraction of requested tickers phase one must
	// resolve for the batch fallback to be skipped.
	CoverageThreshold float64
	// HistoryWindow is the day count for the historical fallback source.
	HistoryWindow int
}

// Oracle resolves best-known current prices for a set of tickers. It never
// fails the caller; unresolved tickers are absent from the result.
type Oracle struct {
	provider Provider
	opts     OracleOptions
	logger   zerolog.Logger
}

// NewOracle constructs a price oracle on top of a market provider.
func NewOracle(provider Provider, opts OracleOptions, logger zerolog.Logger) *Oracle {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.CoverageThreshold <= 0 {
		opts.CoverageThreshold = 0.5
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 2
	}
	return &Oracle{
		provider: provider,
		opts:     opts,
		logger:   logger.With().Str("component", "price_oracle").Logger(),
	}
}

// Fetch resolves prices for as many of the given tickers as possible.
// Phase one asks the provider per symbol through a bounded worker pool,
// trying the live price, then the previous close, then the last close of a
// short history window. When phase one covers fewer than the configured
// fraction of tickers, one batched request fills in the still-missing ones
// without overwriting anything phase one already found.
func (o *Oracle) Fetch(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(tickers))
	if len(tickers) == 0 {
		return prices
	}

	type resolved struct {
		ticker string
		price  decimal.Decimal
	}

	jobs := make(chan string)
	results := make(chan resolved, len(tickers))

	var wg sync.WaitGroup
	workers := o.opts.Workers
	if workers > len(tickers) {
		workers = len(tickers)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				if price, ok := o.resolveOne(ctx, ticker); ok {
					results <- resolved{ticker: ticker, price: price}
				}
			}
		}()
	}

	for _, ticker := range tickers {
		jobs <- ticker
	}
	close(jobs)
	wg.Wait()
	close(results)

	for r := range results {
		prices[r.ticker] = r.price
	}

	coverage := float64(len(prices)) / float64(len(tickers))
	if coverage >= o.opts.CoverageThreshold {
		return prices
	}

	missing := make([]string, 0, len(tickers)-len(prices))
	for _, ticker := range tickers {
		if _, ok := prices[ticker]; !ok {
			missing = append(missing, ticker)
		}
	}

	o.logger.Info().
		Int("resolved", len(prices)).
		Int("requested", len(tickers)).
		Int("missing", len(missing)).
		Msg("low coverage, falling back to batch quote")

	batchCtx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	defer cancel()

	batch, err := o.provider.QuoteMany(batchCtx, missing)
	if err != nil {
		o.logger.Warn().Err(err).Msg("batch quote failed, proceeding with partial prices")
		return prices
	}

	for ticker, price := range batch {
		if _, ok := prices[ticker]; ok {
			continue
		}
		if price.IsPositive() {
			prices[ticker] = price
		}
	}
	return prices
}

func (o *Oracle) resolveOne(ctx context.Context, ticker string) (decimal.Decimal, bool) {
	quoteCtx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	snap, err := o.provider.Quote(quoteCtx, ticker)
	cancel()
	if err != nil {
		o.logger.Debug().Err(err).Str("ticker", ticker).Msg("quote failed")
	} else if price, ok := snap.best(); ok {
		return price, true
	}

	histCtx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	closes, err := o.provider.RecentHistory(histCtx, ticker, o.opts.HistoryWindow)
	cancel()
	if err != nil {
		o.logger.Debug().Err(err).Str("ticker", ticker).Msg("history fallback failed")
		return decimal.Decimal{}, false
	}
	if len(closes) == 0 {
		o.logger.Debug().Str("ticker", ticker).Msg("history fallback returned no closes")
		return decimal.Decimal{}, false
	}

	last := closes[len(closes)-1]
	if !last.IsPositive() {
		return decimal.Decimal{}, false
	}
	return last, true
}
