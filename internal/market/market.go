package market

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Snapshot carries the price fields a single-symbol quote exposes. Fields
// that the provider did not populate are zero.
type Snapshot struct {
	LastPrice     decimal.Decimal
	PreviousClose decimal.Decimal
}

// Provider is the market-data surface the oracle consumes.
type Provider interface {
	// Quote fetches the snapshot for one symbol.
	Quote(ctx context.Context, symbol string) (Snapshot, error)
	// RecentHistory fetches an ordered window of recent daily closes.
	RecentHistory(ctx context.Context, symbol string, days int) ([]decimal.Decimal, error)
	// QuoteMany fetches prices for many symbols in one request. The result
	// is partial; unresolved symbols are simply absent from the map.
	QuoteMany(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// SanitizeTicker normalises a B3 symbol to its exchange-suffixed canonical
// form: uppercase, trimmed, ending in ".SA".
func SanitizeTicker(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	ticker = strings.ReplaceAll(ticker, ".SA", "")
	return ticker + ".SA"
}

// DisplayTicker strips the exchange suffix for user-facing messages.
func DisplayTicker(ticker string) string {
	return strings.TrimSuffix(ticker, ".SA")
}
