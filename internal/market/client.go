package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	quotePath = "/v7/finance/quote"
	chartPath = "/v8/finance/chart/"
)

// ClientOptions parameterise the quote provider client.
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches quotes from a Yahoo-compatible finance API.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a market client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "market_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Quote fetches the snapshot for one symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (Snapshot, error) {
	results, err := c.fetchQuotes(ctx, []string{symbol})
	if err != nil {
		return Snapshot{}, err
	}
	snap, ok := results[symbol]
	if !ok {
		return Snapshot{}, fmt.Errorf("no quote returned for %s", symbol)
	}
	return snap, nil
}

// QuoteMany fetches prices for many symbols in one batched request.
func (c *Client) QuoteMany(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	results, err := c.fetchQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(results))
	for symbol, snap := range results {
		if price, ok := snap.best(); ok {
			prices[symbol] = price
		}
	}
	return prices, nil
}

// RecentHistory fetches the last few daily closes for one symbol, oldest first.
func (c *Client) RecentHistory(ctx context.Context, symbol string, days int) ([]decimal.Decimal, error) {
	if days <= 0 {
		days = 2
	}

	endpoint := fmt.Sprintf("%s%s%s?range=%dd&interval=1d", c.baseURL, chartPath, url.PathEscape(symbol), days)
	payload, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var chartRes chartResponse
	if err := json.Unmarshal(payload, &chartRes); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if chartRes.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error: %s", chartRes.Chart.Error.Description)
	}
	if len(chartRes.Chart.Result) == 0 || len(chartRes.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart response empty for %s", symbol)
	}

	raw := chartRes.Chart.Result[0].Indicators.Quote[0].Close
	closes := make([]decimal.Decimal, 0, len(raw))
	for _, v := range raw {
		if v == nil || *v <= 0 {
			continue
		}
		closes = append(closes, decimal.NewFromFloat(*v))
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no usable closes for %s", symbol)
	}
	return closes, nil
}

func (c *Client) fetchQuotes(ctx context.Context, symbols []string) (map[string]Snapshot, error) {
	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))

	endpoint := c.baseURL + quotePath + "?" + query.Encode()
	payload, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var quoteRes quoteResponse
	if err := json.Unmarshal(payload, &quoteRes); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}
	if quoteRes.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote api error: %s", quoteRes.QuoteResponse.Error.Description)
	}

	results := make(map[string]Snapshot, len(quoteRes.QuoteResponse.Result))
	for _, entry := range quoteRes.QuoteResponse.Result {
		snap := Snapshot{}
		if entry.RegularMarketPrice != nil && *entry.RegularMarketPrice > 0 {
			snap.LastPrice = decimal.NewFromFloat(*entry.RegularMarketPrice)
		}
		if entry.RegularMarketPreviousClose != nil && *entry.RegularMarketPreviousClose > 0 {
			snap.PreviousClose = decimal.NewFromFloat(*entry.RegularMarketPreviousClose)
		}
		results[entry.Symbol] = snap
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "b3alerts/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}
	return payload, nil
}

func (s Snapshot) best() (decimal.Decimal, bool) {
	if s.LastPrice.IsPositive() {
		return s.LastPrice, true
	}
	if s.PreviousClose.IsPositive() {
		return s.PreviousClose, true
	}
	return decimal.Decimal{}, false
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			RegularMarketPrice         *float64 `json:"regularMarketPrice"`
			RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteResponse"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func parseHTTPError(status int, payload []byte) error {
	var wrapped struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Error != nil {
		if wrapped.Error.Description != "" {
			return fmt.Errorf("market api error (%d): %s", status, wrapped.Error.Description)
		}
		if wrapped.Error.Code != "" {
			return fmt.Errorf("market api error (%d): %s", status, wrapped.Error.Code)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("market api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("market api error (%d)", status)
}

var _ Provider = (*Client)(nil)
