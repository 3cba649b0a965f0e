package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestClient(baseURL string) *Client {
	return NewClient(ClientOptions{
		BaseURL:   baseURL,
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger())
}

func TestQuoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/finance/quote" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"quoteResponse": map[string]any{
				"result": []map[string]any{{
					"symbol":                     "PETR4.SA",
					"regularMarketPrice":         30.52,
					"regularMarketPreviousClose": 30.10,
				}},
			},
		})
	}))
	defer srv.Close()

	snap, err := newTestClient(srv.URL).Quote(context.Background(), "PETR4.SA")
	if err != nil {
		t.Fatalf("quote should succeed: %v", err)
	}
	if snap.LastPrice.String() != "30.52" {
		t.Fatalf("unexpected last price %s", snap.LastPrice)
	}
	if snap.PreviousClose.String() != "30.1" {
		t.Fatalf("unexpected previous close %s", snap.PreviousClose)
	}
}

func TestQuoteMissingSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"quoteResponse": map[string]any{"result": []map[string]any{}},
		})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Quote(context.Background(), "NOPE.SA"); err == nil {
		t.Fatal("missing symbol should return an error")
	}
}

func TestQuoteManyPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbols"); got != "AAA.SA,BBB.SA" {
			t.Fatalf("symbols should be comma joined, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"quoteResponse": map[string]any{
				"result": []map[string]any{
					{"symbol": "AAA.SA", "regularMarketPrice": 10.0},
					{"symbol": "BBB.SA"},
				},
			},
		})
	}))
	defer srv.Close()

	prices, err := newTestClient(srv.URL).QuoteMany(context.Background(), []string{"AAA.SA", "BBB.SA"})
	if err != nil {
		t.Fatalf("batch quote should succeed: %v", err)
	}
	if len(prices) != 1 {
		t.Fatalf("symbol without price fields must be absent, got %v", prices)
	}
}

func TestQuoteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "rate-limit", "description": "too many requests"},
		})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Quote(context.Background(), "PETR4.SA"); err == nil {
		t.Fatal("HTTP 429 should return an error")
	}
}

func TestRecentHistorySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/PETR4.SA" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chart": map[string]any{
				"result": []map[string]any{{
					"indicators": map[string]any{
						"quote": []map[string]any{{
							"close": []any{30.1, nil, 30.9},
						}},
					},
				}},
			},
		})
	}))
	defer srv.Close()

	closes, err := newTestClient(srv.URL).RecentHistory(context.Background(), "PETR4.SA", 2)
	if err != nil {
		t.Fatalf("history should succeed: %v", err)
	}
	if len(closes) != 2 {
		t.Fatalf("null closes should be dropped, got %d values", len(closes))
	}
	if closes[len(closes)-1].String() != "30.9" {
		t.Fatalf("closes should stay ordered, last = %s", closes[len(closes)-1])
	}
}

func TestRecentHistoryEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chart": map[string]any{"result": []map[string]any{}},
		})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).RecentHistory(context.Background(), "PETR4.SA", 2); err == nil {
		t.Fatal("empty chart should return an error")
	}
}

func TestSanitizeTicker(t *testing.T) {
	cases := map[string]string{
		"petr4":       "PETR4.SA",
		" PETR4 ":     "PETR4.SA",
		"petr4.sa":    "PETR4.SA",
		"PETR4.SA.SA": "PETR4.SA",
		"MXRF11":      "MXRF11.SA",
	}
	for input, want := range cases {
		if got := SanitizeTicker(input); got != want {
			t.Fatalf("SanitizeTicker(%q) = %q, want %q", input, got, want)
		}
	}
	if got := DisplayTicker("PETR4.SA"); got != "PETR4" {
		t.Fatalf("DisplayTicker should strip the suffix, got %q", got)
	}
}
