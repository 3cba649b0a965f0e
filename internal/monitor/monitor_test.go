package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"b3-alerts/internal/alerting"
	"b3-alerts/internal/storage"
)

type fakeStore struct {
	alerts  []storage.Alert
	listErr error
	saveErr error

	updated []struct {
		id    int64
		state storage.State
	}
	trace *[]string
}

func (f *fakeStore) ListAlerts(ctx context.Context) ([]storage.Alert, error) {
	return f.alerts, f.listErr
}

func (f *fakeStore) ListAlertsByOwner(ctx context.Context, chatID int64) ([]storage.Alert, error) {
	return nil, nil
}

func (f *fakeStore) UpsertAlert(ctx context.Context, chatID int64, ticker string, direction storage.Direction, target decimal.Decimal) (storage.Alert, bool, error) {
	return storage.Alert{}, false, nil
}

func (f *fakeStore) UpdateAlertState(ctx context.Context, id int64, state storage.State, ts time.Time) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.updated = append(f.updated, struct {
		id    int64
		state storage.State
	}{id, state})
	if f.trace != nil {
		*f.trace = append(*f.trace, "persist")
	}
	return nil
}

func (f *fakeStore) DeleteAlert(ctx context.Context, chatID int64, ticker string, direction storage.Direction) (bool, error) {
	return false, nil
}

func (f *fakeStore) DeleteAlertsByOwner(ctx context.Context, chatID int64) (int64, error) {
	return 0, nil
}

type fakeOracle struct {
	prices map[string]decimal.Decimal
	calls  [][]string
}

func (f *fakeOracle) Fetch(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	f.calls = append(f.calls, tickers)
	return f.prices
}

type fakeDispatcher struct {
	events []alerting.Event
	err    error
	trace  *[]string
}

func (f *fakeDispatcher) Deliver(ctx context.Context, event alerting.Event) error {
	f.events = append(f.events, event)
	if f.trace != nil {
		*f.trace = append(*f.trace, "dispatch")
	}
	return f.err
}

func testMonitor(store *fakeStore, oracle *fakeOracle, dispatcher *fakeDispatcher) *Monitor {
	return New(store, oracle, dispatcher, Options{Interval: time.Minute}, zerolog.Nop())
}

func TestCycleTriggersAndNotifies(t *testing.T) {
	store := &fakeStore{alerts: []storage.Alert{{
		ID:          7,
		Ticker:      "XYZ.SA",
		Direction:   storage.DirectionBuy,
		TargetPrice: decimal.RequireFromString("10.00"),
		ChatID:      99,
		State:       storage.StateArmed,
	}}}
	oracle := &fakeOracle{prices: map[string]decimal.Decimal{"XYZ.SA": decimal.RequireFromString("9.50")}}
	dispatcher := &fakeDispatcher{}

	if err := testMonitor(store, oracle, dispatcher).Cycle(context.Background()); err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}

	if len(store.updated) != 1 || store.updated[0].id != 7 || store.updated[0].state != storage.StateTriggered {
		t.Fatalf("alert should be persisted as triggered, got %+v", store.updated)
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("expected one notification, got %d", len(dispatcher.events))
	}
	body := dispatcher.events[0].Body
	if !strings.Contains(body, "10.00") || !strings.Contains(body, "9.50") {
		t.Fatalf("notification should reference target and price: %q", body)
	}
}

func TestCycleRearmsSilently(t *testing.T) {
	store := &fakeStore{alerts: []storage.Alert{{
		ID:          7,
		Ticker:      "XYZ.SA",
		Direction:   storage.DirectionBuy,
		TargetPrice: decimal.RequireFromString("10.00"),
		ChatID:      99,
		State:       storage.StateTriggered,
	}}}
	oracle := &fakeOracle{prices: map[string]decimal.Decimal{"XYZ.SA": decimal.RequireFromString("10.01")}}
	dispatcher := &fakeDispatcher{}

	if err := testMonitor(store, oracle, dispatcher).Cycle(context.Background()); err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}

	if len(store.updated) != 1 || store.updated[0].state != storage.StateArmed {
		t.Fatalf("alert should be persisted as armed, got %+v", store.updated)
	}
	if len(dispatcher.events) != 0 {
		t.Fatalf("re-arm must not notify, got %d events", len(dispatcher.events))
	}
}

func TestCycleFetchesSharedTickerOnce(t *testing.T) {
	target := decimal.RequireFromString("10.00")
	store := &fakeStore{alerts: []storage.Alert{
		{ID: 1, Ticker: "ABC.SA", Direction: storage.DirectionBuy, TargetPrice: target, ChatID: 1, State: storage.StateArmed},
		{ID: 2, Ticker: "ABC.SA", Direction: storage.DirectionSell, TargetPrice: target, ChatID: 2, State: storage.StateArmed},
	}}
	oracle := &fakeOracle{prices: map[string]decimal.Decimal{}}
	dispatcher := &fakeDispatcher{}

	if err := testMonitor(store, oracle, dispatcher).Cycle(context.Background()); err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}

	if len(oracle.calls) != 1 {
		t.Fatalf("oracle must be called once per cycle, got %d", len(oracle.calls))
	}
	if len(oracle.calls[0]) != 1 || oracle.calls[0][0] != "ABC.SA" {
		t.Fatalf("shared ticker should be requested once, got %v", oracle.calls[0])
	}
}

func TestCycleSkipsOracleWhenNoAlerts(t *testing.T) {
	store := &fakeStore{}
	oracle := &fakeOracle{}
	dispatcher := &fakeDispatcher{}

	if err := testMonitor(store, oracle, dispatcher).Cycle(context.Background()); err != nil {
		t.Fatalf("empty cycle should succeed: %v", err)
	}
	if len(oracle.calls) != 0 {
		t.Fatalf("oracle must not be called without alerts, got %d calls", len(oracle.calls))
	}
}

func TestCyclePersistsBeforeDispatch(t *testing.T) {
	var trace []string
	store := &fakeStore{
		alerts: []storage.Alert{{
			ID:          1,
			Ticker:      "XYZ.SA",
			Direction:   storage.DirectionBuy,
			TargetPrice: decimal.RequireFromString("10.00"),
			ChatID:      1,
			State:       storage.StateArmed,
		}},
		trace: &trace,
	}
	oracle := &fakeOracle{prices: map[string]decimal.Decimal{"XYZ.SA": decimal.RequireFromString("9.00")}}
	dispatcher := &fakeDispatcher{trace: &trace}

	if err := testMonitor(store, oracle, dispatcher).Cycle(context.Background()); err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}

	if len(trace) != 2 || trace[0] != "persist" || trace[1] != "dispatch" {
		t.Fatalf("state must be durable before delivery, got order %v", trace)
	}
}

func TestCycleAbortsOnStoreFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	if err := testMonitor(store, &fakeOracle{}, &fakeDispatcher{}).Cycle(context.Background()); err == nil {
		t.Fatal("store failure should abort the cycle")
	}
}

func TestCycleToleratesDispatchFailure(t *testing.T) {
	store := &fakeStore{alerts: []storage.Alert{{
		ID:          1,
		Ticker:      "XYZ.SA",
		Direction:   storage.DirectionBuy,
		TargetPrice: decimal.RequireFromString("10.00"),
		ChatID:      1,
		State:       storage.StateArmed,
	}}}
	oracle := &fakeOracle{prices: map[string]decimal.Decimal{"XYZ.SA": decimal.RequireFromString("9.00")}}
	dispatcher := &fakeDispatcher{err: errors.New("transport stalled")}

	if err := testMonitor(store, oracle, dispatcher).Cycle(context.Background()); err != nil {
		t.Fatalf("delivery failure must not fail the cycle: %v", err)
	}
	if len(store.updated) != 1 {
		t.Fatalf("state transition must stay persisted, got %+v", store.updated)
	}
}
