package app

import (
	"context"

	"b3-alerts/internal/alerting"
	"b3-alerts/internal/report"
	"b3-alerts/internal/telegram"
)

// SendClosingQuotes runs the daily digest once, outside the schedule. The
// bot loop is not running here, so delivery goes straight to the transport.
func (a *App) SendClosingQuotes(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tg, err := a.newTelegram()
	if err != nil {
		return err
	}

	location, _, err := a.reportLocation()
	if err != nil {
		return err
	}

	reporter := report.New(store, a.newOracle(a.newMarketClient()), &directDispatcher{client: tg}, location, a.Logger)
	return reporter.SendClosingQuotes(ctx)
}

// directDispatcher sends without crossing into the bot loop.
type directDispatcher struct {
	client *telegram.Client
}

func (d *directDispatcher) Deliver(ctx context.Context, event alerting.Event) error {
	text := event.Body
	if event.Subject != "" {
		text = event.Subject + "\n\n" + event.Body
	}
	return d.client.SendMessage(ctx, event.ChatID, text, nil)
}

var _ alerting.Dispatcher = (*directDispatcher)(nil)
