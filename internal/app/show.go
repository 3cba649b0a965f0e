package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"b3-alerts/internal/market"
)

// ShowAlerts prints every persisted alert to the given writer.
func (a *App) ShowAlerts(ctx context.Context, out io.Writer) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListAlerts(ctx)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(out, "no alerts registered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTICKER\tDIRECTION\tTARGET\tCHAT\tSTATE\tUPDATED")
	for _, alert := range alerts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			alert.ID,
			market.DisplayTicker(alert.Ticker),
			alert.Direction,
			alert.TargetPrice.StringFixed(2),
			alert.ChatID,
			alert.State,
			alert.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}
