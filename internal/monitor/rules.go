package monitor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"b3-alerts/internal/alerting"
	"b3-alerts/internal/market"
	"b3-alerts/internal/storage"
)

// Decision is the outcome of evaluating one alert against one price.
type Decision struct {
	Next    storage.State
	Changed bool
	Event   *alerting.Event
}

// Evaluate runs one alert through the threshold state machine. It is pure:
// the same alert and price always yield the same decision.
//
// An unknown price holds the current state and emits nothing. An armed
// alert fires inclusively (<= for buy, >= for sell) and emits exactly one
// event. A triggered alert re-arms silently only once price has moved
// strictly past the target in the favourable direction; sitting exactly on
// the target never oscillates state. A re-armed alert does not also fire
// within the same evaluation.
func Evaluate(alert storage.Alert, price decimal.Decimal, known bool) Decision {
	hold := Decision{Next: alert.State}
	if !known {
		return hold
	}

	switch alert.State {
	case storage.StateArmed:
		fired := false
		switch alert.Direction {
		case storage.DirectionBuy:
			fired = price.LessThanOrEqual(alert.TargetPrice)
		case storage.DirectionSell:
			fired = price.GreaterThanOrEqual(alert.TargetPrice)
		}
		if !fired {
			return hold
		}
		event := buildEvent(alert, price)
		return Decision{Next: storage.StateTriggered, Changed: true, Event: &event}

	case storage.StateTriggered:
		rearmed := false
		switch alert.Direction {
		case storage.DirectionBuy:
			rearmed = price.GreaterThan(alert.TargetPrice)
		case storage.DirectionSell:
			rearmed = price.LessThan(alert.TargetPrice)
		}
		if !rearmed {
			return hold
		}
		return Decision{Next: storage.StateArmed, Changed: true}
	}

	return hold
}

func buildEvent(alert storage.Alert, price decimal.Decimal) alerting.Event {
	display := market.DisplayTicker(alert.Ticker)

	action := "COMPRA"
	lead := "Preço alvo de compra atingido!"
	if alert.Direction == storage.DirectionSell {
		action = "VENDA"
		lead = "Preço alvo de venda atingido!"
	}

	subject := fmt.Sprintf("*%s* - %s @ R$ %s", action, display, price.StringFixed(2))
	body := fmt.Sprintf(
		"%s\n\nAlvo: R$ %s\nPreço atual: R$ %s\n\nO alerta rearma sozinho quando o preço voltar a cruzar o alvo, ou use /set com o mesmo ticker e tipo para rearmar agora.",
		lead,
		alert.TargetPrice.StringFixed(2),
		price.StringFixed(2),
	)

	return alerting.Event{ChatID: alert.ChatID, Subject: subject, Body: body}
}
