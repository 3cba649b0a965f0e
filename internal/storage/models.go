package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction selects which side of the target price fires an alert.
type Direction string

const (
	// DirectionBuy fires when price drops to or below the target.
	DirectionBuy Direction = "buy"
	// DirectionSell fires when price rises to or above the target.
	DirectionSell Direction = "sell"
)

// ParseDirection validates a direction value read from user input or the database.
func ParseDirection(value string) (Direction, error) {
	switch Direction(value) {
	case DirectionBuy:
		return DirectionBuy, nil
	case DirectionSell:
		return DirectionSell, nil
	}
	return "", fmt.Errorf("invalid direction %q", value)
}

// State is the alert lifecycle state. The source system used a free-form
// string flag; here it is a closed set persisted as text.
type State string

const (
	// StateArmed means a future threshold crossing will fire a notification.
	StateArmed State = "armed"
	// StateTriggered means the threshold fired and further firing is
	// suppressed until re-arm.
	StateTriggered State = "triggered"
)

// ParseState validates a state value read from the database.
func ParseState(value string) (State, error) {
	switch State(value) {
	case StateArmed:
		return StateArmed, nil
	case StateTriggered:
		return StateTriggered, nil
	}
	return "", fmt.Errorf("invalid alert state %q", value)
}

// Alert is a persisted threshold watch owned by one chat.
type Alert struct {
	ID          int64
	Ticker      string
	Direction   Direction
	TargetPrice decimal.Decimal
	ChatID      int64
	State       State
	Edited      bool
	UpdatedAt   time.Time
}

// User is an allow-list entry gating the command surface.
type User struct {
	ID        int64
	ChatID    int64
	Name      string
	Active    bool
	CreatedAt time.Time
}
