package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	listAlertsSQL = `SELECT
        id, ticker, direction, target_price, chat_id, state, edited, updated_at
    FROM alerts
    ORDER BY id;`

	listAlertsByOwnerSQL = `SELECT
        id, ticker, direction, target_price, chat_id, state, edited, updated_at
    FROM alerts
    WHERE chat_id = $1
    ORDER BY ticker, direction;`

	upsertAlertSQL = `INSERT INTO alerts (
        ticker, direction, target_price, chat_id, state, edited, updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,false,$6
    )
    ON CONFLICT (chat_id, ticker, direction) DO UPDATE
    SET target_price = EXCLUDED.target_price,
        state        = EXCLUDED.state,
        edited       = true,
        updated_at   = EXCLUDED.updated_at
    RETURNING id, ticker, direction, target_price, chat_id, state, edited, updated_at;`

	updateAlertStateSQL = `UPDATE alerts
    SET state = $2, updated_at = $3
    WHERE id = $1;`

	deleteAlertSQL = `DELETE FROM alerts
    WHERE chat_id = $1 AND ticker = $2 AND direction = $3;`

	deleteAlertsByOwnerSQL = `DELETE FROM alerts WHERE chat_id = $1;`
)

// AlertStore defines persistence operations the monitor and the command
// surface need for threshold alerts.
type AlertStore interface {
	ListAlerts(ctx context.Context) ([]Alert, error)
	ListAlertsByOwner(ctx context.Context, chatID int64) ([]Alert, error)
	UpsertAlert(ctx context.Context, chatID int64, ticker string, direction Direction, target decimal.Decimal) (Alert, bool, error)
	UpdateAlertState(ctx context.Context, id int64, state State, ts time.Time) error
	DeleteAlert(ctx context.Context, chatID int64, ticker string, direction Direction) (bool, error)
	DeleteAlertsByOwner(ctx context.Context, chatID int64) (int64, error)
}

// ListAlerts loads every persisted alert.
func (s *Store) ListAlerts(ctx context.Context) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ListAlertsByOwner loads the alerts belonging to one chat.
func (s *Store) ListAlertsByOwner(ctx context.Context, chatID int64) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsByOwnerSQL, chatID)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts by owner: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// UpsertAlert creates or edits the alert keyed by (chat, ticker, direction)
// and resets its state to armed. The second return reports whether an
// existing alert was edited.
func (s *Store) UpsertAlert(ctx context.Context, chatID int64, ticker string, direction Direction, target decimal.Decimal) (Alert, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, false, err
	}

	row := pool.QueryRow(ctx, upsertAlertSQL,
		ticker,
		string(direction),
		target.String(),
		chatID,
		string(StateArmed),
		time.Now().UTC(),
	)

	alert, scanErr := scanAlert(row)
	if scanErr != nil {
		return Alert{}, false, fmt.Errorf("upsert alert: %w", scanErr)
	}
	return alert, alert.Edited, nil
}

// UpdateAlertState persists a state transition decided by the monitor.
func (s *Store) UpdateAlertState(ctx context.Context, id int64, state State, ts time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateAlertStateSQL, id, string(state), ts)
	if execErr != nil {
		return fmt.Errorf("update alert state: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteAlert removes one alert by its natural key.
func (s *Store) DeleteAlert(ctx context.Context, chatID int64, ticker string, direction Direction) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteAlertSQL, chatID, ticker, string(direction))
	if execErr != nil {
		return false, fmt.Errorf("delete alert: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// DeleteAlertsByOwner removes every alert of one chat and returns the count.
func (s *Store) DeleteAlertsByOwner(ctx context.Context, chatID int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteAlertsByOwnerSQL, chatID)
	if execErr != nil {
		return 0, fmt.Errorf("delete alerts by owner: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

func collectAlerts(rows pgx.Rows) ([]Alert, error) {
	alerts := make([]Alert, 0)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanAlert(row pgx.Row) (Alert, error) {
	var (
		alert        Alert
		directionStr string
		targetStr    string
		stateStr     string
	)

	if err := row.Scan(
		&alert.ID,
		&alert.Ticker,
		&directionStr,
		&targetStr,
		&alert.ChatID,
		&stateStr,
		&alert.Edited,
		&alert.UpdatedAt,
	); err != nil {
		return Alert{}, err
	}

	direction, err := ParseDirection(directionStr)
	if err != nil {
		return Alert{}, fmt.Errorf("scan alert: %w", err)
	}
	state, err := ParseState(stateStr)
	if err != nil {
		return Alert{}, fmt.Errorf("scan alert: %w", err)
	}
	target, err := decimal.NewFromString(targetStr)
	if err != nil {
		return Alert{}, fmt.Errorf("parse target price: %w", err)
	}

	alert.Direction = direction
	alert.State = state
	alert.TargetPrice = target
	return alert, nil
}

var _ AlertStore = (*Store)(nil)
