package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	isAuthorizedSQL = `SELECT EXISTS (
        SELECT 1 FROM authorized_users WHERE chat_id = $1 AND active = true
    );`

	addUserSQL = `INSERT INTO authorized_users (chat_id, name, active, created_at)
    VALUES ($1, $2, true, $3)
    ON CONFLICT (chat_id) DO UPDATE
    SET name = EXCLUDED.name, active = true;`

	setUserActiveSQL = `UPDATE authorized_users SET active = $2 WHERE chat_id = $1;`

	listUsersSQL = `SELECT id, chat_id, name, active, created_at
    FROM authorized_users
    ORDER BY created_at;`
)

// UserStore is the allow-list consumed by the command handlers. The monitor
// never consults it; persisted alerts are trusted as-is.
type UserStore interface {
	IsAuthorized(ctx context.Context, chatID int64) (bool, error)
	AddUser(ctx context.Context, chatID int64, name string) error
	SetUserActive(ctx context.Context, chatID int64, active bool) error
	ListUsers(ctx context.Context) ([]User, error)
}

// IsAuthorized reports whether the chat is on the allow-list and active.
func (s *Store) IsAuthorized(ctx context.Context, chatID int64) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	var authorized bool
	if scanErr := pool.QueryRow(ctx, isAuthorizedSQL, chatID).Scan(&authorized); scanErr != nil {
		return false, fmt.Errorf("check authorization: %w", scanErr)
	}
	return authorized, nil
}

// AddUser registers (or reactivates) an allow-list entry.
func (s *Store) AddUser(ctx context.Context, chatID int64, name string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, addUserSQL, chatID, name, time.Now().UTC()); execErr != nil {
		return fmt.Errorf("add user: %w", execErr)
	}
	return nil
}

// SetUserActive toggles an existing user's access.
func (s *Store) SetUserActive(ctx context.Context, chatID int64, active bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, setUserActiveSQL, chatID, active)
	if execErr != nil {
		return fmt.Errorf("set user active: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListUsers returns every allow-list entry.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listUsersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list users: %w", queryErr)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.ChatID, &user.Name, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return users, nil
}

var _ UserStore = (*Store)(nil)
