package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetUserByUsername fetches a user for login. Returns ErrNotFound for an
// unknown username so the handler can reply with a uniform 401.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, device_id, plan_type, plan_expires_at, created_at
		 FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DeviceID, &u.PlanType, &u.PlanExpiresAt, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a user row. Used by provisioning and tests.
func (s *Store) CreateUser(ctx context.Context, u *User) (int64, error) {
	res, err := s.exec(ctx,
		`INSERT INTO users (username, password_hash, device_id, plan_type, plan_expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.DeviceID, u.PlanType, u.PlanExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

// UpdateUserDevice records the device a user last logged in from.
func (s *Store) UpdateUserDevice(ctx context.Context, userID int64, deviceID string) error {
	_, err := s.exec(ctx, `UPDATE users SET device_id = ? WHERE id = ?`, deviceID, userID)
	return err
}
