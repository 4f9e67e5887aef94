package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateCategory inserts a category owned by userID.
func (s *Store) CreateCategory(ctx context.Context, c *Category) (int64, error) {
	if c.UserID == 0 {
		return 0, ErrOwnerRequired
	}
	res, err := s.exec(ctx,
		`INSERT INTO categories (user_id, name, active) VALUES (?, ?, 1)`,
		c.UserID, c.Name)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	return res.LastInsertId()
}

// GetCategory fetches one active category owned by userID. A row owned by a
// different user is indistinguishable from absence.
func (s *Store) GetCategory(ctx context.Context, userID, id int64) (*Category, error) {
	if userID == 0 {
		return nil, ErrOwnerRequired
	}
	c := &Category{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, active, created_at
		 FROM categories WHERE id = ? AND user_id = ? AND active = 1`, id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Active, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns the caller's active categories.
func (s *Store) ListCategories(ctx context.Context, userID int64) ([]*Category, error) {
	if userID == 0 {
		return nil, ErrOwnerRequired
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, active, created_at
		 FROM categories WHERE user_id = ? AND active = 1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []*Category{}
	for rows.Next() {
		c := &Category{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCategory renames a category. ErrNotFound covers both true absence
// and foreign ownership.
func (s *Store) UpdateCategory(ctx context.Context, userID int64, c *Category) error {
	if userID == 0 {
		return ErrOwnerRequired
	}
	res, err := s.exec(ctx,
		`UPDATE categories SET name = ? WHERE id = ? AND user_id = ? AND active = 1`,
		c.Name, c.ID, userID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory soft-deletes by clearing the active flag.
func (s *Store) DeleteCategory(ctx context.Context, userID, id int64) error {
	if userID == 0 {
		return ErrOwnerRequired
	}
	res, err := s.exec(ctx,
		`UPDATE categories SET active = 0 WHERE id = ? AND user_id = ? AND active = 1`,
		id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
