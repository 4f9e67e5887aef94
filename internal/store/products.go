package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateProduct inserts a product owned by p.UserID. An unset category falls
// back to the well-known default.
func (s *Store) CreateProduct(ctx context.Context, p *Product) (int64, error) {
	if p.UserID == 0 {
		return 0, ErrOwnerRequired
	}
	if p.Name == "" {
		return 0, validationError("product name required")
	}
	if p.Price < 0 {
		return 0, validationError("product price must be >= 0")
	}
	if p.CategoryID == 0 {
		p.CategoryID = DefaultCategoryID
	}
	res, err := s.exec(ctx,
		`INSERT INTO products (user_id, category_id, name, price, stock, active)
		 VALUES (?, ?, ?, ?, ?, 1)`,
		p.UserID, p.CategoryID, p.Name, p.Price, p.Stock)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return res.LastInsertId()
}

// GetProduct fetches one active product owned by userID.
func (s *Store) GetProduct(ctx context.Context, userID, id int64) (*Product, error) {
	if userID == 0 {
		return nil, ErrOwnerRequired
	}
	p := &Product{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, category_id, name, price, stock, active, created_at, updated_at
		 FROM products WHERE id = ? AND user_id = ? AND active = 1`, id, userID).
		Scan(&p.ID, &p.UserID, &p.CategoryID, &p.Name, &p.Price, &p.Stock, &p.Active,
			&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts returns the caller's active products.
func (s *Store) ListProducts(ctx context.Context, userID int64) ([]*Product, error) {
	if userID == 0 {
		return nil, ErrOwnerRequired
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, category_id, name, price, stock, active, created_at, updated_at
		 FROM products WHERE user_id = ? AND active = 1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []*Product{}
	for rows.Next() {
		p := &Product{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.CategoryID, &p.Name, &p.Price, &p.Stock,
			&p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProduct rewrites the mutable fields of a product the caller owns.
func (s *Store) UpdateProduct(ctx context.Context, userID int64, p *Product) error {
	if userID == 0 {
		return ErrOwnerRequired
	}
	if p.Name == "" {
		return validationError("product name required")
	}
	if p.Price < 0 {
		return validationError("product price must be >= 0")
	}
	if p.CategoryID == 0 {
		p.CategoryID = DefaultCategoryID
	}
	res, err := s.exec(ctx,
		`UPDATE products
		 SET category_id = ?, name = ?, price = ?, stock = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ? AND active = 1`,
		p.CategoryID, p.Name, p.Price, p.Stock, p.ID, userID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct soft-deletes by clearing the active flag.
func (s *Store) DeleteProduct(ctx context.Context, userID, id int64) error {
	if userID == 0 {
		return ErrOwnerRequired
	}
	res, err := s.exec(ctx,
		`UPDATE products SET active = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ? AND active = 1`, id, userID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
