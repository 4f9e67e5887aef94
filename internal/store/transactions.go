package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mattn/go-sqlite3"
)

// CheckoutInput is the POST /transactions payload shape.
type CheckoutInput struct {
	Header Transaction        `json:"header"`
	Items  []*TransactionItem `json:"items"`
}

// Checkout commits one sale atomically: header, items, one cash movement and
// one stock-sale row per item with a product id. Any failure rolls the whole
// unit back. A duplicate header code is rejected with ErrDuplicateCode and
// leaves the database untouched.
func (s *Store) Checkout(ctx context.Context, userID int64, in *CheckoutInput) (*Transaction, error) {
	if userID == 0 {
		return nil, ErrOwnerRequired
	}
	if len(in.Items) == 0 {
		return nil, validationError("checkout requires at least one item")
	}

	h := in.Header
	h.UserID = userID
	if h.Status == "" {
		h.Status = StatusPaid
	}
	if h.PaymentMethod == "" {
		h.PaymentMethod = PaymentCash
	}

	// Recompute derived amounts from the items so the post-commit invariants
	// hold regardless of what the client sent.
	var subtotal float64
	for _, it := range in.Items {
		if it.Qty <= 0 {
			return nil, validationError("item qty must be positive")
		}
		if it.Name == "" {
			return nil, validationError("item name required")
		}
		it.Subtotal = it.UnitPrice * float64(it.Qty)
		if it.LineTotal == 0 {
			it.LineTotal = it.Subtotal
		}
		subtotal += it.Subtotal
	}
	h.Subtotal = subtotal
	h.Total = h.Subtotal - h.DiscountTotal + h.TaxTotal
	h.ChangeAmount = math.Max(0, h.PaidAmount-h.Total)

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if h.Code == "" {
			code, err := nextTransactionCode(tx, time.Now())
			if err != nil {
				return fmt.Errorf("generate code: %w", err)
			}
			h.Code = code
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions
			 (code, user_id, status, subtotal, discount_total, tax_total, total,
			  paid_amount, change_amount, payment_method)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.Code, h.UserID, h.Status, h.Subtotal, h.DiscountTotal, h.TaxTotal,
			h.Total, h.PaidAmount, h.ChangeAmount, h.PaymentMethod)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateCode
			}
			return fmt.Errorf("insert header: %w", err)
		}
		h.ID, _ = res.LastInsertId()

		for _, it := range in.Items {
			// A product reference must resolve to a live product the caller
			// owns; anything else aborts the whole unit.
			if it.ProductID != nil {
				var owned int
				err := tx.QueryRowContext(ctx,
					`SELECT COUNT(1) FROM products WHERE id = ? AND user_id = ? AND active = 1`,
					*it.ProductID, userID).Scan(&owned)
				if err != nil {
					return fmt.Errorf("check product owner: %w", err)
				}
				if owned == 0 {
					return ErrForeignRow
				}
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transaction_items
				 (transaction_id, product_id, name, unit_price, qty, subtotal, line_total)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				h.ID, it.ProductID, it.Name, it.UnitPrice, it.Qty, it.Subtotal, it.LineTotal); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cash_movements (transaction_id, user_id, amount, direction, note)
			 VALUES (?, ?, ?, 'in', ?)`,
			h.ID, userID, h.PaidAmount, "checkout "+h.Code); err != nil {
			return fmt.Errorf("insert cash movement: %w", err)
		}

		for _, it := range in.Items {
			if it.ProductID == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO stock_sales (transaction_id, product_id, user_id, qty)
				 VALUES (?, ?, ?, ?)`,
				h.ID, *it.ProductID, userID, it.Qty); err != nil {
				return fmt.Errorf("insert stock sale: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTransaction(ctx, userID, h.ID)
}

// nextTransactionCode allocates the per-day monotonic counter inside the
// checkout transaction, yielding codes like TRX-20260824-001.
func nextTransactionCode(tx *sql.Tx, now time.Time) (string, error) {
	day := now.Format("20060102")
	var n int64
	err := tx.QueryRow(
		`INSERT INTO trx_counters (day, n) VALUES (?, 1)
		 ON CONFLICT(day) DO UPDATE SET n = n + 1
		 RETURNING n`, day).Scan(&n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TRX-%s-%03d", day, n), nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// GetTransaction returns one header the caller owns.
func (s *Store) GetTransaction(ctx context.Context, userID, id int64) (*Transaction, error) {
	if userID == 0 {
		return nil, ErrOwnerRequired
	}
	t := &Transaction{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, user_id, status, subtotal, discount_total, tax_total, total,
		        paid_amount, change_amount, payment_method, created_at
		 FROM transactions WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&t.ID, &t.Code, &t.UserID, &t.Status, &t.Subtotal, &t.DiscountTotal,
			&t.TaxTotal, &t.Total, &t.PaidAmount, &t.ChangeAmount, &t.PaymentMethod, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the caller's headers, optionally bounded by
// [start, end].
func (s *Store) ListTransactions(ctx context.Context, userID int64, start, end *time.Time) ([]*Transaction, error) {
	if userID == 0 {
		return nil, ErrOwnerRequired
	}

	query := `SELECT id, code, user_id, status, subtotal, discount_total, tax_total, total,
	                 paid_amount, change_amount, payment_method, created_at
	          FROM transactions WHERE user_id = ?`
	args := []interface{}{userID}
	if start != nil {
		query += ` AND created_at >= ?`
		args = append(args, start.UTC())
	}
	if end != nil {
		query += ` AND created_at <= ?`
		args = append(args, end.UTC())
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []*Transaction{}
	for rows.Next() {
		t := &Transaction{}
		if err := rows.Scan(&t.ID, &t.Code, &t.UserID, &t.Status, &t.Subtotal,
			&t.DiscountTotal, &t.TaxTotal, &t.Total, &t.PaidAmount, &t.ChangeAmount,
			&t.PaymentMethod, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransactionItems returns the items of a header the caller owns.
func (s *Store) ListTransactionItems(ctx context.Context, userID, id int64) ([]*TransactionItem, error) {
	if _, err := s.GetTransaction(ctx, userID, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, transaction_id, product_id, name, unit_price, qty, subtotal, line_total
		 FROM transaction_items WHERE transaction_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	out := []*TransactionItem{}
	for rows.Next() {
		it := &TransactionItem{}
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.ProductID, &it.Name,
			&it.UnitPrice, &it.Qty, &it.Subtotal, &it.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CancelTransaction moves a PAID or COMPLETED header to CANCELLED and writes
// compensating cash and stock entries. The original rows stay intact for
// audit.
func (s *Store) CancelTransaction(ctx context.Context, userID, id int64) error {
	if userID == 0 {
		return ErrOwnerRequired
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		t := &Transaction{}
		err := tx.QueryRowContext(ctx,
			`SELECT id, code, status, paid_amount FROM transactions WHERE id = ? AND user_id = ?`,
			id, userID).Scan(&t.ID, &t.Code, &t.Status, &t.PaidAmount)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}
		if t.Status != StatusPaid && t.Status != StatusCompleted {
			return ErrInvalidStatus
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = ? WHERE id = ?`, StatusCancelled, id); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cash_movements (transaction_id, user_id, amount, direction, note)
			 VALUES (?, ?, ?, 'out', ?)`,
			id, userID, t.PaidAmount, "cancel "+t.Code); err != nil {
			return fmt.Errorf("insert reversal cash movement: %w", err)
		}

		// One negative stock-sale per original stock-sale row.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock_sales (transaction_id, product_id, user_id, qty)
			 SELECT transaction_id, product_id, user_id, -qty
			 FROM stock_sales WHERE transaction_id = ? AND qty > 0`, id); err != nil {
			return fmt.Errorf("insert reversal stock sales: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_audits (transaction_id, user_id, action, note)
			 VALUES (?, ?, 'cancel', ?)`, id, userID, t.Code); err != nil {
			return fmt.Errorf("insert audit: %w", err)
		}
		return nil
	})
}

// SummarizeTransactions rolls up committed sales per day for the cashier UI.
func (s *Store) SummarizeTransactions(ctx context.Context, userID int64, start, end *time.Time) ([]*DailySummary, error) {
	if userID == 0 {
		return nil, ErrOwnerRequired
	}

	query := `SELECT date(created_at) AS day, COUNT(1), COALESCE(SUM(total), 0)
	          FROM transactions WHERE user_id = ? AND status != 'CANCELLED'`
	args := []interface{}{userID}
	if start != nil {
		query += ` AND created_at >= ?`
		args = append(args, start.UTC())
	}
	if end != nil {
		query += ` AND created_at <= ?`
		args = append(args, end.UTC())
	}
	query += ` GROUP BY day ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize transactions: %w", err)
	}
	defer rows.Close()

	out := []*DailySummary{}
	for rows.Next() {
		d := &DailySummary{}
		if err := rows.Scan(&d.Day, &d.Count, &d.Total); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
