package store

import "time"

// Transaction statuses and payment methods accepted by the checkout path.
const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusCancelled = "CANCELLED"
	StatusCompleted = "COMPLETED"

	PaymentCash  = "CASH"
	PaymentQRIS  = "QRIS"
	PaymentCard  = "CARD"
	PaymentDebit = "DEBIT"
)

// DefaultCategoryID is the well-known "Uncategorized" category.
const DefaultCategoryID = 1

type User struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"-"`
	DeviceID      string     `json:"device_id"`
	PlanType      string     `json:"plan_type"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Category struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	CategoryID int64     `json:"category_id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Stock      int64     `json:"stock"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Transaction struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	UserID        int64     `json:"user_id"`
	Status        string    `json:"status"`
	Subtotal      float64   `json:"subtotal"`
	DiscountTotal float64   `json:"discount_total"`
	TaxTotal      float64   `json:"tax_total"`
	Total         float64   `json:"total"`
	PaidAmount    float64   `json:"paid_amount"`
	ChangeAmount  float64   `json:"change_amount"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransactionItem snapshots name and unit price so historic receipts stay
// legible even if the product is later renamed or deleted.
type TransactionItem struct {
	ID            int64   `json:"id"`
	TransactionID int64   `json:"transaction_id"`
	ProductID     *int64  `json:"product_id,omitempty"`
	Name          string  `json:"name"`
	UnitPrice     float64 `json:"unit_price"`
	Qty           int64   `json:"qty"`
	Subtotal      float64 `json:"subtotal"`
	LineTotal     float64 `json:"line_total"`
}

type ScanAudit struct {
	UserID         int64  `json:"user_id"`
	DeviceID       string `json:"device_id"`
	SessionID      string `json:"session_id"`
	FrameSeq       uint64 `json:"frame_seq"`
	DetectionCount int    `json:"detection_count"`
	Outcome        string `json:"outcome"` // "success" or "error"
}

// DailySummary is one row of the transactions roll-up.
type DailySummary struct {
	Day   string  `json:"day"`
	Count int64   `json:"count"`
	Total float64 `json:"total"`
}
