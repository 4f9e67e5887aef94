package store

import (
	"fmt"
	"log"
)

// migrations are forward-only and idempotent; each entry runs at most once,
// tracked in schema_migrations.
var migrations = []string{
	// 1: master data
	`CREATE TABLE IF NOT EXISTS users (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		username        TEXT    NOT NULL UNIQUE,
		password_hash   TEXT    NOT NULL,
		device_id       TEXT    NOT NULL DEFAULT '',
		plan_type       TEXT    NOT NULL DEFAULT 'free',
		plan_expires_at TIMESTAMP,
		created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS categories (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL,
		name       TEXT    NOT NULL,
		active     INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS products (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL,
		category_id INTEGER NOT NULL DEFAULT 1,
		name        TEXT    NOT NULL CHECK (name <> ''),
		price       REAL    NOT NULL CHECK (price >= 0),
		stock       INTEGER NOT NULL DEFAULT 0,
		active      INTEGER NOT NULL DEFAULT 1,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	INSERT OR IGNORE INTO categories (id, user_id, name) VALUES (1, 0, 'Uncategorized');`,

	// 2: transactions
	`CREATE TABLE IF NOT EXISTS transactions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		code           TEXT    NOT NULL UNIQUE,
		user_id        INTEGER NOT NULL,
		status         TEXT    NOT NULL DEFAULT 'PAID'
			CHECK (status IN ('PENDING','PAID','CANCELLED','COMPLETED')),
		subtotal       REAL NOT NULL DEFAULT 0,
		discount_total REAL NOT NULL DEFAULT 0,
		tax_total      REAL NOT NULL DEFAULT 0,
		total          REAL NOT NULL DEFAULT 0,
		paid_amount    REAL NOT NULL DEFAULT 0,
		change_amount  REAL NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL DEFAULT 'CASH'
			CHECK (payment_method IN ('CASH','QRIS','CARD','DEBIT')),
		created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS transaction_items (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL REFERENCES transactions(id),
		product_id     INTEGER,
		name           TEXT    NOT NULL,
		unit_price     REAL    NOT NULL,
		qty            INTEGER NOT NULL CHECK (qty > 0),
		subtotal       REAL    NOT NULL,
		line_total     REAL    NOT NULL
	);
	CREATE TABLE IF NOT EXISTS cash_movements (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL REFERENCES transactions(id),
		user_id        INTEGER NOT NULL,
		amount         REAL    NOT NULL,
		direction      TEXT    NOT NULL CHECK (direction IN ('in','out')),
		note           TEXT    NOT NULL DEFAULT '',
		created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS stock_sales (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL REFERENCES transactions(id),
		product_id     INTEGER NOT NULL,
		user_id        INTEGER NOT NULL,
		qty            INTEGER NOT NULL,
		created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS trx_counters (
		day TEXT PRIMARY KEY,
		n   INTEGER NOT NULL
	);`,

	// 3: audit trails
	`CREATE TABLE IF NOT EXISTS scan_audits (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id         INTEGER NOT NULL,
		device_id       TEXT    NOT NULL DEFAULT '',
		session_id      TEXT    NOT NULL DEFAULT '',
		frame_seq       INTEGER NOT NULL,
		detection_count INTEGER NOT NULL,
		outcome         TEXT    NOT NULL CHECK (outcome IN ('success','error')),
		created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS transaction_audits (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL REFERENCES transactions(id),
		user_id        INTEGER NOT NULL,
		action         TEXT    NOT NULL,
		note           TEXT    NOT NULL DEFAULT '',
		created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", version, err)
		}
		log.Printf("store: applied migration %d", version)
	}
	return nil
}
