// Package ledger keeps an append-only record of completed purchases in
// sqlite. The ledger is an audit trail, not part of the purchase decision:
// callers treat recording as best-effort and never fail a purchase on it.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

// Receipt is one completed delivery.
type Receipt struct {
	ID        string
	ItemName  string
	BuyerID   int64
	BuyerName string
	ChatTitle string
	At        time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
	id         TEXT PRIMARY KEY,
	item_name  TEXT NOT NULL,
	buyer_id   INTEGER NOT NULL,
	buyer_name TEXT NOT NULL,
	chat_title TEXT NOT NULL,
	at         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_at ON receipts(at);
`

func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping ledger db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply ledger schema: %w", err)
	}

	return &DB{db}, nil
}

// Record inserts a receipt. An empty ID gets a fresh one; the filled receipt
// is returned so callers can surface the receipt id.
func (d *DB) Record(r Receipt) (Receipt, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}

	_, err := d.Exec(
		`INSERT INTO receipts (id, item_name, buyer_id, buyer_name, chat_title, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ItemName, r.BuyerID, r.BuyerName, r.ChatTitle, r.At,
	)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to record receipt: %w", err)
	}
	return r, nil
}

// Recent returns up to n receipts, newest first.
func (d *DB) Recent(n int) ([]Receipt, error) {
	rows, err := d.Query(
		`SELECT id, item_name, buyer_id, buyer_name, chat_title, at
		 FROM receipts ORDER BY at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var r Receipt
		if err := rows.Scan(&r.ID, &r.ItemName, &r.BuyerID, &r.BuyerName, &r.ChatTitle, &r.At); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count reports the total number of receipts.
func (d *DB) Count() (int, error) {
	var n int
	err := d.QueryRow(`SELECT COUNT(*) FROM receipts`).Scan(&n)
	return n, err
}
