package payments

import (
	"context"
	"database/sql"
	"fmt"
	"stk-relay/internal/payments/entities"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type LedgerSQLiteRepository struct {
	db *sql.DB
}

func NewLedgerSQLiteRepository(dataSourceName string) (*LedgerSQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id                   TEXT PRIMARY KEY,
			phone_number         TEXT NOT NULL DEFAULT '',
			amount               INTEGER NOT NULL DEFAULT 0,
			correlation_id       TEXT NOT NULL,
			merchant_request_id  TEXT NOT NULL DEFAULT '',
			mpesa_receipt_number TEXT NOT NULL DEFAULT '',
			result_code          INTEGER NOT NULL,
			result_desc          TEXT NOT NULL DEFAULT '',
			status               TEXT NOT NULL,
			recorded_at          TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS ledger_entries_correlation_id_idx ON ledger_entries (correlation_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger table: %w", err)
	}
	return &LedgerSQLiteRepository{db: db}, nil
}

func (r *LedgerSQLiteRepository) Close() {
	r.db.Close()
}

func (r *LedgerSQLiteRepository) Append(ctx context.Context, entry *entities.LedgerEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO ledger_entries (id, phone_number, amount, correlation_id, merchant_request_id,
			mpesa_receipt_number, result_code, result_desc, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.PhoneNumber, entry.Amount, entry.CorrelationID, entry.MerchantRequestID,
		entry.MpesaReceiptNumber, entry.ResultCode, entry.ResultDesc, string(entry.Status),
		entry.RecordedAt.UTC().Format(sqliteTimeLayout))
	return err
}

func (r *LedgerSQLiteRepository) FindByCorrelationID(ctx context.Context, correlationID string) ([]entities.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, phone_number, amount, correlation_id, merchant_request_id,
			mpesa_receipt_number, result_code, result_desc, status, recorded_at
		FROM ledger_entries
		WHERE correlation_id = ?
		ORDER BY recorded_at ASC
	`, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []entities.LedgerEntry
	for rows.Next() {
		var e entities.LedgerEntry
		var status, recordedAt string
		if err := rows.Scan(&e.ID, &e.PhoneNumber, &e.Amount, &e.CorrelationID, &e.MerchantRequestID,
			&e.MpesaReceiptNumber, &e.ResultCode, &e.ResultDesc, &status, &recordedAt); err != nil {
			return nil, err
		}
		e.Status = entities.Status(status)
		e.RecordedAt, err = parseTime(recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}
