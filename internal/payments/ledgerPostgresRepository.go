package payments

import (
	"context"
	"fmt"
	"stk-relay/internal/payments/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ledgerPostgresSchema = `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id                   UUID PRIMARY KEY,
		phone_number         TEXT NOT NULL DEFAULT '',
		amount               BIGINT NOT NULL DEFAULT 0,
		correlation_id       TEXT NOT NULL,
		merchant_request_id  TEXT NOT NULL DEFAULT '',
		mpesa_receipt_number TEXT NOT NULL DEFAULT '',
		result_code          BIGINT NOT NULL,
		result_desc          TEXT NOT NULL DEFAULT '',
		status               TEXT NOT NULL,
		recorded_at          TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS ledger_entries_correlation_id_idx ON ledger_entries (correlation_id);
`

type LedgerPostgresRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerPostgresRepository(ctx context.Context, connString string) (*LedgerPostgresRepository, error) {
	dbpool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}

	return &LedgerPostgresRepository{pool: dbpool}, nil
}

func (r *LedgerPostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *LedgerPostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, ledgerPostgresSchema)
	return err
}

// Append is idempotent on entry.ID so a replayed delivery is stored once.
func (r *LedgerPostgresRepository) Append(ctx context.Context, entry *entities.LedgerEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ledger_entries (id, phone_number, amount, correlation_id, merchant_request_id,
			mpesa_receipt_number, result_code, result_desc, status, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, entry.ID, entry.PhoneNumber, entry.Amount, entry.CorrelationID, entry.MerchantRequestID,
		entry.MpesaReceiptNumber, entry.ResultCode, entry.ResultDesc, string(entry.Status), entry.RecordedAt)

	return err
}

func (r *LedgerPostgresRepository) FindByCorrelationID(ctx context.Context, correlationID string) ([]entities.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, phone_number, amount, correlation_id, merchant_request_id,
			mpesa_receipt_number, result_code, result_desc, status, recorded_at
		FROM ledger_entries
		WHERE correlation_id = $1
		ORDER BY recorded_at ASC
	`, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []entities.LedgerEntry
	for rows.Next() {
		var e entities.LedgerEntry
		var status string
		if err := rows.Scan(&e.ID, &e.PhoneNumber, &e.Amount, &e.CorrelationID, &e.MerchantRequestID,
			&e.MpesaReceiptNumber, &e.ResultCode, &e.ResultDesc, &status, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Status = entities.Status(status)
		results = append(results, e)
	}

	return results, rows.Err()
}
