package repository

import (
	"context"
	"stk-relay/internal/payments/entities"
)

// Correlation holds the transient status of each correlation ID. Put and Get
// are atomic per key.
type Correlation interface {
	Put(ctx context.Context, correlationID string, status entities.Status) error
	Get(ctx context.Context, correlationID string) (entities.Status, bool, error)
}

// Ledger is the durable, append-only log of callback deliveries.
type Ledger interface {
	Append(ctx context.Context, entry *entities.LedgerEntry) error
	FindByCorrelationID(ctx context.Context, correlationID string) ([]entities.LedgerEntry, error)
}
