package payments

import (
	"context"
	"errors"
	"stk-relay/internal/payments/entities"
	"sync"
)

var (
	ErrMockToken  = errors.New("token error")
	ErrMockLedger = errors.New("ledger down")
	ErrMockReport = errors.New("report failed")
	ErrMockStore  = errors.New("store down")
)

type MockGateway struct {
	InitiateFunc func(ctx context.Context, token string, payload entities.STKPushPayload) (entities.GatewayAck, error)

	mu       sync.Mutex
	calls    int
	payloads []entities.STKPushPayload
}

func (m *MockGateway) InitiateSTKPush(ctx context.Context, token string, payload entities.STKPushPayload) (entities.GatewayAck, error) {
	m.mu.Lock()
	m.calls++
	m.payloads = append(m.payloads, payload)
	m.mu.Unlock()

	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, token, payload)
	}
	return entities.GatewayAck{CheckoutRequestID: "ws_CO_default", ResponseCode: "0", Raw: []byte(`{"CheckoutRequestID":"ws_CO_default","ResponseCode":"0"}`)}, nil
}

func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type MockTokenProvider struct {
	GetTokenFunc func(ctx context.Context) (string, error)
	calls        int
}

func (m *MockTokenProvider) GetToken(ctx context.Context) (string, error) {
	m.calls++
	if m.GetTokenFunc != nil {
		return m.GetTokenFunc(ctx)
	}
	return "test-token", nil
}

type MockLedger struct {
	AppendFunc func(ctx context.Context, entry *entities.LedgerEntry) error

	mu      sync.Mutex
	entries []entities.LedgerEntry
}

func (m *MockLedger) Append(ctx context.Context, entry *entities.LedgerEntry) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(ctx, entry); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.entries = append(m.entries, *entry)
	m.mu.Unlock()
	return nil
}

func (m *MockLedger) FindByCorrelationID(ctx context.Context, correlationID string) ([]entities.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.LedgerEntry
	for _, e := range m.entries {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockLedger) Entries() []entities.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.LedgerEntry(nil), m.entries...)
}

type MockReporter struct {
	ReportFunc func(ctx context.Context, entry entities.LedgerEntry, cause error) error
	reported   []entities.LedgerEntry
}

func (m *MockReporter) ReportLedgerFailure(ctx context.Context, entry entities.LedgerEntry, cause error) error {
	if m.ReportFunc != nil {
		if err := m.ReportFunc(ctx, entry, cause); err != nil {
			return err
		}
	}
	m.reported = append(m.reported, entry)
	return nil
}

// failingCorrelationStore wraps a real store and fails Put when putErr is set.
type failingCorrelationStore struct {
	*CorrelationInMemoryStore
	putErr error
}

func (f *failingCorrelationStore) Put(ctx context.Context, id string, status entities.Status) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.CorrelationInMemoryStore.Put(ctx, id, status)
}
