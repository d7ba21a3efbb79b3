package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"stk-relay/internal/payment_processor"
	"stk-relay/internal/payments/entities"
	"stk-relay/internal/payments/repository"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FailureReporter hands a ledger entry that could not be persisted to an
// operator channel.
type FailureReporter interface {
	ReportLedgerFailure(ctx context.Context, entry entities.LedgerEntry, cause error) error
}

type Options struct {
	ShortCode        string
	Passkey          string
	CallbackURL      string
	TransactionType  string
	AccountReference string
	TransactionDesc  string
	CountryCode      string
	TrunkPrefix      string
	Location         *time.Location
}

type Service struct {
	correlations repository.Correlation
	ledger       repository.Ledger
	gateway      payment_processor.STKGateway
	tokens       payment_processor.TokenProvider
	failures     FailureReporter
	opts         Options

	now   func() time.Time
	newID func() string
}

func NewPaymentService(
	correlations repository.Correlation,
	ledger repository.Ledger,
	gateway payment_processor.STKGateway,
	tokens payment_processor.TokenProvider,
	opts Options,
) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		correlations: correlations,
		ledger:       ledger,
		gateway:      gateway,
		tokens:       tokens,
		opts:         opts,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// WithFailureReporter sets where ledger entries go when the ledger rejects them.
func (s *Service) WithFailureReporter(r FailureReporter) *Service {
	s.failures = r
	return s
}

// InitiateCharge validates the request, sends an STK push and registers the
// returned correlation ID as pending. Either exactly one pending entry is
// registered or an error is returned.
func (s *Service) InitiateCharge(ctx context.Context, rawPhone string, rawAmount any) (entities.GatewayAck, error) {
	req, err := s.validateCharge(rawPhone, rawAmount)
	if err != nil {
		return entities.GatewayAck{}, err
	}

	payload := s.buildPayload(req)

	token, err := s.tokens.GetToken(ctx)
	if err != nil {
		if !entities.IsUpstream(err) {
			err = fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
		}
		return entities.GatewayAck{}, fmt.Errorf("acquire token: %w", err)
	}

	ack, err := s.gateway.InitiateSTKPush(ctx, token, payload)
	if err != nil {
		return entities.GatewayAck{}, fmt.Errorf("stk push: %w", err)
	}

	correlationID := ack.CheckoutRequestID
	if strings.TrimSpace(correlationID) == "" {
		return entities.GatewayAck{}, fmt.Errorf("%w: acknowledgment has no CheckoutRequestID", entities.ErrUpstreamProtocolError)
	}
	// the relayed ack must carry exactly the ID clients will poll
	if correlationID != strings.TrimSpace(correlationID) {
		return entities.GatewayAck{}, fmt.Errorf("%w: CheckoutRequestID %q has surrounding whitespace", entities.ErrUpstreamProtocolError, correlationID)
	}

	if err := s.correlations.Put(ctx, correlationID, entities.StatusPending); err != nil {
		return entities.GatewayAck{}, fmt.Errorf("%w: register %s as pending: %v", entities.ErrPersistenceFailure, correlationID, err)
	}

	slog.Info("stk push initiated", "correlationId", correlationID, "phone", req.PhoneNumber, "amount", req.Amount)
	return ack, nil
}

func (s *Service) validateCharge(rawPhone string, rawAmount any) (entities.ChargeRequest, error) {
	phone, err := NormalizePhone(rawPhone, s.opts.CountryCode, s.opts.TrunkPrefix)
	if err != nil {
		return entities.ChargeRequest{}, err
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return entities.ChargeRequest{}, err
	}
	return entities.ChargeRequest{PhoneNumber: phone, Amount: amount}, nil
}

func (s *Service) buildPayload(req entities.ChargeRequest) entities.STKPushPayload {
	timestamp := Timestamp(s.now(), s.opts.Location)

	return entities.STKPushPayload{
		BusinessShortCode: s.opts.ShortCode,
		Password:          Password(s.opts.ShortCode, s.opts.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   s.opts.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            s.opts.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       s.opts.CallbackURL,
		AccountReference:  s.opts.AccountReference,
		TransactionDesc:   s.opts.TransactionDesc,
	}
}

// HandleCallback reconciles a gateway callback: the correlation status is set
// to the terminal value first, then a ledger entry is appended. A ledger
// failure never rolls the status back.
func (s *Service) HandleCallback(ctx context.Context, env entities.CallbackEnvelope) (entities.LedgerEntry, error) {
	cb, ok := env.Result()
	if !ok {
		return entities.LedgerEntry{}, fmt.Errorf("%w: missing CheckoutRequestID or ResultCode", entities.ErrMalformedCallback)
	}

	correlationID := strings.TrimSpace(cb.CheckoutRequestID)
	status := entities.StatusFromResultCode(*cb.ResultCode)

	entry := entities.LedgerEntry{
		ID:                 s.newID(),
		PhoneNumber:        cb.StringItem("PhoneNumber"),
		Amount:             cb.IntItem("Amount"),
		CorrelationID:      correlationID,
		MerchantRequestID:  cb.MerchantRequestID,
		MpesaReceiptNumber: cb.StringItem("MpesaReceiptNumber"),
		ResultCode:         *cb.ResultCode,
		ResultDesc:         cb.ResultDesc,
		Status:             status,
	}

	// unknown IDs are created here; a restart between push and callback must not lose the result
	storeErr := s.correlations.Put(ctx, correlationID, status)
	if storeErr != nil {
		slog.Error("failed to update correlation status", "correlationId", correlationID, "status", status, "error", storeErr)
	}

	entry.RecordedAt = s.now().UTC()
	if err := s.ledger.Append(ctx, &entry); err != nil {
		if reportErr := s.reportLedgerFailure(ctx, entry, err); reportErr != nil {
			return entry, fmt.Errorf("%w: append ledger entry for %s: %v", entities.ErrPersistenceFailure, correlationID, errors.Join(err, reportErr))
		}
	}

	if storeErr != nil {
		return entry, fmt.Errorf("%w: correlation store: %v", entities.ErrPersistenceFailure, storeErr)
	}

	slog.Info("callback reconciled", "correlationId", correlationID, "resultCode", entry.ResultCode, "status", status)
	return entry, nil
}

func (s *Service) reportLedgerFailure(ctx context.Context, entry entities.LedgerEntry, cause error) error {
	slog.Error("ledger append failed", "correlationId", entry.CorrelationID, "entryId", entry.ID, "error", cause)

	if s.failures == nil {
		return errors.New("no failure reporter configured")
	}
	if err := s.failures.ReportLedgerFailure(ctx, entry, cause); err != nil {
		slog.Error("failed to report ledger failure", "correlationId", entry.CorrelationID, "entryId", entry.ID, "error", err)
		return err
	}
	slog.Warn("ledger entry queued for replay", "correlationId", entry.CorrelationID, "entryId", entry.ID)
	return nil
}

// GetStatus returns StatusNotFound for IDs this process has never seen.
func (s *Service) GetStatus(ctx context.Context, correlationID string) (entities.Status, error) {
	status, ok, err := s.correlations.Get(ctx, correlationID)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", correlationID, err)
	}
	if !ok {
		return entities.StatusNotFound, nil
	}
	return status, nil
}

func (s *Service) GetLedgerHistory(ctx context.Context, correlationID string) ([]entities.LedgerEntry, error) {
	entries, err := s.ledger.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("ledger history for %s: %w", correlationID, err)
	}
	return entries, nil
}
