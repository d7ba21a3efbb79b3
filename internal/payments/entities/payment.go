package entities

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusNotFound Status = "not_found"
)

// StatusFromResultCode maps a gateway result code to a terminal status.
func StatusFromResultCode(code int64) Status {
	if code == 0 {
		return StatusSuccess
	}
	return StatusFailed
}

func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type ChargeRequest struct {
	PhoneNumber string
	Amount      int64
}

// LedgerEntry is one reconciled callback delivery. CorrelationID is not unique.
type LedgerEntry struct {
	ID                 string    `json:"id"`
	PhoneNumber        string    `json:"phoneNumber"`
	Amount             int64     `json:"amount"`
	CorrelationID      string    `json:"correlationId"`
	MerchantRequestID  string    `json:"merchantRequestId"`
	MpesaReceiptNumber string    `json:"mpesaReceiptNumber"`
	ResultCode         int64     `json:"resultCode"`
	ResultDesc         string    `json:"resultDesc"`
	Status             Status    `json:"status"`
	RecordedAt         time.Time `json:"recordedAt"`
}
