package payment_processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"stk-relay/internal/payments/entities"
	"time"

	"github.com/goccy/go-json"
)

const stkPushPath = "/mpesa/stkpush/v1/processrequest"

type STKGateway interface {
	InitiateSTKPush(ctx context.Context, token string, payload entities.STKPushPayload) (entities.GatewayAck, error)
}

// DarajaGateway sends STK push requests to the Daraja API. Each call is a
// single attempt bounded by the client timeout.
type DarajaGateway struct {
	baseURL string
	client  *http.Client
}

func NewDarajaGateway(baseURL string, timeout time.Duration) *DarajaGateway {
	return &DarajaGateway{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (g *DarajaGateway) InitiateSTKPush(ctx context.Context, token string, payload entities.STKPushPayload) (entities.GatewayAck, error) {
	var ack entities.GatewayAck

	body, err := json.Marshal(payload)
	if err != nil {
		return ack, fmt.Errorf("encode stk push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return ack, fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return ack, fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ack, fmt.Errorf("%w: read response: %v", entities.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ack, fmt.Errorf("%w: gateway refused credentials (%d): %s", entities.ErrUpstreamUnavailable, resp.StatusCode, describeError(raw))
	case resp.StatusCode >= 500:
		return ack, fmt.Errorf("%w: gateway returned %d: %s", entities.ErrUpstreamUnavailable, resp.StatusCode, describeError(raw))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return ack, fmt.Errorf("%w: gateway returned %d: %s", entities.ErrUpstreamRejected, resp.StatusCode, describeError(raw))
	}

	if err := json.Unmarshal(raw, &ack); err != nil {
		return ack, fmt.Errorf("%w: undecodable acknowledgment: %v", entities.ErrUpstreamProtocolError, err)
	}
	ack.Raw = raw

	if ack.ResponseCode != "" && ack.ResponseCode != "0" {
		return ack, fmt.Errorf("%w: response code %s: %s", entities.ErrUpstreamRejected, ack.ResponseCode, ack.ResponseDescription)
	}
	if ack.CheckoutRequestID == "" {
		return ack, fmt.Errorf("%w: acknowledgment has no CheckoutRequestID", entities.ErrUpstreamProtocolError)
	}

	return ack, nil
}

func describeError(raw []byte) string {
	var gwErr entities.GatewayError
	if err := json.Unmarshal(raw, &gwErr); err == nil && gwErr.ErrorCode != "" {
		return gwErr.ErrorCode + " " + gwErr.ErrorMessage
	}
	if len(raw) > 256 {
		raw = raw[:256]
	}
	return string(raw)
}
