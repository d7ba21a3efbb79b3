package payment_processor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"stk-relay/internal/payments/entities"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func testPayload() entities.STKPushPayload {
	return entities.STKPushPayload{
		BusinessShortCode: "174379",
		Password:          "cGFzcw==",
		Timestamp:         "20240101120000",
		TransactionType:   "CustomerBuyGoodsOnline",
		Amount:            50,
		PartyA:            "254712345678",
		PartyB:            "174379",
		PhoneNumber:       "254712345678",
		CallBackURL:       "https://example.com/callback",
		AccountReference:  "ref",
		TransactionDesc:   "desc",
	}
}

func TestDarajaGateway_Success(t *testing.T) {
	const ackBody = `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`

	var gotAuth string
	var gotPayload entities.STKPushPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != stkPushPath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotPayload)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(ackBody))
	}))
	defer server.Close()

	gw := NewDarajaGateway(server.URL, time.Second)
	ack, err := gw.InitiateSTKPush(context.Background(), "tok", testPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer tok" {
		t.Errorf("Expected bearer header, got %q", gotAuth)
	}
	if gotPayload.PhoneNumber != "254712345678" || gotPayload.Amount != 50 {
		t.Errorf("Unexpected payload sent: %+v", gotPayload)
	}
	if ack.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("Unexpected checkout id %q", ack.CheckoutRequestID)
	}
	if string(ack.Raw) != ackBody {
		t.Errorf("Expected raw body preserved, got %s", ack.Raw)
	}
}

func TestDarajaGateway_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"errorCode":"404.001.03","errorMessage":"Invalid Access Token"}`, entities.ErrUpstreamUnavailable},
		{"server error", http.StatusServiceUnavailable, `oops`, entities.ErrUpstreamUnavailable},
		{"bad request", http.StatusBadRequest, `{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid Amount"}`, entities.ErrUpstreamRejected},
		{"non-zero response code", http.StatusOK, `{"CheckoutRequestID":"ws_CO_1","ResponseCode":"1","ResponseDescription":"Rejected"}`, entities.ErrUpstreamRejected},
		{"missing checkout id", http.StatusOK, `{"ResponseCode":"0"}`, entities.ErrUpstreamProtocolError},
		{"not json", http.StatusOK, `<html>`, entities.ErrUpstreamProtocolError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewDarajaGateway(server.URL, time.Second).InitiateSTKPush(context.Background(), "tok", testPayload())
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDarajaGateway_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewDarajaGateway(url, time.Second).InitiateSTKPush(context.Background(), "tok", testPayload())
	if !errors.Is(err, entities.ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestDescribeError_Truncates(t *testing.T) {
	long := strings.Repeat("x", 1000)
	if got := describeError([]byte(long)); len(got) != 256 {
		t.Errorf("Expected 256 chars, got %d", len(got))
	}
}
