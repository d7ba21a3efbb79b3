package infra

import (
	"stk-relay/internal/payments/entities"
	"strings"
	"testing"
	"time"
)

func TestMapToEntry_FromStreamValues(t *testing.T) {
	// Redis hands every stream field back as a string.
	values := map[string]interface{}{
		"id":                 "2f1c",
		"phoneNumber":        "254712345678",
		"amount":             "50",
		"correlationId":      "ws_CO_1",
		"mpesaReceiptNumber": "NLJ7RT61SV",
		"resultCode":         "0",
		"resultDesc":         "ok",
		"status":             "success",
		"recordedAt":         "2024-01-02T03:04:05.123456789Z",
		"cause":              "ledger down",
	}

	e, err := mapToEntry(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != "2f1c" || e.Amount != 50 || e.ResultCode != 0 || e.Status != entities.StatusSuccess {
		t.Errorf("Unexpected entry %+v", e)
	}
	want := time.Date(2024, 1, 2, 3, 4, 5, 123456789, time.UTC)
	if !e.RecordedAt.Equal(want) {
		t.Errorf("Expected %v, got %v", want, e.RecordedAt)
	}
}

func TestMapToEntry_DerivesMissingStatus(t *testing.T) {
	e, err := mapToEntry(map[string]interface{}{
		"id":            "a",
		"correlationId": "ws_CO_2",
		"resultCode":    "1032",
		"recordedAt":    time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Status != entities.StatusFailed {
		t.Errorf("Expected failed, got %s", e.Status)
	}
	if e.PhoneNumber != "" || e.Amount != 0 {
		t.Errorf("Expected sentinel metadata, got %+v", e)
	}
}

func TestMapToEntry_Rejects(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"missing id":      {"correlationId": "x", "resultCode": "0", "recordedAt": "2024-01-02T03:04:05Z"},
		"bad result code": {"id": "a", "correlationId": "x", "resultCode": "zero", "recordedAt": "2024-01-02T03:04:05Z"},
		"bad timestamp":   {"id": "a", "correlationId": "x", "resultCode": "0", "recordedAt": "yesterday"},
	}

	for name, values := range cases {
		if _, err := mapToEntry(values); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestEntryToMap_KeepsCorrelationFields(t *testing.T) {
	m := entryToMap(entities.LedgerEntry{ID: "a", CorrelationID: "ws_CO_3", ResultCode: 1, Status: entities.StatusFailed})

	if m["correlationId"] != "ws_CO_3" || m["status"] != "failed" {
		t.Errorf("Unexpected map %v", m)
	}
	if !strings.HasSuffix(m["recordedAt"].(string), "Z") {
		t.Errorf("Expected UTC timestamp, got %v", m["recordedAt"])
	}
}
