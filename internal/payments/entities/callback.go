package entities

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

type CallbackEnvelope struct {
	Body *CallbackBody `json:"Body"`
}

type CallbackBody struct {
	STKCallback *STKCallback `json:"stkCallback"`
}

type STKCallback struct {
	MerchantRequestID string          `json:"MerchantRequestID"`
	CheckoutRequestID string          `json:"CheckoutRequestID"`
	ResultCode        *int64          `json:"ResultCode"`
	ResultDesc        string          `json:"ResultDesc"`
	CallbackMetadata  json.RawMessage `json:"CallbackMetadata,omitempty"`
}

type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Result returns the inner callback when the envelope carries both a
// correlation ID and a result code.
func (e CallbackEnvelope) Result() (*STKCallback, bool) {
	if e.Body == nil || e.Body.STKCallback == nil {
		return nil, false
	}
	cb := e.Body.STKCallback
	if strings.TrimSpace(cb.CheckoutRequestID) == "" || cb.ResultCode == nil {
		return nil, false
	}
	return cb, true
}

// Items decodes CallbackMetadata.Item leniently: a single object counts as a
// one-item list and elements that are not item objects are skipped.
func (cb *STKCallback) Items() []CallbackItem {
	if len(cb.CallbackMetadata) == 0 {
		return nil
	}
	var meta struct {
		Item json.RawMessage `json:"Item"`
	}
	if err := json.Unmarshal(cb.CallbackMetadata, &meta); err != nil || len(meta.Item) == 0 {
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(meta.Item, &raws); err != nil {
		raws = []json.RawMessage{meta.Item}
	}

	items := make([]CallbackItem, 0, len(raws))
	for _, raw := range raws {
		var it CallbackItem
		if err := json.Unmarshal(raw, &it); err != nil || it.Name == "" {
			continue
		}
		items = append(items, it)
	}
	return items
}

func (cb *STKCallback) item(name string) (json.RawMessage, bool) {
	for _, it := range cb.Items() {
		if it.Name == name && len(it.Value) > 0 {
			return it.Value, true
		}
	}
	return nil, false
}

// StringItem returns the named metadata value as text, or "" when absent.
func (cb *STKCallback) StringItem(name string) string {
	raw, ok := cb.item(name)
	if !ok {
		return ""
	}
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal(raw, &out); err != nil {
			return ""
		}
		return out
	}
	// numbers keep their literal digits so 254712345678 never goes through float64
	return s
}

// IntItem returns the named metadata value as an integer, or 0 when absent or
// not a number.
func (cb *STKCallback) IntItem(name string) int64 {
	s := cb.StringItem(name)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.IntPart()
}
