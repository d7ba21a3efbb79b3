package payments

import (
	"encoding/base64"
	"fmt"
	"stk-relay/internal/payments/entities"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const timestampLayout = "20060102150405"

// NormalizePhone canonicalizes a subscriber number to its international form:
// a leading trunk prefix is replaced by the country code, a number already
// carrying the country code is kept, anything else gets the country code
// prepended. Spaces, dashes and a leading "+" are dropped first.
func NormalizePhone(raw, countryCode, trunkPrefix string) (string, error) {
	phone := strings.TrimSpace(raw)
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	phone = strings.TrimPrefix(phone, "+")
	if phone == "" {
		return "", fmt.Errorf("%w: phone number is required", entities.ErrInvalidInput)
	}

	switch {
	case strings.HasPrefix(phone, countryCode):
	case trunkPrefix != "" && strings.HasPrefix(phone, trunkPrefix):
		phone = countryCode + phone[len(trunkPrefix):]
	default:
		phone = countryCode + phone
	}

	for _, r := range phone {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: phone number %q is not numeric", entities.ErrInvalidInput, raw)
		}
	}
	return phone, nil
}

// ParseAmount accepts a JSON number or numeric string and returns it as a
// positive whole number of currency units.
func ParseAmount(raw any) (int64, error) {
	var d decimal.Decimal
	var err error

	switch v := raw.(type) {
	case nil:
		return 0, fmt.Errorf("%w: amount is required", entities.ErrInvalidInput)
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	case fmt.Stringer: // json.Number
		d, err = decimal.NewFromString(v.String())
	default:
		return 0, fmt.Errorf("%w: amount has unsupported type %T", entities.ErrInvalidInput, raw)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: amount %v is not a number", entities.ErrInvalidInput, raw)
	}

	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s must be a whole number", entities.ErrInvalidInput, d)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: amount %s must be positive", entities.ErrInvalidInput, d)
	}
	if !d.LessThanOrEqual(decimal.NewFromInt(1 << 53)) {
		return 0, fmt.Errorf("%w: amount %s is too large", entities.ErrInvalidInput, d)
	}
	return d.IntPart(), nil
}

// Timestamp formats t as YYYYMMDDHHmmss in loc.
func Timestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(timestampLayout)
}

// Password is base64(shortCode + passkey + timestamp). The gateway checks it
// against the Timestamp sent alongside.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}
