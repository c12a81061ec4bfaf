package intents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Keys are listed canonical first. Older payer codes were printed with a
// misspelled identifier key and with the kind stored under "type".
var (
	payerIdKeys       = []string{"userId", "userid", "usreId"}
	payerNameKeys     = []string{"name"}
	payerEmailKeys    = []string{"email"}
	accountNumberKeys = []string{"accountNumber"}
	currencyKeys      = []string{"currencyCode", "currency"}
	kindKeys          = []string{"transactionType", "type"}
)

// Spellings of the payment kind, compared case-insensitively
var paymentKinds = map[string]struct{}{
	"payment": {},
	"pay":     {},
}

// Typographic quotes produced by phone keyboards and label printers
var quoteReplacer = strings.NewReplacer(
	"\u2018", `"`,
	"\u2019", `"`,
	"\u201a", `"`,
	"\u201b", `"`,
	"\u2032", `"`,
	"\u2035", `"`,
	"\u201c", `"`,
	"\u201d", `"`,
	"\u201e", `"`,
	"\u201f", `"`,
	"\u2033", `"`,
	"\u2036", `"`,
	"\u00ab", `"`,
	"\u00bb", `"`,
	"\uff02", `"`,
)

var errNullRecord = errors.New("payload is null")

type record map[string]json.RawMessage

func decodeRecord(raw string) (r record, err error) {
	err = json.Unmarshal([]byte(raw), &r)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errNullRecord
	}
	return r, nil
}

// Returns the first non-empty value found under keys. Numbers are kept
// in their literal form so account numbers keep their digits.
func (r record) text(keys ...string) (value string) {
	for _, key := range keys {
		raw, found := r[key]
		if !found {
			continue
		}

		var s string
		if json.Unmarshal(raw, &s) == nil {
			s = strings.TrimSpace(s)
			if s != "" {
				return s
			}
			continue
		}

		var n json.Number
		if json.Unmarshal(raw, &n) == nil {
			return n.String()
		}
	}
	return ""
}

// Parse converts a raw scanned string into a PaymentIntent stamped with capturedAt.
// It has no side effects.
func Parse(raw string, capturedAt time.Time) (intent PaymentIntent, err error) {
	r, err := decodeRecord(raw)
	if err != nil {
		// Second and last attempt with canonical quotes
		r, err = decodeRecord(quoteReplacer.Replace(raw))
		if err != nil {
			return intent, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
	}

	intent = PaymentIntent{
		PayerId:       r.text(payerIdKeys...),
		PayerName:     r.text(payerNameKeys...),
		PayerEmail:    r.text(payerEmailKeys...),
		AccountNumber: r.text(accountNumberKeys...),
		CurrencyCode:  strings.ToUpper(r.text(currencyKeys...)),
		CapturedAt:    capturedAt,
	}

	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"payerId", intent.PayerId},
		{"payerName", intent.PayerName},
		{"accountNumber", intent.AccountNumber},
		{"payerEmail", intent.PayerEmail},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return PaymentIntent{}, fmt.Errorf("%w: %s", ErrMissingRequiredFields, strings.Join(missing, ", "))
	}

	kind := r.text(kindKeys...)
	if _, found := paymentKinds[strings.ToLower(kind)]; !found {
		return PaymentIntent{}, fmt.Errorf("%w: %q", ErrUnsupportedIntentKind, kind)
	}
	intent.Kind = KindPayment

	return intent, nil
}

// Normalize is Parse stamped with the current time
func Normalize(raw string) (intent PaymentIntent, err error) {
	return Parse(raw, time.Now())
}
