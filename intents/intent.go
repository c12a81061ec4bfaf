package intents

import (
	"errors"
	"time"
)

var (
	ErrMalformedPayload      = errors.New("malformed payload")
	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrUnsupportedIntentKind = errors.New("unsupported intent kind")
)

type Kind string

const KindPayment Kind = "payment"

// PaymentIntent is the validated form of a scanned payer code.
// A new scan always produces a new value; intents are never mutated.
type PaymentIntent struct {
	// Identifier of the payer in the backend
	PayerId string `json:"payerId"`
	// Display name of the payer
	PayerName string `json:"payerName"`
	// Email used by the backend to address the payer account
	PayerEmail string `json:"payerEmail"`
	// Account number presented by the payer code
	AccountNumber string `json:"accountNumber"`
	// Optional ISO currency code carried by the code
	CurrencyCode string `json:"currencyCode,omitzero"`
	// Always KindPayment for an accepted intent
	Kind Kind `json:"kind"`
	// Moment the payload was normalized
	CapturedAt time.Time `json:"capturedAt"`
}
