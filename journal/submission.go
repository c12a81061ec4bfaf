package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusInFlight  Status = "in-flight"
	StatusSucceeded Status = "succeeded"
	StatusRejected  Status = "rejected"
	// The ledger gave no definitive answer
	StatusUnknown Status = "unknown"
)

func InFlightKey(session uuid.UUID) (key []byte) {
	return []byte(fmt.Sprintf("/inflight/%s", session))
}

func SubmissionKey(marker uuid.UUID) (key []byte) {
	return []byte(fmt.Sprintf("/submissions/%s", marker))
}

// Submission is the journal entry of one transfer request. The PIN is never stored.
type Submission struct {
	// Idempotency marker sent to the ledger
	Marker uuid.UUID `json:"marker"`
	// Scan session that produced the request
	Session uuid.UUID `json:"session"`
	// Payer account
	PayerId       string `json:"payerId"`
	PayerEmail    string `json:"payerEmail"`
	AccountNumber string `json:"accountNumber"`
	// Amount and fee in minor units
	Amount uint64 `json:"amount"`
	Fee    uint64 `json:"fee"`
	// Outcome
	Status        Status `json:"status"`
	TransactionId string `json:"transactionId,omitzero"`
	Category      string `json:"category,omitzero"`
	// Raw failure, kept for reconciliation only
	Error      string    `json:"error,omitzero"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
	// Earlier attempts under the same marker, oldest first
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Attempt is a finished try that was retried under its marker
type Attempt struct {
	Status     Status    `json:"status"`
	Category   string    `json:"category,omitzero"`
	Error      string    `json:"error,omitzero"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

type Outcome struct {
	Status        Status
	TransactionId string
	Category      string
	Error         string
}

func (s *Submission) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(s)
	return bytes
}

func (s *Submission) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, s)
}
