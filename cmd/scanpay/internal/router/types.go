package router

import (
	"time"

	"anarchy.ttfm/scanpay/decimal"
	"anarchy.ttfm/scanpay/failures"
	"anarchy.ttfm/scanpay/intents"
	"anarchy.ttfm/scanpay/journal"
	"anarchy.ttfm/scanpay/scanner"
	"anarchy.ttfm/scanpay/workflow"
	"github.com/google/uuid"
)

type (
	Scan struct {
		Facing scanner.Facing `json:"facing,omitzero"`
	}
	Decode struct {
		Payload string `json:"payload"`
	}
	Amount struct {
		Amount decimal.Decimal `json:"amount"`
	}
	Pin struct {
		Pin string `json:"pin"`
	}
	Error struct {
		Error   string   `json:"error"`
		Session *Session `json:"session,omitzero"`
	}
)

type (
	Result struct {
		Marker        uuid.UUID            `json:"marker"`
		Succeeded     bool                 `json:"succeeded"`
		TransactionId string               `json:"transactionId,omitzero"`
		Error         *failures.Classified `json:"error,omitzero"`
	}
	Session struct {
		// Identifier of the session
		Id    uuid.UUID      `json:"id"`
		State workflow.State `json:"state"`
		// Payer shown for confirmation
		Intent *intents.PaymentIntent `json:"intent,omitzero"`
		Amount decimal.Decimal        `json:"amount"`
		Fee    decimal.Decimal        `json:"fee"`
		// Amount plus fee
		Total decimal.Decimal `json:"total"`
		// Guidance of the last rejection or failed attempt
		Failure     *failures.Classified `json:"failure,omitzero"`
		Result      *Result              `json:"result,omitzero"`
		LastAttempt workflow.State       `json:"lastAttempt,omitzero"`
		Scanner     scanner.Status       `json:"scanner"`
	}
	Submission struct {
		Marker        uuid.UUID       `json:"marker"`
		Session       uuid.UUID       `json:"session"`
		PayerId       string          `json:"payerId"`
		PayerEmail    string          `json:"payerEmail"`
		AccountNumber string          `json:"accountNumber"`
		Amount        decimal.Decimal `json:"amount"`
		Fee           decimal.Decimal `json:"fee"`
		Status        journal.Status  `json:"status"`
		TransactionId string          `json:"transactionId,omitzero"`
		Category      string          `json:"category,omitzero"`
		StartedAt     time.Time       `json:"startedAt"`
		FinishedAt    time.Time       `json:"finishedAt,omitzero"`
	}
)

// Convert from the workflow snapshot to the API session
func SessionFromWorkflow(src *workflow.Snapshot) (session Session) {
	session = Session{
		Id:          src.Session,
		State:       src.State,
		Intent:      src.Intent,
		Failure:     src.Failure,
		LastAttempt: src.LastAttempt,
		Scanner:     src.Scanner,
	}
	session.Amount.FromUint64(src.Amount)
	session.Fee.FromUint64(src.Fee)
	session.Total.FromUint64(src.Total)
	if src.Result != nil {
		session.Result = &Result{
			Marker:        src.Result.Marker,
			Succeeded:     src.Result.Succeeded,
			TransactionId: src.Result.TransactionId,
			Error:         src.Result.Error,
		}
	}
	return session
}

// Convert from the journal entry, hiding the raw ledger error
func SubmissionFromJournal(src *journal.Submission) (submission Submission) {
	submission = Submission{
		Marker:        src.Marker,
		Session:       src.Session,
		PayerId:       src.PayerId,
		PayerEmail:    src.PayerEmail,
		AccountNumber: src.AccountNumber,
		Status:        src.Status,
		TransactionId: src.TransactionId,
		Category:      src.Category,
		StartedAt:     src.StartedAt,
		FinishedAt:    src.FinishedAt,
	}
	submission.Amount.FromUint64(src.Amount)
	submission.Fee.FromUint64(src.Fee)
	return submission
}
