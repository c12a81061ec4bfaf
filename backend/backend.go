package backend

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyToken = errors.New("empty session token")

// Bearer credential of the agent session. Read-only inside the workflow.
type Token string

func (t Token) Validate() (err error) {
	if strings.TrimSpace(string(t)) == "" {
		return ErrEmptyToken
	}
	return nil
}

type ChargeStatus string

const (
	ChargeStatusActive   ChargeStatus = "Active"
	ChargeStatusInactive ChargeStatus = "Inactive"
)

// Short error codes returned by the ledger service
const (
	CodeInvalidPin               = "InvalidPin"
	CodeInsufficientFunds        = "InsufficientFunds"
	CodeUserNotFound             = "UserNotFound"
	CodeTransactionLimitExceeded = "TransactionLimitExceeded"
	CodeAccountBlocked           = "AccountBlocked"
)

type (
	Charge struct {
		// Name of the charge, transfer charges contain "transfer"
		Name string `json:"name" yaml:"name"`
		// Amount in minor units
		Amount uint64 `json:"amount" yaml:"amount"`
		// Only Active charges are applied
		Status ChargeStatus `json:"status" yaml:"status"`
		// Optional scope of the charge
		AppliesTo string `json:"appliesTo,omitzero" yaml:"applies-to,omitempty"`
	}
	TransferRequest struct {
		// Payer account addressed by email
		ReceiverOrSenderEmail string `json:"receiverOrSenderEmail"`
		// Amount in minor units
		Amount uint64 `json:"amount"`
		// Secret authorizing the transfer
		Pin string `json:"pin"`
		// Fee in minor units
		TransactionFee uint64 `json:"transactionFee"`
		// Deduplication key. Sent as a header, never in the body
		IdempotencyKey string `json:"-"`
	}
	Transfer struct {
		// Identifier of the ledger transaction
		TransactionId string `json:"transactionId,omitzero"`
		// Human readable message of the backend
		Message string `json:"message"`
	}
)

// Error carries the machine-readable code of a rejected call
type Error struct {
	Code string
}

func (e *Error) Error() (s string) {
	return e.Code
}

type Backend interface {
	// Lists the configured charges, active or not
	ListCharges(ctx context.Context, token Token) (charges []Charge, err error)

	// Submits a transfer. Rejections are returned as *Error
	SubmitTransfer(ctx context.Context, token Token, req TransferRequest) (transfer Transfer, err error)
}
