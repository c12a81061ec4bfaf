package mock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"anarchy.ttfm/scanpay/backend"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrUnauthorized  = &backend.Error{Code: "Unauthorized"}
)

type Account struct {
	Email string `yaml:"email"`
	Pin   string `yaml:"pin"`
	// Spendable balance in minor units
	Balance uint64 `yaml:"balance"`
	// Maximum amount plus fee of a single transfer. Zero means unlimited
	Limit   uint64 `yaml:"limit"`
	Blocked bool   `yaml:"blocked"`
}

// Mock implements backend.Backend in memory for testing purposes.
type Mock struct {
	mu          sync.Mutex
	accounts    map[string]Account // email -> account
	charges     []backend.Charge
	chargesErr  error
	tokens      map[backend.Token]struct{}
	transfers   map[string]backend.Transfer // idempotency key -> transfer
	nextId      uint64
	submissions uint64
	failNext    []error
	delay       time.Duration
	gate        chan struct{}
}

var _ backend.Backend = (*Mock)(nil)

type Config struct {
	// Accepted tokens. Any non empty token is accepted when empty
	Tokens []backend.Token
	// Ledger accounts
	Accounts []Account
	// Charges returned by ListCharges
	Charges []backend.Charge
	// When set ListCharges fails with it
	ChargesErr error
	// Latency added to every call
	Delay time.Duration
	// When set SubmitTransfer waits for a value (or close) before processing
	Gate chan struct{}
}

// New creates a new Mock ledger.
func New(config Config) *Mock {
	m := &Mock{
		accounts:   make(map[string]Account, len(config.Accounts)),
		charges:    config.Charges,
		chargesErr: config.ChargesErr,
		tokens:     make(map[backend.Token]struct{}, len(config.Tokens)),
		transfers:  make(map[string]backend.Transfer),
		nextId:     1,
		delay:      config.Delay,
		gate:       config.Gate,
	}
	for _, account := range config.Accounts {
		m.accounts[strings.ToLower(account.Email)] = account
	}
	for _, token := range config.Tokens {
		m.tokens[token] = struct{}{}
	}
	return m
}

func (m *Mock) authorize(token backend.Token) (err error) {
	if token.Validate() != nil {
		return ErrUnauthorized
	}
	if len(m.tokens) == 0 {
		return nil
	}
	if _, found := m.tokens[token]; !found {
		return ErrUnauthorized
	}
	return nil
}

func (m *Mock) wait(ctx context.Context) (err error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Mock) ListCharges(ctx context.Context, token backend.Token) (charges []backend.Charge, err error) {
	err = m.wait(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err = m.authorize(token)
	if err != nil {
		return nil, err
	}
	if m.chargesErr != nil {
		return nil, m.chargesErr
	}
	charges = make([]backend.Charge, len(m.charges))
	copy(charges, m.charges)
	return charges, nil
}

// SubmitTransfer debits the payer account. Repeated idempotency keys
// return the first successful transfer without debiting again.
func (m *Mock) SubmitTransfer(ctx context.Context, token backend.Token, req backend.TransferRequest) (transfer backend.Transfer, err error) {
	m.mu.Lock()
	m.submissions++
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return transfer, ctx.Err()
		}
	}

	err = m.wait(ctx)
	if err != nil {
		return transfer, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.failNext) > 0 {
		err = m.failNext[0]
		m.failNext = m.failNext[1:]
		return transfer, err
	}

	err = m.authorize(token)
	if err != nil {
		return transfer, err
	}

	if req.IdempotencyKey != "" {
		if previous, found := m.transfers[req.IdempotencyKey]; found {
			return previous, nil
		}
	}

	if req.Amount == 0 || req.Amount > math.MaxUint64-req.TransactionFee {
		return transfer, ErrInvalidAmount
	}

	key := strings.ToLower(req.ReceiverOrSenderEmail)
	account, found := m.accounts[key]
	switch {
	case !found:
		return transfer, &backend.Error{Code: backend.CodeUserNotFound}
	case account.Blocked:
		return transfer, &backend.Error{Code: backend.CodeAccountBlocked}
	case account.Pin != req.Pin:
		return transfer, &backend.Error{Code: backend.CodeInvalidPin}
	}

	total := req.Amount + req.TransactionFee
	if account.Limit > 0 && total > account.Limit {
		return transfer, &backend.Error{Code: backend.CodeTransactionLimitExceeded}
	}
	if account.Balance < total {
		return transfer, &backend.Error{Code: backend.CodeInsufficientFunds}
	}

	account.Balance -= total
	m.accounts[key] = account

	transfer = backend.Transfer{
		TransactionId: fmt.Sprintf("T%d", m.nextId),
		Message:       "ok",
	}
	m.nextId++
	if req.IdempotencyKey != "" {
		m.transfers[req.IdempotencyKey] = transfer
	}
	return transfer, nil
}

// FailNext makes the next SubmitTransfer calls fail with errs, in order
func (m *Mock) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failNext = append(m.failNext, errs...)
}

// Submissions returns how many times SubmitTransfer was called
func (m *Mock) Submissions() (n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.submissions
}

// Balance returns the balance of the account registered under email
func (m *Mock) Balance(email string) (balance uint64, found bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, found := m.accounts[strings.ToLower(email)]
	return account.Balance, found
}

// SetCharges replaces the charges returned by ListCharges
func (m *Mock) SetCharges(charges []backend.Charge, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.charges = charges
	m.chargesErr = err
}
