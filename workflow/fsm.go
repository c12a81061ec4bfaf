package workflow

import (
	"errors"
	"fmt"
	"math"

	"anarchy.ttfm/scanpay/failures"
	"anarchy.ttfm/scanpay/intents"
	"github.com/google/uuid"
)

// Number of digits of a PIN
const PinLength = 4

var (
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrInvalidPin            = fmt.Errorf("pin must be %d digits", PinLength)
	ErrSubmissionInFlight    = errors.New("a submission is already in flight")
	ErrCancelWhileSubmitting = errors.New("cannot cancel while submitting")
)

type State string

const (
	StateIdle                  State = "Idle"
	StateScanning              State = "Scanning"
	StateAwaitingConfirmation  State = "AwaitingConfirmation"
	StateAwaitingAuthorization State = "AwaitingAuthorization"
	StateSubmitting            State = "Submitting"
	StateSucceeded             State = "Succeeded"
	// Outcome of a rejected attempt. The session itself settles back in
	// AwaitingAuthorization, Failed is only reported through LastAttempt.
	StateFailed State = "Failed"
)

type (
	// TransactionRequest is built once per submission from frozen session state
	TransactionRequest struct {
		Session           uuid.UUID
		Intent            intents.PaymentIntent
		Amount            uint64
		Fee               uint64
		Pin               string
		IdempotencyMarker uuid.UUID
	}
	TransactionResult struct {
		// Idempotency marker the attempt was submitted under
		Marker        uuid.UUID            `json:"marker"`
		TransactionId string               `json:"transactionId,omitzero"`
		Succeeded     bool                 `json:"succeeded"`
		Error         *failures.Classified `json:"error,omitzero"`
	}
	// Session is the whole mutable state of the machine. Transition never
	// modifies its input.
	Session struct {
		Id          uuid.UUID
		State       State
		Intent      *intents.PaymentIntent
		Amount      uint64
		Fee         uint64
		FeeResolved bool
		Pin         string
		// Marker of the next submission. Kept after an outcome the ledger
		// did not settle so the retry is deduplicated
		Marker      uuid.UUID
		Request     *TransactionRequest
		Failure     *failures.Classified
		Result      *TransactionResult
		LastAttempt State
	}
)

type Event interface {
	event()
}

type (
	ScanStarted struct {
		// Identifier of the new session
		Session uuid.UUID
	}
	// ScanDecoded carries the normalizer verdict of a decoded string
	ScanDecoded struct {
		Intent    *intents.PaymentIntent
		Rejection *failures.Classified
	}
	AmountConfirmed struct {
		Amount uint64
		// Fee resolved for this session. Ignored once a fee is frozen
		Fee uint64
	}
	PinSubmitted struct {
		Pin string
		// Used when the session holds no retained marker
		Marker uuid.UUID
	}
	SubmissionResult struct {
		TransactionId string
		Failure       *failures.Classified
		// False when the ledger outcome is unknown (transport failure, timeout)
		Definitive bool
	}
	Cancelled struct{}
)

func (ScanStarted) event()      {}
func (ScanDecoded) event()      {}
func (AmountConfirmed) event()  {}
func (PinSubmitted) event()     {}
func (SubmissionResult) event() {}
func (Cancelled) event()        {}

func invalid(s State, e Event) (err error) {
	return fmt.Errorf("%w: %T in %s", ErrInvalidTransition, e, s)
}

func validPin(pin string) (ok bool) {
	if len(pin) != PinLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Transition returns the session that results from applying e to s.
// On error the returned session equals s.
func Transition(s Session, e Event) (next Session, err error) {
	next = s

	switch e := e.(type) {
	case ScanStarted:
		if s.State != StateIdle && s.State != StateSucceeded {
			return s, invalid(s.State, e)
		}
		return Session{Id: e.Session, State: StateScanning}, nil

	case ScanDecoded:
		if s.State != StateScanning {
			return s, invalid(s.State, e)
		}
		if e.Intent == nil {
			return Session{State: StateIdle, Failure: e.Rejection}, nil
		}
		intent := *e.Intent
		next.Intent = &intent
		next.State = StateAwaitingConfirmation
		next.Failure = nil
		return next, nil

	case AmountConfirmed:
		if s.State != StateAwaitingConfirmation && s.State != StateAwaitingAuthorization {
			return s, invalid(s.State, e)
		}
		if e.Amount == 0 {
			return s, ErrInvalidAmount
		}
		if !s.FeeResolved {
			next.Fee = e.Fee
			next.FeeResolved = true
		}
		// Amount plus fee must fit the ledger unit
		if e.Amount > math.MaxUint64-next.Fee {
			return s, fmt.Errorf("%w: amount plus fee overflows", ErrInvalidAmount)
		}
		if s.Amount != 0 && s.Amount != e.Amount {
			// A different amount is a different logical submission
			next.Marker = uuid.Nil
		}
		next.Amount = e.Amount
		next.State = StateAwaitingAuthorization
		next.Failure = nil
		return next, nil

	case PinSubmitted:
		switch s.State {
		case StateSubmitting:
			return s, ErrSubmissionInFlight
		case StateAwaitingAuthorization:
		default:
			return s, invalid(s.State, e)
		}
		if !validPin(e.Pin) {
			return s, ErrInvalidPin
		}
		if s.Marker == uuid.Nil {
			next.Marker = e.Marker
		}
		next.Pin = e.Pin
		next.Request = &TransactionRequest{
			Session:           s.Id,
			Intent:            *s.Intent,
			Amount:            s.Amount,
			Fee:               s.Fee,
			Pin:               e.Pin,
			IdempotencyMarker: next.Marker,
		}
		next.State = StateSubmitting
		next.Failure = nil
		next.Result = nil
		return next, nil

	case SubmissionResult:
		if s.State != StateSubmitting {
			return s, invalid(s.State, e)
		}
		var marker uuid.UUID
		if s.Request != nil {
			marker = s.Request.IdempotencyMarker
		}
		next.Pin = ""
		next.Request = nil
		if e.Failure == nil {
			next.State = StateSucceeded
			next.LastAttempt = StateSucceeded
			next.Marker = uuid.Nil
			next.Result = &TransactionResult{Marker: marker, TransactionId: e.TransactionId, Succeeded: true}
			return next, nil
		}
		failure := *e.Failure
		next.State = StateAwaitingAuthorization
		next.LastAttempt = StateFailed
		next.Failure = &failure
		next.Result = &TransactionResult{Marker: marker, Succeeded: false, Error: &failure}
		if e.Definitive {
			next.Marker = uuid.Nil
		}
		return next, nil

	case Cancelled:
		if s.State == StateSubmitting {
			return s, ErrCancelWhileSubmitting
		}
		return Session{State: StateIdle}, nil

	default:
		return s, invalid(s.State, e)
	}
}
