package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"anarchy.ttfm/scanpay/backend"
	"anarchy.ttfm/scanpay/failures"
	"anarchy.ttfm/scanpay/intents"
	"anarchy.ttfm/scanpay/journal"
	"anarchy.ttfm/scanpay/metrics"
	"anarchy.ttfm/scanpay/scanner"
	"anarchy.ttfm/scanpay/utils"
	"github.com/google/uuid"
)

var (
	ErrDetached       = errors.New("workflow detached")
	ErrSessionChanged = errors.New("session changed while resolving fee")
)

// Scan outcomes reported to metrics
const (
	ScanAccepted = "accepted"
	ScanRejected = "rejected"
	ScanIgnored  = "ignored"
)

const SubmissionSucceeded = "Succeeded"

type Submitter interface {
	SubmitTransfer(ctx context.Context, token backend.Token, req backend.TransferRequest) (transfer backend.Transfer, err error)
}

type FeeResolver interface {
	Resolve(ctx context.Context, token backend.Token) (fee uint64)
}

type Config struct {
	// Camera session feeding decoded strings
	Scanner *scanner.Session
	// Ledger transfer call
	Submitter Submitter
	// Active transfer fee lookup
	Fees FeeResolver
	// Defaults to failures.Default()
	Classifier *failures.Classifier
	// Optional submission journal
	Journal *journal.Journal
	// Optional metrics
	Metrics *metrics.Metrics
	// Upper bound of a submission. Zero waits for the transport
	SubmitTimeout time.Duration
	// Clock. Defaults to time.Now
	Now func() time.Time
}

// Workflow runs the authorization state machine for one agent device.
// All methods are safe for concurrent use; Transition decides every change.
type Workflow struct {
	mu            sync.Mutex
	session       Session
	generation    uint64
	detached      bool
	scanner       *scanner.Session
	submitter     Submitter
	fees          FeeResolver
	classifier    *failures.Classifier
	journal       *journal.Journal
	metrics       *metrics.Metrics
	submitTimeout time.Duration
	now           func() time.Time
}

func New(config Config) (w *Workflow) {
	w = &Workflow{
		session:       Session{State: StateIdle},
		scanner:       config.Scanner,
		submitter:     config.Submitter,
		fees:          config.Fees,
		classifier:    config.Classifier,
		journal:       config.Journal,
		metrics:       config.Metrics,
		submitTimeout: config.SubmitTimeout,
		now:           config.Now,
	}
	if w.classifier == nil {
		w.classifier = failures.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

type Snapshot struct {
	Session     uuid.UUID              `json:"session"`
	State       State                  `json:"state"`
	Intent      *intents.PaymentIntent `json:"intent,omitempty"`
	Amount      uint64                 `json:"amount"`
	Fee         uint64                 `json:"fee"`
	Total       uint64                 `json:"total"`
	Failure     *failures.Classified   `json:"failure,omitempty"`
	Result      *TransactionResult     `json:"result,omitempty"`
	LastAttempt State                  `json:"lastAttempt,omitempty"`
	Scanner     scanner.Status         `json:"scanner"`
}

func (w *Workflow) snapshot() (s Snapshot) {
	s = Snapshot{
		Session:     w.session.Id,
		State:       w.session.State,
		Amount:      w.session.Amount,
		Fee:         w.session.Fee,
		Total:       w.session.Amount + w.session.Fee,
		LastAttempt: w.session.LastAttempt,
		Scanner:     w.scanner.Status(),
	}
	if w.session.Intent != nil {
		intent := *w.session.Intent
		s.Intent = &intent
	}
	if w.session.Failure != nil {
		failure := *w.session.Failure
		s.Failure = &failure
	}
	if w.session.Result != nil {
		result := *w.session.Result
		s.Result = &result
	}
	return s
}

// Snapshot returns the state rendered by the host. It never contains the PIN
func (w *Workflow) Snapshot() (s Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.snapshot()
}

func (w *Workflow) apply(e Event) (err error) {
	next, err := Transition(w.session, e)
	if err != nil {
		return err
	}
	if next.State != w.session.State {
		log.Println("INFO|TRANSITION|SESSION", next.Id, w.session.State, "->", next.State)
	}
	w.session = next
	return nil
}

func (w *Workflow) usable() (err error) {
	if w.detached {
		return ErrDetached
	}
	return nil
}

// RefreshDevices enumerates cameras. Failures are reported as an advisory in the snapshot
func (w *Workflow) RefreshDevices(ctx context.Context) (s Snapshot, err error) {
	_, err = w.scanner.Refresh(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.snapshot(), err
}

// StartScan opens a new session and starts the camera
func (w *Workflow) StartScan(ctx context.Context, facing scanner.Facing) (s Snapshot, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	err = w.usable()
	if err != nil {
		return w.snapshot(), err
	}

	err = w.apply(ScanStarted{Session: uuid.New()})
	if err != nil {
		return w.snapshot(), err
	}
	w.generation++

	generation := w.generation
	err = w.scanner.Start(ctx, facing, func(raw string) {
		w.decode(generation, raw)
	})
	if err != nil {
		_ = w.apply(Cancelled{})
		return w.snapshot(), fmt.Errorf("failed to start scanning: %w", err)
	}
	return w.snapshot(), nil
}

// SwitchFacing flips the camera of the running scan
func (w *Workflow) SwitchFacing(ctx context.Context) (s Snapshot, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	err = w.usable()
	if err != nil {
		return w.snapshot(), err
	}
	if w.session.State != StateScanning {
		return w.snapshot(), fmt.Errorf("%w: switch facing in %s", ErrInvalidTransition, w.session.State)
	}

	_, err = w.scanner.SwitchFacing(ctx)
	if err != nil {
		return w.snapshot(), fmt.Errorf("failed to switch facing: %w", err)
	}
	return w.snapshot(), nil
}

// RejectionCategory maps a normalizer error to its client side category
func RejectionCategory(err error) (category failures.Category) {
	switch {
	case errors.Is(err, intents.ErrMissingRequiredFields):
		return failures.CategoryMissingRequiredFields
	case errors.Is(err, intents.ErrUnsupportedIntentKind):
		return failures.CategoryUnsupportedIntentKind
	default:
		return failures.CategoryMalformedPayload
	}
}

func (w *Workflow) decode(generation uint64, raw string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.detached || generation != w.generation || w.session.State != StateScanning {
		w.metrics.ObserveScan(ScanIgnored)
		return
	}

	var event ScanDecoded
	intent, err := intents.Parse(raw, w.now())
	if err != nil {
		log.Println("WARN|REJECTING|PAYLOAD", err)
		rejection := w.classifier.Reject(RejectionCategory(err))
		event.Rejection = &rejection
		w.metrics.ObserveScan(ScanRejected)
	} else {
		event.Intent = &intent
		w.metrics.ObserveScan(ScanAccepted)
	}

	err = w.apply(event)
	if err != nil {
		log.Println("ERROR|APPLYING|DECODE", err)
		return
	}

	// First decode wins, accepted or not
	err = w.scanner.Stop()
	if err != nil {
		log.Println("ERROR|STOPPING|SCANNER", err)
	}
}

// Decode feeds a decoded string as if it came from the camera
func (w *Workflow) Decode(raw string) (s Snapshot) {
	w.mu.Lock()
	generation := w.generation
	w.mu.Unlock()

	w.decode(generation, raw)
	return w.Snapshot()
}

// ConfirmAmount freezes the amount and, once per session, the transfer fee.
// The fee is fully resolved before the session can accept a PIN.
func (w *Workflow) ConfirmAmount(ctx context.Context, token backend.Token, amount uint64) (s Snapshot, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	err = w.usable()
	if err != nil {
		return w.snapshot(), err
	}
	err = token.Validate()
	if err != nil {
		return w.snapshot(), err
	}

	// Reject invalid input before any network call
	_, err = Transition(w.session, AmountConfirmed{Amount: amount})
	if err != nil {
		return w.snapshot(), err
	}

	fee := w.session.Fee
	if !w.session.FeeResolved {
		generation := w.generation

		w.mu.Unlock()
		fee = w.fees.Resolve(ctx, token)
		w.mu.Lock()

		if w.detached || generation != w.generation {
			return w.snapshot(), ErrSessionChanged
		}
	}

	err = w.apply(AmountConfirmed{Amount: amount, Fee: fee})
	if err != nil {
		return w.snapshot(), err
	}
	return w.snapshot(), nil
}

func (w *Workflow) submit(ctx context.Context, token backend.Token, req TransactionRequest) (transfer backend.Transfer, err error) {
	// Once issued the call is never aborted by the caller going away
	ctx, cancel := utils.WithOptionalTimeout(context.WithoutCancel(ctx), w.submitTimeout)
	defer cancel()

	return w.submitter.SubmitTransfer(ctx, token, backend.TransferRequest{
		ReceiverOrSenderEmail: req.Intent.PayerEmail,
		Amount:                req.Amount,
		Pin:                   req.Pin,
		TransactionFee:        req.Fee,
		IdempotencyKey:        req.IdempotencyMarker.String(),
	})
}

func (w *Workflow) record(req TransactionRequest) (err error) {
	if w.journal == nil {
		return nil
	}
	return w.journal.Begin(journal.Submission{
		Marker:        req.IdempotencyMarker,
		Session:       req.Session,
		PayerId:       req.Intent.PayerId,
		PayerEmail:    req.Intent.PayerEmail,
		AccountNumber: req.Intent.AccountNumber,
		Amount:        req.Amount,
		Fee:           req.Fee,
	})
}

func (w *Workflow) finish(marker uuid.UUID, outcome journal.Outcome) {
	if w.journal == nil {
		return
	}
	_, err := w.journal.Finish(marker, outcome)
	if err != nil {
		log.Println("ERROR|FINISHING|SUBMISSION", marker, err)
	}
}

// SubmitPin issues exactly one transfer for the confirmed amount and waits for it.
// A call made while another submission is outstanding changes nothing and
// returns ErrSubmissionInFlight. Ledger rejections are reported in the snapshot.
func (w *Workflow) SubmitPin(ctx context.Context, token backend.Token, pin string) (s Snapshot, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	err = w.usable()
	if err != nil {
		return w.snapshot(), err
	}
	err = token.Validate()
	if err != nil {
		return w.snapshot(), err
	}

	err = w.apply(PinSubmitted{Pin: pin, Marker: uuid.New()})
	if err != nil {
		if errors.Is(err, ErrSubmissionInFlight) {
			log.Println("WARN|IGNORING|SUBMISSION", w.session.Id)
		}
		return w.snapshot(), err
	}

	req := *w.session.Request
	generation := w.generation

	err = w.record(req)
	if err != nil {
		// Nothing reached the ledger
		failure := w.classifier.ClassifyError(err)
		_ = w.apply(SubmissionResult{Failure: &failure, Definitive: true})
		return w.snapshot(), fmt.Errorf("failed to record submission: %w", err)
	}

	w.mu.Unlock()
	started := time.Now()
	transfer, submitErr := w.submit(ctx, token, req)
	took := time.Since(started)
	w.mu.Lock()

	var result SubmissionResult
	var outcome journal.Outcome
	if submitErr == nil {
		result = SubmissionResult{TransactionId: transfer.TransactionId, Definitive: true}
		outcome = journal.Outcome{Status: journal.StatusSucceeded, TransactionId: transfer.TransactionId}
		w.metrics.ObserveSubmission(SubmissionSucceeded, took)
	} else {
		failure := w.classifier.ClassifyError(submitErr)
		result = SubmissionResult{Failure: &failure, Definitive: failure.Category != failures.CategoryUnclassified}
		outcome = journal.Outcome{Status: journal.StatusRejected, Category: string(failure.Category), Error: submitErr.Error()}
		if !result.Definitive {
			outcome.Status = journal.StatusUnknown
		}
		log.Println("WARN|SUBMITTING|TRANSFER", req.IdempotencyMarker, failure.Category, submitErr)
		w.metrics.ObserveSubmission(string(failure.Category), took)
	}
	w.finish(req.IdempotencyMarker, outcome)

	if w.detached || generation != w.generation {
		log.Println("WARN|DISCARDING|RESULT", req.IdempotencyMarker)
		return w.snapshot(), ErrDetached
	}

	err = w.apply(result)
	if err != nil {
		return w.snapshot(), err
	}
	return w.snapshot(), nil
}

// Cancel discards the session. It is refused while a submission is outstanding
func (w *Workflow) Cancel() (s Snapshot, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	err = w.usable()
	if err != nil {
		return w.snapshot(), err
	}

	err = w.apply(Cancelled{})
	if err != nil {
		return w.snapshot(), err
	}
	w.generation++

	err = w.scanner.Stop()
	if err != nil {
		log.Println("ERROR|STOPPING|SCANNER", err)
	}
	return w.snapshot(), nil
}

// Detach is called when the host component goes away. Outstanding
// submissions still finish and are journaled, but mutate nothing.
func (w *Workflow) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.detached = true
	w.generation++

	err := w.scanner.Stop()
	if err != nil {
		log.Println("ERROR|STOPPING|SCANNER", err)
	}
}
