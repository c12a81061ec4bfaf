package workflow_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"anarchy.ttfm/scanpay/backend"
	"anarchy.ttfm/scanpay/backend/mock"
	backendsuite "anarchy.ttfm/scanpay/backend/testsuite"
	"anarchy.ttfm/scanpay/failures"
	"anarchy.ttfm/scanpay/fees"
	"anarchy.ttfm/scanpay/journal"
	"anarchy.ttfm/scanpay/scanner"
	"anarchy.ttfm/scanpay/scanner/push"
	"anarchy.ttfm/scanpay/utils"
	"anarchy.ttfm/scanpay/workflow"
	"anarchy.ttfm/scanpay/workflow/testsuite"
	"github.com/stretchr/testify/assert"
)

const janePayload = `{"userId":"u1","name":"Jane","email":"jane@x.com","accountNumber":"001","transactionType":"payment"}`

func Test_Workflow(t *testing.T) {
	testsuite.Test(t, func(t *testing.T) testsuite.Submitter {
		return mock.New(backendsuite.MockConfig())
	})
}

// Scans jane's code and confirms amount
func authorize(t *testing.T, f testsuite.Fixture, amount uint64) (snapshot workflow.Snapshot) {
	ctx, cancel := utils.NewContext()
	defer cancel()

	_, err := f.Workflow.StartScan(ctx, "")
	assert.Nil(t, err, "failed to start scan")
	f.Workflow.Decode(janePayload)

	snapshot, err = f.Workflow.ConfirmAmount(ctx, backendsuite.Token, amount)
	assert.Nil(t, err, "failed to confirm amount")
	assert.Equal(t, workflow.StateAwaitingAuthorization, snapshot.State)
	return snapshot
}

func collect(submissions chan journal.Submission, errChan chan error) (out []journal.Submission, err error) {
	defer utils.ConsumeChannel(errChan)
	for s := range submissions {
		out = append(out, s)
	}
	return out, <-errChan
}

func waitState(t *testing.T, w *workflow.Workflow, state workflow.State) {
	assert.Eventually(t, func() bool {
		return w.Snapshot().State == state
	}, 5*time.Second, 5*time.Millisecond, "never reached %s", state)
}

func Test_NoTransferCharge(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	m := mock.New(backendsuite.MockConfig())
	m.SetCharges([]backend.Charge{
		{Name: "Withdrawal Fee", Amount: 50, Status: backend.ChargeStatusActive},
		{Name: "Transfer Charge", Amount: 25, Status: backend.ChargeStatusInactive},
	}, nil)
	f := testsuite.New(t, m)

	snapshot := authorize(t, f, 500)
	assertions.Zero(snapshot.Fee, "inactive charge should not apply")
	assertions.Equal(uint64(500), snapshot.Total)

	snapshot, err := f.Workflow.SubmitPin(ctx, backendsuite.Token, "1234")
	assertions.Nil(err, "failed to submit pin")
	assertions.Equal(workflow.StateSucceeded, snapshot.State)
	if assertions.NotNil(snapshot.Result) {
		assertions.Equal("T1", snapshot.Result.TransactionId)
	}

	balance, _ := m.Balance(backendsuite.Payer.Email)
	assertions.Equal(backendsuite.Payer.Balance-500, balance)
}

func Test_FeeLookupFailure(t *testing.T) {
	assertions := assert.New(t)

	m := mock.New(backendsuite.MockConfig())
	m.SetCharges(nil, errors.New("charges unavailable"))
	f := testsuite.New(t, m)

	snapshot := authorize(t, f, 500)
	assertions.Zero(snapshot.Fee, "failed lookup should not block the payment")
}

func Test_FeeFrozen(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	m := mock.New(backendsuite.MockConfig())
	f := testsuite.New(t, m)

	snapshot := authorize(t, f, 500)
	assertions.Equal(uint64(25), snapshot.Fee)

	m.SetCharges([]backend.Charge{{Name: "Transfer Charge", Amount: 99, Status: backend.ChargeStatusActive}}, nil)
	snapshot, err := f.Workflow.ConfirmAmount(ctx, backendsuite.Token, 700)
	assertions.Nil(err, "failed to change amount")
	assertions.Equal(uint64(25), snapshot.Fee, "fee should stay frozen for the session")
	assertions.Equal(uint64(725), snapshot.Total)
}

func Test_InvalidInput(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	m := mock.New(backendsuite.MockConfig())
	f := testsuite.New(t, m)

	_, err := f.Workflow.ConfirmAmount(ctx, backendsuite.Token, 500)
	assertions.ErrorIs(err, workflow.ErrInvalidTransition, "amount needs an intent")

	_, err = f.Workflow.StartScan(ctx, "")
	assertions.Nil(err)
	f.Workflow.Decode(janePayload)

	snapshot, err := f.Workflow.ConfirmAmount(ctx, backendsuite.Token, 0)
	assertions.ErrorIs(err, workflow.ErrInvalidAmount)
	assertions.Equal(workflow.StateAwaitingConfirmation, snapshot.State)

	snapshot, err = f.Workflow.ConfirmAmount(ctx, backendsuite.Token, math.MaxUint64-10)
	assertions.ErrorIs(err, workflow.ErrInvalidAmount, "total must not wrap")
	assertions.Equal(workflow.StateAwaitingConfirmation, snapshot.State)
	assertions.Zero(snapshot.Total)

	_, err = f.Workflow.ConfirmAmount(ctx, "", 500)
	assertions.ErrorIs(err, backend.ErrEmptyToken)

	_, err = f.Workflow.SubmitPin(ctx, backendsuite.Token, "1234")
	assertions.ErrorIs(err, workflow.ErrInvalidTransition, "pin needs a confirmed amount")

	_, err = f.Workflow.ConfirmAmount(ctx, backendsuite.Token, 500)
	assertions.Nil(err)

	for _, pin := range []string{"", "123", "12345", "12a4"} {
		snapshot, err = f.Workflow.SubmitPin(ctx, backendsuite.Token, pin)
		assertions.ErrorIs(err, workflow.ErrInvalidPin, pin)
		assertions.Equal(workflow.StateAwaitingAuthorization, snapshot.State)
	}
	assertions.Zero(m.Submissions(), "invalid input must never reach the ledger")
}

func Test_DoubleSubmit(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	config := backendsuite.MockConfig()
	config.Gate = make(chan struct{})
	m := mock.New(config)
	f := testsuite.New(t, m)
	authorize(t, f, 500)

	done := make(chan workflow.Snapshot, 1)
	go func() {
		snapshot, err := f.Workflow.SubmitPin(ctx, backendsuite.Token, "1234")
		assertions.Nil(err, "failed to submit pin")
		done <- snapshot
	}()
	waitState(t, f.Workflow, workflow.StateSubmitting)

	snapshot, err := f.Workflow.SubmitPin(ctx, backendsuite.Token, "1234")
	assertions.ErrorIs(err, workflow.ErrSubmissionInFlight)
	assertions.Equal(workflow.StateSubmitting, snapshot.State)

	_, err = f.Workflow.Cancel()
	assertions.ErrorIs(err, workflow.ErrCancelWhileSubmitting)

	close(config.Gate)
	snapshot = <-done
	assertions.Equal(workflow.StateSucceeded, snapshot.State)
	assertions.Equal(uint64(1), m.Submissions(), "exactly one transfer should be issued")
}

func Test_RetryAfterUnknownOutcome(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	m := mock.New(backendsuite.MockConfig())
	f := testsuite.New(t, m)
	authorize(t, f, 500)

	m.FailNext(errors.New("connection reset by peer"))
	snapshot, err := f.Workflow.SubmitPin(ctx, backendsuite.Token, "1234")
	assertions.Nil(err)
	assertions.Equal(workflow.StateAwaitingAuthorization, snapshot.State)
	assertions.Equal(failures.CategoryUnclassified, snapshot.Failure.Category)

	snapshot, err = f.Workflow.SubmitPin(ctx, backendsuite.Token, "1234")
	assertions.Nil(err)
	assertions.Equal(workflow.StateSucceeded, snapshot.State)

	all, err := collect(f.Journal.StreamAll())
	assertions.Nil(err)
	if assertions.Len(all, 1, "retry should reuse the marker") {
		assertions.Equal(journal.StatusSucceeded, all[0].Status)
		assertions.Equal(snapshot.Result.TransactionId, all[0].TransactionId)
		if assertions.Len(all[0].Attempts, 1, "unknown outcome should stay on record") {
			assertions.Equal(journal.StatusUnknown, all[0].Attempts[0].Status)
			assertions.Contains(all[0].Attempts[0].Error, "connection reset by peer")
		}
	}
}

func Test_RetryAfterRejection(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	m := mock.New(backendsuite.MockConfig())
	f := testsuite.New(t, m)
	authorize(t, f, 500)

	snapshot, err := f.Workflow.SubmitPin(ctx, backendsuite.Token, "9999")
	assertions.Nil(err)
	assertions.Equal(failures.CategoryInvalidPin, snapshot.Failure.Category)
	assertions.Equal(workflow.StateFailed, snapshot.LastAttempt)

	snapshot, err = f.Workflow.SubmitPin(ctx, backendsuite.Token, "1234")
	assertions.Nil(err)
	assertions.Equal(workflow.StateSucceeded, snapshot.State)
	assertions.Nil(snapshot.Failure, "success should clear the failure")

	all, err := collect(f.Journal.StreamAll())
	assertions.Nil(err)
	assertions.Len(all, 2, "rejected attempt and retry are distinct submissions")
	assertions.Equal(uint64(2), m.Submissions())
}

func Test_Cancel(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	m := mock.New(backendsuite.MockConfig())
	f := testsuite.New(t, m)
	authorize(t, f, 500)

	snapshot, err := f.Workflow.Cancel()
	assertions.Nil(err, "failed to cancel")
	assertions.Equal(workflow.StateIdle, snapshot.State)
	assertions.Nil(snapshot.Intent)
	assertions.Zero(snapshot.Amount)

	_, err = f.Workflow.StartScan(ctx, scanner.FacingFront)
	assertions.Nil(err)
	snapshot, err = f.Workflow.Cancel()
	assertions.Nil(err, "failed to cancel scan")
	assertions.False(snapshot.Scanner.Active, "cancel should stop the camera")
	assertions.ErrorIs(f.Scanner.Push(janePayload), push.ErrNotStarted)
}

func Test_PushedDecodes(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	m := mock.New(backendsuite.MockConfig())
	f := testsuite.New(t, m)

	_, err := f.Workflow.StartScan(ctx, scanner.FacingFront)
	assertions.Nil(err)
	assertions.Equal(scanner.FacingFront, f.Scanner.Facing())

	snapshot, err := f.Workflow.SwitchFacing(ctx)
	assertions.Nil(err, "failed to switch facing")
	assertions.Equal(scanner.FacingBack, snapshot.Scanner.Facing)

	assertions.Nil(f.Scanner.Push(janePayload), "failed to push")
	waitState(t, f.Workflow, workflow.StateAwaitingConfirmation)

	snapshot = f.Workflow.Snapshot()
	assertions.Equal("u1", snapshot.Intent.PayerId)
	assertions.False(snapshot.Scanner.Active)

	_, err = f.Workflow.SwitchFacing(ctx)
	assertions.ErrorIs(err, workflow.ErrInvalidTransition, "switch needs a running scan")
}

func Test_CameraUnavailable(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	session := scanner.NewSession(push.New(push.Config{DevicesErr: errors.New("permission denied")}))
	m := mock.New(backendsuite.MockConfig())
	w := workflow.New(workflow.Config{Scanner: session, Submitter: m})

	snapshot, err := w.RefreshDevices(ctx)
	assertions.NotNil(err)
	assertions.False(snapshot.Scanner.Available)
	assertions.NotEmpty(snapshot.Scanner.Advisory)

	snapshot, err = w.StartScan(ctx, "")
	assertions.ErrorIs(err, scanner.ErrUnavailable)
	assertions.Equal(workflow.StateIdle, snapshot.State, "failed start should leave the session idle")
}

func Test_Detach(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	config := backendsuite.MockConfig()
	config.Gate = make(chan struct{})
	m := mock.New(config)
	f := testsuite.New(t, m)
	authorize(t, f, 500)

	done := make(chan error, 1)
	go func() {
		_, err := f.Workflow.SubmitPin(ctx, backendsuite.Token, "1234")
		done <- err
	}()
	waitState(t, f.Workflow, workflow.StateSubmitting)

	f.Workflow.Detach()
	close(config.Gate)
	assertions.ErrorIs(<-done, workflow.ErrDetached)
	assertions.Equal(workflow.StateSubmitting, f.Workflow.Snapshot().State, "late result must not be applied")

	all, err := collect(f.Journal.StreamAll())
	assertions.Nil(err)
	if assertions.Len(all, 1) {
		assertions.Equal(journal.StatusSucceeded, all[0].Status, "late result should still be journaled")
	}

	_, err = f.Workflow.StartScan(ctx, "")
	assertions.ErrorIs(err, workflow.ErrDetached)
}

func Test_SubmitTimeout(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	config := backendsuite.MockConfig()
	config.Gate = make(chan struct{})
	m := mock.New(config)

	session := scanner.NewSession(push.New(push.Config{Devices: testsuite.Devices}))
	w := workflow.New(workflow.Config{
		Scanner:       session,
		Submitter:     m,
		Fees:          fees.New(fees.Config{Lister: m}),
		SubmitTimeout: 20 * time.Millisecond,
	})
	_, err := w.RefreshDevices(ctx)
	assertions.Nil(err)
	_, err = w.StartScan(ctx, "")
	assertions.Nil(err)
	w.Decode(janePayload)
	_, err = w.ConfirmAmount(ctx, backendsuite.Token, 500)
	assertions.Nil(err)

	snapshot, err := w.SubmitPin(ctx, backendsuite.Token, "1234")
	assertions.Nil(err)
	assertions.Equal(workflow.StateAwaitingAuthorization, snapshot.State)
	assertions.Equal(failures.CategoryUnclassified, snapshot.Failure.Category, "timeout outcome is unknown")
}
