package testsuite

import (
	"encoding/json"
	"testing"

	_ "embed"

	"anarchy.ttfm/scanpay/backend"
	backendsuite "anarchy.ttfm/scanpay/backend/testsuite"
	"anarchy.ttfm/scanpay/failures"
	"anarchy.ttfm/scanpay/fees"
	"anarchy.ttfm/scanpay/journal"
	"anarchy.ttfm/scanpay/scanner"
	"anarchy.ttfm/scanpay/scanner/push"
	"anarchy.ttfm/scanpay/utils"
	"anarchy.ttfm/scanpay/workflow"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

// Devices reported by the scanners built here
var Devices = []scanner.Device{
	{Id: "cam-front", Label: "Front camera", Facing: scanner.FacingFront},
	{Id: "cam-back", Label: "Back camera", Facing: scanner.FacingBack},
}

// Submitter is what the suite needs from a ledger: the transfer call,
// the charges listing and a way to count how many transfers reached it.
type Submitter interface {
	backend.Backend
	Submissions() (n uint64)
}

// Fixture is a workflow wired to a push scanner and an in memory journal
type Fixture struct {
	Workflow *workflow.Workflow
	Scanner  *push.Scanner
	Journal  *journal.Journal
}

// New builds a workflow over b with devices already enumerated
func New(t *testing.T, b backend.Backend) (f Fixture) {
	options := badger.
		DefaultOptions("").
		WithLogger(nil).
		WithInMemory(true)
	db, err := badger.Open(options)
	assert.Nil(t, err, "failed to open database")
	t.Cleanup(func() { db.Close() })

	f.Scanner = push.New(push.Config{Devices: Devices})
	session := scanner.NewSession(f.Scanner)
	f.Journal = journal.New(journal.Config{DB: db})
	f.Workflow = workflow.New(workflow.Config{
		Scanner:   session,
		Submitter: b,
		Fees:      fees.New(fees.Config{Lister: b}),
		Journal:   f.Journal,
	})

	ctx, cancel := utils.NewContext()
	defer cancel()
	_, err = f.Workflow.RefreshDevices(ctx)
	assert.Nil(t, err, "failed to refresh devices")
	return f
}

//go:embed tests/scenarios.yaml
var scenarioTests []byte

// Test drives complete scan to pay sessions against ledgers seeded with
// backendsuite.MockConfig. newBackend must return a fresh ledger on every call.
func Test(t *testing.T, newBackend func(t *testing.T) Submitter) {
	t.Run("Scenarios", func(t *testing.T) {
		assertions := assert.New(t)

		type Expect struct {
			State       workflow.State    `yaml:"state"`
			LastAttempt workflow.State    `yaml:"last-attempt"`
			Category    failures.Category `yaml:"category"`
			Fee         uint64            `yaml:"fee"`
			Total       uint64            `yaml:"total"`
			Submissions uint64            `yaml:"submissions"`
		}
		type Test struct {
			Name    string `yaml:"name"`
			Payload string `yaml:"payload"`
			Amount  uint64 `yaml:"amount"`
			Pin     string `yaml:"pin"`
			Expect  Expect `yaml:"expect"`
		}

		var tests []Test
		err := yaml.Unmarshal(scenarioTests, &tests)
		assertions.Nil(err, "failed to load tests")

		for _, test := range tests {
			name, _ := json.Marshal(test)
			t.Run(string(name), func(t *testing.T) {
				t.Parallel()
				assertions := assert.New(t)

				ctx, cancel := utils.NewContext()
				defer cancel()

				b := newBackend(t)
				f := New(t, b)

				snapshot, err := f.Workflow.StartScan(ctx, scanner.FacingBack)
				assertions.Nil(err, "failed to start scan")
				assertions.Equal(workflow.StateScanning, snapshot.State)
				assertions.True(snapshot.Scanner.Active, "scanner should be active")

				snapshot = f.Workflow.Decode(test.Payload)
				assertions.False(snapshot.Scanner.Active, "first decode should stop the scanner")

				if test.Expect.State == workflow.StateIdle {
					assertions.Equal(workflow.StateIdle, snapshot.State)
					if assertions.NotNil(snapshot.Failure, "rejection should be reported") {
						assertions.Equal(test.Expect.Category, snapshot.Failure.Category)
						assertions.NotEmpty(snapshot.Failure.Guidance)
					}
					assertions.Zero(b.Submissions(), "rejected codes must never reach the ledger")
					return
				}
				assertions.Equal(workflow.StateAwaitingConfirmation, snapshot.State)
				assertions.NotNil(snapshot.Intent, "intent should be shown")

				snapshot, err = f.Workflow.ConfirmAmount(ctx, backendsuite.Token, test.Amount)
				assertions.Nil(err, "failed to confirm amount")
				assertions.Equal(workflow.StateAwaitingAuthorization, snapshot.State)
				assertions.Equal(test.Expect.Fee, snapshot.Fee, "invalid fee")
				assertions.Equal(test.Expect.Total, snapshot.Total, "invalid total")

				snapshot, err = f.Workflow.SubmitPin(ctx, backendsuite.Token, test.Pin)
				assertions.Nil(err, "failed to submit pin")
				assertions.Equal(test.Expect.State, snapshot.State, "invalid state")
				assertions.Equal(test.Expect.Submissions, b.Submissions(), "invalid submissions")
				assertions.Equal(test.Amount, snapshot.Amount, "amount should survive the attempt")

				if test.Expect.State == workflow.StateSucceeded {
					if assertions.NotNil(snapshot.Result) {
						assertions.True(snapshot.Result.Succeeded)
						assertions.NotEmpty(snapshot.Result.TransactionId)
					}
					return
				}

				assertions.Equal(test.Expect.LastAttempt, snapshot.LastAttempt)
				if assertions.NotNil(snapshot.Failure, "failure should be reported") {
					assertions.Equal(test.Expect.Category, snapshot.Failure.Category)
				}
			})
		}
	})
}
