package testsuite

import (
	"anarchy.ttfm/scanpay/backend"
	"anarchy.ttfm/scanpay/backend/mock"
)

var Token = backend.Token("agent-session-token")

var (
	Payer        = mock.Account{Email: "jane@x.com", Pin: "1234", Balance: 1_000_000, Limit: 500_000}
	BrokePayer   = mock.Account{Email: "broke@x.com", Pin: "4321", Balance: 100}
	BlockedPayer = mock.Account{Email: "blocked@x.com", Pin: "1111", Balance: 1_000_000, Blocked: true}
)

var Charges = []backend.Charge{
	{Name: "Withdrawal Fee", Amount: 50, Status: backend.ChargeStatusActive},
	{Name: "Transfer Charge", Amount: 25, Status: backend.ChargeStatusActive, AppliesTo: "transfers"},
}

// MockConfig is the ledger every backend under test must be seeded with
func MockConfig() mock.Config {
	return mock.Config{
		Tokens:   []backend.Token{Token},
		Accounts: []mock.Account{Payer, BrokePayer, BlockedPayer},
		Charges:  Charges,
	}
}
