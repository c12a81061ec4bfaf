package testsuite

import (
	"errors"
	"testing"

	"anarchy.ttfm/scanpay/backend"
	"anarchy.ttfm/scanpay/random"
	"anarchy.ttfm/scanpay/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func codeOf(err error) (code string) {
	var backendErr *backend.Error
	if errors.As(err, &backendErr) {
		return backendErr.Code
	}
	return ""
}

// Test runs a comprehensive suite of tests for any Backend seeded with MockConfig.
func Test(t *testing.T, b backend.Backend) {
	t.Run("ListCharges", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		charges, err := b.ListCharges(ctx, Token)
		assertions.Nil(err, "failed to list charges")
		assertions.Equal(Charges, charges, "invalid charges")
	})

	t.Run("ListCharges Unauthorized", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		_, err := b.ListCharges(ctx, "")
		assertions.NotNil(err, "expecting an error")
	})

	t.Run("SubmitTransfer", func(t *testing.T) {
		t.Run("Succeed", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			key := uuid.New().String()
			req := backend.TransferRequest{
				ReceiverOrSenderEmail: Payer.Email,
				Amount:                500,
				Pin:                   Payer.Pin,
				TransactionFee:        25,
				IdempotencyKey:        key,
			}
			transfer, err := b.SubmitTransfer(ctx, Token, req)
			assertions.Nil(err, "failed to submit transfer")
			assertions.NotEmpty(transfer.TransactionId, "transaction id")

			t.Log("[*] Replaying idempotency key", key)
			replay, err := b.SubmitTransfer(ctx, Token, req)
			assertions.Nil(err, "failed to replay transfer")
			assertions.Equal(transfer.TransactionId, replay.TransactionId, "replay should not create a new transaction")
		})

		t.Run("Rejected", func(t *testing.T) {
			type Test struct {
				Name   string
				Email  string
				Pin    string
				Amount uint64
				Expect string
			}
			wrongPin := Payer.Pin
			for wrongPin == Payer.Pin {
				wrongPin = random.String(random.PseudoRand, random.CharsetDigits, len(Payer.Pin))
			}
			unknown := random.Email(random.PseudoRand, "x.com")
			tests := []Test{
				{Name: "Invalid PIN", Email: Payer.Email, Pin: wrongPin, Amount: 500, Expect: backend.CodeInvalidPin},
				{Name: "Unknown payer", Email: unknown, Pin: "1234", Amount: 500, Expect: backend.CodeUserNotFound},
				{Name: "Limit", Email: Payer.Email, Pin: Payer.Pin, Amount: Payer.Limit + 1, Expect: backend.CodeTransactionLimitExceeded},
				{Name: "Insufficient funds", Email: BrokePayer.Email, Pin: BrokePayer.Pin, Amount: BrokePayer.Balance + 1, Expect: backend.CodeInsufficientFunds},
				{Name: "Blocked", Email: BlockedPayer.Email, Pin: BlockedPayer.Pin, Amount: 500, Expect: backend.CodeAccountBlocked},
			}
			for _, test := range tests {
				t.Run(test.Name, func(t *testing.T) {
					assertions := assert.New(t)

					ctx, cancel := utils.NewContext()
					defer cancel()

					_, err := b.SubmitTransfer(ctx, Token, backend.TransferRequest{
						ReceiverOrSenderEmail: test.Email,
						Amount:                test.Amount,
						Pin:                   test.Pin,
						IdempotencyKey:        uuid.New().String(),
					})
					assertions.NotNil(err, "expecting an error")
					assertions.Equal(test.Expect, codeOf(err), "invalid code")
				})
			}
		})
	})
}
