package intents_test

import (
	"encoding/json"
	"testing"
	"time"

	"anarchy.ttfm/scanpay/intents"
	"github.com/stretchr/testify/assert"
)

func Test_Parse(t *testing.T) {
	capturedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Succeed", func(t *testing.T) {
		type Test struct {
			Payload string
			Expect  intents.PaymentIntent
		}
		tests := []Test{
			{
				Payload: `{"userId":"u1","name":"Jane","email":"jane@x.com","accountNumber":"001","transactionType":"payment"}`,
				Expect: intents.PaymentIntent{
					PayerId:       "u1",
					PayerName:     "Jane",
					PayerEmail:    "jane@x.com",
					AccountNumber: "001",
					Kind:          intents.KindPayment,
					CapturedAt:    capturedAt,
				},
			},
			{
				Payload: `{"usreId":"u2","name":"Ade","email":"ade@x.com","accountNumber":12345,"type":"PAY","currency":"ngn"}`,
				Expect: intents.PaymentIntent{
					PayerId:       "u2",
					PayerName:     "Ade",
					PayerEmail:    "ade@x.com",
					AccountNumber: "12345",
					CurrencyCode:  "NGN",
					Kind:          intents.KindPayment,
					CapturedAt:    capturedAt,
				},
			},
			{
				Payload: `{"userId":"","userid":"u3","name":" Kim ","email":"kim@x.com","accountNumber":"9","transactionType":"Payment"}`,
				Expect: intents.PaymentIntent{
					PayerId:       "u3",
					PayerName:     "Kim",
					PayerEmail:    "kim@x.com",
					AccountNumber: "9",
					Kind:          intents.KindPayment,
					CapturedAt:    capturedAt,
				},
			},
			{
				Payload: "{\u201cuserId\u201d:\u201cu4\u201d,\u201cname\u201d:\u201cLi\u201d,\u201cemail\u201d:\u201cli@x.com\u201d,\u201caccountNumber\u201d:\u201c7\u201d,\u201ctransactionType\u201d:\u201cpayment\u201d}",
				Expect: intents.PaymentIntent{
					PayerId:       "u4",
					PayerName:     "Li",
					PayerEmail:    "li@x.com",
					AccountNumber: "7",
					Kind:          intents.KindPayment,
					CapturedAt:    capturedAt,
				},
			},
			{
				Payload: "{\u2018userId\u2019:\u2018u5\u2019,\u2018name\u2019:\u2018Ola\u2019,\u2018email\u2019:\u2018ola@x.com\u2019,\u2018accountNumber\u2019:\u20188\u2019,\u2018transactionType\u2019:\u2018payment\u2019}",
				Expect: intents.PaymentIntent{
					PayerId:       "u5",
					PayerName:     "Ola",
					PayerEmail:    "ola@x.com",
					AccountNumber: "8",
					Kind:          intents.KindPayment,
					CapturedAt:    capturedAt,
				},
			},
			{
				Payload: "{\u201auserId\u201b:\u2032u6\u2032,\u2018name\u2019:\u201cBo\u201d,\u2018email\u2019:\u2018bo@x.com\u2019,\u2018accountNumber\u2019:\u20183\u2019,\u2018transactionType\u2019:\u2018pay\u2019}",
				Expect: intents.PaymentIntent{
					PayerId:       "u6",
					PayerName:     "Bo",
					PayerEmail:    "bo@x.com",
					AccountNumber: "3",
					Kind:          intents.KindPayment,
					CapturedAt:    capturedAt,
				},
			},
		}
		for _, test := range tests {
			name, _ := json.Marshal(test.Payload)
			t.Run(string(name), func(t *testing.T) {
				assertions := assert.New(t)

				intent, err := intents.Parse(test.Payload, capturedAt)
				assertions.Nil(err, "failed to parse payload")
				assertions.Equal(test.Expect, intent, "invalid intent")
			})
		}
	})

	t.Run("Fail", func(t *testing.T) {
		type Test struct {
			Payload string
			Expect  error
		}
		tests := []Test{
			{Payload: ``, Expect: intents.ErrMalformedPayload},
			{Payload: `not json`, Expect: intents.ErrMalformedPayload},
			{Payload: `null`, Expect: intents.ErrMalformedPayload},
			{Payload: `[1,2,3]`, Expect: intents.ErrMalformedPayload},
			{Payload: `"userId"`, Expect: intents.ErrMalformedPayload},
			{Payload: `{'userId':'u1'}`, Expect: intents.ErrMalformedPayload},
			{Payload: `{"userId":"u1","name":"Jane","email":"jane@x.com","transactionType":"payment"}`, Expect: intents.ErrMissingRequiredFields},
			{Payload: `{"name":"Jane","email":"jane@x.com","accountNumber":"001","transactionType":"payment"}`, Expect: intents.ErrMissingRequiredFields},
			{Payload: `{"userId":"u1","email":"jane@x.com","accountNumber":"001","transactionType":"payment"}`, Expect: intents.ErrMissingRequiredFields},
			{Payload: `{"userId":"u1","name":"Jane","email":"  ","accountNumber":"001","transactionType":"payment"}`, Expect: intents.ErrMissingRequiredFields},
			{Payload: `{"userId":"u1","name":"Jane","email":"jane@x.com","accountNumber":"001","transactionType":"identity_badge"}`, Expect: intents.ErrUnsupportedIntentKind},
			{Payload: `{"userId":"u1","name":"Jane","email":"jane@x.com","accountNumber":"001"}`, Expect: intents.ErrUnsupportedIntentKind},
			{Payload: `{"userId":"u1","name":"Jane","email":"jane@x.com","accountNumber":"001","type":"refund"}`, Expect: intents.ErrUnsupportedIntentKind},
		}
		for _, test := range tests {
			name, _ := json.Marshal(test.Payload)
			t.Run(string(name), func(t *testing.T) {
				assertions := assert.New(t)

				_, err := intents.Parse(test.Payload, capturedAt)
				assertions.ErrorIs(err, test.Expect, "invalid error")
			})
		}
	})

	t.Run("Missing fields are reported before kind", func(t *testing.T) {
		assertions := assert.New(t)

		_, err := intents.Parse(`{"userId":"u1","transactionType":"identity_badge"}`, capturedAt)
		assertions.ErrorIs(err, intents.ErrMissingRequiredFields)
		assertions.NotErrorIs(err, intents.ErrUnsupportedIntentKind)
		assertions.Contains(err.Error(), "payerName")
	})
}

func Test_Normalize(t *testing.T) {
	assertions := assert.New(t)

	before := time.Now()
	intent, err := intents.Normalize(`{"userId":"u1","name":"Jane","email":"jane@x.com","accountNumber":"001","transactionType":"payment"}`)
	assertions.Nil(err, "failed to normalize")
	assertions.False(intent.CapturedAt.Before(before), "capture time should be stamped")
}
