package payments

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/payrec/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBase = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time {
	return &t
}

type eventOption func(*PaymentEvent)

func withCardAuthID(id string) eventOption {
	return func(e *PaymentEvent) { e.CardAuthorizationResponseID = id }
}

func withInitiationID(id string) eventOption {
	return func(e *PaymentEvent) { e.PispPaymentInitiationID = id }
}

func withRefundPayoutID(id string) eventOption {
	return func(e *PaymentEvent) { e.RefundPayoutID = id }
}

func withBankStatus(status string) eventOption {
	return func(e *PaymentEvent) { e.PispBankStatus = status }
}

func withProcessor(p Processor) eventOption {
	return func(e *PaymentEvent) { e.Processor = p }
}

func withCurrency(c valueobject.Currency) eventOption {
	return func(e *PaymentEvent) { e.Currency = c }
}

// newTestEvent builds an event at testBase plus the given minute offset.
// Defaults: EUR, Checkout for card kinds, Yapily for PISP kinds.
func newTestEvent(t *testing.T, minute int, kind EventKind, rawStatus, amount string, opts ...eventOption) PaymentEvent {
	t.Helper()
	processor := ProcessorCheckout
	if kind.Family() == KindFamilyPisp || kind.Family() == KindFamilyDirectDebit {
		processor = ProcessorYapily
	}
	evt := PaymentEvent{
		ID:               uuid.New(),
		PaymentRequestID: uuid.New(),
		InsertedAt:       testBase.Add(time.Duration(minute) * time.Minute),
		Kind:             kind,
		Amount:           decimal.RequireFromString(amount),
		Currency:         valueobject.EUR,
		RawStatus:        rawStatus,
		Processor:        processor,
	}
	for _, opt := range opts {
		opt(&evt)
	}
	return evt
}

func TestBuildAttemptsCardGrouping(t *testing.T) {
	engine := NewEngine()

	t.Run("authorization and capture reduce to one fully settled attempt", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardAuthorization, "Authorized", "1.00", withCardAuthID("auth-1")),
			newTestEvent(t, 1, EventKindCardCapture, "Captured", "1.00", withCardAuthID("auth-1")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)

		attempt := attempts[0]
		assert.Equal(t, "auth-1", attempt.AttemptKey)
		assert.Equal(t, PaymentMethodCard, attempt.PaymentMethod)
		assert.NotNil(t, attempt.CardAuthorisedAt)
		assert.Equal(t, "1", attempt.CardAuthorisedAmount.String())
		assert.Equal(t, "1", attempt.SettledAmount.String())
		require.Len(t, attempt.CaptureAttempts, 1)
		assert.True(t, attempt.CaptureAttempts[0].Succeeded())
		assert.Equal(t, AttemptStatusFullyPaid, attempt.Status())
	})

	t.Run("multi-step capture accumulates", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardAuthorization, "Authorized", "10.00", withCardAuthID("auth-2")),
			newTestEvent(t, 1, EventKindCardCapture, "Captured", "4.00", withCardAuthID("auth-2")),
			newTestEvent(t, 2, EventKindCardCapture, "Captured", "6.00", withCardAuthID("auth-2")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.Equal(t, "10", attempts[0].SettledAmount.String())
		assert.Len(t, attempts[0].CaptureAttempts, 2)
		assert.Equal(t, AttemptStatusFullyPaid, attempts[0].Status())
	})

	t.Run("failed capture records failure without increasing total", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardAuthorization, "Authorized", "10.00", withCardAuthID("auth-3")),
			newTestEvent(t, 1, EventKindCardCapture, "Declined", "10.00", withCardAuthID("auth-3")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.True(t, attempts[0].SettledAmount.IsZero())
		require.Len(t, attempts[0].CaptureAttempts, 1)
		assert.False(t, attempts[0].CaptureAttempts[0].Succeeded())
		assert.Equal(t, "Declined", attempts[0].CaptureAttempts[0].FailureReason)
		assert.Equal(t, AttemptStatusAuthorized, attempts[0].Status())
	})

	t.Run("card sale with immediate capture status seeds a capture attempt", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardSale, "Captured", "25.00", withCardAuthID("auth-4")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.Equal(t, "25", attempts[0].SettledAmount.String())
		require.Len(t, attempts[0].CaptureAttempts, 1)
		assert.Equal(t, AttemptStatusFullyPaid, attempts[0].Status())
	})

	t.Run("keyless setup and failure events produce two separate None attempts", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardAuthenticationSetup, "Pending", "5.00"),
			newTestEvent(t, 1, EventKindCardAuthenticationFailure, "Declined", "5.00"),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 2)
		assert.Equal(t, AttemptStatusNone, attempts[0].Status())
		assert.Equal(t, AttemptStatusNone, attempts[1].Status())
		assert.NotNil(t, attempts[1].AuthenticationFailedAt)
	})

	t.Run("authentication failure is ignored when a later authorization succeeds", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardAuthenticationFailure, "Declined", "5.00", withCardAuthID("auth-5")),
			newTestEvent(t, 1, EventKindCardAuthorization, "Authorized", "5.00", withCardAuthID("auth-5")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.Nil(t, attempts[0].AuthenticationFailedAt)
		assert.Equal(t, AttemptStatusAuthorized, attempts[0].Status())
	})

	t.Run("authentication failure after a successful authorization is recorded", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardAuthorization, "Authorized", "5.00", withCardAuthID("auth-5b")),
			newTestEvent(t, 1, EventKindCardAuthenticationFailure, "Declined", "5.00", withCardAuthID("auth-5b")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		require.NotNil(t, attempts[0].AuthenticationFailedAt)
		assert.Equal(t, testBase.Add(time.Minute), *attempts[0].AuthenticationFailedAt)
		assert.Equal(t, AttemptStatusAuthorized, attempts[0].Status())
	})

	t.Run("redelivered capture event settles once", func(t *testing.T) {
		capture := newTestEvent(t, 1, EventKindCardCapture, "Captured", "10.00", withCardAuthID("auth-5c"))
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardAuthorization, "Authorized", "10.00", withCardAuthID("auth-5c")),
			capture,
			capture,
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.Equal(t, "10", attempts[0].SettledAmount.String())
		require.Len(t, attempts[0].CaptureAttempts, 1)
		assert.Equal(t, AttemptStatusFullyPaid, attempts[0].Status())
	})

	t.Run("declined authorization sets authorise failed", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardAuthorization, "Declined", "5.00", withCardAuthID("auth-6")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.NotNil(t, attempts[0].AuthoriseFailedAt)
		assert.Equal(t, AttemptStatusNone, attempts[0].Status())
	})
}

func TestBuildAttemptsVoidDominance(t *testing.T) {
	engine := NewEngine()

	base := []PaymentEvent{
		newTestEvent(t, 0, EventKindCardAuthorization, "Authorized", "50.00", withCardAuthID("auth-void")),
		newTestEvent(t, 1, EventKindCardCapture, "Captured", "50.00", withCardAuthID("auth-void")),
		newTestEvent(t, 2, EventKindCardVoid, "Voided", "50.00", withCardAuthID("auth-void")),
	}

	t.Run("void zeroes captured and authorised amounts", func(t *testing.T) {
		attempts := engine.BuildAttempts(base)
		require.Len(t, attempts, 1)

		attempt := attempts[0]
		assert.True(t, attempt.Voided)
		assert.True(t, attempt.SettledAmount.IsZero())
		assert.True(t, attempt.CardAuthorisedAmount.IsZero())
		require.Len(t, attempt.RefundAttempts, 1)
		assert.True(t, attempt.RefundAttempts[0].IsCardVoid)
		assert.Equal(t, "50", attempt.RefundAttempts[0].SettledAmount.String())
		assert.Equal(t, AttemptStatusNone, attempt.Status())
	})

	t.Run("void wins regardless of timestamp position", func(t *testing.T) {
		early := []PaymentEvent{
			newTestEvent(t, 0, EventKindCardVoid, "Voided", "50.00", withCardAuthID("auth-void")),
			newTestEvent(t, 1, EventKindCardAuthorization, "Authorized", "50.00", withCardAuthID("auth-void")),
			newTestEvent(t, 2, EventKindCardCapture, "Captured", "50.00", withCardAuthID("auth-void")),
		}

		attempts := engine.BuildAttempts(early)
		require.Len(t, attempts, 1)
		assert.True(t, attempts[0].Voided)
		assert.True(t, attempts[0].SettledAmount.IsZero())
		assert.True(t, attempts[0].CardAuthorisedAmount.IsZero())
	})
}

func TestBuildAttemptsPispGrouping(t *testing.T) {
	engine := NewEngine()

	t.Run("callback then settle reduces to one settled attempt", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispInitiate, "", "30.00", withInitiationID("init-1")),
			newTestEvent(t, 1, EventKindPispCallback, "COMPLETED", "30.00", withInitiationID("init-1")),
			newTestEvent(t, 2, EventKindPispSettle, "", "30.00", withInitiationID("init-1")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)

		attempt := attempts[0]
		assert.Equal(t, "init-1", attempt.AttemptKey)
		assert.NotNil(t, attempt.AuthorisedAt)
		assert.Equal(t, "30", attempt.AuthorisedAmount.String())
		assert.NotNil(t, attempt.SettledAt)
		assert.Equal(t, "30", attempt.SettledAmount.String())
		assert.Equal(t, AttemptStatusFullyPaid, attempt.Status())
	})

	t.Run("duplicate matching callbacks do not double count", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispCallback, "COMPLETED", "30.00", withInitiationID("init-2")),
			newTestEvent(t, 1, EventKindPispWebhook, "COMPLETED", "30.00", withInitiationID("init-2")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.Equal(t, "30", attempts[0].AuthorisedAmount.String())
		assert.Equal(t, AttemptStatusAuthorized, attempts[0].Status())
	})

	t.Run("orphaned settle without initiation id is discarded", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispSettle, "", "100.00"),
		}

		attempts := engine.BuildAttempts(events)
		assert.Empty(t, attempts)
	})

	t.Run("duplicate settle events are idempotent", func(t *testing.T) {
		settle := newTestEvent(t, 1, EventKindPispSettle, "", "40.00", withInitiationID("init-3"))
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispInitiate, "", "40.00", withInitiationID("init-3")),
			settle,
			settle,
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.Equal(t, "40", attempts[0].SettledAmount.String())
	})

	t.Run("settlement overrules settle failure in any order", func(t *testing.T) {
		failureFirst := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispSettleFailure, "", "40.00", withInitiationID("init-4")),
			newTestEvent(t, 1, EventKindPispSettle, "", "40.00", withInitiationID("init-4")),
		}
		failureLast := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispSettle, "", "40.00", withInitiationID("init-4")),
			newTestEvent(t, 1, EventKindPispSettleFailure, "", "40.00", withInitiationID("init-4")),
		}

		for _, events := range [][]PaymentEvent{failureFirst, failureLast} {
			attempts := engine.BuildAttempts(events)
			require.Len(t, attempts, 1)
			assert.NotNil(t, attempts[0].SettledAt)
			assert.Nil(t, attempts[0].SettleFailedAt)
			assert.Equal(t, "40", attempts[0].SettledAmount.String())
		}
	})

	t.Run("settle failure sticks when no settle is present", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispInitiate, "", "40.00", withInitiationID("init-5")),
			newTestEvent(t, 1, EventKindPispSettleFailure, "", "40.00", withInitiationID("init-5")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.NotNil(t, attempts[0].SettleFailedAt)
		assert.Nil(t, attempts[0].SettledAt)
	})

	t.Run("bank rejection prevents authorisation even after a success", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispCallback, "COMPLETED", "40.00", withInitiationID("init-6")),
			newTestEvent(t, 1, EventKindPispCallback, "COMPLETED", "40.00", withInitiationID("init-6"), withBankStatus("RJCT")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.NotNil(t, attempts[0].PispAuthorisationFailedAt)
		assert.Nil(t, attempts[0].AuthorisedAt)
		assert.True(t, attempts[0].AuthorisedAmount.IsZero())
		assert.Equal(t, AttemptStatusNone, attempts[0].Status())
	})

	t.Run("rejected callback status fails authorisation", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispCallback, "FAILED", "40.00", withInitiationID("init-7")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.NotNil(t, attempts[0].PispAuthorisationFailedAt)
		assert.Equal(t, AttemptStatusNone, attempts[0].Status())
	})

	t.Run("below-minimum callback amount does not authorise", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispCallback, "COMPLETED", "0.00", withInitiationID("init-8")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.Nil(t, attempts[0].AuthorisedAt)
		assert.Equal(t, AttemptStatusNone, attempts[0].Status())
	})

	t.Run("unknown raw status is a no-op", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispCallback, "SOMETHING_NEW", "40.00", withInitiationID("init-9")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.Nil(t, attempts[0].AuthorisedAt)
		assert.Nil(t, attempts[0].PispAuthorisationFailedAt)
		assert.Equal(t, AttemptStatusNone, attempts[0].Status())
	})

	t.Run("per-processor allow-lists gate authorisation", func(t *testing.T) {
		cases := []struct {
			name       string
			processor  Processor
			rawStatus  string
			authorised bool
		}{
			{"plaid initiated", ProcessorPlaid, "PaymentStatusInitiated", true},
			{"plaid executed", ProcessorPlaid, "PaymentStatusExecuted", true},
			{"modulr executed", ProcessorModulr, "EXECUTED", true},
			{"modulr submitted is pending only", ProcessorModulr, "SUBMITTED", false},
			{"yapily completed", ProcessorYapily, "COMPLETED", true},
			{"yapily pending counts", ProcessorYapily, "PENDING", true},
			{"nofrixion queued", ProcessorNofrixion, "QUEUED", true},
			{"status from wrong processor", ProcessorModulr, "COMPLETED", false},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				events := []PaymentEvent{
					newTestEvent(t, 0, EventKindPispCallback, tc.rawStatus, "40.00",
						withInitiationID("init-allow"), withProcessor(tc.processor)),
				}
				attempts := engine.BuildAttempts(events)
				require.Len(t, attempts, 1)
				assert.Equal(t, tc.authorised, attempts[0].AuthorisedAt != nil)
			})
		}
	})

	t.Run("refunds group by payout id within the attempt", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindPispSettle, "", "100.00", withInitiationID("init-10")),
			newTestEvent(t, 1, EventKindPispRefundInitiated, "", "60.00", withInitiationID("init-10"), withRefundPayoutID("payout-a")),
			newTestEvent(t, 2, EventKindPispRefundSettled, "", "60.00", withInitiationID("init-10"), withRefundPayoutID("payout-a")),
			newTestEvent(t, 3, EventKindPispRefundInitiated, "", "15.00", withInitiationID("init-10"), withRefundPayoutID("payout-b")),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)

		attempt := attempts[0]
		require.Len(t, attempt.RefundAttempts, 2)
		assert.Equal(t, "payout-a", attempt.RefundAttempts[0].RefundPayoutID)
		assert.True(t, attempt.RefundAttempts[0].Completed())
		assert.Equal(t, "payout-b", attempt.RefundAttempts[1].RefundPayoutID)
		assert.False(t, attempt.RefundAttempts[1].Completed())
		assert.Equal(t, "40", attempt.NetSettledAmount().String())
		assert.Equal(t, AttemptStatusPartiallyPaid, attempt.Status())
	})
}

func TestBuildAttemptsDirectDebit(t *testing.T) {
	engine := NewEngine()

	events := []PaymentEvent{
		newTestEvent(t, 0, EventKindDirectDebitInitiate, "", "20.00", withInitiationID("dd-1"), withProcessor(ProcessorNofrixion)),
		newTestEvent(t, 1, EventKindDirectDebitCallback, "PENDING", "20.00", withInitiationID("dd-1"), withProcessor(ProcessorNofrixion)),
		newTestEvent(t, 2, EventKindDirectDebitSettle, "", "20.00", withInitiationID("dd-1"), withProcessor(ProcessorNofrixion)),
	}

	attempts := engine.BuildAttempts(events)
	require.Len(t, attempts, 1)
	assert.Equal(t, PaymentMethodDirectDebit, attempts[0].PaymentMethod)
	assert.NotNil(t, attempts[0].AuthorisedAt)
	assert.Equal(t, "20", attempts[0].SettledAmount.String())
	assert.Equal(t, AttemptStatusFullyPaid, attempts[0].Status())
}

func TestBuildAttemptsLightning(t *testing.T) {
	engine := NewEngine()

	t.Run("each paid invoice is its own attempt", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindLightningInvoicePaid, "", "0.00100000", withCurrency(valueobject.LBTC)),
			newTestEvent(t, 1, EventKindLightningInvoicePaid, "", "0.00200000", withCurrency(valueobject.LBTC)),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 2)
		assert.Equal(t, AttemptStatusFullyPaid, attempts[0].Status())
		assert.Equal(t, AttemptStatusFullyPaid, attempts[1].Status())
	})

	t.Run("a bare created invoice stays unpaid", func(t *testing.T) {
		events := []PaymentEvent{
			newTestEvent(t, 0, EventKindLightningInvoiceCreated, "", "0.00100000", withCurrency(valueobject.LBTC)),
		}

		attempts := engine.BuildAttempts(events)
		require.Len(t, attempts, 1)
		assert.Nil(t, attempts[0].SettledAt)
		assert.Equal(t, AttemptStatusNone, attempts[0].Status())
	})
}

func TestBuildAttemptsOrderIndependence(t *testing.T) {
	engine := NewEngine()

	events := []PaymentEvent{
		newTestEvent(t, 0, EventKindCardAuthorization, "Authorized", "10.00", withCardAuthID("auth-a")),
		newTestEvent(t, 1, EventKindCardCapture, "Captured", "10.00", withCardAuthID("auth-a")),
		newTestEvent(t, 2, EventKindCardVoid, "Voided", "10.00", withCardAuthID("auth-a")),
		newTestEvent(t, 3, EventKindPispInitiate, "", "30.00", withInitiationID("init-x")),
		newTestEvent(t, 4, EventKindPispCallback, "COMPLETED", "30.00", withInitiationID("init-x")),
		newTestEvent(t, 5, EventKindPispSettleFailure, "", "30.00", withInitiationID("init-x")),
		newTestEvent(t, 6, EventKindPispSettle, "", "30.00", withInitiationID("init-x")),
		newTestEvent(t, 7, EventKindLightningInvoicePaid, "", "0.00050000", withCurrency(valueobject.LBTC)),
	}

	reference := engine.BuildAttempts(events)

	rng := rand.New(rand.NewSource(42))
	for range 20 {
		shuffled := make([]PaymentEvent, len(events))
		copy(shuffled, events)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		attempts := engine.BuildAttempts(shuffled)
		require.Len(t, attempts, len(reference))
		for i := range reference {
			assert.Equal(t, reference[i].AttemptKey, attempts[i].AttemptKey)
			assert.Equal(t, reference[i].Status(), attempts[i].Status())
			assert.True(t, reference[i].SettledAmount.Equal(attempts[i].SettledAmount))
			assert.True(t, reference[i].NetSettledAmount().Equal(attempts[i].NetSettledAmount()))
			assert.Equal(t, reference[i].Voided, attempts[i].Voided)
		}
	}
}
