package payments

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/payrec/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Engine reduces an unordered payment event log into attempts and results.
// It is a pure, synchronous computation: no I/O, no shared state between
// invocations, and recomputing from the same event set always yields the
// same output regardless of input order.
type Engine struct {
	currencies CurrencyTable
}

// EngineOption is a functional option for configuring Engine
type EngineOption func(*Engine)

// WithCurrencyTable overrides the built-in currency policy table
func WithCurrencyTable(table CurrencyTable) EngineOption {
	return func(e *Engine) {
		if len(table) > 0 {
			e.currencies = table
		}
	}
}

// NewEngine creates a reconciliation engine with optional configuration
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{currencies: DefaultCurrencyTable()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildAttempts partitions events by correlation key and reduces each group
// into one PaymentAttempt. The output is deterministic for a given event set
// regardless of input order. A redelivered event (same event ID appended
// again) reduces once, and events whose key is discarded (an orphaned
// settlement with no initiation) contribute nothing.
func (e *Engine) BuildAttempts(events []PaymentEvent) []PaymentAttempt {
	groups := make(map[CorrelationKey][]PaymentEvent)
	order := make([]CorrelationKey, 0, len(events))
	seen := make(map[uuid.UUID]struct{}, len(events))
	for _, evt := range events {
		if _, dup := seen[evt.ID]; dup {
			continue
		}
		seen[evt.ID] = struct{}{}
		key := CorrelationKeyFor(evt)
		if key.IsDiscarded() {
			continue
		}
		if _, exists := groups[key]; !exists {
			order = append(order, key)
		}
		groups[key] = append(groups[key], evt)
	}

	attempts := make([]PaymentAttempt, 0, len(order))
	for _, key := range order {
		group := sortEvents(groups[key])
		switch group[0].Kind.Family() {
		case KindFamilyCard:
			if key.Kind == CorrelationKindStandalone {
				attempts = append(attempts, reduceStandaloneCardEvent(key, group[0]))
				continue
			}
			attempts = append(attempts, e.reduceCardGroup(key, group))
		case KindFamilyPisp, KindFamilyDirectDebit:
			attempts = append(attempts, e.reducePispGroup(key, group))
		case KindFamilyLightning:
			attempts = append(attempts, e.reduceLightningEvent(key, group[0]))
		}
	}

	sort.SliceStable(attempts, func(i, j int) bool {
		if !attempts[i].InitiatedAt.Equal(attempts[j].InitiatedAt) {
			return attempts[i].InitiatedAt.Before(attempts[j].InitiatedAt)
		}
		return attempts[i].AttemptKey < attempts[j].AttemptKey
	})
	return attempts
}

// sortEvents returns a copy of the group ordered by insertion time, with the
// event ID as a stable tie-break so duplicated events reduce identically
func sortEvents(events []PaymentEvent) []PaymentEvent {
	sorted := make([]PaymentEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].InsertedAt.Equal(sorted[j].InsertedAt) {
			return sorted[i].InsertedAt.Before(sorted[j].InsertedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

// reduceCardGroup folds one card event group into an attempt. The fold is
// order-independent except where a rule names insertion order explicitly:
// a void anywhere in the group is terminal and wins over every capture and
// sale, and an authentication failure only sticks when no authorization
// succeeded after it.
func (e *Engine) reduceCardGroup(key CorrelationKey, group []PaymentEvent) PaymentAttempt {
	attempt := newAttempt(key, PaymentMethodCard, group[0])

	var (
		voidedAt     *time.Time
		authFailedAt *time.Time
		rejectedAt   *time.Time
	)

	for _, evt := range group {
		outcome := OutcomeFor(evt.Processor, evt.Kind, evt.RawStatus)
		switch evt.Kind {
		case EventKindCardAuthenticationSetup:
			if attempt.AttemptedAmount.IsZero() && evt.Amount.IsPositive() {
				attempt.AttemptedAmount = evt.Amount
			}

		case EventKindCardAuthorization, EventKindCardSale:
			switch outcome {
			case OutcomeSuccess:
				// The group is in insertion order, so this success is
				// later than any failure recorded so far
				authFailedAt = nil
				if attempt.CardAuthorisedAt == nil {
					at := evt.InsertedAt
					attempt.CardAuthorisedAt = &at
					attempt.CardAuthorisedAmount = evt.Amount
				}
				if attempt.AttemptedAmount.IsZero() {
					attempt.AttemptedAmount = evt.Amount
				}
				if evt.Kind == EventKindCardSale && IsImmediateCapture(evt.Processor, evt.RawStatus) {
					at := evt.InsertedAt
					attempt.CaptureAttempts = append(attempt.CaptureAttempts, CaptureAttempt{
						CapturedAt:     &at,
						CapturedAmount: evt.Amount,
					})
					attempt.SettledAmount = attempt.SettledAmount.Add(evt.Amount)
				}
			case OutcomeRejected:
				if rejectedAt == nil {
					at := evt.InsertedAt
					rejectedAt = &at
				}
			}

		case EventKindCardCapture:
			switch outcome {
			case OutcomeSuccess:
				at := evt.InsertedAt
				attempt.CaptureAttempts = append(attempt.CaptureAttempts, CaptureAttempt{
					CapturedAt:     &at,
					CapturedAmount: evt.Amount,
				})
				attempt.SettledAmount = attempt.SettledAmount.Add(evt.Amount)
			case OutcomeRejected:
				at := evt.InsertedAt
				attempt.CaptureAttempts = append(attempt.CaptureAttempts, CaptureAttempt{
					CaptureFailedAt: &at,
					FailureReason:   evt.RawStatus,
				})
			}

		case EventKindCardVoid:
			// Terminal regardless of raw status or position in the group
			if voidedAt == nil {
				at := evt.InsertedAt
				voidedAt = &at
			}

		case EventKindCardAuthenticationFailure:
			if authFailedAt == nil {
				at := evt.InsertedAt
				authFailedAt = &at
			}
		}
	}

	if attempt.SettledAmount.IsPositive() {
		last := lastCaptureTime(attempt.CaptureAttempts)
		attempt.SettledAt = last
	}
	if authFailedAt != nil {
		attempt.AuthenticationFailedAt = authFailedAt
	}
	if rejectedAt != nil && attempt.CardAuthorisedAt == nil {
		attempt.AuthoriseFailedAt = rejectedAt
	}
	if voidedAt != nil {
		voidedAmount := attempt.SettledAmount
		if voidedAmount.IsZero() {
			voidedAmount = attempt.CardAuthorisedAmount
		}
		attempt.RefundAttempts = append(attempt.RefundAttempts, RefundAttempt{
			SettledAt:     voidedAt,
			SettledAmount: voidedAmount,
			IsCardVoid:    true,
		})
		attempt.SettledAmount = decimal.Zero
		attempt.CardAuthorisedAmount = decimal.Zero
		attempt.Voided = true
	}

	return attempt
}

// reducePispGroup folds one pay-by-bank or direct debit group. Settlement
// always overrules a settle failure, duplicate settles are idempotent, and a
// bank or processor rejection prevents the group from counting as authorised
// even when an earlier callback looked successful.
func (e *Engine) reducePispGroup(key CorrelationKey, group []PaymentEvent) PaymentAttempt {
	method := methodFor(group[0].Kind.Family())
	attempt := newAttempt(key, method, group[0])

	var (
		settleFailedAt *time.Time
		authRejectedAt *time.Time
		refundOrder    []string
		refunds        = make(map[string]*RefundAttempt)
	)

	for _, evt := range group {
		switch evt.Kind.pispEquivalent() {
		case EventKindPispInitiate:
			if attempt.AttemptedAmount.IsZero() && evt.Amount.IsPositive() {
				attempt.AttemptedAmount = evt.Amount
			}

		case EventKindPispCallback, EventKindPispWebhook:
			outcome := OutcomeFor(evt.Processor, evt.Kind, evt.RawStatus)
			if outcome == OutcomeRejected || IsBankRejection(evt.PispBankStatus) {
				if authRejectedAt == nil {
					at := evt.InsertedAt
					authRejectedAt = &at
				}
				continue
			}
			if outcome != OutcomeSuccess {
				continue
			}
			money, err := valueobject.NewMoney(evt.Amount, evt.Currency)
			if err != nil || !e.currencies.MeetsMinimum(money) {
				continue
			}
			if attempt.AuthorisedAt == nil {
				at := evt.InsertedAt
				attempt.AuthorisedAt = &at
				attempt.AuthorisedAmount = evt.Amount
			}

		case EventKindPispSettle:
			if attempt.SettledAt == nil {
				at := evt.InsertedAt
				attempt.SettledAt = &at
				attempt.SettledAmount = evt.Amount
			}

		case EventKindPispSettleFailure:
			if settleFailedAt == nil {
				at := evt.InsertedAt
				settleFailedAt = &at
			}

		case EventKindPispRefundInitiated:
			refund := refundFor(refunds, &refundOrder, evt.RefundPayoutID)
			if refund.InitiatedAt == nil {
				at := evt.InsertedAt
				refund.InitiatedAt = &at
				refund.InitiatedAmount = evt.Amount
			}

		case EventKindPispRefundSettled:
			refund := refundFor(refunds, &refundOrder, evt.RefundPayoutID)
			if refund.SettledAt == nil {
				at := evt.InsertedAt
				refund.SettledAt = &at
				refund.SettledAmount = evt.Amount
			}
		}
	}

	// Settlement wins over a settle failure, in any event order
	if settleFailedAt != nil && attempt.SettledAt == nil {
		attempt.SettleFailedAt = settleFailedAt
	}
	if authRejectedAt != nil {
		attempt.PispAuthorisationFailedAt = authRejectedAt
		attempt.AuthorisedAt = nil
		attempt.AuthorisedAmount = decimal.Zero
	}
	for _, payoutID := range refundOrder {
		attempt.RefundAttempts = append(attempt.RefundAttempts, *refunds[payoutID])
	}
	if attempt.AttemptedAmount.IsZero() {
		switch {
		case attempt.AuthorisedAmount.IsPositive():
			attempt.AttemptedAmount = attempt.AuthorisedAmount
		case attempt.SettledAmount.IsPositive():
			attempt.AttemptedAmount = attempt.SettledAmount
		}
	}

	return attempt
}

// reduceStandaloneCardEvent wraps a card event that carries no authorization
// response ID. Such an event cannot be tied to an authorised hold, so it
// yields a None attempt that records timestamps but never counts money.
func reduceStandaloneCardEvent(key CorrelationKey, evt PaymentEvent) PaymentAttempt {
	attempt := newAttempt(key, PaymentMethodCard, evt)
	if evt.Amount.IsPositive() {
		attempt.AttemptedAmount = evt.Amount
	}
	if evt.Kind == EventKindCardAuthenticationFailure {
		at := evt.InsertedAt
		attempt.AuthenticationFailedAt = &at
	}
	return attempt
}

// reduceLightningEvent turns a single Lightning event into an attempt. A
// paid invoice settles atomically; a bare created invoice is an initiated,
// unpaid attempt.
func (e *Engine) reduceLightningEvent(key CorrelationKey, evt PaymentEvent) PaymentAttempt {
	attempt := newAttempt(key, PaymentMethodLightning, evt)
	attempt.AttemptedAmount = evt.Amount
	if evt.Kind == EventKindLightningInvoicePaid {
		at := evt.InsertedAt
		attempt.SettledAt = &at
		attempt.SettledAmount = evt.Amount
	}
	return attempt
}

// newAttempt seeds an attempt from the first event of its group
func newAttempt(key CorrelationKey, method PaymentMethod, first PaymentEvent) PaymentAttempt {
	return PaymentAttempt{
		AttemptKey:      key.ID,
		PaymentMethod:   method,
		Currency:        first.Currency,
		Processor:       first.Processor,
		InitiatedAt:     first.InsertedAt,
		AttemptedAmount: decimal.Zero,
		SettledAmount:   decimal.Zero,
	}
}

// refundFor returns the refund accumulator for a payout ID, creating it on
// first sight and recording the order of first appearance
func refundFor(refunds map[string]*RefundAttempt, order *[]string, payoutID string) *RefundAttempt {
	if refund, ok := refunds[payoutID]; ok {
		return refund
	}
	refund := &RefundAttempt{RefundPayoutID: payoutID}
	refunds[payoutID] = refund
	*order = append(*order, payoutID)
	return refund
}

// lastCaptureTime returns the time of the latest successful capture
func lastCaptureTime(captures []CaptureAttempt) *time.Time {
	var last *time.Time
	for i := range captures {
		c := captures[i]
		if c.CapturedAt == nil {
			continue
		}
		if last == nil || c.CapturedAt.After(*last) {
			last = c.CapturedAt
		}
	}
	return last
}
