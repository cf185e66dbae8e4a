package payments

import (
	"time"

	"github.com/payrec/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AttemptStatus is the derived state of one payment attempt
type AttemptStatus string

const (
	AttemptStatusNone          AttemptStatus = "NONE"
	AttemptStatusAuthorized    AttemptStatus = "AUTHORIZED"
	AttemptStatusPartiallyPaid AttemptStatus = "PARTIALLY_PAID"
	AttemptStatusFullyPaid     AttemptStatus = "FULLY_PAID"
)

// IsValid checks if the status is a valid AttemptStatus
func (s AttemptStatus) IsValid() bool {
	switch s {
	case AttemptStatusNone, AttemptStatusAuthorized, AttemptStatusPartiallyPaid, AttemptStatusFullyPaid:
		return true
	}
	return false
}

// String returns the string representation of AttemptStatus
func (s AttemptStatus) String() string {
	return string(s)
}

// CaptureAttempt records one card capture step, successful or failed.
// Multi-step capture appends one record per step.
type CaptureAttempt struct {
	CapturedAt      *time.Time
	CapturedAmount  decimal.Decimal
	CaptureFailedAt *time.Time
	FailureReason   string
}

// Succeeded reports whether this capture step settled funds
func (c CaptureAttempt) Succeeded() bool {
	return c.CapturedAt != nil
}

// RefundAttempt records one refund payout against an attempt. A card void is
// recorded as a refund attempt with IsCardVoid set.
type RefundAttempt struct {
	RefundPayoutID  string
	InitiatedAt     *time.Time
	InitiatedAmount decimal.Decimal
	SettledAt       *time.Time
	SettledAmount   decimal.Decimal
	CancelledAt     *time.Time
	IsCardVoid      bool
}

// Completed reports whether the refund actually moved funds back
func (r RefundAttempt) Completed() bool {
	return r.SettledAt != nil
}

// PaymentAttempt is one reconstructed payment try, identified by its
// correlation key. It is produced by the attempt builder and never mutated
// afterwards.
type PaymentAttempt struct {
	AttemptKey    string
	PaymentMethod PaymentMethod
	Currency      valueobject.Currency
	Processor     Processor

	InitiatedAt               time.Time
	AuthorisedAt              *time.Time
	CardAuthorisedAt          *time.Time
	AuthenticationFailedAt    *time.Time
	AuthoriseFailedAt         *time.Time
	SettledAt                 *time.Time
	SettleFailedAt            *time.Time
	PispAuthorisationFailedAt *time.Time

	AttemptedAmount      decimal.Decimal
	AuthorisedAmount     decimal.Decimal
	CardAuthorisedAmount decimal.Decimal
	SettledAmount        decimal.Decimal

	CaptureAttempts []CaptureAttempt
	RefundAttempts  []RefundAttempt

	// Voided is set when a card void terminated the attempt
	Voided bool
}

// RefundedAmount returns the sum of completed refund amounts
func (a PaymentAttempt) RefundedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.RefundAttempts {
		if r.Completed() {
			total = total.Add(r.SettledAmount)
		}
	}
	return total
}

// NetSettledAmount is the settled amount minus completed refunds, the figure
// the attempt contributes to the whole-request total
func (a PaymentAttempt) NetSettledAmount() decimal.Decimal {
	if a.Voided {
		return decimal.Zero
	}
	return a.SettledAmount.Sub(a.RefundedAmount())
}

// AuthorisedOutstanding is the authorised-but-not-settled amount, floored at
// zero. Only PISP and direct debit attempts report a pending figure.
func (a PaymentAttempt) AuthorisedOutstanding() decimal.Decimal {
	if a.PaymentMethod != PaymentMethodPisp && a.PaymentMethod != PaymentMethodDirectDebit {
		return decimal.Zero
	}
	outstanding := a.AuthorisedAmount.Sub(a.SettledAmount)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// IsAuthorised reports whether the attempt holds a live authorisation
func (a PaymentAttempt) IsAuthorised() bool {
	if a.PispAuthorisationFailedAt != nil || a.Voided {
		return false
	}
	return a.AuthorisedAmount.IsPositive() || a.CardAuthorisedAmount.IsPositive()
}

// Status derives the attempt state from its amounts. It is a pure function;
// nothing stores the status.
func (a PaymentAttempt) Status() AttemptStatus {
	net := a.NetSettledAmount()
	switch {
	case a.AttemptedAmount.IsPositive() && net.GreaterThanOrEqual(a.AttemptedAmount):
		return AttemptStatusFullyPaid
	case net.IsPositive() && net.LessThan(a.AttemptedAmount):
		return AttemptStatusPartiallyPaid
	case net.IsPositive():
		// Settled with no recorded attempted amount still counts as paid
		return AttemptStatusFullyPaid
	case !net.IsPositive() && a.IsAuthorised():
		return AttemptStatusAuthorized
	default:
		return AttemptStatusNone
	}
}
