package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/payrec/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Result is the terminal classification of a payment request
type Result string

const (
	ResultNone          Result = "NONE"
	ResultPartiallyPaid Result = "PARTIALLY_PAID"
	ResultFullyPaid     Result = "FULLY_PAID"
	ResultOverPaid      Result = "OVER_PAID"
	ResultVoided        Result = "VOIDED"
	ResultAuthorized    Result = "AUTHORIZED"
)

// IsValid checks if the result is a valid classification
func (r Result) IsValid() bool {
	switch r {
	case ResultNone, ResultPartiallyPaid, ResultFullyPaid, ResultOverPaid, ResultVoided, ResultAuthorized:
		return true
	}
	return false
}

// String returns the string representation of Result
func (r Result) String() string {
	return string(r)
}

// PaymentRecord is one settled or voided payment contributing to the
// whole-request total
type PaymentRecord struct {
	AttemptKey    string
	PaymentMethod PaymentMethod
	Processor     Processor
	Currency      valueobject.Currency
	Amount        decimal.Decimal
	SettledAt     *time.Time
	Voided        bool
}

// PispAuthorization is an authorised-but-not-yet-settled pay-by-bank amount
type PispAuthorization struct {
	AttemptKey   string
	Amount       decimal.Decimal
	AuthorisedAt time.Time
}

// PaymentResult is the whole-request aggregate. It is derived from the event
// log each time it is requested - a pure view, never persisted state - and
// is therefore idempotent and safe to recompute.
type PaymentResult struct {
	PaymentRequestID uuid.UUID
	RequestedAmount  decimal.Decimal
	Currency         valueobject.Currency

	// Amount is the sum of settled payments in the request currency, net of
	// refunds and rounded to the currency's display precision
	Amount decimal.Decimal
	// PispAmountAuthorized is the sum of authorised-but-not-settled
	// pay-by-bank amounts across attempts
	PispAmountAuthorized decimal.Decimal
	Result               Result

	Payments           []PaymentRecord
	PispAuthorizations []PispAuthorization
	// CrossCurrencyPayments tracks settled payments whose currency differs
	// from the request currency; they are excluded from Amount and Result
	CrossCurrencyPayments []PaymentRecord

	policy CurrencyPolicy
}

// ComputeResult combines all attempts for a payment request into a single
// PaymentResult. Attempts in another currency are tracked but excluded from
// the primary amount and classification.
func (e *Engine) ComputeResult(req PaymentRequestSummary, attempts []PaymentAttempt) PaymentResult {
	policy := e.currencies.PolicyFor(req.Currency)
	result := PaymentResult{
		PaymentRequestID: req.ID,
		RequestedAmount:  req.Amount,
		Currency:         req.Currency,
		policy:           policy,
	}

	total := decimal.Zero
	pispAuthorized := decimal.Zero
	anyAuthorised := false

	for _, attempt := range attempts {
		record, hasPayment := paymentRecordFor(attempt)
		if attempt.Currency != req.Currency {
			if hasPayment {
				result.CrossCurrencyPayments = append(result.CrossCurrencyPayments, record)
			}
			continue
		}

		if hasPayment {
			result.Payments = append(result.Payments, record)
			total = total.Add(record.Amount)
		}
		if outstanding := attempt.AuthorisedOutstanding(); outstanding.IsPositive() {
			result.PispAuthorizations = append(result.PispAuthorizations, PispAuthorization{
				AttemptKey:   attempt.AttemptKey,
				Amount:       outstanding,
				AuthorisedAt: *attempt.AuthorisedAt,
			})
			pispAuthorized = pispAuthorized.Add(outstanding)
		}
		if attempt.IsAuthorised() {
			anyAuthorised = true
		}
	}

	result.Amount = total.Round(policy.Precision)
	result.PispAmountAuthorized = pispAuthorized.Round(policy.Precision)
	result.Result = classify(req.Amount, result.Amount, result.Payments, anyAuthorised)
	return result
}

// ComputeResultFromEvents builds attempts and aggregates them in one step
func (e *Engine) ComputeResultFromEvents(req PaymentRequestSummary, events []PaymentEvent) PaymentResult {
	return e.ComputeResult(req, e.BuildAttempts(events))
}

// paymentRecordFor extracts the settled-or-voided payment a single attempt
// contributes, if any
func paymentRecordFor(attempt PaymentAttempt) (PaymentRecord, bool) {
	if !attempt.Voided && !attempt.SettledAmount.IsPositive() {
		return PaymentRecord{}, false
	}
	return PaymentRecord{
		AttemptKey:    attempt.AttemptKey,
		PaymentMethod: attempt.PaymentMethod,
		Processor:     attempt.Processor,
		Currency:      attempt.Currency,
		Amount:        attempt.NetSettledAmount(),
		SettledAt:     attempt.SettledAt,
		Voided:        attempt.Voided,
	}, true
}

// classify applies the result precedence ladder; the first match wins
func classify(requested, amount decimal.Decimal, payments []PaymentRecord, anyAuthorised bool) Result {
	switch {
	case requested.IsZero():
		return ResultFullyPaid
	case amount.Equal(requested):
		return ResultFullyPaid
	case amount.GreaterThan(requested):
		return ResultOverPaid
	case amount.IsPositive():
		return ResultPartiallyPaid
	case len(payments) > 0 && allVoided(payments):
		return ResultVoided
	case amount.IsZero() && anyAuthorised:
		return ResultAuthorized
	default:
		return ResultNone
	}
}

func allVoided(payments []PaymentRecord) bool {
	for _, p := range payments {
		if !p.Voided {
			return false
		}
	}
	return true
}

// AmountOutstanding is the amount still owed on the request: the requested
// amount minus settled and pending-authorised funds, rounded per currency.
// Bitcoin-family settlement is atomic, so no pending amount is subtracted.
func (r PaymentResult) AmountOutstanding() decimal.Decimal {
	outstanding := r.RequestedAmount.Sub(r.Amount)
	if !r.Currency.IsBitcoinFamily() {
		outstanding = outstanding.Sub(r.PispAmountAuthorized)
	}
	return outstanding.Round(r.policy.Precision)
}

// CappedPartialAmount caps a requested partial payment at the outstanding
// amount so the submission flow cannot over-collect. A non-positive request
// returns the full outstanding amount.
func (r PaymentResult) CappedPartialAmount(requested decimal.Decimal) decimal.Decimal {
	outstanding := r.AmountOutstanding()
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	if requested.IsPositive() && requested.LessThan(outstanding) {
		return requested.Round(r.policy.Precision)
	}
	return outstanding
}
