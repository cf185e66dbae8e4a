package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/payrec/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// EventKind identifies the lifecycle fact a PaymentEvent records
type EventKind string

const (
	// Card lifecycle events
	EventKindCardAuthenticationSetup   EventKind = "CARD_AUTHENTICATION_SETUP"
	EventKindCardAuthorization         EventKind = "CARD_AUTHORIZATION"
	EventKindCardSale                  EventKind = "CARD_SALE"
	EventKindCardCapture               EventKind = "CARD_CAPTURE"
	EventKindCardVoid                  EventKind = "CARD_VOID"
	EventKindCardAuthenticationFailure EventKind = "CARD_AUTHENTICATION_FAILURE"

	// Pay-by-bank (PISP) lifecycle events
	EventKindPispInitiate        EventKind = "PISP_INITIATE"
	EventKindPispCallback        EventKind = "PISP_CALLBACK"
	EventKindPispWebhook         EventKind = "PISP_WEBHOOK"
	EventKindPispSettle          EventKind = "PISP_SETTLE"
	EventKindPispSettleFailure   EventKind = "PISP_SETTLE_FAILURE"
	EventKindPispRefundInitiated EventKind = "PISP_REFUND_INITIATED"
	EventKindPispRefundSettled   EventKind = "PISP_REFUND_SETTLED"

	// Bitcoin Lightning lifecycle events
	EventKindLightningInvoiceCreated EventKind = "LIGHTNING_INVOICE_CREATED"
	EventKindLightningInvoicePaid    EventKind = "LIGHTNING_INVOICE_PAID"

	// Direct debit lifecycle events, reduced with the PISP rules
	EventKindDirectDebitInitiate      EventKind = "DIRECT_DEBIT_INITIATE"
	EventKindDirectDebitCallback      EventKind = "DIRECT_DEBIT_CALLBACK"
	EventKindDirectDebitSettle        EventKind = "DIRECT_DEBIT_SETTLE"
	EventKindDirectDebitSettleFailure EventKind = "DIRECT_DEBIT_SETTLE_FAILURE"
)

// IsValid checks if the kind is a known EventKind
func (k EventKind) IsValid() bool {
	switch k {
	case EventKindCardAuthenticationSetup, EventKindCardAuthorization, EventKindCardSale,
		EventKindCardCapture, EventKindCardVoid, EventKindCardAuthenticationFailure,
		EventKindPispInitiate, EventKindPispCallback, EventKindPispWebhook,
		EventKindPispSettle, EventKindPispSettleFailure,
		EventKindPispRefundInitiated, EventKindPispRefundSettled,
		EventKindLightningInvoiceCreated, EventKindLightningInvoicePaid,
		EventKindDirectDebitInitiate, EventKindDirectDebitCallback,
		EventKindDirectDebitSettle, EventKindDirectDebitSettleFailure:
		return true
	}
	return false
}

// String returns the string representation of EventKind
func (k EventKind) String() string {
	return string(k)
}

// KindFamily groups event kinds by the payment rail they belong to
type KindFamily string

const (
	KindFamilyCard        KindFamily = "CARD"
	KindFamilyPisp        KindFamily = "PISP"
	KindFamilyLightning   KindFamily = "LIGHTNING"
	KindFamilyDirectDebit KindFamily = "DIRECT_DEBIT"
)

// Family returns the payment rail family for this kind
func (k EventKind) Family() KindFamily {
	switch k {
	case EventKindCardAuthenticationSetup, EventKindCardAuthorization, EventKindCardSale,
		EventKindCardCapture, EventKindCardVoid, EventKindCardAuthenticationFailure:
		return KindFamilyCard
	case EventKindPispInitiate, EventKindPispCallback, EventKindPispWebhook,
		EventKindPispSettle, EventKindPispSettleFailure,
		EventKindPispRefundInitiated, EventKindPispRefundSettled:
		return KindFamilyPisp
	case EventKindLightningInvoiceCreated, EventKindLightningInvoicePaid:
		return KindFamilyLightning
	case EventKindDirectDebitInitiate, EventKindDirectDebitCallback,
		EventKindDirectDebitSettle, EventKindDirectDebitSettleFailure:
		return KindFamilyDirectDebit
	default:
		return ""
	}
}

// pispEquivalent maps direct debit kinds onto their PISP counterparts so both
// rails share one reduction. PISP kinds map to themselves.
func (k EventKind) pispEquivalent() EventKind {
	switch k {
	case EventKindDirectDebitInitiate:
		return EventKindPispInitiate
	case EventKindDirectDebitCallback:
		return EventKindPispCallback
	case EventKindDirectDebitSettle:
		return EventKindPispSettle
	case EventKindDirectDebitSettleFailure:
		return EventKindPispSettleFailure
	default:
		return k
	}
}

// Processor identifies the payment supplier that produced an event
type Processor string

const (
	ProcessorCheckout    Processor = "CHECKOUT"
	ProcessorCyberSource Processor = "CYBERSOURCE"
	ProcessorYapily      Processor = "YAPILY"
	ProcessorPlaid       Processor = "PLAID"
	ProcessorModulr      Processor = "MODULR"
	ProcessorNofrixion   Processor = "NOFRIXION"
)

// IsValid checks if the processor is a known supplier
func (p Processor) IsValid() bool {
	switch p {
	case ProcessorCheckout, ProcessorCyberSource, ProcessorYapily,
		ProcessorPlaid, ProcessorModulr, ProcessorNofrixion:
		return true
	}
	return false
}

// String returns the string representation of Processor
func (p Processor) String() string {
	return string(p)
}

// PaymentMethod identifies the rail a reconstructed attempt was made on
type PaymentMethod string

const (
	PaymentMethodCard        PaymentMethod = "CARD"
	PaymentMethodPisp        PaymentMethod = "PISP"
	PaymentMethodLightning   PaymentMethod = "LIGHTNING"
	PaymentMethodDirectDebit PaymentMethod = "DIRECT_DEBIT"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodPisp, PaymentMethodLightning, PaymentMethodDirectDebit:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// methodFor maps a kind family to the payment method it reconstructs
func methodFor(f KindFamily) PaymentMethod {
	switch f {
	case KindFamilyCard:
		return PaymentMethodCard
	case KindFamilyPisp:
		return PaymentMethodPisp
	case KindFamilyLightning:
		return PaymentMethodLightning
	case KindFamilyDirectDebit:
		return PaymentMethodDirectDebit
	default:
		return ""
	}
}

// PaymentEvent is one immutable fact about a payment request's lifecycle.
// Events arrive ordered by insertion time but not guaranteed causally
// ordered; the reduction never mutates them.
type PaymentEvent struct {
	ID               uuid.UUID
	PaymentRequestID uuid.UUID
	InsertedAt       time.Time

	Kind      EventKind
	Amount    decimal.Decimal
	Currency  valueobject.Currency
	RawStatus string
	Processor Processor

	// Correlation keys, present only for the relevant kind
	CardAuthorizationResponseID string
	PispPaymentInitiationID     string
	RefundPayoutID              string

	// PispBankStatus is a secondary rejection signal distinct from RawStatus
	PispBankStatus string
}

// PaymentRequestSummary carries the request-side figures the aggregator
// reconciles the event log against.
type PaymentRequestSummary struct {
	ID       uuid.UUID
	Amount   decimal.Decimal
	Currency valueobject.Currency
}
