package payments

// SemanticOutcome is the processor-independent meaning of a raw supplier
// status code. The reducers match only on SemanticOutcome; raw strings are
// resolved once here, so supporting a new processor is a table edit.
type SemanticOutcome string

const (
	OutcomeUnknown  SemanticOutcome = "UNKNOWN"
	OutcomeSuccess  SemanticOutcome = "SUCCESS"
	OutcomePending  SemanticOutcome = "PENDING"
	OutcomeRejected SemanticOutcome = "REJECTED"
)

// String returns the string representation of SemanticOutcome
func (o SemanticOutcome) String() string {
	return string(o)
}

type statusKey struct {
	processor Processor
	kind      EventKind
}

// statusOutcomes maps each (processor, kind, raw status) triple to its
// semantic outcome. Raw codes are only meaningful per processor/kind pair.
// Missing entries resolve to OutcomeUnknown, which the reducers treat as a
// non-authorising, non-settling no-op.
var statusOutcomes = map[statusKey]map[string]SemanticOutcome{
	// Checkout card statuses
	{ProcessorCheckout, EventKindCardAuthorization}: {
		"Authorized":   OutcomeSuccess,
		"CardVerified": OutcomeSuccess,
		"Declined":     OutcomeRejected,
	},
	{ProcessorCheckout, EventKindCardSale}: {
		"Captured": OutcomeSuccess,
		"Paid":     OutcomeSuccess,
		"Declined": OutcomeRejected,
	},
	{ProcessorCheckout, EventKindCardCapture}: {
		"Captured": OutcomeSuccess,
		"Pending":  OutcomePending,
		"Declined": OutcomeRejected,
	},
	{ProcessorCheckout, EventKindCardVoid}: {
		"Voided": OutcomeSuccess,
	},

	// CyberSource card statuses
	{ProcessorCyberSource, EventKindCardAuthorization}: {
		"AUTHORIZED": OutcomeSuccess,
		"DECLINED":   OutcomeRejected,
	},
	{ProcessorCyberSource, EventKindCardSale}: {
		"AUTHORIZED":  OutcomeSuccess,
		"TRANSMITTED": OutcomeSuccess,
		"DECLINED":    OutcomeRejected,
	},
	{ProcessorCyberSource, EventKindCardCapture}: {
		"PENDING":     OutcomePending,
		"TRANSMITTED": OutcomeSuccess,
		"DECLINED":    OutcomeRejected,
	},
	{ProcessorCyberSource, EventKindCardVoid}: {
		"VOIDED":   OutcomeSuccess,
		"REVERSED": OutcomeSuccess,
	},

	// Plaid pay-by-bank statuses
	{ProcessorPlaid, EventKindPispCallback}: {
		"PaymentStatusInitiated": OutcomeSuccess,
		"PaymentStatusExecuted":  OutcomeSuccess,
		"PaymentStatusFailed":    OutcomeRejected,
		"PaymentStatusRejected":  OutcomeRejected,
		"PaymentStatusCancelled": OutcomeRejected,
	},
	{ProcessorPlaid, EventKindPispWebhook}: {
		"PaymentStatusInitiated": OutcomeSuccess,
		"PaymentStatusExecuted":  OutcomeSuccess,
		"PaymentStatusFailed":    OutcomeRejected,
		"PaymentStatusRejected":  OutcomeRejected,
	},

	// Modulr pay-by-bank statuses
	{ProcessorModulr, EventKindPispCallback}: {
		"EXECUTED":  OutcomeSuccess,
		"SUBMITTED": OutcomePending,
		"ER_EXPIRE": OutcomeRejected,
		"ER_GENERL": OutcomeRejected,
	},
	{ProcessorModulr, EventKindPispWebhook}: {
		"EXECUTED": OutcomeSuccess,
	},

	// Yapily pay-by-bank statuses
	{ProcessorYapily, EventKindPispCallback}: {
		"COMPLETED": OutcomeSuccess,
		"PENDING":   OutcomeSuccess,
		"FAILED":    OutcomeRejected,
		"DECLINED":  OutcomeRejected,
	},
	{ProcessorYapily, EventKindPispWebhook}: {
		"COMPLETED": OutcomeSuccess,
		"PENDING":   OutcomeSuccess,
		"FAILED":    OutcomeRejected,
	},

	// Nofrixion payout statuses for pay-by-bank and direct debit
	{ProcessorNofrixion, EventKindPispCallback}: {
		"PENDING":         OutcomeSuccess,
		"QUEUED":          OutcomeSuccess,
		"QUEUED_UPSTREAM": OutcomeSuccess,
		"PROCESSED":       OutcomeSuccess,
		"FAILED":          OutcomeRejected,
	},
	{ProcessorNofrixion, EventKindPispWebhook}: {
		"PENDING":   OutcomeSuccess,
		"QUEUED":    OutcomeSuccess,
		"PROCESSED": OutcomeSuccess,
		"FAILED":    OutcomeRejected,
	},
}

// immediateCaptureStatuses marks card sale statuses that settle in the same
// step, seeding a capture attempt equal to the authorised amount.
var immediateCaptureStatuses = map[statusKey]map[string]bool{
	{ProcessorCheckout, EventKindCardSale}: {
		"Captured": true,
		"Paid":     true,
	},
	{ProcessorCyberSource, EventKindCardSale}: {
		"TRANSMITTED": true,
	},
}

// bankRejectionStatuses holds PispBankStatus codes the bank uses to reject a
// payment out of band of the processor status.
var bankRejectionStatuses = map[string]bool{
	"RJCT":      true,
	"REJECTED":  true,
	"CANCELLED": true,
	"DENIED":    true,
}

// OutcomeFor resolves a raw supplier status to its semantic outcome.
// Direct debit kinds resolve through their PISP equivalents.
func OutcomeFor(processor Processor, kind EventKind, rawStatus string) SemanticOutcome {
	statuses, ok := statusOutcomes[statusKey{processor, kind.pispEquivalent()}]
	if !ok {
		return OutcomeUnknown
	}
	outcome, ok := statuses[rawStatus]
	if !ok {
		return OutcomeUnknown
	}
	return outcome
}

// IsImmediateCapture reports whether a card sale status settles immediately
func IsImmediateCapture(processor Processor, rawStatus string) bool {
	return immediateCaptureStatuses[statusKey{processor, EventKindCardSale}][rawStatus]
}

// IsBankRejection reports whether a PispBankStatus code is a rejection
func IsBankRejection(bankStatus string) bool {
	return bankRejectionStatuses[bankStatus]
}
