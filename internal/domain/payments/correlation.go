package payments

import "fmt"

// CorrelationKind tags the kind of key an event correlates on
type CorrelationKind string

const (
	// CorrelationKindCardAuth groups card events by authorization response ID
	CorrelationKindCardAuth CorrelationKind = "CARD_AUTH"
	// CorrelationKindPispInitiation groups pay-by-bank and direct debit
	// events by payment initiation ID
	CorrelationKindPispInitiation CorrelationKind = "PISP_INITIATION"
	// CorrelationKindStandalone marks an event that forms its own group
	CorrelationKindStandalone CorrelationKind = "STANDALONE"
	// CorrelationKindNone marks an event that cannot be correlated at all
	// and is dropped from aggregate consideration
	CorrelationKindNone CorrelationKind = "NONE"
)

// CorrelationKey is the explicit, total grouping key for one event. It is
// computed once per event so the partition step never inspects nullable
// fields and is independent of input order.
type CorrelationKey struct {
	Kind CorrelationKind
	ID   string
}

// String returns a stable representation usable as a map key
func (k CorrelationKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.ID)
}

// IsDiscarded reports whether events under this key are dropped rather than
// reduced. An orphaned settlement with no initiation must not create or
// inflate a result.
func (k CorrelationKey) IsDiscarded() bool {
	return k.Kind == CorrelationKindNone
}

// CorrelationKeyFor computes the grouping key for an event:
//   - card events group by CardAuthorizationResponseID; without one the
//     event stands alone as its own group
//   - PISP and direct debit events group by PispPaymentInitiationID; without
//     one the event is discarded
//   - each Lightning invoice-paid event is its own group; invoice-created
//     events without a paid counterpart carry no amount semantics and are
//     also standalone
func CorrelationKeyFor(event PaymentEvent) CorrelationKey {
	switch event.Kind.Family() {
	case KindFamilyCard:
		if event.CardAuthorizationResponseID != "" {
			return CorrelationKey{Kind: CorrelationKindCardAuth, ID: event.CardAuthorizationResponseID}
		}
		return CorrelationKey{Kind: CorrelationKindStandalone, ID: event.ID.String()}
	case KindFamilyPisp, KindFamilyDirectDebit:
		if event.PispPaymentInitiationID != "" {
			return CorrelationKey{Kind: CorrelationKindPispInitiation, ID: event.PispPaymentInitiationID}
		}
		return CorrelationKey{Kind: CorrelationKindNone, ID: event.ID.String()}
	case KindFamilyLightning:
		return CorrelationKey{Kind: CorrelationKindStandalone, ID: event.ID.String()}
	default:
		return CorrelationKey{Kind: CorrelationKindNone, ID: event.ID.String()}
	}
}
