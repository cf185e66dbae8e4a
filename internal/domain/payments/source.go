package payments

import (
	"context"

	"github.com/google/uuid"
)

// EventSource defines the interface for reading the payment event log
type EventSource interface {
	// PaymentRequest retrieves the payment request a log belongs to
	PaymentRequest(ctx context.Context, paymentRequestID uuid.UUID) (PaymentRequestSummary, error)

	// EventsForPaymentRequest retrieves every recorded event for a payment request.
	// Callers must not assume any ordering beyond insertion order.
	EventsForPaymentRequest(ctx context.Context, paymentRequestID uuid.UUID) ([]PaymentEvent, error)
}
