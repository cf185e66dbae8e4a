package event

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/payrec/backend/internal/domain/payments"
	"github.com/payrec/backend/internal/domain/shared"
)

// InMemoryStore implements payments.EventSource with an append-only,
// insertion-ordered in-memory log. Reads return copies so callers can
// never mutate the log.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]payments.PaymentRequestSummary
	events   map[uuid.UUID][]payments.PaymentEvent
	logger   *zap.Logger
}

// NewInMemoryStore creates an empty in-memory event store
func NewInMemoryStore(logger *zap.Logger) *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[uuid.UUID]payments.PaymentRequestSummary),
		events:   make(map[uuid.UUID][]payments.PaymentEvent),
		logger:   logger,
	}
}

// RegisterPaymentRequest records the request-side figures events will be
// reconciled against. Registering the same request twice is a conflict.
func (s *InMemoryStore) RegisterPaymentRequest(ctx context.Context, summary payments.PaymentRequestSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[summary.ID]; ok {
		return shared.ErrAlreadyExists
	}
	s.requests[summary.ID] = summary
	s.logger.Debug("payment request registered",
		zap.String("payment_request_id", summary.ID.String()),
		zap.String("amount", summary.Amount.String()),
		zap.String("currency", string(summary.Currency)),
	)
	return nil
}

// Append adds events to the log of their payment request. Events for an
// unregistered request are rejected; partial appends do not happen.
func (s *InMemoryStore) Append(ctx context.Context, events ...payments.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if _, ok := s.requests[e.PaymentRequestID]; !ok {
			return shared.ErrNotFound
		}
	}
	for _, e := range events {
		s.events[e.PaymentRequestID] = append(s.events[e.PaymentRequestID], e)
	}
	return nil
}

// PaymentRequest implements payments.EventSource
func (s *InMemoryStore) PaymentRequest(ctx context.Context, paymentRequestID uuid.UUID) (payments.PaymentRequestSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.requests[paymentRequestID]
	if !ok {
		return payments.PaymentRequestSummary{}, shared.ErrNotFound
	}
	return summary, nil
}

// EventsForPaymentRequest implements payments.EventSource
func (s *InMemoryStore) EventsForPaymentRequest(ctx context.Context, paymentRequestID uuid.UUID) ([]payments.PaymentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.requests[paymentRequestID]; !ok {
		return nil, shared.ErrNotFound
	}
	stored := s.events[paymentRequestID]
	out := make([]payments.PaymentEvent, len(stored))
	copy(out, stored)
	return out, nil
}

var _ payments.EventSource = (*InMemoryStore)(nil)
