package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/payrec/backend/internal/domain/payments"
	"github.com/payrec/backend/internal/domain/shared"
)

var (
	// ErrPaymentRequestNotFound is returned when no payment request exists for the ID
	ErrPaymentRequestNotFound = errors.New("payment result: payment request not found")
)

// ResultTransitionHandler is notified whenever recomputing a result moves a
// payment request to a different classification. Handlers must tolerate
// being called more than once for the same transition.
type ResultTransitionHandler interface {
	HandleResultTransition(ctx context.Context, paymentRequestID uuid.UUID, from, to payments.Result)
}

// ResultService reconciles the event log of a payment request into attempt
// and result views. Every read recomputes from the log, so responses are
// always consistent with whatever events have landed so far.
type ResultService struct {
	source      payments.EventSource
	engine      *payments.Engine
	transitions ResultTransitionHandler
	logger      *zap.Logger
	lastResults sync.Map // uuid.UUID -> payments.Result
}

// ResultServiceConfig holds configuration for the result service
type ResultServiceConfig struct {
	Source            payments.EventSource
	Engine            *payments.Engine
	TransitionHandler ResultTransitionHandler
	Logger            *zap.Logger
}

// NewResultService creates a new ResultService
func NewResultService(config ResultServiceConfig) *ResultService {
	engine := config.Engine
	if engine == nil {
		engine = payments.NewEngine()
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResultService{
		source:      config.Source,
		engine:      engine,
		transitions: config.TransitionHandler,
		logger:      logger,
	}
}

// GetAttempts rebuilds the payment attempts for a payment request
func (s *ResultService) GetAttempts(ctx context.Context, paymentRequestID uuid.UUID) ([]payments.PaymentAttempt, error) {
	events, err := s.loadEvents(ctx, paymentRequestID)
	if err != nil {
		return nil, err
	}
	return s.engine.BuildAttempts(events), nil
}

// GetResult rebuilds the whole-request result for a payment request
func (s *ResultService) GetResult(ctx context.Context, paymentRequestID uuid.UUID) (payments.PaymentResult, error) {
	summary, err := s.source.PaymentRequest(ctx, paymentRequestID)
	if err != nil {
		return payments.PaymentResult{}, s.translate(paymentRequestID, err)
	}
	events, err := s.loadEvents(ctx, paymentRequestID)
	if err != nil {
		return payments.PaymentResult{}, err
	}

	result := s.engine.ComputeResultFromEvents(summary, events)
	s.notifyTransition(ctx, paymentRequestID, result.Result)
	return result, nil
}

// CappedPartialAmount returns how much a new partial payment against the
// request may be worth, never exceeding what is still outstanding
func (s *ResultService) CappedPartialAmount(ctx context.Context, paymentRequestID uuid.UUID, requested decimal.Decimal) (decimal.Decimal, error) {
	result, err := s.GetResult(ctx, paymentRequestID)
	if err != nil {
		return decimal.Zero, err
	}
	return result.CappedPartialAmount(requested), nil
}

func (s *ResultService) loadEvents(ctx context.Context, paymentRequestID uuid.UUID) ([]payments.PaymentEvent, error) {
	events, err := s.source.EventsForPaymentRequest(ctx, paymentRequestID)
	if err != nil {
		return nil, s.translate(paymentRequestID, err)
	}
	return events, nil
}

func (s *ResultService) translate(paymentRequestID uuid.UUID, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrPaymentRequestNotFound, paymentRequestID)
	}
	s.logger.Error("event source read failed",
		zap.String("payment_request_id", paymentRequestID.String()),
		zap.Error(err))
	return err
}

// notifyTransition reports a classification change since the last time this
// request's result was computed. The previous value lives only in memory, so
// a restart reports the first post-restart classification as a transition
// from ResultNone.
func (s *ResultService) notifyTransition(ctx context.Context, paymentRequestID uuid.UUID, current payments.Result) {
	previous := payments.ResultNone
	if v, ok := s.lastResults.Load(paymentRequestID); ok {
		previous = v.(payments.Result)
	}
	if previous == current {
		return
	}
	s.lastResults.Store(paymentRequestID, current)

	s.logger.Info("payment result transitioned",
		zap.String("payment_request_id", paymentRequestID.String()),
		zap.String("from", previous.String()),
		zap.String("to", current.String()))

	if s.transitions != nil {
		s.transitions.HandleResultTransition(ctx, paymentRequestID, previous, current)
	}
}
