package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	paymentsapp "github.com/payrec/backend/internal/application/payments"
	"github.com/payrec/backend/internal/interfaces/http/dto"
)

// PaymentHandler serves the reconciliation read surface for payment requests
type PaymentHandler struct {
	BaseHandler
	service *paymentsapp.ResultService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(service *paymentsapp.ResultService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers payment request routes
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/payment-requests")
	{
		group.GET("/:id/result", h.GetResult)
		group.GET("/:id/attempts", h.GetAttempts)
		group.GET("/:id/outstanding", h.GetOutstanding)
	}
}

func (h *PaymentHandler) paymentRequestID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid payment request ID")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid payment request ID")
		return uuid.Nil, false
	}
	return id, true
}

// GetResult returns the reconciled whole-request result
func (h *PaymentHandler) GetResult(c *gin.Context) {
	id, ok := h.paymentRequestID(c)
	if !ok {
		return
	}

	result, err := h.service.GetResult(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, paymentsapp.ErrPaymentRequestNotFound) {
			h.NotFound(c, "Payment request not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPaymentResultResponse(result))
}

// GetAttempts returns the reconstructed payment attempts
func (h *PaymentHandler) GetAttempts(c *gin.Context) {
	id, ok := h.paymentRequestID(c)
	if !ok {
		return
	}

	attempts, err := h.service.GetAttempts(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, paymentsapp.ErrPaymentRequestNotFound) {
			h.NotFound(c, "Payment request not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	resp := make([]PaymentAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, toPaymentAttemptResponse(a))
	}
	h.Success(c, resp)
}

// GetOutstanding returns the capped amount a new partial payment may take.
// The requested amount comes in as a query parameter.
func (h *PaymentHandler) GetOutstanding(c *gin.Context) {
	id, ok := h.paymentRequestID(c)
	if !ok {
		return
	}

	requestedParam := c.Query("requested")
	if requestedParam == "" {
		h.BadRequest(c, "Query parameter 'requested' is required")
		return
	}
	requested, err := decimal.NewFromString(requestedParam)
	if err != nil {
		h.BadRequest(c, "Query parameter 'requested' must be a decimal amount")
		return
	}

	capped, err := h.service.CappedPartialAmount(c.Request.Context(), id, requested)
	if err != nil {
		if errors.Is(err, paymentsapp.ErrPaymentRequestNotFound) {
			h.NotFound(c, "Payment request not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, OutstandingResponse{
		PaymentRequestID: id.String(),
		RequestedAmount:  requested.String(),
		CappedAmount:     capped.String(),
	})
}
