package handler

import (
	"time"

	"github.com/payrec/backend/internal/domain/payments"
)

// CaptureAttemptResponse represents one card capture step
type CaptureAttemptResponse struct {
	CapturedAt      *time.Time `json:"captured_at,omitempty"`
	CapturedAmount  string     `json:"captured_amount"`
	CaptureFailedAt *time.Time `json:"capture_failed_at,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty"`
}

// RefundAttemptResponse represents one refund payout against an attempt
type RefundAttemptResponse struct {
	RefundPayoutID  string     `json:"refund_payout_id,omitempty"`
	InitiatedAt     *time.Time `json:"initiated_at,omitempty"`
	InitiatedAmount string     `json:"initiated_amount"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
	SettledAmount   string     `json:"settled_amount"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	IsCardVoid      bool       `json:"is_card_void"`
}

// PaymentAttemptResponse represents one reconstructed payment attempt
type PaymentAttemptResponse struct {
	AttemptKey    string `json:"attempt_key"`
	PaymentMethod string `json:"payment_method"`
	Currency      string `json:"currency"`
	Processor     string `json:"processor,omitempty"`
	Status        string `json:"status"`

	InitiatedAt               time.Time  `json:"initiated_at"`
	AuthorisedAt              *time.Time `json:"authorised_at,omitempty"`
	CardAuthorisedAt          *time.Time `json:"card_authorised_at,omitempty"`
	AuthenticationFailedAt    *time.Time `json:"authentication_failed_at,omitempty"`
	AuthoriseFailedAt         *time.Time `json:"authorise_failed_at,omitempty"`
	SettledAt                 *time.Time `json:"settled_at,omitempty"`
	SettleFailedAt            *time.Time `json:"settle_failed_at,omitempty"`
	PispAuthorisationFailedAt *time.Time `json:"pisp_authorisation_failed_at,omitempty"`

	AttemptedAmount  string `json:"attempted_amount"`
	AuthorisedAmount string `json:"authorised_amount"`
	SettledAmount    string `json:"settled_amount"`
	RefundedAmount   string `json:"refunded_amount"`
	Voided           bool   `json:"voided"`

	CaptureAttempts []CaptureAttemptResponse `json:"capture_attempts,omitempty"`
	RefundAttempts  []RefundAttemptResponse  `json:"refund_attempts,omitempty"`
}

// PaymentRecordResponse represents one settled or voided payment
type PaymentRecordResponse struct {
	AttemptKey    string     `json:"attempt_key"`
	PaymentMethod string     `json:"payment_method"`
	Processor     string     `json:"processor,omitempty"`
	Currency      string     `json:"currency"`
	Amount        string     `json:"amount"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
	Voided        bool       `json:"voided"`
}

// PispAuthorizationResponse represents an authorised-but-not-settled amount
type PispAuthorizationResponse struct {
	AttemptKey   string    `json:"attempt_key"`
	Amount       string    `json:"amount"`
	AuthorisedAt time.Time `json:"authorised_at"`
}

// PaymentResultResponse represents the whole-request reconciliation result
type PaymentResultResponse struct {
	PaymentRequestID     string `json:"payment_request_id"`
	RequestedAmount      string `json:"requested_amount"`
	Currency             string `json:"currency"`
	Amount               string `json:"amount"`
	PispAmountAuthorized string `json:"pisp_amount_authorized"`
	AmountOutstanding    string `json:"amount_outstanding"`
	Result               string `json:"result"`

	Payments              []PaymentRecordResponse     `json:"payments,omitempty"`
	PispAuthorizations    []PispAuthorizationResponse `json:"pisp_authorizations,omitempty"`
	CrossCurrencyPayments []PaymentRecordResponse     `json:"cross_currency_payments,omitempty"`
}

// OutstandingResponse represents the capped amount a new partial payment may take
type OutstandingResponse struct {
	PaymentRequestID string `json:"payment_request_id"`
	RequestedAmount  string `json:"requested_amount"`
	CappedAmount     string `json:"capped_amount"`
}

func toCaptureAttemptResponse(c payments.CaptureAttempt) CaptureAttemptResponse {
	return CaptureAttemptResponse{
		CapturedAt:      c.CapturedAt,
		CapturedAmount:  c.CapturedAmount.String(),
		CaptureFailedAt: c.CaptureFailedAt,
		FailureReason:   c.FailureReason,
	}
}

func toRefundAttemptResponse(r payments.RefundAttempt) RefundAttemptResponse {
	return RefundAttemptResponse{
		RefundPayoutID:  r.RefundPayoutID,
		InitiatedAt:     r.InitiatedAt,
		InitiatedAmount: r.InitiatedAmount.String(),
		SettledAt:       r.SettledAt,
		SettledAmount:   r.SettledAmount.String(),
		CancelledAt:     r.CancelledAt,
		IsCardVoid:      r.IsCardVoid,
	}
}

func toPaymentAttemptResponse(a payments.PaymentAttempt) PaymentAttemptResponse {
	resp := PaymentAttemptResponse{
		AttemptKey:    a.AttemptKey,
		PaymentMethod: a.PaymentMethod.String(),
		Currency:      string(a.Currency),
		Processor:     a.Processor.String(),
		Status:        a.Status().String(),

		InitiatedAt:               a.InitiatedAt,
		AuthorisedAt:              a.AuthorisedAt,
		CardAuthorisedAt:          a.CardAuthorisedAt,
		AuthenticationFailedAt:    a.AuthenticationFailedAt,
		AuthoriseFailedAt:         a.AuthoriseFailedAt,
		SettledAt:                 a.SettledAt,
		SettleFailedAt:            a.SettleFailedAt,
		PispAuthorisationFailedAt: a.PispAuthorisationFailedAt,

		AttemptedAmount:  a.AttemptedAmount.String(),
		AuthorisedAmount: a.AuthorisedAmount.String(),
		SettledAmount:    a.SettledAmount.String(),
		RefundedAmount:   a.RefundedAmount().String(),
		Voided:           a.Voided,
	}
	for _, c := range a.CaptureAttempts {
		resp.CaptureAttempts = append(resp.CaptureAttempts, toCaptureAttemptResponse(c))
	}
	for _, r := range a.RefundAttempts {
		resp.RefundAttempts = append(resp.RefundAttempts, toRefundAttemptResponse(r))
	}
	return resp
}

func toPaymentRecordResponse(p payments.PaymentRecord) PaymentRecordResponse {
	return PaymentRecordResponse{
		AttemptKey:    p.AttemptKey,
		PaymentMethod: p.PaymentMethod.String(),
		Processor:     p.Processor.String(),
		Currency:      string(p.Currency),
		Amount:        p.Amount.String(),
		SettledAt:     p.SettledAt,
		Voided:        p.Voided,
	}
}

func toPaymentResultResponse(r payments.PaymentResult) PaymentResultResponse {
	resp := PaymentResultResponse{
		PaymentRequestID:     r.PaymentRequestID.String(),
		RequestedAmount:      r.RequestedAmount.String(),
		Currency:             string(r.Currency),
		Amount:               r.Amount.String(),
		PispAmountAuthorized: r.PispAmountAuthorized.String(),
		AmountOutstanding:    r.AmountOutstanding().String(),
		Result:               r.Result.String(),
	}
	for _, p := range r.Payments {
		resp.Payments = append(resp.Payments, toPaymentRecordResponse(p))
	}
	for _, a := range r.PispAuthorizations {
		resp.PispAuthorizations = append(resp.PispAuthorizations, PispAuthorizationResponse{
			AttemptKey:   a.AttemptKey,
			Amount:       a.Amount.String(),
			AuthorisedAt: a.AuthorisedAt,
		})
	}
	for _, p := range r.CrossCurrencyPayments {
		resp.CrossCurrencyPayments = append(resp.CrossCurrencyPayments, toPaymentRecordResponse(p))
	}
	return resp
}
