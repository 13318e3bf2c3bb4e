package handler

import (
	"errors"
	"net/http"

	"bwitty-orders/internal/model"
	"bwitty-orders/internal/service"

	"github.com/rs/zerolog"
)

// PaymentHandler exposes verification, reconciliation and the client payment config.
type PaymentHandler struct {
	service   service.PaymentService
	publicKey string
	currency  string
	logger    zerolog.Logger
}

// NewPaymentHandler creates a new payment handler. publicKey is safe to hand to clients.
func NewPaymentHandler(service service.PaymentService, publicKey, currency string, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		publicKey: publicKey,
		currency:  currency,
		logger:    logger.With().Str("handler", "payment").Logger(),
	}
}

type referenceRequest struct {
	Reference string `json:"reference"`
}

// VerifyResponse is the verification proxy answer.
type VerifyResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Amount  int64  `json:"amount,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PaymentConfig is what a client needs to open the gateway's inline checkout.
type PaymentConfig struct {
	PublicKey string `json:"publicKey"`
	Currency  string `json:"currency"`
}

// Verify handles POST /api/verify-payment. It only reports the gateway's answer.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	v, err := h.service.Verify(r.Context(), req.Reference)
	if err != nil {
		var unreachable *model.VerificationUnreachableError
		if errors.As(err, &unreachable) {
			h.logger.Error().Err(err).Str("reference", req.Reference).Msg("verification proxy failed")
			writeJSON(w, http.StatusBadGateway, VerifyResponse{Success: false, Error: "payment verification failed"})
			return
		}
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{Success: v.Success, Status: v.RawStatus, Amount: v.PaidAmount})
}

// Reconcile handles POST /api/payments/reconcile, the redirect checkout callback.
func (h *PaymentHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	order, err := h.service.Reconcile(r.Context(), callerOf(r), req.Reference)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Config handles GET /api/config/payment.
func (h *PaymentHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PaymentConfig{PublicKey: h.publicKey, Currency: h.currency})
}
