package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"bwitty-orders/internal/idempotency"
	"bwitty-orders/internal/metrics"
	"bwitty-orders/internal/model"
	"bwitty-orders/internal/paystack"
	"bwitty-orders/internal/service"

	"github.com/rs/zerolog"
)

const (
	maxWebhookBytes = 64 << 10

	recordTimeout = 2 * time.Second
)

// Gateway event names.
const (
	eventChargeSuccess = "charge.success"
	eventChargeFailed  = "charge.failed"
)

// WebhookHandler receives Paystack event notifications.
type WebhookHandler struct {
	payments    service.PaymentService
	deliveries  idempotency.DeliveryStore
	secret      string
	deliveryTTL time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewWebhookHandler creates a webhook handler that trusts bodies signed with secret.
func NewWebhookHandler(
	payments service.PaymentService,
	deliveries idempotency.DeliveryStore,
	secret string,
	deliveryTTL time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *WebhookHandler {
	if deliveries == nil {
		deliveries = idempotency.NewMemoryStore()
	}
	if m == nil {
		m = metrics.New()
	}
	return &WebhookHandler{
		payments:    payments,
		deliveries:  deliveries,
		secret:      secret,
		deliveryTTL: deliveryTTL,
		metrics:     m,
		logger:      logger.With().Str("handler", "webhook").Logger(),
	}
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference       string `json:"reference"`
		Status          string `json:"status"`
		Amount          int64  `json:"amount"`
		Channel         string `json:"channel"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

// WebhookResponse is returned to the gateway. Non-2xx answers make it retry.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	OrderID string `json:"orderId,omitempty"`
	OrderNo string `json:"orderNo,omitempty"`
}

// Handle handles POST /api/paystack/webhook.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes+1))
	if err != nil {
		h.reply(w, http.StatusBadRequest, "unknown", "unreadable", WebhookResponse{Error: "could not read body"})
		return
	}
	if len(body) > maxWebhookBytes {
		h.reply(w, http.StatusRequestEntityTooLarge, "unknown", "too_large", WebhookResponse{Error: "payload too large"})
		return
	}

	if !paystack.ValidSignature(h.secret, body, r.Header.Get(paystack.SignatureHeader)) {
		h.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("webhook signature rejected")
		h.reply(w, http.StatusUnauthorized, "unknown", "invalid_signature", WebhookResponse{Error: "invalid signature"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.reply(w, http.StatusBadRequest, "unknown", "malformed", WebhookResponse{Error: "invalid payload"})
		return
	}

	log := h.logger.With().
		Str("event", event.Event).
		Str("reference", event.Data.Reference).
		Logger()

	switch {
	case event.Event == eventChargeSuccess && event.Data.Status == "success":
		h.chargeSucceeded(r.Context(), w, event, log)
	case event.Event == eventChargeFailed:
		h.chargeFailed(r.Context(), w, event, log)
	default:
		log.Debug().Msg("webhook event ignored")
		h.reply(w, http.StatusOK, event.Event, "ignored", WebhookResponse{Success: true, Message: "Webhook processed"})
	}
}

func (h *WebhookHandler) chargeSucceeded(ctx context.Context, w http.ResponseWriter, event webhookEvent, log zerolog.Logger) {
	reference := event.Data.Reference
	if reference == "" {
		h.reply(w, http.StatusBadRequest, event.Event, "malformed", WebhookResponse{Error: "missing reference"})
		return
	}

	key := idempotency.WebhookKey(event.Event, reference)
	seen, err := h.deliveries.Seen(ctx, key)
	if err != nil {
		// The row-level guard still prevents a double confirmation.
		log.Warn().Err(err).Msg("delivery store unavailable, processing anyway")
		seen = false
	}
	if seen {
		log.Info().Msg("webhook delivery already processed")
		h.reply(w, http.StatusOK, event.Event, "duplicate", WebhookResponse{Success: true, Message: "Webhook already processed"})
		return
	}

	result, err := h.payments.ConfirmPayment(ctx, model.PaymentConfirmation{
		Reference:  reference,
		AmountKobo: event.Data.Amount,
		Channel:    event.Data.Channel,
		Source:     model.SourceWebhook,
	})
	if err != nil {
		h.failure(w, event.Event, err, log)
		return
	}
	h.record(ctx, key, log)

	resp := WebhookResponse{
		Success: true,
		Message: "Payment confirmed and order updated",
		OrderID: result.Order.ID.String(),
		OrderNo: result.Order.OrderNo,
	}
	outcome := "confirmed"
	if !result.Applied {
		resp.Message = "Payment already confirmed"
		outcome = "already_confirmed"
	}
	h.reply(w, http.StatusOK, event.Event, outcome, resp)
}

func (h *WebhookHandler) chargeFailed(ctx context.Context, w http.ResponseWriter, event webhookEvent, log zerolog.Logger) {
	reference := event.Data.Reference
	if reference == "" {
		h.reply(w, http.StatusBadRequest, event.Event, "malformed", WebhookResponse{Error: "missing reference"})
		return
	}

	status := event.Data.Status
	if status == "" {
		status = "failed"
	}

	result, err := h.payments.FailPayment(ctx, reference, model.SourceWebhook, status)
	if err != nil {
		h.failure(w, event.Event, err, log)
		return
	}

	resp := WebhookResponse{
		Success: true,
		Message: "Webhook processed",
		OrderID: result.Order.ID.String(),
		OrderNo: result.Order.OrderNo,
	}
	outcome := "unchanged"
	if result.Applied {
		resp.Message = "Payment failure recorded"
		outcome = "failed"
	}
	h.reply(w, http.StatusOK, event.Event, outcome, resp)
}

func (h *WebhookHandler) failure(w http.ResponseWriter, event string, err error, log zerolog.Logger) {
	var notFound *model.NotFoundError
	if errors.As(err, &notFound) {
		log.Info().Msg("webhook for unknown order")
		h.reply(w, http.StatusNotFound, event, "not_found", WebhookResponse{Message: "Order not found"})
		return
	}

	log.Error().Err(err).Msg("webhook processing failed")
	h.reply(w, http.StatusInternalServerError, event, "error", WebhookResponse{Error: "webhook processing failed"})
}

// record runs after the order commit, so it must not depend on the request
// staying open.
func (h *WebhookHandler) record(ctx context.Context, key string, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := h.deliveries.Record(ctx, key, h.deliveryTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to record webhook delivery")
	}
}

func (h *WebhookHandler) reply(w http.ResponseWriter, status int, event, result string, resp WebhookResponse) {
	if event == "" {
		event = "unknown"
	}
	h.metrics.WebhookEvent(event, result)
	writeJSON(w, status, resp)
}
