package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bwitty-orders/internal/metrics"
	"bwitty-orders/internal/model"
	"bwitty-orders/internal/paystack"
	"bwitty-orders/internal/repository"

	"github.com/rs/zerolog"
)

// Gateway statuses that end a transaction without payment.
var definitiveFailures = map[string]bool{
	"failed":    true,
	"abandoned": true,
	"reversed":  true,
}

// paymentService implements PaymentService.
type paymentService struct {
	orders   repository.OrderRepository
	gateway  PaymentGateway
	writer   *orderWriter
	metrics  *metrics.Metrics
	deadline time.Duration
	logger   zerolog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(deps Dependencies) PaymentService {
	logger := deps.Logger.With().Str("service", "payment").Logger()
	return &paymentService{
		orders:   deps.Orders,
		gateway:  deps.Gateway,
		writer:   newOrderWriter(deps, logger),
		metrics:  deps.metrics(),
		deadline: deps.verifyDeadline(),
		logger:   logger,
	}
}

// Verify asks the gateway about reference. It never reads or writes orders.
func (s *paymentService) Verify(ctx context.Context, reference string) (*paystack.Verification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, model.NewValidationError("reference", "is required")
	}

	v, err := verifyWithin(ctx, s.gateway, s.deadline, reference)
	if err != nil {
		s.metrics.Verification("unreachable")
		s.logger.Error().Err(err).Str("reference", reference).Msg("payment verification unreachable")
		return nil, &model.VerificationUnreachableError{Reference: reference, Err: err}
	}

	if v.Success {
		s.metrics.Verification("success")
	} else {
		s.metrics.Verification("failed")
	}
	return v, nil
}

// Reconcile verifies reference with the gateway and applies the answer to the
// order carrying it. Callers only see their own orders unless they are admins.
func (s *paymentService) Reconcile(ctx context.Context, actor model.Actor, reference string) (*model.Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, model.NewValidationError("reference", "is required")
	}

	order, err := s.orders.GetByPaymentReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment reference: %w", err)
	}
	if order == nil || (!actor.IsAdmin() && order.UserID != actor.ID) {
		return nil, &model.NotFoundError{Resource: "payment", Key: reference}
	}

	log := s.logger.With().
		Str("reference", reference).
		Str("order_id", order.ID.String()).
		Logger()

	v, err := verifyWithin(ctx, s.gateway, s.deadline, reference)
	if err != nil {
		s.metrics.Verification("unreachable")
		s.metrics.Alert("verification_unreachable")
		log.Error().Err(err).Bool("alert", true).Msg("could not verify payment during reconciliation")
		return nil, &model.VerificationUnreachableError{Reference: reference, Err: err}
	}

	if !v.Success {
		s.metrics.Verification("failed")
		if definitiveFailures[v.RawStatus] {
			if _, err := s.writer.fail(ctx, s.writer.byReference(reference), reference, model.SourceVerification, v.RawStatus); err != nil {
				return nil, err
			}
		}
		log.Info().Str("status", v.RawStatus).Msg("payment not successful")
		return nil, &model.VerificationFailedError{Reference: reference, Status: v.RawStatus}
	}

	if v.PaidAmount < order.Totals.MinorUnits() {
		s.metrics.Verification("amount_mismatch")
		s.metrics.Alert("amount_mismatch")
		log.Error().
			Bool("alert", true).
			Int64("paid_kobo", v.PaidAmount).
			Int64("expected_kobo", order.Totals.MinorUnits()).
			Msg("verified amount is below the order total")
		return nil, &model.VerificationFailedError{Reference: reference, Status: "amount_mismatch"}
	}
	s.metrics.Verification("success")

	result, err := s.writer.confirm(ctx, s.writer.byReference(reference), reference, model.PaymentConfirmation{
		Reference:  reference,
		AmountKobo: v.PaidAmount,
		Channel:    v.Channel,
		Source:     model.SourceVerification,
	})
	if err != nil {
		return nil, err
	}
	return result.Order, nil
}

// ConfirmPayment applies a gateway-confirmed charge. Repeated confirmations
// are no-ops reported with Applied false.
func (s *paymentService) ConfirmPayment(ctx context.Context, c model.PaymentConfirmation) (*model.ConfirmationResult, error) {
	if c.Reference == "" {
		return nil, model.NewValidationError("reference", "is required")
	}
	return s.writer.confirm(ctx, s.writer.byReference(c.Reference), c.Reference, c)
}

// FailPayment marks a pending payment failed.
func (s *paymentService) FailPayment(ctx context.Context, reference, source, gatewayStatus string) (*model.ConfirmationResult, error) {
	if reference == "" {
		return nil, model.NewValidationError("reference", "is required")
	}
	return s.writer.fail(ctx, s.writer.byReference(reference), reference, source, gatewayStatus)
}
