package lifecycle

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"bwitty-orders/internal/model"
)

// Fulfillment transitions. Terminal states have no entry.
var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusPendingPayment: {model.StatusProcessing, model.StatusCancelled},
	model.StatusProcessing:     {model.StatusShipped, model.StatusCancelled},
	model.StatusShipped:        {model.StatusDelivered, model.StatusCancelled},
}

// CanTransition reports whether from -> to is part of the fulfillment graph.
func CanTransition(from, to model.OrderStatus) bool {
	return slices.Contains(transitions[from], to)
}

// NextStatuses lists the statuses reachable from s.
func NextStatuses(s model.OrderStatus) []model.OrderStatus {
	return slices.Clone(transitions[s])
}

func authorize(actor model.Actor, action string) error {
	if actor.IsAdmin() || actor.Role == model.RoleSystem {
		return nil
	}
	return &model.AuthorizationError{Action: action}
}

// touch bumps UpdatedAt without ever moving it backwards.
func touch(o *model.Order, now time.Time) {
	now = now.UTC()
	if now.Before(o.UpdatedAt) {
		now = o.UpdatedAt
	}
	o.UpdatedAt = now
}

// Transition applies an admin fulfillment transition and returns the updated copy.
// The input order is never modified.
func Transition(o *model.Order, to model.OrderStatus, actor model.Actor, now time.Time) (*model.Order, error) {
	if err := authorize(actor, "change order status"); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, model.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}
	if o.Status.Terminal() || !CanTransition(o.Status, to) {
		return nil, &model.InvalidTransitionError{From: o.Status, To: to}
	}

	next := o.Clone()
	next.Status = to
	details := fmt.Sprintf("Status changed from %s to %s", o.Status.Display(), to.Display())
	next.AuditLog = AppendAudit(o.AuditLog, model.ActionStatusUpdated, details, &actor, now)
	touch(next, now)

	return next, nil
}

// NeedsConfirmation is the idempotency guard shared by the webhook and the
// verification path: a confirmed order is never confirmed twice.
func NeedsConfirmation(o *model.Order) bool {
	switch o.Payment.Status {
	case model.PaymentCOD:
		return false
	case model.PaymentPaid:
		return o.Status == model.StatusPendingPayment
	default:
		return true
	}
}

// ConfirmPayment marks the order paid and moves pending_payment to processing.
// It reports false and returns the order unchanged when the guard rejects it.
func ConfirmPayment(o *model.Order, c model.PaymentConfirmation, now time.Time) (*model.Order, bool) {
	if !NeedsConfirmation(o) {
		return o, false
	}

	next := o.Clone()
	now = now.UTC()

	next.Payment.Status = model.PaymentPaid
	if c.Reference != "" && next.Payment.Reference == nil {
		ref := c.Reference
		next.Payment.Reference = &ref
	}
	if c.AmountKobo > 0 {
		amount := c.AmountKobo
		next.Payment.PaidAmount = &amount
	}
	if c.Channel != "" {
		channel := c.Channel
		next.Payment.Channel = &channel
	}
	if next.Payment.PaidAt == nil {
		paidAt := now
		next.Payment.PaidAt = &paidAt
	}

	if next.Status == model.StatusPendingPayment {
		next.Status = model.StatusProcessing
	}

	actor := model.SystemActor(sourceName(o.Payment.Provider, c.Source))
	next.AuditLog = AppendAudit(o.AuditLog, model.ActionPaymentConfirmed, confirmationDetails(o.Payment.Provider, c.AmountKobo), &actor, now)
	touch(next, now)

	return next, true
}

// FailPayment records a definitive gateway failure on a pending payment.
func FailPayment(o *model.Order, source, gatewayStatus string, now time.Time) (*model.Order, bool) {
	if o.Payment.Status != model.PaymentPending {
		return o, false
	}

	next := o.Clone()
	next.Payment.Status = model.PaymentFailed

	actor := model.SystemActor(sourceName(o.Payment.Provider, source))
	details := fmt.Sprintf("%s payment failed - Status: %s", providerName(o.Payment.Provider), gatewayStatus)
	next.AuditLog = AppendAudit(o.AuditLog, model.ActionPaymentFailed, details, &actor, now)
	touch(next, now)

	return next, true
}

// AddTracking sets carrier details on an order.
func AddTracking(o *model.Order, carrier, number string, actor model.Actor, now time.Time) (*model.Order, error) {
	if err := authorize(actor, "add tracking"); err != nil {
		return nil, err
	}
	carrier = strings.TrimSpace(carrier)
	number = strings.TrimSpace(number)
	if !slices.Contains(model.Carriers, carrier) {
		return nil, model.NewValidationError("carrier", fmt.Sprintf("must be one of %s", strings.Join(model.Carriers, ", ")))
	}
	if number == "" {
		return nil, model.NewValidationError("trackingNumber", "is required")
	}
	if o.Status == model.StatusCancelled {
		return nil, &model.InvalidTransitionError{From: o.Status, To: o.Status}
	}

	next := o.Clone()
	next.Tracking = model.Tracking{Carrier: &carrier, TrackingNumber: &number}
	details := fmt.Sprintf("Tracking number %s added for %s", number, carrier)
	next.AuditLog = AppendAudit(o.AuditLog, model.ActionTrackingAdded, details, &actor, now)
	touch(next, now)

	return next, nil
}

func providerName(p model.PaymentProvider) string {
	switch p {
	case model.ProviderOpay:
		return "OPay"
	case model.ProviderCOD:
		return "Cash on delivery"
	default:
		return "Paystack"
	}
}

func sourceName(p model.PaymentProvider, source string) string {
	if source == model.SourceVerification {
		return providerName(p) + " Verification"
	}
	return providerName(p) + " Webhook"
}

func confirmationDetails(p model.PaymentProvider, kobo int64) string {
	if kobo <= 0 {
		return fmt.Sprintf("%s payment confirmed", providerName(p))
	}
	return fmt.Sprintf("%s payment confirmed - Amount: ₦%s", providerName(p), FormatMajor(kobo))
}

// FormatMajor renders minor units as major units, dropping a zero fraction.
func FormatMajor(kobo int64) string {
	if kobo%100 == 0 {
		return fmt.Sprintf("%d", kobo/100)
	}
	return fmt.Sprintf("%d.%02d", kobo/100, kobo%100)
}
