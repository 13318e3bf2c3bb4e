package events

import (
	"context"
	"time"

	"bwitty-orders/internal/model"
)

// Order event types.
const (
	OrderCreated          = "order.created"
	OrderPaymentConfirmed = "order.payment_confirmed"
	OrderPaymentFailed    = "order.payment_failed"
	OrderStatusChanged    = "order.status_changed"
	OrderTrackingAdded    = "order.tracking_added"
)

// OrderEvent is the change-feed record emitted after an order mutation commits.
type OrderEvent struct {
	Type          string              `json:"type"`
	OrderID       string              `json:"orderId"`
	OrderNo       string              `json:"orderNo"`
	UserID        string              `json:"userId"`
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	Reference     string              `json:"reference,omitempty"`
	GrandTotal    int64               `json:"grandTotal"`
	Currency      string              `json:"currency"`
	OccurredAt    time.Time           `json:"occurredAt"`
}

// NewOrderEvent snapshots the order for an event of type eventType.
func NewOrderEvent(eventType string, o *model.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       o.ID.String(),
		OrderNo:       o.OrderNo,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.Payment.Status,
		Reference:     o.Payment.ReferenceValue(),
		GrandTotal:    o.Totals.GrandTotal,
		Currency:      o.Totals.Currency,
		OccurredAt:    at.UTC(),
	}
}

// Publisher emits order events.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error { return nil }
