package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfillment status of an order.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusProcessing     OrderStatus = "processing"
	StatusShipped        OrderStatus = "shipped"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// Valid reports whether s is a known fulfillment status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further fulfillment transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Display renders the status for audit details, e.g. "PENDING PAYMENT".
func (s OrderStatus) Display() string {
	return strings.ToUpper(strings.ReplaceAll(string(s), "_", " "))
}

// PaymentStatus is the payment sub-state of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentCOD     PaymentStatus = "cod"
)

// PaymentProvider identifies how the order is paid for.
type PaymentProvider string

const (
	ProviderPaystack PaymentProvider = "paystack"
	ProviderOpay     PaymentProvider = "opay"
	ProviderCOD      PaymentProvider = "cod"
)

// Valid reports whether p is a supported provider.
func (p PaymentProvider) Valid() bool {
	return p == ProviderPaystack || p == ProviderOpay || p == ProviderCOD
}

// Carriers accepted for tracking information.
var Carriers = []string{"UPS", "USPS", "FedEx", "DHL", "Other"}

// Order represents a placed order together with its lifecycle state.
type Order struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	OrderNo         string       `json:"orderNo" db:"order_no"`
	UserID          string       `json:"userId" db:"user_id"`
	CustomerName    string       `json:"customerName" db:"customer_name"`
	CustomerEmail   string       `json:"customerEmail" db:"customer_email"`
	Items           []OrderItem  `json:"items" db:"items"`
	Totals          Totals       `json:"totals" db:"totals"`
	ShippingAddress Address      `json:"shippingAddress" db:"shipping_address"`
	ShippingMethod  string       `json:"shippingMethod" db:"shipping_method"`
	Tracking        Tracking     `json:"tracking" db:"tracking"`
	Payment         PaymentInfo  `json:"payment" db:"payment"`
	Status          OrderStatus  `json:"status" db:"status"`
	AuditLog        []AuditEntry `json:"auditLog" db:"audit_log"`
	CreatedAt       time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time    `json:"updatedAt" db:"updated_at"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.AuditLog = append([]AuditEntry(nil), o.AuditLog...)
	c.Tracking = o.Tracking.clone()
	c.Payment = o.Payment.clone()
	return &c
}

// OrderItem is a point-in-time snapshot of a purchased product.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// Totals are expressed in major currency units.
type Totals struct {
	Subtotal   int64  `json:"subtotal"`
	Shipping   int64  `json:"shipping"`
	Fees       int64  `json:"fees"`
	GrandTotal int64  `json:"grandTotal"`
	Currency   string `json:"currency"`
}

// MinorUnits returns the grand total in minor units (kobo).
func (t Totals) MinorUnits() int64 {
	return t.GrandTotal * 100
}

// Validate checks the totals identity.
func (t Totals) Validate() error {
	if t.Subtotal < 0 || t.Shipping < 0 || t.Fees < 0 {
		return fmt.Errorf("totals must not be negative")
	}
	if t.GrandTotal != t.Subtotal+t.Shipping+t.Fees {
		return fmt.Errorf("grand total %d does not equal %d+%d+%d", t.GrandTotal, t.Subtotal, t.Shipping, t.Fees)
	}
	if t.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	return nil
}

// Address is the shipping destination snapshot.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

// Tracking holds carrier information set by an admin after creation.
type Tracking struct {
	Carrier        *string `json:"carrier,omitempty"`
	TrackingNumber *string `json:"trackingNumber,omitempty"`
}

func (t Tracking) clone() Tracking {
	var c Tracking
	if t.Carrier != nil {
		v := *t.Carrier
		c.Carrier = &v
	}
	if t.TrackingNumber != nil {
		v := *t.TrackingNumber
		c.TrackingNumber = &v
	}
	return c
}

// PaymentInfo is the payment sub-document of an order.
type PaymentInfo struct {
	Status     PaymentStatus   `json:"status"`
	Provider   PaymentProvider `json:"provider"`
	Reference  *string         `json:"reference,omitempty"`
	PaidAmount *int64          `json:"paidAmount,omitempty"`
	PaidAt     *time.Time      `json:"paidAt,omitempty"`
	Channel    *string         `json:"channel,omitempty"`
}

func (p PaymentInfo) clone() PaymentInfo {
	c := p
	if p.Reference != nil {
		v := *p.Reference
		c.Reference = &v
	}
	if p.PaidAmount != nil {
		v := *p.PaidAmount
		c.PaidAmount = &v
	}
	if p.PaidAt != nil {
		v := *p.PaidAt
		c.PaidAt = &v
	}
	if p.Channel != nil {
		v := *p.Channel
		c.Channel = &v
	}
	return c
}

// ReferenceValue returns the payment reference or an empty string.
func (p PaymentInfo) ReferenceValue() string {
	if p.Reference == nil {
		return ""
	}
	return *p.Reference
}

// Validate checks status/provider combinations.
func (p PaymentInfo) Validate() error {
	if !p.Provider.Valid() {
		return fmt.Errorf("unknown payment provider %q", p.Provider)
	}
	switch p.Status {
	case PaymentCOD:
		if p.Provider != ProviderCOD {
			return fmt.Errorf("payment status cod requires provider cod, got %q", p.Provider)
		}
	case PaymentPending, PaymentPaid, PaymentFailed:
		if p.Provider == ProviderCOD {
			return fmt.Errorf("provider cod requires payment status cod, got %q", p.Status)
		}
	default:
		return fmt.Errorf("unknown payment status %q", p.Status)
	}
	return nil
}

// AuditEntry is one append-only record of a state change.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
	UserID    *string   `json:"userId,omitempty"`
	UserName  *string   `json:"userName,omitempty"`
}

// Audit actions.
const (
	ActionOrderCreated     = "Order Created"
	ActionPaymentConfirmed = "Payment Confirmed"
	ActionPaymentFailed    = "Payment Failed"
	ActionStatusUpdated    = "Status Updated"
	ActionTrackingAdded    = "Tracking Added"
)

// Validate checks the invariants every persisted order must satisfy.
func (o *Order) Validate() error {
	if o.ID == uuid.Nil {
		return fmt.Errorf("order id is required")
	}
	if o.OrderNo == "" {
		return fmt.Errorf("order number is required")
	}
	if o.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("unknown order status %q", o.Status)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("order has no items")
	}
	for i, item := range o.Items {
		if item.ProductID == "" || item.Quantity <= 0 || item.Price < 0 {
			return fmt.Errorf("item %d is malformed", i)
		}
	}
	if err := o.Totals.Validate(); err != nil {
		return err
	}
	if err := o.Payment.Validate(); err != nil {
		return err
	}
	if len(o.AuditLog) == 0 {
		return fmt.Errorf("audit log must not be empty")
	}
	return nil
}
