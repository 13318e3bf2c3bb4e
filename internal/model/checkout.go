package model

import "github.com/google/uuid"

// CheckoutItemRequest is a single cart line.
type CheckoutItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// ShippingForm is the customer-provided contact and destination details.
type ShippingForm struct {
	Email      string `json:"email" validate:"required,email"`
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country" validate:"required"`
}

// CheckoutRequest is the payload for quoting, placing and initialising orders.
type CheckoutRequest struct {
	Items          []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Shipping       ShippingForm          `json:"shipping"`
	ShippingMethod string                `json:"shippingMethod" validate:"required,oneof=standard express overnight"`
	PaymentMethod  PaymentProvider       `json:"paymentMethod" validate:"required,oneof=paystack opay cod"`
	Reference      string                `json:"reference,omitempty"`
}

// QuoteRequest prices a cart for a destination before any order exists.
type QuoteRequest struct {
	Items          []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Country        string                `json:"country" validate:"required"`
	State          string                `json:"state"`
	ShippingMethod string                `json:"shippingMethod" validate:"omitempty,oneof=standard express overnight"`
}

// ShippingOption is one delivery tier offered for a destination.
type ShippingOption struct {
	Tier  string `json:"tier"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Quote previews the priced cart before payment.
type Quote struct {
	Items   []OrderItem      `json:"items"`
	Options []ShippingOption `json:"options"`
	Totals  Totals           `json:"totals"`
}

// PaymentInitialization is returned when a redirect checkout is started.
type PaymentInitialization struct {
	OrderID          uuid.UUID `json:"orderId"`
	OrderNo          string    `json:"orderNo"`
	Reference        string    `json:"reference"`
	AuthorizationURL string    `json:"authorizationUrl"`
	AccessCode       string    `json:"accessCode"`
	AmountKobo       int64     `json:"amountKobo"`
}

// PaymentConfirmation describes a verified gateway charge.
type PaymentConfirmation struct {
	Reference  string
	AmountKobo int64
	Channel    string
	Source     string
}

// Confirmation sources.
const (
	SourceWebhook      = "webhook"
	SourceVerification = "verification"
)

// ConfirmationResult reports the order after a confirmation attempt.
type ConfirmationResult struct {
	Order   *Order
	Applied bool
}
