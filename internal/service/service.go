package service

import (
	"context"
	"time"

	"bwitty-orders/internal/events"
	"bwitty-orders/internal/metrics"
	"bwitty-orders/internal/model"
	"bwitty-orders/internal/paystack"
	"bwitty-orders/internal/repository"
	"bwitty-orders/internal/shipping"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProductService defines read operations on the catalog.
type ProductService interface {
	// GetAll retrieves products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs loads several products at once, keyed by ID.
	GetByIDs(ctx context.Context, ids []string) (map[string]model.Product, error)
}

// CheckoutService turns a cart into an order.
type CheckoutService interface {
	// Quote prices a cart and lists every shipping option for the destination.
	Quote(ctx context.Context, req *model.QuoteRequest) (*model.Quote, error)

	// PlaceOrder creates an order for cod, opay or an already completed
	// Paystack inline payment.
	PlaceOrder(ctx context.Context, actor model.Actor, req *model.CheckoutRequest) (*model.Order, error)

	// InitializePayment creates a pending order and a Paystack hosted checkout for it.
	InitializePayment(ctx context.Context, actor model.Actor, req *model.CheckoutRequest) (*model.PaymentInitialization, error)
}

// PaymentService reconciles gateway state with stored orders.
type PaymentService interface {
	// Verify asks the gateway about a reference without touching any order.
	Verify(ctx context.Context, reference string) (*paystack.Verification, error)

	// Reconcile verifies a reference and applies the outcome to its order.
	Reconcile(ctx context.Context, actor model.Actor, reference string) (*model.Order, error)

	// ConfirmPayment applies a confirmed charge to the order carrying the reference.
	ConfirmPayment(ctx context.Context, c model.PaymentConfirmation) (*model.ConfirmationResult, error)

	// FailPayment records a failed charge on the order carrying the reference.
	FailPayment(ctx context.Context, reference, source, gatewayStatus string) (*model.ConfirmationResult, error)
}

// OrderService serves order history and admin mutations.
type OrderService interface {
	ListForUser(ctx context.Context, actor model.Actor) ([]model.Order, error)
	ListAll(ctx context.Context, actor model.Actor, limit, offset int) ([]model.Order, error)
	GetByID(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error)
	UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.OrderStatus) (*model.Order, error)
	AddTracking(ctx context.Context, actor model.Actor, id uuid.UUID, carrier, number string) (*model.Order, error)
}

// PaymentGateway is the part of the Paystack client the services use.
type PaymentGateway interface {
	Verify(ctx context.Context, reference string) (*paystack.Verification, error)
	Initialize(ctx context.Context, in paystack.InitializeRequest) (*paystack.Initialization, error)
}

// RateQuoter prices shipping. *shipping.RateTable implements it.
type RateQuoter interface {
	Quote(country, state string, tier shipping.Tier, weightGrams int64) (int64, error)
	Options(country, state string, weightGrams int64) []model.ShippingOption
}

// defaultVerifyDeadline keeps verification well inside the server write timeout.
const defaultVerifyDeadline = 20 * time.Second

// Dependencies bundles the collaborators shared by the order services.
type Dependencies struct {
	Orders    repository.OrderRepository
	Products  repository.ProductRepository
	Gateway   PaymentGateway
	Rates     RateQuoter
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Clock     func() time.Time
	Logger    zerolog.Logger

	// VerifyDeadline caps one gateway verification including its retries.
	VerifyDeadline time.Duration
}

func (d Dependencies) verifyDeadline() time.Duration {
	if d.VerifyDeadline <= 0 {
		return defaultVerifyDeadline
	}
	return d.VerifyDeadline
}

// verifyWithin asks the gateway about reference, giving up after deadline.
func verifyWithin(ctx context.Context, gateway PaymentGateway, deadline time.Duration, reference string) (*paystack.Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	return gateway.Verify(ctx, reference)
}

func (d Dependencies) now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock().UTC()
}

func (d Dependencies) publisher() events.Publisher {
	if d.Publisher == nil {
		return events.NopPublisher{}
	}
	return d.Publisher
}

func (d Dependencies) metrics() *metrics.Metrics {
	if d.Metrics == nil {
		return metrics.New()
	}
	return d.Metrics
}
