package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bwitty-orders/internal/events"
	"bwitty-orders/internal/lifecycle"
	"bwitty-orders/internal/metrics"
	"bwitty-orders/internal/model"
	"bwitty-orders/internal/paystack"
	"bwitty-orders/internal/repository"
	"bwitty-orders/internal/shipping"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CheckoutSettings are the gateway-facing checkout options.
type CheckoutSettings struct {
	Currency    string
	CallbackURL string
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	orders      repository.OrderRepository
	catalog     ProductService
	gateway     PaymentGateway
	rates       RateQuoter
	writer      *orderWriter
	metrics     *metrics.Metrics
	validate    *validator.Validate
	currency    string
	callbackURL string
	deadline    time.Duration
	logger      zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(deps Dependencies, settings CheckoutSettings) CheckoutService {
	logger := deps.Logger.With().Str("service", "checkout").Logger()
	currency := settings.Currency
	if currency == "" {
		currency = "NGN"
	}
	return &checkoutService{
		orders:      deps.Orders,
		catalog:     NewProductService(deps.Products, deps.Logger),
		gateway:     deps.Gateway,
		rates:       deps.Rates,
		writer:      newOrderWriter(deps, logger),
		metrics:     deps.metrics(),
		validate:    newValidator(),
		currency:    currency,
		callbackURL: settings.CallbackURL,
		deadline:    deps.verifyDeadline(),
		logger:      logger,
	}
}

// cart is a priced checkout request.
type cart struct {
	items       []model.OrderItem
	weightGrams int64
	totals      model.Totals
}

// snapshot prices every line from the catalog. Client-sent prices are never trusted.
func (s *checkoutService) snapshot(ctx context.Context, lines []model.CheckoutItemRequest) ([]model.OrderItem, int64, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	byID, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]model.OrderItem, 0, len(lines))
	var weight int64
	for i, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok {
			s.logger.Warn().Str("product_id", line.ProductID).Msg("checkout references unknown product")
			return nil, 0, model.NewValidationError(fmt.Sprintf("items[%d].productId", i), fmt.Sprintf("unknown product %q", line.ProductID))
		}
		items = append(items, model.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  line.Quantity,
			Image:     p.Image,
		})
		weight += p.WeightGrams * int64(line.Quantity)
	}
	return items, weight, nil
}

func (s *checkoutService) price(ctx context.Context, req *model.CheckoutRequest) (*cart, error) {
	if req == nil {
		return nil, model.NewValidationError("", "checkout request is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	items, weight, err := s.snapshot(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	shippingPrice, err := s.rates.Quote(req.Shipping.Country, req.Shipping.State, shipping.Tier(req.ShippingMethod), weight)
	if err != nil {
		return nil, err
	}

	return &cart{
		items:       items,
		weightGrams: weight,
		totals:      lifecycle.ComputeTotals(items, shippingPrice, 0, s.currency),
	}, nil
}

// Quote prices a cart and lists every shipping option for the destination.
func (s *checkoutService) Quote(ctx context.Context, req *model.QuoteRequest) (*model.Quote, error) {
	if req == nil {
		return nil, model.NewValidationError("", "quote request is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	items, weight, err := s.snapshot(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	tier := shipping.Standard
	if req.ShippingMethod != "" {
		tier = shipping.Tier(req.ShippingMethod)
	}
	shippingPrice, err := s.rates.Quote(req.Country, req.State, tier, weight)
	if err != nil {
		return nil, err
	}

	return &model.Quote{
		Items:   items,
		Options: s.rates.Options(req.Country, req.State, weight),
		Totals:  lifecycle.ComputeTotals(items, shippingPrice, 0, s.currency),
	}, nil
}

func (s *checkoutService) newOrder(actor model.Actor, req *model.CheckoutRequest, c *cart, payment model.PaymentInfo, status model.OrderStatus) *model.Order {
	now := s.writer.now().UTC()
	form := req.Shipping
	name := lifecycle.CustomerName(strings.TrimSpace(form.FirstName), strings.TrimSpace(form.LastName), form.Email)

	return &model.Order{
		ID:            uuid.New(),
		UserID:        actor.ID,
		CustomerName:  name,
		CustomerEmail: form.Email,
		Items:         c.items,
		Totals:        c.totals,
		ShippingAddress: model.Address{
			Name:       name,
			Phone:      form.Phone,
			Address:    form.Address,
			City:       form.City,
			State:      form.State,
			Country:    form.Country,
			PostalCode: form.PostalCode,
		},
		ShippingMethod: req.ShippingMethod,
		Payment:        payment,
		Status:         status,
		AuditLog:       lifecycle.AppendAudit(nil, model.ActionOrderCreated, "Order placed successfully", &actor, now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// PlaceOrder creates an order for the requested payment method.
func (s *checkoutService) PlaceOrder(ctx context.Context, actor model.Actor, req *model.CheckoutRequest) (*model.Order, error) {
	if actor.ID == "" {
		return nil, model.ErrUnauthenticated
	}
	c, err := s.price(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.PaymentMethod {
	case model.ProviderCOD:
		order := s.newOrder(actor, req, c, model.PaymentInfo{Status: model.PaymentCOD, Provider: model.ProviderCOD}, model.StatusProcessing)
		if err := s.writer.create(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		return order, nil

	case model.ProviderOpay:
		order := s.newOrder(actor, req, c, model.PaymentInfo{Status: model.PaymentPending, Provider: model.ProviderOpay}, model.StatusPendingPayment)
		if err := s.writer.create(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		return order, nil

	default:
		return s.placePaystack(ctx, actor, req, c)
	}
}

// placePaystack records an inline Paystack payment after the gateway confirms it.
func (s *checkoutService) placePaystack(ctx context.Context, actor model.Actor, req *model.CheckoutRequest, c *cart) (*model.Order, error) {
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, model.NewValidationError("reference", "is required for paystack payments")
	}
	log := s.logger.With().Str("reference", reference).Logger()

	existing, err := s.existing(ctx, actor, reference)
	if err != nil || existing != nil {
		return existing, err
	}

	v, err := verifyWithin(ctx, s.gateway, s.deadline, reference)
	if err != nil {
		s.metrics.Verification("unreachable")
		s.metrics.Alert("verification_unreachable")
		log.Error().Err(err).Bool("alert", true).Msg("could not verify payment, customer may have been charged without an order")
		return nil, &model.VerificationUnreachableError{Reference: reference, Err: err}
	}
	if !v.Success {
		s.metrics.Verification("failed")
		log.Warn().Str("status", v.RawStatus).Msg("payment not verified")
		return nil, &model.VerificationFailedError{Reference: reference, Status: v.RawStatus}
	}
	if v.PaidAmount < c.totals.MinorUnits() {
		s.metrics.Verification("amount_mismatch")
		s.metrics.Alert("amount_mismatch")
		log.Error().
			Bool("alert", true).
			Int64("paid_kobo", v.PaidAmount).
			Int64("expected_kobo", c.totals.MinorUnits()).
			Msg("verified amount is below the order total")
		return nil, &model.VerificationFailedError{Reference: reference, Status: "amount_mismatch"}
	}
	s.metrics.Verification("success")

	ref := reference
	order := s.newOrder(actor, req, c, model.PaymentInfo{
		Status:    model.PaymentPaid,
		Provider:  model.ProviderPaystack,
		Reference: &ref,
	}, model.StatusPendingPayment)

	if err := s.writer.create(ctx, order); err != nil {
		if existing, lookupErr := s.existing(ctx, actor, reference); lookupErr == nil && existing != nil {
			return existing, nil
		}
		s.metrics.Alert("order_not_recorded")
		log.Error().Err(err).Bool("alert", true).Msg("payment captured but order could not be recorded")
		return nil, &model.OrderPersistenceError{Reference: reference, Err: err}
	}

	result, err := s.writer.confirm(ctx, s.writer.byID(order.ID), order.ID.String(), model.PaymentConfirmation{
		Reference:  reference,
		AmountKobo: v.PaidAmount,
		Channel:    v.Channel,
		Source:     model.SourceVerification,
	})
	if err != nil {
		// The stored order is paid and pending_payment, so the webhook still confirms it.
		log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("order recorded, confirmation left to the webhook")
		return order, nil
	}
	return result.Order, nil
}

// existing returns the caller's order already carrying reference, which makes
// a resubmitted checkout idempotent.
func (s *checkoutService) existing(ctx context.Context, actor model.Actor, reference string) (*model.Order, error) {
	order, err := s.orders.GetByPaymentReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment reference: %w", err)
	}
	if order == nil {
		return nil, nil
	}
	if order.UserID != actor.ID {
		s.logger.Warn().Str("reference", reference).Msg("payment reference belongs to another customer")
		return nil, model.NewValidationError("reference", "has already been used")
	}
	s.logger.Info().
		Str("reference", reference).
		Str("order_id", order.ID.String()).
		Msg("order already recorded for reference")
	return order, nil
}

// InitializePayment creates the pending order first so the webhook always
// finds it, then asks Paystack for a hosted checkout.
func (s *checkoutService) InitializePayment(ctx context.Context, actor model.Actor, req *model.CheckoutRequest) (*model.PaymentInitialization, error) {
	if actor.ID == "" {
		return nil, model.ErrUnauthenticated
	}
	c, err := s.price(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.PaymentMethod != model.ProviderPaystack {
		return nil, model.NewValidationError("paymentMethod", "must be paystack for a redirect checkout")
	}

	reference := paystack.NewReference(s.writer.now())
	ref := reference
	order := s.newOrder(actor, req, c, model.PaymentInfo{
		Status:    model.PaymentPending,
		Provider:  model.ProviderPaystack,
		Reference: &ref,
	}, model.StatusPendingPayment)

	if err := s.writer.create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	init, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       order.CustomerEmail,
		AmountKobo:  c.totals.MinorUnits(),
		Currency:    c.totals.Currency,
		Reference:   reference,
		CallbackURL: s.callbackURL,
		Metadata: map[string]string{
			"customer_name": order.CustomerName,
			"phone":         order.ShippingAddress.Phone,
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("reference", reference).Msg("paystack initialize failed, cancelling order")
		s.cancel(ctx, order)
		return nil, &model.GatewayUnavailableError{Err: err}
	}

	return &model.PaymentInitialization{
		OrderID:          order.ID,
		OrderNo:          order.OrderNo,
		Reference:        reference,
		AuthorizationURL: init.AuthorizationURL,
		AccessCode:       init.AccessCode,
		AmountKobo:       c.totals.MinorUnits(),
	}, nil
}

// cancel moves an order that can no longer be paid to cancelled.
func (s *checkoutService) cancel(ctx context.Context, order *model.Order) {
	system := model.SystemActor("Paystack Initialize")
	cancelled, _, err := s.writer.mutate(ctx, s.writer.byID(order.ID), order.ID.String(), func(o *model.Order) (*model.Order, bool, error) {
		next, err := lifecycle.Transition(o, model.StatusCancelled, system, s.writer.now())
		return next, err == nil, err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to cancel order after initialize failure")
		return
	}
	s.writer.publish(ctx, events.OrderStatusChanged, cancelled)
}
