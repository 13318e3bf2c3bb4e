package service

import (
	"context"
	"fmt"

	"bwitty-orders/internal/events"
	"bwitty-orders/internal/lifecycle"
	"bwitty-orders/internal/model"
	"bwitty-orders/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// orderService implements OrderService.
type orderService struct {
	orders repository.OrderRepository
	writer *orderWriter
	logger zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(deps Dependencies) OrderService {
	logger := deps.Logger.With().Str("service", "order").Logger()
	return &orderService{
		orders: deps.Orders,
		writer: newOrderWriter(deps, logger),
		logger: logger,
	}
}

// ListForUser returns the caller's own orders, newest first.
func (s *orderService) ListForUser(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	if actor.ID == "" {
		return nil, model.ErrUnauthenticated
	}

	orders, err := s.orders.ListByUser(ctx, actor.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", actor.ID).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListAll returns every order, newest first. Admin only.
func (s *orderService) ListAll(ctx context.Context, actor model.Actor, limit, offset int) ([]model.Order, error) {
	if !actor.IsAdmin() {
		return nil, &model.AuthorizationError{Action: "list all orders"}
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.orders.ListAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Int("limit", limit).Int("offset", offset).Msg("failed to list all orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	s.logger.Debug().
		Int("count", len(orders)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved orders")

	return orders, nil
}

// GetByID retrieves one order. Another customer's order is reported as not
// found so its existence does not leak.
func (s *orderService) GetByID(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil || (!actor.IsAdmin() && order.UserID != actor.ID) {
		return nil, &model.NotFoundError{Resource: "order", Key: id.String()}
	}
	return order, nil
}

// UpdateStatus applies an admin fulfillment transition.
func (s *orderService) UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, &model.AuthorizationError{Action: "change order status"}
	}

	order, _, err := s.writer.mutate(ctx, s.writer.byID(id), id.String(), func(o *model.Order) (*model.Order, bool, error) {
		next, err := lifecycle.Transition(o, status, actor, s.writer.now())
		return next, err == nil, err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_no", order.OrderNo).
		Str("status", string(order.Status)).
		Str("admin_id", actor.ID).
		Msg("order status updated")
	s.writer.publish(ctx, events.OrderStatusChanged, order)

	return order, nil
}

// AddTracking attaches carrier details to an order.
func (s *orderService) AddTracking(ctx context.Context, actor model.Actor, id uuid.UUID, carrier, number string) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, &model.AuthorizationError{Action: "add tracking"}
	}

	order, _, err := s.writer.mutate(ctx, s.writer.byID(id), id.String(), func(o *model.Order) (*model.Order, bool, error) {
		next, err := lifecycle.AddTracking(o, carrier, number, actor, s.writer.now())
		return next, err == nil, err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_no", order.OrderNo).
		Str("carrier", carrier).
		Msg("tracking added")
	s.writer.publish(ctx, events.OrderTrackingAdded, order)

	return order, nil
}
