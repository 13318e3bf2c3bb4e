package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bwitty-orders/internal/events"
	"bwitty-orders/internal/lifecycle"
	"bwitty-orders/internal/metrics"
	"bwitty-orders/internal/model"
	"bwitty-orders/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const maxOrderNumberAttempts = 5

// lockFunc reads one order under a row lock inside tx.
type lockFunc func(ctx context.Context, tx pgx.Tx) (*model.Order, error)

// mutation derives the next order state. It reports false when nothing changed.
type mutation func(o *model.Order) (*model.Order, bool, error)

// orderWriter owns every write to the order store. All mutations of an
// existing order run under SELECT ... FOR UPDATE so concurrent admin and
// gateway updates serialize per row.
type orderWriter struct {
	orders    repository.OrderRepository
	numbers   *lifecycle.NumberGenerator
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

func newOrderWriter(deps Dependencies, logger zerolog.Logger) *orderWriter {
	return &orderWriter{
		orders:    deps.Orders,
		numbers:   lifecycle.NewNumberGenerator(deps.now),
		publisher: deps.publisher(),
		metrics:   deps.metrics(),
		now:       deps.now,
		logger:    logger,
	}
}

func (w *orderWriter) byID(id uuid.UUID) lockFunc {
	return func(ctx context.Context, tx pgx.Tx) (*model.Order, error) {
		return w.orders.LockByID(ctx, tx, id)
	}
}

func (w *orderWriter) byReference(reference string) lockFunc {
	return func(ctx context.Context, tx pgx.Tx) (*model.Order, error) {
		return w.orders.LockByPaymentReference(ctx, tx, reference)
	}
}

// create stores a new order, drawing a fresh order number whenever the
// generated one is already taken.
func (w *orderWriter) create(ctx context.Context, order *model.Order) error {
	for attempt := 1; ; attempt++ {
		number, err := w.numbers.Generate()
		if err != nil {
			return fmt.Errorf("failed to generate order number: %w", err)
		}
		order.OrderNo = number

		err = w.orders.Create(ctx, order)
		if err == nil {
			break
		}
		if !errors.Is(err, model.ErrDuplicateOrderNumber) || attempt == maxOrderNumberAttempts {
			return err
		}
		w.logger.Warn().
			Str("order_no", number).
			Int("attempt", attempt).
			Msg("order number already taken, regenerating")
	}

	w.metrics.OrderCreated(string(order.Payment.Provider))
	w.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_no", order.OrderNo).
		Str("status", string(order.Status)).
		Str("payment_status", string(order.Payment.Status)).
		Msg("order created")
	w.publish(ctx, events.OrderCreated, order)
	return nil
}

// mutate loads the order with lock, applies fn and persists the result in the
// same transaction. Unchanged orders are returned as read and nothing is written.
func (w *orderWriter) mutate(ctx context.Context, lock lockFunc, key string, fn mutation) (result *model.Order, changed bool, err error) {
	tx, err := w.orders.BeginTx(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil || !changed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				w.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	current, err := lock(ctx, tx)
	if err != nil {
		return nil, false, err
	}
	if current == nil {
		return nil, false, &model.NotFoundError{Resource: "order", Key: key}
	}

	next, applied, err := fn(current)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return current, false, nil
	}

	if err = w.orders.Update(ctx, tx, next); err != nil {
		return nil, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		w.logger.Error().Err(err).Str("order_id", next.ID.String()).Msg("failed to commit transaction")
		return nil, false, fmt.Errorf("failed to commit order update: %w", err)
	}

	return next, true, nil
}

// confirm applies the shared payment confirmation to the locked order.
func (w *orderWriter) confirm(ctx context.Context, lock lockFunc, key string, c model.PaymentConfirmation) (*model.ConfirmationResult, error) {
	order, applied, err := w.mutate(ctx, lock, key, func(o *model.Order) (*model.Order, bool, error) {
		next, ok := lifecycle.ConfirmPayment(o, c, w.now())
		return next, ok, nil
	})
	if err != nil {
		return nil, err
	}

	w.metrics.PaymentConfirmation(c.Source, applied)
	log := w.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_no", order.OrderNo).
		Str("reference", c.Reference).
		Str("source", c.Source)
	if !applied {
		log.Msg("payment already confirmed")
		return &model.ConfirmationResult{Order: order}, nil
	}
	log.Str("status", string(order.Status)).Msg("payment confirmed")
	w.publish(ctx, events.OrderPaymentConfirmed, order)

	return &model.ConfirmationResult{Order: order, Applied: true}, nil
}

func (w *orderWriter) fail(ctx context.Context, lock lockFunc, key, source, gatewayStatus string) (*model.ConfirmationResult, error) {
	order, applied, err := w.mutate(ctx, lock, key, func(o *model.Order) (*model.Order, bool, error) {
		next, ok := lifecycle.FailPayment(o, source, gatewayStatus, w.now())
		return next, ok, nil
	})
	if err != nil {
		return nil, err
	}
	if applied {
		w.logger.Info().
			Str("order_id", order.ID.String()).
			Str("order_no", order.OrderNo).
			Str("gateway_status", gatewayStatus).
			Msg("payment marked failed")
		w.publish(ctx, events.OrderPaymentFailed, order)
	}
	return &model.ConfirmationResult{Order: order, Applied: applied}, nil
}

// publish emits an order event after the write committed. Delivery failures
// are logged and never fail the operation.
func (w *orderWriter) publish(ctx context.Context, eventType string, order *model.Order) {
	if err := w.publisher.Publish(ctx, events.NewOrderEvent(eventType, order, w.now())); err != nil {
		w.logger.Warn().
			Err(err).
			Str("event", eventType).
			Str("order_id", order.ID.String()).
			Msg("failed to publish order event")
	}
}
