package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bwitty-orders/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	uniqueViolation = "23505"

	orderNoConstraint   = "orders_order_no_key"
	referenceConstraint = "orders_payment_reference_key"
)

const orderColumns = `
	id, order_no, user_id, customer_name, customer_email, items, totals,
	shipping_address, shipping_method, tracking, payment, status, audit_log,
	created_at, updated_at`

// orderRepository implements OrderRepository on PostgreSQL with the
// sub-documents stored as JSONB.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

type orderDocuments struct {
	items, totals, address, tracking, payment, auditLog []byte
}

func encodeDocuments(o *model.Order) (*orderDocuments, error) {
	var (
		d   orderDocuments
		err error
	)
	if d.items, err = json.Marshal(o.Items); err != nil {
		return nil, fmt.Errorf("failed to encode items: %w", err)
	}
	if d.totals, err = json.Marshal(o.Totals); err != nil {
		return nil, fmt.Errorf("failed to encode totals: %w", err)
	}
	if d.address, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to encode shipping address: %w", err)
	}
	if d.tracking, err = json.Marshal(o.Tracking); err != nil {
		return nil, fmt.Errorf("failed to encode tracking: %w", err)
	}
	if d.payment, err = json.Marshal(o.Payment); err != nil {
		return nil, fmt.Errorf("failed to encode payment: %w", err)
	}
	if d.auditLog, err = json.Marshal(o.AuditLog); err != nil {
		return nil, fmt.Errorf("failed to encode audit log: %w", err)
	}
	return &d, nil
}

// Create inserts a new order.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid order: %w", err)
	}

	docs, err := encodeDocuments(order)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.pool.Exec(ctx, query,
		order.ID,
		order.OrderNo,
		order.UserID,
		order.CustomerName,
		order.CustomerEmail,
		docs.items,
		docs.totals,
		docs.address,
		order.ShippingMethod,
		docs.tracking,
		docs.payment,
		order.Status,
		docs.auditLog,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case orderNoConstraint:
				return model.ErrDuplicateOrderNumber
			case referenceConstraint:
				return model.ErrDuplicatePaymentReference
			}
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("order_no", order.OrderNo).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_no", order.OrderNo).
		Msg("order created")

	return nil
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.one(r.pool.QueryRow(ctx, query, id), "order_id", id.String())
}

// GetByPaymentReference retrieves the order carrying the gateway reference.
func (r *orderRepository) GetByPaymentReference(ctx context.Context, reference string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment->>'reference' = $1`
	return r.one(r.pool.QueryRow(ctx, query, reference), "reference", reference)
}

// LockByID reads and row-locks an order inside tx.
func (r *orderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.one(tx.QueryRow(ctx, query, id), "order_id", id.String())
}

// LockByPaymentReference reads and row-locks the order carrying reference.
func (r *orderRepository) LockByPaymentReference(ctx context.Context, tx pgx.Tx, reference string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment->>'reference' = $1 FOR UPDATE`
	return r.one(tx.QueryRow(ctx, query, reference), "reference", reference)
}

func (r *orderRepository) one(row pgx.Row, key, value string) (*model.Order, error) {
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str(key, value).Msg("order not found")
			return nil, nil
		}
		if errors.Is(err, model.ErrCorruptOrder) {
			r.logger.Error().Err(err).Str(key, value).Msg("stored order failed validation")
			return nil, err
		}
		r.logger.Error().Err(err).Str(key, value).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return order, nil
}

// Update writes the mutable columns of an order inside tx.
func (r *orderRepository) Update(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid order: %w", err)
	}

	docs, err := encodeDocuments(order)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET tracking = $2, payment = $3, status = $4, audit_log = $5, updated_at = $6
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, order.ID, docs.tracking, docs.payment, order.Status, docs.auditLog, order.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update order %s: no such order", order.ID)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("status", string(order.Status)).
		Msg("order updated")

	return nil
}

// ListByUser returns the user's orders newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return r.collect(rows)
}

// ListAll returns every order newest first.
func (r *orderRepository) ListAll(ctx context.Context, limit, offset int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return r.collect(rows)
}

func (r *orderRepository) collect(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// scanOrder decodes one row and validates it. Rows that do not decode into a
// valid order yield model.ErrCorruptOrder.
func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o    model.Order
		docs orderDocuments
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNo,
		&o.UserID,
		&o.CustomerName,
		&o.CustomerEmail,
		&docs.items,
		&docs.totals,
		&docs.address,
		&o.ShippingMethod,
		&docs.tracking,
		&docs.payment,
		&o.Status,
		&docs.auditLog,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	decode := []struct {
		name string
		raw  []byte
		into any
	}{
		{"items", docs.items, &o.Items},
		{"totals", docs.totals, &o.Totals},
		{"shipping_address", docs.address, &o.ShippingAddress},
		{"tracking", docs.tracking, &o.Tracking},
		{"payment", docs.payment, &o.Payment},
		{"audit_log", docs.auditLog, &o.AuditLog},
	}
	for _, d := range decode {
		if err := json.Unmarshal(d.raw, d.into); err != nil {
			return nil, fmt.Errorf("%w: order %s: %s: %w", model.ErrCorruptOrder, o.ID, d.name, err)
		}
	}

	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("%w: order %s: %w", model.ErrCorruptOrder, o.ID, err)
	}

	return &o, nil
}
