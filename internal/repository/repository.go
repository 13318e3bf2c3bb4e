package repository

import (
	"context"

	"bwitty-orders/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines read access to the catalogue.
type ProductRepository interface {
	// GetAll retrieves products ordered by name with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product. It returns nil, nil when not found.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves the products that exist among ids.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// OrderRepository is the order record store. Lookups return nil, nil when
// no row matches. There is no delete operation.
type OrderRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Create inserts a new order. A clash on the order number yields
	// model.ErrDuplicateOrderNumber, a clash on the payment reference
	// model.ErrDuplicatePaymentReference.
	Create(ctx context.Context, order *model.Order) error

	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByPaymentReference(ctx context.Context, reference string) (*model.Order, error)

	// LockByID and LockByPaymentReference read the row with FOR UPDATE
	// inside tx so concurrent mutations of one order serialize.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)
	LockByPaymentReference(ctx context.Context, tx pgx.Tx, reference string) (*model.Order, error)

	// Update writes the mutable columns: tracking, payment, status,
	// audit_log and updated_at.
	Update(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// ListByUser returns the user's orders newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)

	// ListAll returns every order newest first.
	ListAll(ctx context.Context, limit, offset int) ([]model.Order, error)
}
