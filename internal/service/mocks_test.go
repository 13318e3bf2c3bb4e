package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bwitty-orders/internal/events"
	"bwitty-orders/internal/metrics"
	"bwitty-orders/internal/model"
	"bwitty-orders/internal/paystack"
	"bwitty-orders/internal/shipping"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	// Return a MockTx interface value, not a pointer
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	return orderArg(args, 0), args.Error(1)
}

func (m *MockOrderRepository) GetByPaymentReference(ctx context.Context, reference string) (*model.Order, error) {
	args := m.Called(ctx, reference)
	return orderArg(args, 0), args.Error(1)
}

func (m *MockOrderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, tx, id)
	return orderArg(args, 0), args.Error(1)
}

func (m *MockOrderRepository) LockByPaymentReference(ctx context.Context, tx pgx.Tx, reference string) (*model.Order, error) {
	args := m.Called(ctx, tx, reference)
	return orderArg(args, 0), args.Error(1)
}

func (m *MockOrderRepository) Update(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListAll(ctx context.Context, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

// orderArg returns a copy so the code under test never mutates a fixture.
// A func() *model.Order argument is resolved at call time.
func orderArg(args mock.Arguments, i int) *model.Order {
	switch v := args.Get(i).(type) {
	case *model.Order:
		return v.Clone()
	case func() *model.Order:
		return v().Clone()
	default:
		return nil
	}
}

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

// MockGateway is a mock implementation of PaymentGateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Verify(ctx context.Context, reference string) (*paystack.Verification, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.Verification), args.Error(1)
}

func (m *MockGateway) Initialize(ctx context.Context, in paystack.InitializeRequest) (*paystack.Initialization, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.Initialization), args.Error(1)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }

// recordingPublisher keeps every event it is asked to publish.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	orders    *MockOrderRepository
	products  *MockProductRepository
	gateway   *MockGateway
	tx        *MockTx
	publisher *recordingPublisher
	deps      Dependencies
}

func newFixture() *fixture {
	f := &fixture{
		orders:    new(MockOrderRepository),
		products:  new(MockProductRepository),
		gateway:   new(MockGateway),
		tx:        new(MockTx),
		publisher: &recordingPublisher{},
	}
	f.deps = Dependencies{
		Orders:    f.orders,
		Products:  f.products,
		Gateway:   f.gateway,
		Rates:     shipping.DefaultTable(),
		Publisher: f.publisher,
		Metrics:   metrics.New(),
		Clock:     func() time.Time { return fixedNow },
		Logger:    zerolog.Nop(),
	}
	return f
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.orders.AssertExpectations(t)
	f.products.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.tx.AssertExpectations(t)
}

// stallingGateway is a real Paystack client pointed at a server that never
// answers in time. Each attempt alone fits the client timeout; retries would not.
func stallingGateway(t *testing.T) *paystack.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	t.Cleanup(srv.Close)

	return paystack.NewClient(paystack.Config{
		SecretKey:   "sk_test",
		BaseURL:     srv.URL,
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
	}, zerolog.Nop())
}

func strPtr(s string) *string { return &s }

var (
	customer = model.Actor{ID: "user-1", Name: "Adunni Okafor", Email: "adunni@email.com", Role: model.RoleUser}
	admin    = model.Actor{ID: "admin-1", Name: "Store Admin", Role: model.RoleAdmin}
)

func catalog() []model.Product {
	return []model.Product{
		{ID: "wig-bob", Name: "Bone Straight Bob", Price: 45000, Image: "/img/bob.jpg", WeightGrams: 350, Stock: 4},
		{ID: "oil-01", Name: "Argan Hair Oil", Price: 3999, WeightGrams: 120, Stock: 30},
	}
}

func checkoutRequest(method model.PaymentProvider, reference string) *model.CheckoutRequest {
	return &model.CheckoutRequest{
		Items: []model.CheckoutItemRequest{{ProductID: "wig-bob", Quantity: 1}},
		Shipping: model.ShippingForm{
			Email:     "adunni@email.com",
			FirstName: "Adunni",
			LastName:  "Okafor",
			Phone:     "08012345678",
			Address:   "12 Allen Avenue",
			City:      "Ikeja",
			State:     "Lagos",
			Country:   "Nigeria",
		},
		ShippingMethod: "standard",
		PaymentMethod:  method,
		Reference:      reference,
	}
}

// storedOrder builds a persisted order for lock and lookup fixtures.
func storedOrder(payment model.PaymentInfo, status model.OrderStatus) *model.Order {
	created := fixedNow.Add(-time.Hour)
	userID := customer.ID
	return &model.Order{
		ID:            uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f"),
		OrderNo:       "BW-20250115-ABC123",
		UserID:        customer.ID,
		CustomerName:  "Adunni Okafor",
		CustomerEmail: "adunni@email.com",
		Items:         []model.OrderItem{{ProductID: "wig-bob", Name: "Bone Straight Bob", Price: 45000, Quantity: 1}},
		Totals:        model.Totals{Subtotal: 45000, Shipping: 2500, GrandTotal: 47500, Currency: "NGN"},
		Payment:       payment,
		Status:        status,
		AuditLog: []model.AuditEntry{
			{ID: "1", Action: model.ActionOrderCreated, Details: "Order placed successfully", Timestamp: created, UserID: &userID},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func pendingPaystack(reference string) *model.Order {
	return storedOrder(model.PaymentInfo{Status: model.PaymentPending, Provider: model.ProviderPaystack, Reference: strPtr(reference)}, model.StatusPendingPayment)
}
