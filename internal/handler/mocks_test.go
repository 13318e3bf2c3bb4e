package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"bwitty-orders/internal/auth"
	"bwitty-orders/internal/model"
	"bwitty-orders/internal/paystack"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) GetByIDs(ctx context.Context, ids []string) (map[string]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]model.Product), args.Error(1)
}

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Quote(ctx context.Context, req *model.QuoteRequest) (*model.Quote, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Quote), args.Error(1)
}

func (m *MockCheckoutService) PlaceOrder(ctx context.Context, actor model.Actor, req *model.CheckoutRequest) (*model.Order, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockCheckoutService) InitializePayment(ctx context.Context, actor model.Actor, req *model.CheckoutRequest) (*model.PaymentInitialization, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentInitialization), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Verify(ctx context.Context, reference string) (*paystack.Verification, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.Verification), args.Error(1)
}

func (m *MockPaymentService) Reconcile(ctx context.Context, actor model.Actor, reference string) (*model.Order, error) {
	args := m.Called(ctx, actor, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockPaymentService) ConfirmPayment(ctx context.Context, c model.PaymentConfirmation) (*model.ConfirmationResult, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConfirmationResult), args.Error(1)
}

func (m *MockPaymentService) FailPayment(ctx context.Context, reference, source, gatewayStatus string) (*model.ConfirmationResult, error) {
	args := m.Called(ctx, reference, source, gatewayStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConfirmationResult), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) ListForUser(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) ListAll(ctx context.Context, actor model.Actor, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	args := m.Called(ctx, actor, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) AddTracking(ctx context.Context, actor model.Actor, id uuid.UUID, carrier, number string) (*model.Order, error) {
	args := m.Called(ctx, actor, id, carrier, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

var (
	customer = model.Actor{ID: "user-1", Name: "Adunni Okafor", Email: "adunni@email.com", Role: model.RoleUser}
	admin    = model.Actor{ID: "admin-1", Name: "Store Admin", Role: model.RoleAdmin}
	orderID  = uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f")
)

func sampleOrder(status model.OrderStatus) *model.Order {
	return &model.Order{
		ID:      orderID,
		OrderNo: "BW-20250115-ABC123",
		UserID:  customer.ID,
		Totals:  model.Totals{Subtotal: 45000, Shipping: 2500, GrandTotal: 47500, Currency: "NGN"},
		Payment: model.PaymentInfo{Status: model.PaymentCOD, Provider: model.ProviderCOD},
		Status:  status,
	}
}

// newRequest builds a request carrying actor as the authenticated caller.
func newRequest(method, target, body string, actor *model.Actor) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, target, reader)
	if actor != nil {
		req = req.WithContext(auth.WithActor(req.Context(), *actor))
	}
	return req
}

func decodeError(t *testing.T, body io.Reader) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}
