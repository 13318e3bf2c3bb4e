package router

import (
	"net/http"

	"bwitty-orders/internal/handler"
	"bwitty-orders/internal/metrics"
	"bwitty-orders/internal/middleware"

	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Products *handler.ProductHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Payments *handler.PaymentHandler
	Webhook  *handler.WebhookHandler
}

// Options configures the middleware chain.
type Options struct {
	Tokens        middleware.TokenParser
	Metrics       *metrics.Metrics
	AllowedOrigin string
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	mux := http.NewServeMux()

	authed := func(fn http.HandlerFunc) http.Handler { return middleware.RequireAuth(fn) }
	adminOnly := func(fn http.HandlerFunc) http.Handler { return middleware.RequireAdmin(fn) }

	// Health check endpoint (no authentication required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
	mux.Handle("GET /metrics", opts.Metrics.Handler())

	// Public
	mux.HandleFunc("GET /api/config/payment", h.Payments.Config)
	mux.HandleFunc("GET /api/products", h.Products.GetAll)
	mux.HandleFunc("GET /api/products/{id}", h.Products.GetByID)

	// Signed by the gateway instead of a bearer token
	mux.HandleFunc("POST /api/paystack/webhook", h.Webhook.Handle)

	// Customer
	mux.Handle("POST /api/checkout/quote", authed(h.Checkout.Quote))
	mux.Handle("POST /api/checkout", authed(h.Checkout.PlaceOrder))
	mux.Handle("POST /api/checkout/initialize", authed(h.Checkout.InitializePayment))
	mux.Handle("POST /api/payments/reconcile", authed(h.Payments.Reconcile))
	mux.Handle("POST /api/verify-payment", authed(h.Payments.Verify))
	mux.Handle("GET /api/orders", authed(h.Orders.List))
	mux.Handle("GET /api/orders/{id}", authed(h.Orders.GetByID))

	// Admin
	mux.Handle("GET /api/admin/orders", adminOnly(h.Orders.ListAll))
	mux.Handle("PATCH /api/admin/orders/{id}/status", adminOnly(h.Orders.UpdateStatus))
	mux.Handle("PUT /api/admin/orders/{id}/tracking", adminOnly(h.Orders.AddTracking))

	// Apply middleware in order: Recovery -> Logging -> CORS -> Authenticate -> Metrics
	var handler http.Handler = mux
	handler = middleware.Metrics(opts.Metrics)(handler)
	handler = middleware.Authenticate(opts.Tokens, logger)(handler)
	handler = middleware.CORS(opts.AllowedOrigin)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
