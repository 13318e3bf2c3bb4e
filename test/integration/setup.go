package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"bwitty-orders/internal/database"
	"bwitty-orders/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB holds the test database container and connection pool
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// SetupTestDB creates a PostgreSQL container with the application schema applied.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bwitty_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(connStr, migrationsDir(), zerolog.Nop()))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	testDB := &TestDB{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}

	t.Cleanup(func() {
		pool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return testDB
}

// Catalogue used by every scenario. wig-bob ships for 2500 within Nigeria,
// so a single unit totals 47500 naira.
var testProducts = []model.Product{
	{ID: "wig-bob", Name: "Bone Straight Bob", Price: 45000, Category: "wigs", Image: "/images/bob.jpg", WeightGrams: 400, Stock: 12},
	{ID: "wig-curly", Name: "Deep Wave Curly", Price: 78000, Category: "wigs", Image: "/images/curly.jpg", WeightGrams: 650, Stock: 4},
	{ID: "edge-control", Name: "Edge Control Gel", Price: 6500, Category: "care", Image: "/images/edge.jpg", WeightGrams: 150, Stock: 40},
}

// SeedProducts inserts the test catalogue.
func SeedProducts(t *testing.T, pool *pgxpool.Pool) []model.Product {
	t.Helper()

	query := `
		INSERT INTO products (id, name, price, category, image, weight_grams, stock, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	created := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	for i, p := range testProducts {
		p.CreatedAt = created.Add(time.Duration(i) * time.Hour)
		_, err := pool.Exec(context.Background(), query, p.ID, p.Name, p.Price, p.Category, p.Image, p.WeightGrams, p.Stock, p.CreatedAt)
		require.NoError(t, err)
	}

	return testProducts
}

// CleanupDB removes all orders between subtests.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), "TRUNCATE TABLE orders")
	require.NoError(t, err)
}

type fakeTransaction struct {
	status string
	amount int64
}

// FakePaystack serves the two transaction endpoints the service calls.
type FakePaystack struct {
	Server *httptest.Server

	mu           sync.Mutex
	transactions map[string]fakeTransaction
	stalled      map[string]bool
	initialized  []string
	failInit     bool
}

// NewFakePaystack starts the fake gateway. It is closed when the test ends.
func NewFakePaystack(t *testing.T) *FakePaystack {
	t.Helper()

	f := &FakePaystack{
		transactions: make(map[string]fakeTransaction),
		stalled:      make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /transaction/verify/{reference}", f.verify)
	mux.HandleFunc("POST /transaction/initialize", f.initialize)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)

	return f
}

// SetTransaction records what verify should report for reference.
func (f *FakePaystack) SetTransaction(reference, status string, amountKobo int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions[reference] = fakeTransaction{status: status, amount: amountKobo}
}

// Stall makes verify hang for reference until the caller gives up.
func (f *FakePaystack) Stall(reference string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stalled[reference] = true
}

// FailInitialize makes every initialize call return a gateway error.
func (f *FakePaystack) FailInitialize() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failInit = true
}

// Initialized returns the references seen by initialize.
func (f *FakePaystack) Initialized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.initialized...)
}

func (f *FakePaystack) verify(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")

	f.mu.Lock()
	txn, ok := f.transactions[reference]
	stalled := f.stalled[reference]
	f.mu.Unlock()

	if stalled {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
		w.WriteHeader(http.StatusGatewayTimeout)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "Transaction reference not found"})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  true,
		"message": "Verification successful",
		"data": map[string]any{
			"status":    txn.status,
			"reference": reference,
			"amount":    txn.amount,
			"currency":  "NGN",
			"channel":   "card",
			"paid_at":   "2025-01-15T10:00:00Z",
		},
	})
}

func (f *FakePaystack) initialize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	fail := f.failInit
	if !fail {
		f.initialized = append(f.initialized, payload.Reference)
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "Service unavailable"})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  true,
		"message": "Authorization URL created",
		"data": map[string]any{
			"authorization_url": "https://checkout.paystack.com/" + payload.Reference,
			"access_code":       "ac_" + payload.Reference,
			"reference":         payload.Reference,
		},
	})
}
