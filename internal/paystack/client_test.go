package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "sk_test_secret"

func newTestClient(t *testing.T, handler http.HandlerFunc, attempts int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		SecretKey:       testSecret,
		BaseURL:         server.URL,
		Timeout:         2 * time.Second,
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
	}, zerolog.Nop())
}

func TestClient_Verify(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantSuccess bool
		wantRaw     string
		wantAmount  int64
	}{
		{
			name:        "Successful transaction",
			status:      http.StatusOK,
			body:        `{"status":true,"message":"Verification successful","data":{"status":"success","reference":"bwitty_1700000000000","amount":4750000,"currency":"NGN","channel":"card","paid_at":"2025-01-15T10:05:00Z"}}`,
			wantSuccess: true,
			wantRaw:     "success",
			wantAmount:  4750000,
		},
		{
			name:    "Abandoned transaction",
			status:  http.StatusOK,
			body:    `{"status":true,"message":"Verification successful","data":{"status":"abandoned","reference":"bwitty_1","amount":4750000}}`,
			wantRaw: "abandoned",
		},
		{
			name:    "Envelope false with success data",
			status:  http.StatusOK,
			body:    `{"status":false,"message":"odd","data":{"status":"success","amount":100}}`,
			wantRaw: "success",
		},
		{
			name:    "Unknown reference",
			status:  http.StatusBadRequest,
			body:    `{"status":false,"message":"Transaction reference not found"}`,
			wantRaw: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/transaction/verify/bwitty_1700000000000", r.URL.Path)
				assert.Equal(t, "Bearer "+testSecret, r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, 3)

			v, err := client.Verify(context.Background(), "bwitty_1700000000000")

			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, v.Success)
			assert.Equal(t, tt.wantRaw, v.RawStatus)
			assert.Equal(t, tt.wantAmount, v.PaidAmount)
		})
	}
}

func TestClient_Verify_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":true,"data":{"status":"success","amount":100,"channel":"bank"}}`))
	}, 3)

	v, err := client.Verify(context.Background(), "bwitty_1")

	require.NoError(t, err)
	assert.True(t, v.Success)
	assert.Equal(t, "bank", v.Channel)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Verify_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 2)

	v, err := client.Verify(context.Background(), "bwitty_1")

	assert.Nil(t, v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreachable))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Verify_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}, 3)

	v, err := client.Verify(context.Background(), "bwitty_1")

	require.NoError(t, err)
	assert.False(t, v.Success)
	assert.Equal(t, "Invalid key", v.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Verify_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := NewClient(Config{SecretKey: testSecret, BaseURL: server.URL, MaxAttempts: 2, InitialInterval: time.Millisecond}, zerolog.Nop())

	_, err := client.Verify(context.Background(), "bwitty_1")

	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_Verify_EmptyReference(t *testing.T) {
	client := NewClient(Config{SecretKey: testSecret}, zerolog.Nop())

	_, err := client.Verify(context.Background(), "")

	assert.Error(t, err)
}

func TestClient_Initialize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer "+testSecret, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "adunni@email.com", body["email"])
		assert.Equal(t, float64(4750000), body["amount"])
		assert.Equal(t, "NGN", body["currency"])
		assert.Equal(t, "bwitty_1700000000000", body["reference"])

		fields := body["metadata"].(map[string]any)["custom_fields"].([]any)
		require.Len(t, fields, 2)
		assert.Equal(t, "Customer Name", fields[0].(map[string]any)["display_name"])
		assert.Equal(t, "phone", fields[1].(map[string]any)["variable_name"])

		w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"bwitty_1700000000000"}}`))
	}, 1)

	init, err := client.Initialize(context.Background(), InitializeRequest{
		Email:      "adunni@email.com",
		AmountKobo: 4750000,
		Currency:   "NGN",
		Reference:  "bwitty_1700000000000",
		Metadata:   map[string]string{"phone": "08012345678", "customer_name": "Adunni Okafor"},
	})

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", init.AuthorizationURL)
	assert.Equal(t, "abc", init.AccessCode)
}

func TestClient_Initialize_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":false,"message":"Duplicate Transaction Reference"}`))
	}, 1)

	_, err := client.Initialize(context.Background(), InitializeRequest{Email: "a@b.c", AmountKobo: 100, Reference: "r"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate Transaction Reference")
}
