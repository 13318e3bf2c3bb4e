package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bwitty-orders/internal/model"
	"bwitty-orders/internal/paystack"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPaymentHandler_Verify(t *testing.T) {
	tests := []struct {
		name           string
		mockReturn     *paystack.Verification
		mockError      error
		expectedStatus int
		expected       VerifyResponse
	}{
		{
			name:           "successful charge",
			mockReturn:     &paystack.Verification{Success: true, RawStatus: "success", PaidAmount: 4750000},
			expectedStatus: http.StatusOK,
			expected:       VerifyResponse{Success: true, Status: "success", Amount: 4750000},
		},
		{
			name:           "abandoned charge",
			mockReturn:     &paystack.Verification{Success: false, RawStatus: "abandoned"},
			expectedStatus: http.StatusOK,
			expected:       VerifyResponse{Success: false, Status: "abandoned"},
		},
		{
			name:           "gateway unreachable",
			mockError:      &model.VerificationUnreachableError{Reference: "bwitty_1", Err: errors.New("timeout")},
			expectedStatus: http.StatusBadGateway,
			expected:       VerifyResponse{Success: false, Error: "payment verification failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			handler := NewPaymentHandler(mockService, "pk_test_123", "NGN", zerolog.Nop())
			mockService.On("Verify", mock.Anything, "bwitty_1").Return(tt.mockReturn, tt.mockError)

			w := httptest.NewRecorder()
			handler.Verify(w, newRequest(http.MethodPost, "/api/verify-payment", `{"reference":"bwitty_1"}`, &customer))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var got VerifyResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Equal(t, tt.expected, got)
			mockService.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_Verify_MissingReference(t *testing.T) {
	mockService := new(MockPaymentService)
	handler := NewPaymentHandler(mockService, "pk_test_123", "NGN", zerolog.Nop())
	mockService.On("Verify", mock.Anything, "").Return(nil, model.NewValidationError("reference", "is required"))

	w := httptest.NewRecorder()
	handler.Verify(w, newRequest(http.MethodPost, "/api/verify-payment", `{}`, &customer))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, model.ErrCodeValidation, decodeError(t, w.Body).Error)
}

func TestPaymentHandler_Reconcile(t *testing.T) {
	tests := []struct {
		name           string
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
	}{
		{name: "confirmed", mockReturn: sampleOrder(model.StatusProcessing), expectedStatus: http.StatusOK},
		{name: "not paid", mockError: &model.VerificationFailedError{Reference: "bwitty_1", Status: "failed"}, expectedStatus: http.StatusPaymentRequired},
		{name: "unknown reference", mockError: &model.NotFoundError{Resource: "payment", Key: "bwitty_1"}, expectedStatus: http.StatusNotFound},
		{name: "gateway unreachable", mockError: &model.VerificationUnreachableError{Reference: "bwitty_1"}, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			handler := NewPaymentHandler(mockService, "pk_test_123", "NGN", zerolog.Nop())
			mockService.On("Reconcile", mock.Anything, customer, "bwitty_1").Return(tt.mockReturn, tt.mockError)

			w := httptest.NewRecorder()
			handler.Reconcile(w, newRequest(http.MethodPost, "/api/payments/reconcile", `{"reference":"bwitty_1"}`, &customer))

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_Config(t *testing.T) {
	handler := NewPaymentHandler(new(MockPaymentService), "pk_test_123", "NGN", zerolog.Nop())

	w := httptest.NewRecorder()
	handler.Config(w, httptest.NewRequest(http.MethodGet, "/api/config/payment", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publicKey":"pk_test_123","currency":"NGN"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "sk_")
}
