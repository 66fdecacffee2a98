package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty cart", domain.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
		{"non-positive deposit", domain.ErrNonPositiveDeposit, http.StatusBadRequest, "invalid_amount"},
		{
			"insufficient stock",
			&domain.InsufficientStockError{ProductID: 1, ProductName: "Keyboard", Requested: 2, Available: 1},
			http.StatusBadRequest, "insufficient_stock",
		},
		{
			"insufficient balance",
			&domain.InsufficientBalanceError{Required: decimal.New(60, 0), Available: decimal.New(50, 0)},
			http.StatusBadRequest, "insufficient_balance",
		},
		{
			"invalid transition",
			&domain.InvalidTransitionError{From: domain.OrderStatusCanceled, To: domain.OrderStatusCanceled, Reason: "already canceled"},
			http.StatusBadRequest, "invalid_transition",
		},
		{"permission denied", domain.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
		{"user not found", repository.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{"cart not found", repository.ErrCartNotFound, http.StatusNotFound, "not_found"},
		{"order not found", repository.ErrOrderNotFound, http.StatusNotFound, "not_found"},
		{"wrapped not found", errors.Join(errors.New("query failed"), repository.ErrProductNotFound), http.StatusNotFound, "not_found"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handleDomainError(recorder, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleDomainError_HidesInternalDetails(t *testing.T) {
	recorder := httptest.NewRecorder()
	handleDomainError(recorder, errors.New("pq: connection refused on 10.0.0.5"))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "internal server error", resp.Error)
	assert.NotContains(t, resp.Error, "10.0.0.5")
}
