package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError maps the expected, recoverable-by-caller error
// taxonomy to client-facing responses; everything else is an internal
// error.
func handleDomainError(w http.ResponseWriter, err error) {
	var stockErr *domain.InsufficientStockError
	var balanceErr *domain.InsufficientBalanceError
	var transitionErr *domain.InvalidTransitionError

	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, domain.ErrNonPositiveDeposit):
		respondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.As(err, &stockErr):
		respondError(w, http.StatusBadRequest, "insufficient_stock", err.Error())
	case errors.As(err, &balanceErr):
		respondError(w, http.StatusBadRequest, "insufficient_balance", err.Error())
	case errors.As(err, &transitionErr):
		respondError(w, http.StatusBadRequest, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrWishlistItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		logrus.WithError(err).Error("internal error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
