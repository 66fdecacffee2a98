package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/go_shop/internal/service"
	"github.com/shopspring/decimal"
)

type UsersHandler struct {
	users *service.UserService
}

func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

type DepositRequestDTO struct {
	Amount string `json:"amount"`
}

type DepositResponseDTO struct {
	Message    string `json:"message"`
	NewBalance string `json:"new_balance"`
}

// POST /api/v1/users/deposit
func (h *UsersHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req DepositRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Amount == "" {
		respondError(w, http.StatusBadRequest, "missing_amount", "amount is required")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "amount must be a decimal number")
		return
	}

	user, err := h.users.Deposit(r.Context(), actor.UserID, amount)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, DepositResponseDTO{
		Message:    "Deposit successful",
		NewBalance: user.Balance.StringFixed(2),
	})
}

type UserResponseDTO struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Balance string `json:"balance"`
}

// GET /api/v1/users/me
func (h *UsersHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	user, err := h.users.GetUser(r.Context(), actor.UserID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, UserResponseDTO{
		ID:      user.ID,
		Email:   user.Email,
		Role:    string(user.Role),
		Balance: user.Balance.StringFixed(2),
	})
}
