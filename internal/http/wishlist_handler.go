package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/service"
	"github.com/go-chi/chi/v5"
)

type WishlistHandler struct {
	wishlist *service.WishlistService
}

func NewWishlistHandler(wishlist *service.WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist}
}

type AddWishlistRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type WishlistItemDTO struct {
	ProductID int64              `json:"product_id"`
	AddedAt   string             `json:"added_at"`
	Product   ProductResponseDTO `json:"product"`
}

func convertWishlistItem(item domain.WishlistItem) WishlistItemDTO {
	return WishlistItemDTO{
		ProductID: item.ProductID,
		AddedAt:   item.AddedAt.Format(time.RFC3339),
		Product:   convertProduct(item.Product),
	}
}

// GET /api/v1/wishlist
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	items, err := h.wishlist.GetWishlist(r.Context(), actor.UserID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	dtos := make([]WishlistItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, convertWishlistItem(item))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// POST /api/v1/wishlist
func (h *WishlistHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddWishlistRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	if err := h.wishlist.AddProduct(r.Context(), actor.UserID, req.ProductID); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"status": "product added to wishlist"})
}

// DELETE /api/v1/wishlist/{product_id}
func (h *WishlistHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	if err := h.wishlist.RemoveProduct(r.Context(), actor.UserID, productID); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "product removed from wishlist"})
}
