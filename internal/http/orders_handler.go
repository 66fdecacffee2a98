package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrdersHandler struct {
	orders *service.OrderService
	carts  *service.CartService
}

func NewOrdersHandler(orders *service.OrderService, carts *service.CartService) *OrdersHandler {
	return &OrdersHandler{
		orders: orders,
		carts:  carts,
	}
}

type CreateOrderRequestDTO struct {
	CartID int64 `json:"cart_id"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type OrderItemDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	TotalPrice  string `json:"total_price"`
}

type OrderResponseDTO struct {
	ID         string         `json:"id"`
	UserID     int64          `json:"user_id"`
	TotalPrice string         `json:"total_price"`
	Status     string         `json:"status"`
	Items      []OrderItemDTO `json:"items"`
	CreatedAt  string         `json:"created_at"`
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price.StringFixed(2),
			TotalPrice:  item.TotalPrice.StringFixed(2),
		})
	}

	return OrderResponseDTO{
		ID:         o.ID.String(),
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice.StringFixed(2),
		Status:     o.Status.String(),
		Items:      items,
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
	}
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.CartID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_cart_id", "cart_id must be positive")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), actor.UserID, req.CartID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	// the cart row is gone; drop the cached copy too
	h.carts.InvalidateFor(actor.UserID)

	respondJSON(w, http.StatusCreated, convertOrder(order))
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid UUID")
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), orderID, actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// PATCH /api/v1/orders/{order_id}/status (staff only, no ledger reversal)
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid UUID")
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), orderID, domain.OrderStatus(req.Status), actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid UUID")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID, actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/seller/orders (seller dashboard, seller's lines only)
func (h *OrdersHandler) ListSellerOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListSellerOrders(r.Context(), actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders (purchase history; staff see all orders)
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}
