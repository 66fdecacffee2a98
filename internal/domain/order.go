package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo validates the order status state machine:
// PENDING -> DELIVERED, PENDING -> CANCELED. Terminal states have
// no outgoing transitions.
func CanTransitionTo(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case OrderStatusDelivered, OrderStatusCanceled:
		return from == OrderStatusPending
	default:
		return false
	}
}

type OrderItem struct {
	ID          int64
	OrderID     uuid.UUID
	ProductID   int64
	ProductName string
	Price       decimal.Decimal
	Quantity    int
	TotalPrice  decimal.Decimal
}

// Order records a completed checkout. TotalPrice and Items are fixed at
// creation time; only Status changes afterwards.
type Order struct {
	ID         uuid.UUID
	UserID     int64
	TotalPrice decimal.Decimal
	Status     OrderStatus
	Items      []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
