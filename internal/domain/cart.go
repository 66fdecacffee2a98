package domain

import "time"

type Cart struct {
	ID        int64
	UserID    int64
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ProductID int64
	Quantity  int
	AddedAt   time.Time
}

// CartLine is a cart item joined with its product row, as read
// under lock during checkout.
type CartLine struct {
	ProductID int64
	Quantity  int
	Product   *Product
}
