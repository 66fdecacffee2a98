package domain

import "time"

// WishlistItem is a product a user saved for later, joined with the
// current product row when read.
type WishlistItem struct {
	ProductID int64
	AddedAt   time.Time
	Product   *Product
}
