package service

import (
	"context"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
)

// WishlistService manages per-user saved products. Wishlists carry no
// ledger state; adding and removing never touches stock or balance.
type WishlistService struct {
	store repository.Store
}

func NewWishlistService(store repository.Store) *WishlistService {
	return &WishlistService{store: store}
}

func (s *WishlistService) GetWishlist(ctx context.Context, userID int64) ([]domain.WishlistItem, error) {
	return s.store.GetWishlist(ctx, userID)
}

// AddProduct saves the product to the user's wishlist. Re-adding an
// already wished product succeeds without effect.
func (s *WishlistService) AddProduct(ctx context.Context, userID int64, productID int64) error {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return err
	}
	return s.store.AddWishlistItem(ctx, userID, productID)
}

func (s *WishlistService) RemoveProduct(ctx context.Context, userID int64, productID int64) error {
	return s.store.RemoveWishlistItem(ctx, userID, productID)
}
