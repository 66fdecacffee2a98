package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	store repository.Store
	cache cache.CartCache
	sfg   singleflight.Group // collapses concurrent misses for one user
}

func NewCartService(store repository.Store, cartCache cache.CartCache) *CartService {
	return &CartService{
		store: store,
		cache: cartCache,
	}
}

// GetCart reads through the cache. While one lookup for a user is in
// flight, later callers for the same user wait on its result instead of
// hitting the store again.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(fmt.Sprint(userID), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}

		// any cache failure, miss or not, falls through to the store
		if !errors.Is(err, cache.ErrCacheMiss) {
			logrus.WithError(err).Warn("cart cache get failed")
		}

		cart, errGet := s.store.GetCartByUserID(ctx, userID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) {
			// no cart row until the first item is added
			return &domain.Cart{
				UserID:    userID,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// write-back off the request path
		go func() {
			errSet := s.cache.Set(context.Background(), userID, cart)
			if errSet != nil {
				logrus.WithError(errSet).Warn("cart cache set failed")
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) AddItem(ctx context.Context, userID int64, item domain.CartItem) error {
	if item.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", item.Quantity)
	}
	if _, err := s.store.GetProduct(ctx, item.ProductID); err != nil {
		return err
	}

	if err := s.store.UpsertCartItem(ctx, userID, item); err != nil {
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID int64, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	err := s.store.UpsertCartItem(ctx, userID, domain.CartItem{ProductID: productID, Quantity: quantity})
	if err != nil {
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID int64, productID int64) error {
	if err := s.store.RemoveCartItem(ctx, userID, productID); err != nil {
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// InvalidateFor drops the cached cart for the user. The order engine
// calls this after checkout deletes the cart inside its transaction.
func (s *CartService) InvalidateFor(userID int64) {
	s.invalidateCache(userID)
}

func (s *CartService) invalidateCache(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		logrus.WithError(err).Warn("cart cache invalidate failed")
	}
}
