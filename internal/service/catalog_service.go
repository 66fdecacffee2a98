package service

import (
	"context"
	"errors"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
)

var (
	ErrNegativePrice = errors.New("price could not be negative")
	ErrNegativeStock = errors.New("stock could not be negative")
)

type CatalogService struct {
	store repository.Store
}

func NewCatalogService(store repository.Store) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.store.ListProducts(ctx)
}

// CreateProduct adds a product owned by the acting seller. Only sellers
// and admins may create products.
func (s *CatalogService) CreateProduct(ctx context.Context, product *domain.Product, actor domain.Actor) error {
	if actor.Role != domain.RoleSeller && actor.Role != domain.RoleAdmin {
		return domain.ErrPermissionDenied
	}
	if product.Price.IsNegative() {
		return ErrNegativePrice
	}
	if product.Stock < 0 {
		return ErrNegativeStock
	}

	product.SellerID = actor.UserID
	return s.store.CreateProduct(ctx, product)
}

// UpdateProduct rewrites the product's listing fields. Admins may edit
// any product, sellers only their own.
func (s *CatalogService) UpdateProduct(ctx context.Context, product *domain.Product, actor domain.Actor) error {
	existing, err := s.store.GetProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	if err := s.canManage(existing, actor); err != nil {
		return err
	}
	if product.Price.IsNegative() {
		return ErrNegativePrice
	}
	if product.Stock < 0 {
		return ErrNegativeStock
	}

	product.SellerID = existing.SellerID
	return s.store.UpdateProduct(ctx, product)
}

// DeleteProduct removes the listing. Existing order items keep their
// name and price snapshot.
func (s *CatalogService) DeleteProduct(ctx context.Context, productID int64, actor domain.Actor) error {
	existing, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.canManage(existing, actor); err != nil {
		return err
	}
	return s.store.DeleteProduct(ctx, productID)
}

// ListSellerProducts is the seller dashboard: sellers see their own
// listings, admins see everything.
func (s *CatalogService) ListSellerProducts(ctx context.Context, actor domain.Actor) ([]*domain.Product, error) {
	switch actor.Role {
	case domain.RoleAdmin:
		return s.store.ListProducts(ctx)
	case domain.RoleSeller:
		return s.store.ListProductsBySeller(ctx, actor.UserID)
	default:
		return nil, domain.ErrPermissionDenied
	}
}

func (s *CatalogService) canManage(product *domain.Product, actor domain.Actor) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if actor.Role == domain.RoleSeller && product.SellerID == actor.UserID {
		return nil
	}
	return domain.ErrPermissionDenied
}
