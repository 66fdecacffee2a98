package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
)

// Common errors returned by the store
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrCartNotFound         = errors.New("cart not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrWishlistItemNotFound = errors.New("wishlist item not found")
)

// OutboxEvent is a domain event staged in the same transaction as the
// state change it describes, published asynchronously by the poller.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Tx is the set of operations available inside a scoped transaction.
// The *ForUpdate reads take exclusive row locks; callers must acquire
// them in a fixed order (user, then cart or order, then products in
// ascending id order) so concurrent checkouts cannot deadlock.
type Tx interface {
	UserForUpdate(ctx context.Context, id int64) (*domain.User, error)
	SaveUserBalance(ctx context.Context, user *domain.User) error

	CartForUpdate(ctx context.Context, id int64) (*domain.Cart, error)
	CartLinesForUpdate(ctx context.Context, cartID int64) ([]domain.CartLine, error)
	DeleteCart(ctx context.Context, id int64) error

	ProductsForUpdate(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	SaveProductStock(ctx context.Context, product *domain.Product) error

	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderItems(ctx context.Context, items []domain.OrderItem) error
	OrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	SetOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error

	InsertOutboxEvent(ctx context.Context, event *OutboxEvent) error
}

// Store is the persistence boundary consumed by the service layer.
type Store interface {
	// WithinTx runs fn inside a transaction: commit when fn returns nil,
	// full rollback when it returns an error or panics.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error

	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	ListProductsBySeller(ctx context.Context, sellerID int64) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	GetCartByUserID(ctx context.Context, userID int64) (*domain.Cart, error)
	UpsertCartItem(ctx context.Context, userID int64, item domain.CartItem) error
	RemoveCartItem(ctx context.Context, userID int64, productID int64) error

	GetWishlist(ctx context.Context, userID int64) ([]domain.WishlistItem, error)
	AddWishlistItem(ctx context.Context, userID int64, productID int64) error
	RemoveWishlistItem(ctx context.Context, userID int64, productID int64) error

	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	// ListOrdersBySeller returns orders containing the seller's products,
	// with Items narrowed to that seller's lines.
	ListOrdersBySeller(ctx context.Context, sellerID int64) ([]*domain.Order, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error

	Close() error
}
