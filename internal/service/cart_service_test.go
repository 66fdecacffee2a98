package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CacheMock implements cache.CartCache. Set runs on a background
// goroutine in GetCart, so all state is mutex-guarded.
type CacheMock struct {
	mu          sync.Mutex
	cached      *domain.Cart
	getErr      error
	setCalls    int
	deleteCalls int
}

func (m *CacheMock) Get(_ context.Context, _ int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.cached, nil
}

func (m *CacheMock) Set(_ context.Context, _ int64, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = cart
	m.setCalls++
	return nil
}

func (m *CacheMock) Delete(_ context.Context, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
	m.deleteCalls++
	return nil
}

func (m *CacheMock) SetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls
}

func (m *CacheMock) DeleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCalls
}

func TestGetCart_CacheHit(t *testing.T) {
	store := repository.NewMemoryStore()
	cached := &domain.Cart{ID: 1, UserID: 42, Items: []domain.CartItem{{ProductID: 7, Quantity: 2}}}
	mock := &CacheMock{cached: cached}

	svc := NewCartService(store, mock)
	cart, err := svc.GetCart(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, cached, cart)
	assert.Equal(t, 0, mock.SetCount(), "cache hit must not rewrite the cache")
}

func TestGetCart_CacheMissFallsBackToStore(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	user := seedUser(t, store, "10.00")
	product := seedProduct(t, store, "Keyboard", "30.00", 5)
	require.NoError(t, store.UpsertCartItem(ctx, user.ID, domain.CartItem{ProductID: product.ID, Quantity: 2}))

	mock := &CacheMock{getErr: cache.ErrCacheMiss}
	svc := NewCartService(store, mock)

	cart, err := svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, product.ID, cart.Items[0].ProductID)

	// the store result is written back asynchronously
	assert.Eventually(t, func() bool { return mock.SetCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestGetCart_NoCartReturnsEmpty(t *testing.T) {
	store := repository.NewMemoryStore()
	mock := &CacheMock{getErr: cache.ErrCacheMiss}
	svc := NewCartService(store, mock)

	cart, err := svc.GetCart(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cart.UserID)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, mock.SetCount(), "empty placeholder must not be cached")
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewCartService(store, &CacheMock{})

	err := svc.AddItem(context.Background(), 1, domain.CartItem{ProductID: 1, Quantity: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity must be positive")
}

func TestAddItem_UnknownProduct(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewCartService(store, &CacheMock{})

	err := svc.AddItem(context.Background(), 1, domain.CartItem{ProductID: 9999, Quantity: 1})
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestAddItem_InvalidatesCache(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	user := seedUser(t, store, "10.00")
	product := seedProduct(t, store, "Keyboard", "30.00", 5)

	mock := &CacheMock{cached: &domain.Cart{UserID: user.ID}}
	svc := NewCartService(store, mock)

	err := svc.AddItem(ctx, user.ID, domain.CartItem{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, mock.DeleteCount())

	cart, err := store.GetCartByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestUpdateQuantity_InvalidQuantity(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewCartService(store, &CacheMock{})

	err := svc.UpdateQuantity(context.Background(), 1, 1, -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity must be positive")
}

func TestRemoveItem_InvalidatesCache(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	user := seedUser(t, store, "10.00")
	product := seedProduct(t, store, "Keyboard", "30.00", 5)
	require.NoError(t, store.UpsertCartItem(ctx, user.ID, domain.CartItem{ProductID: product.ID, Quantity: 1}))

	mock := &CacheMock{}
	svc := NewCartService(store, mock)

	require.NoError(t, svc.RemoveItem(ctx, user.ID, product.ID))
	assert.Equal(t, 1, mock.DeleteCount())

	cart, err := store.GetCartByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestRemoveItem_NotInCart(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewCartService(store, &CacheMock{})

	err := svc.RemoveItem(context.Background(), 1, 9999)
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}
