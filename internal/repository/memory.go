package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore implements Store with in-memory maps. A single mutex
// guards the whole store; WithinTx stages copies of every touched
// record and applies them on commit, so a failing transaction leaves
// the store untouched.
type MemoryStore struct {
	mu sync.RWMutex

	users       map[int64]*domain.User
	products    map[int64]*domain.Product
	carts       map[int64]*domain.Cart
	cartsByUser map[int64]int64
	wishlists   map[int64]map[int64]time.Time
	orders      map[uuid.UUID]*domain.Order
	events      []*OutboxEvent

	nextUserID    int64
	nextProductID int64
	nextCartID    int64
	nextItemID    int64
	nextEventID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]*domain.User),
		products:    make(map[int64]*domain.Product),
		carts:       make(map[int64]*domain.Cart),
		cartsByUser: make(map[int64]int64),
		wishlists:   make(map[int64]map[int64]time.Time),
		orders:      make(map[uuid.UUID]*domain.Order),
	}
}

func (s *MemoryStore) Close() error { return nil }

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	return &c
}

func cloneCart(cart *domain.Cart) *domain.Cart {
	c := *cart
	c.Items = append([]domain.CartItem(nil), cart.Items...)
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

// WithinTx serializes transactions on the store mutex, runs fn against
// a staged view and applies the staged writes only when fn returns nil.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:    s,
		users:    make(map[int64]*domain.User),
		products: make(map[int64]*domain.Product),
		orders:   make(map[uuid.UUID]*domain.Order),
	}

	if err := fn(tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

type memoryTx struct {
	store *MemoryStore

	// staged copies of touched records, keyed the same as the store
	users    map[int64]*domain.User
	products map[int64]*domain.Product
	orders   map[uuid.UUID]*domain.Order

	deletedCarts []int64
	events       []*OutboxEvent
}

func (t *memoryTx) commit() {
	s := t.store
	for id, u := range t.users {
		s.users[id] = u
	}
	for id, p := range t.products {
		s.products[id] = p
	}
	for id, o := range t.orders {
		s.orders[id] = o
	}
	for _, cartID := range t.deletedCarts {
		if cart, ok := s.carts[cartID]; ok {
			delete(s.cartsByUser, cart.UserID)
			delete(s.carts, cartID)
		}
	}
	for _, event := range t.events {
		s.nextEventID++
		event.ID = s.nextEventID
		event.CreatedAt = time.Now()
		s.events = append(s.events, event)
	}
}

func (t *memoryTx) UserForUpdate(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := t.users[id]; ok {
		return u, nil
	}
	u, ok := t.store.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	staged := cloneUser(u)
	t.users[id] = staged
	return staged, nil
}

func (t *memoryTx) SaveUserBalance(_ context.Context, user *domain.User) error {
	if _, ok := t.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	t.users[user.ID] = user
	return nil
}

func (t *memoryTx) CartForUpdate(_ context.Context, id int64) (*domain.Cart, error) {
	cart, ok := t.store.carts[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (t *memoryTx) CartLinesForUpdate(_ context.Context, cartID int64) ([]domain.CartLine, error) {
	cart, ok := t.store.carts[cartID]
	if !ok {
		return nil, ErrCartNotFound
	}

	items := append([]domain.CartItem(nil), cart.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		product, err := t.productForUpdate(item.ProductID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.CartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product:   product,
		})
	}
	return lines, nil
}

func (t *memoryTx) DeleteCart(_ context.Context, id int64) error {
	if _, ok := t.store.carts[id]; !ok {
		return ErrCartNotFound
	}
	t.deletedCarts = append(t.deletedCarts, id)
	return nil
}

func (t *memoryTx) productForUpdate(id int64) (*domain.Product, error) {
	if p, ok := t.products[id]; ok {
		return p, nil
	}
	p, ok := t.store.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	staged := cloneProduct(p)
	t.products[id] = staged
	return staged, nil
}

func (t *memoryTx) ProductsForUpdate(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	products := make(map[int64]*domain.Product, len(sorted))
	for _, id := range sorted {
		p, err := t.productForUpdate(id)
		if err != nil {
			return nil, err
		}
		products[id] = p
	}
	return products, nil
}

func (t *memoryTx) SaveProductStock(_ context.Context, product *domain.Product) error {
	if _, ok := t.products[product.ID]; !ok {
		return ErrProductNotFound
	}
	product.UpdatedAt = time.Now()
	t.products[product.ID] = product
	return nil
}

func (t *memoryTx) InsertOrder(_ context.Context, order *domain.Order) error {
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	t.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *memoryTx) InsertOrderItems(_ context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	order, ok := t.orders[items[0].OrderID]
	if !ok {
		return ErrOrderNotFound
	}
	for i := range items {
		t.store.nextItemID++
		items[i].ID = t.store.nextItemID
	}
	order.Items = append([]domain.OrderItem(nil), items...)
	return nil
}

func (t *memoryTx) OrderForUpdate(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	if o, ok := t.orders[id]; ok {
		return o, nil
	}
	o, ok := t.store.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	staged := cloneOrder(o)
	t.orders[id] = staged
	return staged, nil
}

func (t *memoryTx) SetOrderStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	order, err := t.OrderForUpdate(context.Background(), id)
	if err != nil {
		return err
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	return nil
}

func (t *memoryTx) InsertOutboxEvent(_ context.Context, event *OutboxEvent) error {
	t.events = append(t.events, event)
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user.ID = s.nextUserID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		products = append(products, cloneProduct(s.products[id]))
	}
	return products, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProductID++
	product.ID = s.nextProductID
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (s *MemoryStore) ListProductsBySeller(_ context.Context, sellerID int64) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0)
	for id, p := range s.products {
		if p.SellerID == sellerID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		products = append(products, cloneProduct(s.products[id]))
	}
	return products, nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return ErrProductNotFound
	}
	product.UpdatedAt = time.Now()
	s.products[product.ID] = cloneProduct(product)
	return nil
}

// DeleteProduct drops the product and every cart and wishlist reference
// to it. Order item snapshots are untouched.
func (s *MemoryStore) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.products, id)

	for _, cart := range s.carts {
		for i, item := range cart.Items {
			if item.ProductID == id {
				cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
				break
			}
		}
	}
	for _, wished := range s.wishlists {
		delete(wished, id)
	}
	return nil
}

func (s *MemoryStore) GetWishlist(_ context.Context, userID int64) ([]domain.WishlistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []domain.WishlistItem
	for productID, addedAt := range s.wishlists[userID] {
		product, ok := s.products[productID]
		if !ok {
			continue
		}
		items = append(items, domain.WishlistItem{
			ProductID: productID,
			AddedAt:   addedAt,
			Product:   cloneProduct(product),
		})
	}
	// newest first, product id breaks ties
	sort.Slice(items, func(i, j int) bool {
		if items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].AddedAt.After(items[j].AddedAt)
	})
	return items, nil
}

func (s *MemoryStore) AddWishlistItem(_ context.Context, userID int64, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return ErrProductNotFound
	}
	wished, ok := s.wishlists[userID]
	if !ok {
		wished = make(map[int64]time.Time)
		s.wishlists[userID] = wished
	}
	if _, ok := wished[productID]; !ok {
		wished[productID] = time.Now()
	}
	return nil
}

func (s *MemoryStore) RemoveWishlistItem(_ context.Context, userID int64, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wished := s.wishlists[userID]
	if _, ok := wished[productID]; !ok {
		return ErrWishlistItemNotFound
	}
	delete(wished, productID)
	return nil
}

func (s *MemoryStore) GetCartByUserID(_ context.Context, userID int64) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cartID, ok := s.cartsByUser[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cloneCart(s.carts[cartID]), nil
}

func (s *MemoryStore) UpsertCartItem(_ context.Context, userID int64, item domain.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cartID, ok := s.cartsByUser[userID]
	if !ok {
		s.nextCartID++
		cartID = s.nextCartID
		s.carts[cartID] = &domain.Cart{ID: cartID, UserID: userID, CreatedAt: now, UpdatedAt: now}
		s.cartsByUser[userID] = cartID
	}

	cart := s.carts[cartID]
	cart.UpdatedAt = now
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i].Quantity = item.Quantity
			return nil
		}
	}
	item.AddedAt = now
	cart.Items = append(cart.Items, item)
	return nil
}

func (s *MemoryStore) RemoveCartItem(_ context.Context, userID int64, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cartID, ok := s.cartsByUser[userID]
	if !ok {
		return ErrCartNotFound
	}
	cart := s.carts[cartID]
	for i, item := range cart.Items {
		if item.ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			cart.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrCartNotFound
}

func (s *MemoryStore) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) ListOrdersByUserID(_ context.Context, userID int64) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, cloneOrder(o))
		}
	}
	sortOrdersNewestFirst(orders)
	return orders, nil
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]*domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, cloneOrder(o))
	}
	sortOrdersNewestFirst(orders)
	return orders, nil
}

func (s *MemoryStore) ListOrdersBySeller(_ context.Context, sellerID int64) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*domain.Order
	for _, o := range s.orders {
		var sellerItems []domain.OrderItem
		for _, item := range o.Items {
			product, ok := s.products[item.ProductID]
			if ok && product.SellerID == sellerID {
				sellerItems = append(sellerItems, item)
			}
		}
		if len(sellerItems) == 0 {
			continue
		}
		order := cloneOrder(o)
		order.Items = sellerItems
		orders = append(orders, order)
	}
	sortOrdersNewestFirst(orders)
	return orders, nil
}

func sortOrdersNewestFirst(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*OutboxEvent
	for _, e := range s.events {
		if e.ProcessedAt == nil {
			events = append(events, e)
			if len(events) == limit {
				break
			}
		}
	}
	return events, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			return nil
		}
	}
	return nil
}
