package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "../../migrations",
	}

	store, err := NewPostgresStore(creds)
	require.NoError(t, err)

	err = store.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		store.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return store, cleanup
}

func seedCheckoutData(t *testing.T, store *PostgresStore) (*domain.User, *domain.Product, int64) {
	t.Helper()
	ctx := context.Background()

	user := &domain.User{
		Email:   "buyer@example.com",
		Role:    domain.RoleCustomer,
		Balance: decimal.RequireFromString("100.00"),
	}
	require.NoError(t, store.CreateUser(ctx, user))

	product := &domain.Product{
		SellerID: user.ID,
		Name:     "Keyboard",
		Price:    decimal.RequireFromString("30.00"),
		Stock:    5,
	}
	require.NoError(t, store.CreateProduct(ctx, product))

	require.NoError(t, store.UpsertCartItem(ctx, user.ID, domain.CartItem{ProductID: product.ID, Quantity: 2}))
	cart, err := store.GetCartByUserID(ctx, user.ID)
	require.NoError(t, err)

	return user, product, cart.ID
}

func TestPostgres_UserRoundTrip(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := &domain.User{
		Email:   "roundtrip@example.com",
		Role:    domain.RoleSeller,
		Balance: decimal.RequireFromString("12.34"),
	}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)

	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, domain.RoleSeller, got.Role)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("12.34")))

	_, err = store.GetUser(ctx, user.ID+1000)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPostgres_WithinTx_CommitsCheckoutWrites(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	user, product, cartID := seedCheckoutData(t, store)

	orderID := uuid.New()
	err := store.WithinTx(ctx, func(tx Tx) error {
		u, err := tx.UserForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		if err := u.Debit(decimal.RequireFromString("60.00")); err != nil {
			return err
		}
		if err := tx.SaveUserBalance(ctx, u); err != nil {
			return err
		}

		lines, err := tx.CartLinesForUpdate(ctx, cartID)
		if err != nil {
			return err
		}
		if len(lines) != 1 {
			t.Errorf("expected 1 cart line, got %d", len(lines))
		}

		order := &domain.Order{
			ID:         orderID,
			UserID:     user.ID,
			TotalPrice: decimal.RequireFromString("60.00"),
			Status:     domain.OrderStatusPending,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		items := []domain.OrderItem{{
			OrderID:     orderID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    2,
			TotalPrice:  decimal.RequireFromString("60.00"),
		}}
		if err := tx.InsertOrderItems(ctx, items); err != nil {
			return err
		}

		products, err := tx.ProductsForUpdate(ctx, []int64{product.ID})
		if err != nil {
			return err
		}
		if err := products[product.ID].ReserveStock(2); err != nil {
			return err
		}
		if err := tx.SaveProductStock(ctx, products[product.ID]); err != nil {
			return err
		}

		if err := tx.DeleteCart(ctx, cartID); err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, &OutboxEvent{
			AggregateID: orderID.String(),
			EventType:   "order_created",
			Payload:     []byte(`{}`),
		})
	})
	require.NoError(t, err)

	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("40.00")), "balance = %s", got.Balance)

	p, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	_, err = store.GetCartByUserID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrCartNotFound)

	order, err := store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Keyboard", order.Items[0].ProductName)

	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, store.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPostgres_WithinTx_RollsBackOnError(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	user, product, cartID := seedCheckoutData(t, store)

	err := store.WithinTx(ctx, func(tx Tx) error {
		u, err := tx.UserForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		u.Balance = decimal.Zero
		if err := tx.SaveUserBalance(ctx, u); err != nil {
			return err
		}

		products, err := tx.ProductsForUpdate(ctx, []int64{product.ID})
		if err != nil {
			return err
		}
		products[product.ID].Stock = 0
		if err := tx.SaveProductStock(ctx, products[product.ID]); err != nil {
			return err
		}

		if err := tx.DeleteCart(ctx, cartID); err != nil {
			return err
		}
		return domain.ErrEmptyCart
	})
	require.ErrorIs(t, err, domain.ErrEmptyCart)

	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("100.00")), "balance mutated by rolled back tx")

	p, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	cart, err := store.GetCartByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestPostgres_SetOrderStatus(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	user, _, _ := seedCheckoutData(t, store)

	orderID := uuid.New()
	err := store.WithinTx(ctx, func(tx Tx) error {
		return tx.InsertOrder(ctx, &domain.Order{
			ID:         orderID,
			UserID:     user.ID,
			TotalPrice: decimal.RequireFromString("1.00"),
			Status:     domain.OrderStatusPending,
		})
	})
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(tx Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusPending {
			t.Errorf("expected PENDING, got %s", order.Status)
		}
		return tx.SetOrderStatus(ctx, orderID, domain.OrderStatusDelivered)
	})
	require.NoError(t, err)

	order, err := store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
}

func TestPostgres_WishlistRoundTrip(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	user, product, _ := seedCheckoutData(t, store)

	require.NoError(t, store.AddWishlistItem(ctx, user.ID, product.ID))
	require.NoError(t, store.AddWishlistItem(ctx, user.ID, product.ID), "re-add must be a no-op")

	items, err := store.GetWishlist(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, product.ID, items[0].ProductID)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "Keyboard", items[0].Product.Name)

	require.NoError(t, store.RemoveWishlistItem(ctx, user.ID, product.ID))
	err = store.RemoveWishlistItem(ctx, user.ID, product.ID)
	assert.ErrorIs(t, err, ErrWishlistItemNotFound)
}

func TestPostgres_DeleteProduct_OrderSnapshotsSurvive(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	user, product, _ := seedCheckoutData(t, store)

	require.NoError(t, store.AddWishlistItem(ctx, user.ID, product.ID))

	orderID := uuid.New()
	err := store.WithinTx(ctx, func(tx Tx) error {
		order := &domain.Order{
			ID:         orderID,
			UserID:     user.ID,
			TotalPrice: decimal.RequireFromString("60.00"),
			Status:     domain.OrderStatusPending,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return tx.InsertOrderItems(ctx, []domain.OrderItem{{
			OrderID:     orderID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    2,
			TotalPrice:  decimal.RequireFromString("60.00"),
		}})
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteProduct(ctx, product.ID))
	_, err = store.GetProduct(ctx, product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	cart, err := store.GetCartByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items, "cart lines must go with the product")

	items, err := store.GetWishlist(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items, "wishlist entries must go with the product")

	order, err := store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Keyboard", order.Items[0].ProductName, "order snapshot outlives the product")
}

func TestPostgres_ListOrdersBySeller(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	user, product, _ := seedCheckoutData(t, store)

	rival := &domain.User{
		Email:   "rival@example.com",
		Role:    domain.RoleSeller,
		Balance: decimal.Zero,
	}
	require.NoError(t, store.CreateUser(ctx, rival))
	other := &domain.Product{
		SellerID: rival.ID,
		Name:     "Monitor",
		Price:    decimal.RequireFromString("100.00"),
		Stock:    3,
	}
	require.NoError(t, store.CreateProduct(ctx, other))

	orderID := uuid.New()
	err := store.WithinTx(ctx, func(tx Tx) error {
		order := &domain.Order{
			ID:         orderID,
			UserID:     user.ID,
			TotalPrice: decimal.RequireFromString("130.00"),
			Status:     domain.OrderStatusPending,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return tx.InsertOrderItems(ctx, []domain.OrderItem{
			{OrderID: orderID, ProductID: product.ID, ProductName: product.Name, Price: product.Price, Quantity: 1, TotalPrice: product.Price},
			{OrderID: orderID, ProductID: other.ID, ProductName: other.Name, Price: other.Price, Quantity: 1, TotalPrice: other.Price},
		})
	})
	require.NoError(t, err)

	orders, err := store.ListOrdersBySeller(ctx, product.SellerID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0].ID)
	require.Len(t, orders[0].Items, 1, "only the seller's own lines are returned")
	assert.Equal(t, product.ID, orders[0].Items[0].ProductID)

	orders, err = store.ListOrdersBySeller(ctx, 987654)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
