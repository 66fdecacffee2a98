package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopCache satisfies cache.CartCache and never hits.
type nopCache struct{}

func (nopCache) Get(context.Context, int64) (*domain.Cart, error) {
	return nil, cache.ErrCacheMiss
}
func (nopCache) Set(context.Context, int64, *domain.Cart) error { return nil }
func (nopCache) Delete(context.Context, int64) error            { return nil }

// --- helpers ---

func withActor(r *http.Request, actor domain.Actor) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), actorKey, actor))
}

func withOrderID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("order_id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type fixture struct {
	store   *repository.MemoryStore
	handler *OrdersHandler
	user    *domain.User
	cartID  int64
}

func newOrdersFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()

	user := &domain.User{
		Email:   "buyer@example.com",
		Role:    domain.RoleCustomer,
		Balance: decimal.RequireFromString("100.00"),
	}
	require.NoError(t, store.CreateUser(ctx, user))

	product := &domain.Product{
		Name:  "Keyboard",
		Price: decimal.RequireFromString("30.00"),
		Stock: 5,
	}
	require.NoError(t, store.CreateProduct(ctx, product))
	require.NoError(t, store.UpsertCartItem(ctx, user.ID, domain.CartItem{ProductID: product.ID, Quantity: 2}))

	cart, err := store.GetCartByUserID(ctx, user.ID)
	require.NoError(t, err)

	orders := service.NewOrderService(store)
	carts := service.NewCartService(store, nopCache{})
	return &fixture{
		store:   store,
		handler: NewOrdersHandler(orders, carts),
		user:    user,
		cartID:  cart.ID,
	}
}

func (f *fixture) actor() domain.Actor {
	return domain.Actor{UserID: f.user.ID, Role: domain.RoleCustomer}
}

func createOrderRequest(t *testing.T, f *fixture, actor domain.Actor) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(CreateOrderRequestDTO{CartID: f.cartID})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	request := withActor(httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader(body)), actor)
	f.handler.CreateOrder(recorder, request)
	return recorder
}

// --- CreateOrder ---

func TestCreateOrderHandler_Success(t *testing.T) {
	f := newOrdersFixture(t)

	recorder := createOrderRequest(t, f, f.actor())
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var resp OrderResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "60.00", resp.TotalPrice)
	assert.Equal(t, "PENDING", resp.Status)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Keyboard", resp.Items[0].ProductName)
	assert.Equal(t, 2, resp.Items[0].Quantity)
	assert.Equal(t, "30.00", resp.Items[0].Price)
}

func TestCreateOrderHandler_NoActor(t *testing.T) {
	f := newOrdersFixture(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader([]byte(`{"cart_id":1}`)))
	f.handler.CreateOrder(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestCreateOrderHandler_InvalidBody(t *testing.T) {
	f := newOrdersFixture(t)

	recorder := httptest.NewRecorder()
	request := withActor(httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader([]byte("not json"))), f.actor())
	f.handler.CreateOrder(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCreateOrderHandler_InsufficientBalance(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	// drain the balance below the cart total first
	err := f.store.WithinTx(ctx, func(tx repository.Tx) error {
		u, err := tx.UserForUpdate(ctx, f.user.ID)
		if err != nil {
			return err
		}
		u.Balance = decimal.RequireFromString("10.00")
		return tx.SaveUserBalance(ctx, u)
	})
	require.NoError(t, err)

	recorder := createOrderRequest(t, f, f.actor())
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "insufficient_balance", resp.Code)
}

func TestCreateOrderHandler_CartNotFound(t *testing.T) {
	f := newOrdersFixture(t)
	f.cartID = 9999

	recorder := createOrderRequest(t, f, f.actor())
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

// --- CancelOrder ---

func TestCancelOrderHandler_Success(t *testing.T) {
	f := newOrdersFixture(t)

	created := createOrderRequest(t, f, f.actor())
	require.Equal(t, http.StatusCreated, created.Code)
	var order OrderResponseDTO
	require.NoError(t, json.NewDecoder(created.Body).Decode(&order))

	recorder := httptest.NewRecorder()
	request := withActor(httptest.NewRequest("POST", "/api/v1/orders/"+order.ID+"/cancel", nil), f.actor())
	f.handler.CancelOrder(recorder, withOrderID(request, order.ID))

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var resp OrderResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "CANCELED", resp.Status)
	assert.Equal(t, "60.00", resp.TotalPrice)
}

func TestCancelOrderHandler_InvalidUUID(t *testing.T) {
	f := newOrdersFixture(t)

	recorder := httptest.NewRecorder()
	request := withActor(httptest.NewRequest("POST", "/api/v1/orders/nope/cancel", nil), f.actor())
	f.handler.CancelOrder(recorder, withOrderID(request, "nope"))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCancelOrderHandler_DoubleCancel(t *testing.T) {
	f := newOrdersFixture(t)

	created := createOrderRequest(t, f, f.actor())
	require.Equal(t, http.StatusCreated, created.Code)
	var order OrderResponseDTO
	require.NoError(t, json.NewDecoder(created.Body).Decode(&order))

	for i, wantCode := range []int{http.StatusOK, http.StatusBadRequest} {
		recorder := httptest.NewRecorder()
		request := withActor(httptest.NewRequest("POST", "/api/v1/orders/"+order.ID+"/cancel", nil), f.actor())
		f.handler.CancelOrder(recorder, withOrderID(request, order.ID))
		assert.Equal(t, wantCode, recorder.Code, "cancel attempt %d", i+1)
	}
}

// --- UpdateStatus ---

func TestUpdateStatusHandler_CustomerForbidden(t *testing.T) {
	f := newOrdersFixture(t)

	created := createOrderRequest(t, f, f.actor())
	require.Equal(t, http.StatusCreated, created.Code)
	var order OrderResponseDTO
	require.NoError(t, json.NewDecoder(created.Body).Decode(&order))

	body := []byte(`{"status":"DELIVERED"}`)
	recorder := httptest.NewRecorder()
	request := withActor(httptest.NewRequest("PATCH", "/api/v1/orders/"+order.ID+"/status", bytes.NewReader(body)), f.actor())
	f.handler.UpdateStatus(recorder, withOrderID(request, order.ID))

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestUpdateStatusHandler_AdminDelivers(t *testing.T) {
	f := newOrdersFixture(t)

	created := createOrderRequest(t, f, f.actor())
	require.Equal(t, http.StatusCreated, created.Code)
	var order OrderResponseDTO
	require.NoError(t, json.NewDecoder(created.Body).Decode(&order))

	admin := domain.Actor{UserID: 777, Role: domain.RoleAdmin}
	body := []byte(`{"status":"DELIVERED"}`)
	recorder := httptest.NewRecorder()
	request := withActor(httptest.NewRequest("PATCH", "/api/v1/orders/"+order.ID+"/status", bytes.NewReader(body)), admin)
	f.handler.UpdateStatus(recorder, withOrderID(request, order.ID))

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var resp OrderResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "DELIVERED", resp.Status)
}

// --- GetOrder / ListOrders ---

func TestGetOrderHandler_StrangerGets404(t *testing.T) {
	f := newOrdersFixture(t)

	created := createOrderRequest(t, f, f.actor())
	require.Equal(t, http.StatusCreated, created.Code)
	var order OrderResponseDTO
	require.NoError(t, json.NewDecoder(created.Body).Decode(&order))

	stranger := domain.Actor{UserID: 999, Role: domain.RoleCustomer}
	recorder := httptest.NewRecorder()
	request := withActor(httptest.NewRequest("GET", "/api/v1/orders/"+order.ID, nil), stranger)
	f.handler.GetOrder(recorder, withOrderID(request, order.ID))

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestListOrdersHandler_EmptyIsArray(t *testing.T) {
	f := newOrdersFixture(t)

	recorder := httptest.NewRecorder()
	request := withActor(httptest.NewRequest("GET", "/api/v1/orders", nil), f.actor())
	f.handler.ListOrders(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	// Must be a JSON array, not null
	assert.Equal(t, "[]\n", recorder.Body.String())
}
