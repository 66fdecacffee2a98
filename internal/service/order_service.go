package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderService converts carts into orders and reverses that conversion
// on cancellation. Every mutation of balance, stock and order records
// happens inside one scoped transaction: either all of it commits or
// none of it does.
type OrderService struct {
	store repository.Store
}

func NewOrderService(store repository.Store) *OrderService {
	return &OrderService{store: store}
}

// CreateOrder checks out the cart: debits the user's balance by the
// cart total, decrements stock for every line, snapshots the lines as
// immutable order items and deletes the cart. Locks are taken in a
// fixed order (user, cart, products by ascending id) so concurrent
// checkouts over overlapping products serialize instead of deadlocking.
func (s *OrderService) CreateOrder(ctx context.Context, userID, cartID int64) (*domain.Order, error) {
	var order *domain.Order

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		user, err := tx.UserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		cart, err := tx.CartForUpdate(ctx, cartID)
		if err != nil {
			return err
		}
		if cart.UserID != user.ID {
			return domain.ErrPermissionDenied
		}

		lines, err := tx.CartLinesForUpdate(ctx, cartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		// Stock is checked against the committed value read under lock;
		// a concurrent checkout that got here first has already been
		// accounted for.
		totalPrice := decimal.Zero
		for _, line := range lines {
			if line.Product.Stock < line.Quantity {
				return &domain.InsufficientStockError{
					ProductID:   line.Product.ID,
					ProductName: line.Product.Name,
					Requested:   line.Quantity,
					Available:   line.Product.Stock,
				}
			}
			totalPrice = totalPrice.Add(line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		if err := user.Debit(totalPrice); err != nil {
			return err
		}
		if err := tx.SaveUserBalance(ctx, user); err != nil {
			return err
		}

		order = &domain.Order{
			ID:         uuid.New(),
			UserID:     user.ID,
			TotalPrice: totalPrice,
			Status:     domain.OrderStatusPending,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		items := make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			if err := line.Product.ReserveStock(line.Quantity); err != nil {
				return err
			}
			if err := tx.SaveProductStock(ctx, line.Product); err != nil {
				return err
			}
			items = append(items, domain.OrderItem{
				OrderID:     order.ID,
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				Price:       line.Product.Price,
				Quantity:    line.Quantity,
				TotalPrice:  line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
			})
		}
		if err := tx.InsertOrderItems(ctx, items); err != nil {
			return err
		}
		order.Items = items

		if err := tx.DeleteCart(ctx, cartID); err != nil {
			return err
		}

		return tx.InsertOutboxEvent(ctx, orderCreatedEvent(order))
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"total_price": order.TotalPrice,
	}).Info("order created")
	return order, nil
}

// CancelOrder reverses a checkout: credits the order total back to the
// owner's balance and returns every item's quantity to stock, then
// marks the order CANCELED. Order items and the total are left intact.
// Canceling a DELIVERED or already CANCELED order is rejected.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error) {
	var order *domain.Order

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if !actor.CanCancel(order) {
			return domain.ErrPermissionDenied
		}

		if !domain.CanTransitionTo(order.Status, domain.OrderStatusCanceled) {
			reason := "already canceled"
			if order.Status == domain.OrderStatusDelivered {
				reason = "cannot cancel after delivery"
			}
			return &domain.InvalidTransitionError{
				From:   order.Status,
				To:     domain.OrderStatusCanceled,
				Reason: reason,
			}
		}

		user, err := tx.UserForUpdate(ctx, order.UserID)
		if err != nil {
			return err
		}
		user.Credit(order.TotalPrice)
		if err := tx.SaveUserBalance(ctx, user); err != nil {
			return err
		}

		productIDs := make([]int64, 0, len(order.Items))
		for _, item := range order.Items {
			productIDs = append(productIDs, item.ProductID)
		}
		products, err := tx.ProductsForUpdate(ctx, productIDs)
		if err != nil {
			return err
		}
		for _, item := range order.Items {
			product, ok := products[item.ProductID]
			if !ok {
				return repository.ErrProductNotFound
			}
			product.ReleaseStock(item.Quantity)
			if err := tx.SaveProductStock(ctx, product); err != nil {
				return err
			}
		}

		order.Status = domain.OrderStatusCanceled
		if err := tx.SetOrderStatus(ctx, orderID, domain.OrderStatusCanceled); err != nil {
			return err
		}

		return tx.InsertOutboxEvent(ctx, orderCanceledEvent(order))
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"refund":   order.TotalPrice,
	}).Info("order canceled")
	return order, nil
}

// UpdateStatus is the administrative correction path: it overwrites the
// order status without touching balance or stock. Setting CANCELED this
// way does NOT refund or restock; use CancelOrder for a reversal.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, actor domain.Actor) (*domain.Order, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrPermissionDenied
	}

	switch status {
	case domain.OrderStatusPending, domain.OrderStatusDelivered, domain.OrderStatusCanceled:
	default:
		return nil, fmt.Errorf("unknown order status %q", status)
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		order.Status = status
		return tx.SetOrderStatus(ctx, orderID, status)
	})
	if err != nil {
		return nil, err
	}

	if status == domain.OrderStatusCanceled {
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"admin_id": actor.UserID,
		}).Warn("order status set to CANCELED without ledger reversal")
	}
	return order, nil
}

// GetOrder returns the order if the actor may see it. Non-staff users
// only see their own orders; anyone else's look like they don't exist.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && order.UserID != actor.UserID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the actor's purchase history; staff see all orders.
func (s *OrderService) ListOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	if actor.IsStaff() {
		return s.store.ListOrders(ctx)
	}
	return s.store.ListOrdersByUserID(ctx, actor.UserID)
}

// ListSellerOrders is the seller dashboard view: orders that contain
// the seller's products, narrowed to the seller's own lines.
func (s *OrderService) ListSellerOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	if actor.Role != domain.RoleSeller && actor.Role != domain.RoleAdmin {
		return nil, domain.ErrPermissionDenied
	}
	return s.store.ListOrdersBySeller(ctx, actor.UserID)
}
