package service

import (
	"encoding/json"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated     = "order_created"
	EventOrderCanceled    = "order_canceled"
	EventBalanceDeposited = "balance_deposited"
)

func orderCreatedEvent(order *domain.Order) *repository.OutboxEvent {
	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"product_id":   item.ProductID,
			"product_name": item.ProductName,
			"unit_price":   item.Price,
			"quantity":     item.Quantity,
			"subtotal":     item.TotalPrice,
		})
	}

	payload := map[string]interface{}{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"total_price": order.TotalPrice,
		"items":       items,
		"created_at":  time.Now(),
	}
	return newOutboxEvent(order.ID.String(), EventOrderCreated, payload)
}

func orderCanceledEvent(order *domain.Order) *repository.OutboxEvent {
	payload := map[string]interface{}{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"refund":      order.TotalPrice,
		"canceled_at": time.Now(),
	}
	return newOutboxEvent(order.ID.String(), EventOrderCanceled, payload)
}

func balanceDepositedEvent(user *domain.User, amount decimal.Decimal) *repository.OutboxEvent {
	payload := map[string]interface{}{
		"user_id":      user.ID,
		"amount":       amount,
		"new_balance":  user.Balance,
		"deposited_at": time.Now(),
	}
	return newOutboxEvent(user.Email, EventBalanceDeposited, payload)
}

func newOutboxEvent(aggregateID, eventType string, payload map[string]interface{}) *repository.OutboxEvent {
	// payload values marshal cleanly; a failure here would be a
	// programming error
	data, _ := json.Marshal(payload)
	return &repository.OutboxEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     data,
	}
}
