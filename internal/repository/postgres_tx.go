package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// WithinTx runs fn inside a database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise, so a failure
// at any step leaves no partial ledger mutation behind.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&postgresTx{tx: sqlTx, store: s}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx    *sql.Tx
	store *PostgresStore
}

func (t *postgresTx) UserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, email, role, balance, created_at, updated_at
	          FROM users WHERE id = $1 FOR UPDATE`

	var user domain.User
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Role,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock user row: %w", err)
	}
	return &user, nil
}

func (t *postgresTx) SaveUserBalance(ctx context.Context, user *domain.User) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users SET balance = $2, updated_at = NOW() WHERE id = $1`,
		user.ID, user.Balance)
	if err != nil {
		return fmt.Errorf("update user balance: %w", err)
	}
	return nil
}

func (t *postgresTx) CartForUpdate(ctx context.Context, id int64) (*domain.Cart, error) {
	query := `SELECT id, user_id, created_at, updated_at
	          FROM carts WHERE id = $1 FOR UPDATE`

	var cart domain.Cart
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock cart row: %w", err)
	}
	return &cart, nil
}

// CartLinesForUpdate locks the cart's items together with their product
// rows. Products are locked in ascending id order so two checkouts
// touching overlapping products always acquire the locks in the same
// relative order.
func (t *postgresTx) CartLinesForUpdate(ctx context.Context, cartID int64) ([]domain.CartLine, error) {
	query := `SELECT ci.product_id, ci.quantity,
	                 p.id, p.seller_id, p.name, p.description, p.price, p.stock, p.created_at, p.updated_at
	          FROM cart_items ci
	          JOIN products p ON p.id = ci.product_id
	          WHERE ci.cart_id = $1
	          ORDER BY p.id
	          FOR UPDATE OF ci, p`

	rows, err := t.tx.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		var p domain.Product
		if err := rows.Scan(
			&line.ProductID,
			&line.Quantity,
			&p.ID,
			&p.SellerID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Stock,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line row: %w", err)
		}
		line.Product = &p
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func (t *postgresTx) DeleteCart(ctx context.Context, id int64) error {
	// cart_items go with the cart via ON DELETE CASCADE
	result, err := t.tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (t *postgresTx) ProductsForUpdate(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	query := `SELECT id, seller_id, name, description, price, stock, created_at, updated_at
	          FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := t.tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock product rows: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]*domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID,
			&p.SellerID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Stock,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (t *postgresTx) SaveProductStock(ctx context.Context, product *domain.Product) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`,
		product.ID, product.Stock)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	return nil
}

func (t *postgresTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (id, user_id, total_price, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, NOW(), NOW())
	          RETURNING created_at, updated_at`

	err := t.tx.QueryRowContext(ctx, query,
		order.ID,
		order.UserID,
		order.TotalPrice,
		order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *postgresTx) InsertOrderItems(ctx context.Context, items []domain.OrderItem) error {
	stmt, err := t.tx.PrepareContext(ctx,
		`INSERT INTO order_items (order_id, product_id, product_name, price, quantity, total_price)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`)
	if err != nil {
		return fmt.Errorf("prepare order items insert: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		item := &items[i]
		err := stmt.QueryRowContext(ctx,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.Price,
			item.Quantity,
			item.TotalPrice,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *postgresTx) OrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, user_id, total_price, status, created_at, updated_at
	          FROM orders WHERE id = $1 FOR UPDATE`

	var order domain.Order
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.TotalPrice,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order row: %w", err)
	}

	items, err := t.store.queryOrderItems(ctx, t.tx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (t *postgresTx) SetOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *postgresTx) InsertOutboxEvent(ctx context.Context, event *OutboxEvent) error {
	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, NOW()) RETURNING id, created_at`

	err := t.tx.QueryRowContext(ctx, query,
		event.AggregateID,
		event.EventType,
		event.Payload,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
