package repository

import (
	"database/sql"
	"fmt"

	entity "simbi-market/internal/domain"

	"github.com/google/uuid"

	"github.com/lib/pq"
)

type OrderRepository interface {
	Insert(tx *sql.Tx, order *entity.Order) error
	GetByID(id uuid.UUID) (*entity.Order, error)
	GetLastByTalk(talkID uuid.UUID) (*entity.Order, error)
	LockByID(tx *sql.Tx, id uuid.UUID) (*entity.Order, error)
	MarkAccepted(tx *sql.Tx, id uuid.UUID) (bool, error)
	MarkCompleted(tx *sql.Tx, id uuid.UUID) (bool, error)
	MarkCanceled(tx *sql.Tx, id uuid.UUID, reason string) (bool, error)
	MarkDisputed(tx *sql.Tx, id uuid.UUID) (bool, error)
	MarkResolved(tx *sql.Tx, id uuid.UUID) (bool, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Insert(tx *sql.Tx, order *entity.Order) error {
	query := `
		INSERT INTO orders (id, talk_id, author_id, status, shipping_costs, processing_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	if _, err := tx.Exec(query, order.ID, order.TalkID, order.AuthorID, order.Status, order.ShippingCosts, order.ProcessingTime); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, owner_id, service_id, count)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i := range order.Items {
		item := &order.Items[i]
		var serviceID interface{}
		if item.ServiceID != uuid.Nil {
			serviceID = item.ServiceID
		}
		if _, err := tx.Exec(itemQuery, item.ID, order.ID, item.OwnerID, serviceID, item.Count); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `id, talk_id, author_id, status, shipping_costs, processing_time, cancel_reason, created_at, updated_at`

func (r *orderRepository) scanOrder(row *sql.Row) (*entity.Order, error) {
	var order entity.Order
	var reason sql.NullString
	err := row.Scan(
		&order.ID, &order.TalkID, &order.AuthorID, &order.Status,
		&order.ShippingCosts, &order.ProcessingTime, &reason, &order.CreatedAt, &order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	order.CancelReason = reason.String
	return &order, nil
}

type rowQuerier interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func loadOrderItems(q rowQuerier, order *entity.Order) error {
	query := `
		SELECT id, order_id, owner_id, service_id, count
		FROM order_items WHERE order_id = $1
	`
	rows, err := q.Query(query, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item entity.OrderItem
		var serviceID sql.NullString
		if err := rows.Scan(&item.ID, &item.OrderID, &item.OwnerID, &serviceID, &item.Count); err != nil {
			return err
		}
		if serviceID.Valid {
			item.ServiceID, _ = uuid.Parse(serviceID.String)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func (r *orderRepository) GetByID(id uuid.UUID) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := r.scanOrder(r.db.QueryRow(query, id))
	if err != nil || order == nil {
		return order, err
	}
	return order, loadOrderItems(r.db, order)
}

func (r *orderRepository) GetLastByTalk(talkID uuid.UUID) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE talk_id = $1 ORDER BY created_at DESC LIMIT 1`
	order, err := r.scanOrder(r.db.QueryRow(query, talkID))
	if err != nil || order == nil {
		return order, err
	}
	return order, loadOrderItems(r.db, order)
}

func (r *orderRepository) LockByID(tx *sql.Tx, id uuid.UUID) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := r.scanOrder(tx.QueryRow(query, id))
	if err != nil || order == nil {
		return order, err
	}
	return order, loadOrderItems(tx, order)
}

func (r *orderRepository) transition(tx *sql.Tx, query string, args ...interface{}) (bool, error) {
	res, err := tx.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *orderRepository) MarkAccepted(tx *sql.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE orders SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND status = 'open'
	`
	return r.transition(tx, query, id)
}

func (r *orderRepository) MarkCompleted(tx *sql.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE orders SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'accepted'
	`
	return r.transition(tx, query, id)
}

func (r *orderRepository) MarkCanceled(tx *sql.Tx, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE orders SET status = 'canceled', cancel_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`
	return r.transition(tx, query, id, reason, pq.Array([]string{entity.OrderStatusOpen, entity.OrderStatusAccepted}))
}

func (r *orderRepository) MarkDisputed(tx *sql.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE orders SET status = 'disputed', updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
	`
	return r.transition(tx, query, id, pq.Array([]string{entity.OrderStatusAccepted, entity.OrderStatusCompleted}))
}

func (r *orderRepository) MarkResolved(tx *sql.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE orders SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND status = 'disputed'
	`
	return r.transition(tx, query, id)
}
