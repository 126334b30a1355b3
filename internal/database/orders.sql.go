package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, session_id, status, payment_method, total_amount, note,
       bill_id, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.SessionID,
		&i.Status,
		&i.PaymentMethod,
		&i.TotalAmount,
		&i.Note,
		&i.BillID,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(rows pgx.Rows, err error) ([]Order, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (table_id, session_id, note, created_by)
VALUES ($1, $2, $3, $4)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	TableID   pgtype.UUID `json:"table_id"`
	SessionID pgtype.UUID `json:"session_id"`
	Note      pgtype.Text `json:"note"`
	CreatedBy pgtype.UUID `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.TableID,
		arg.SessionID,
		arg.Note,
		arg.CreatedBy,
	))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR table_id = $2)
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4
`

type ListOrdersParams struct {
	Status  pgtype.Text `json:"status"`
	TableID pgtype.UUID `json:"table_id"`
	Limit   int32       `json:"limit"`
	Offset  int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.TableID, arg.Limit, arg.Offset)
	return collectOrders(rows, err)
}

const listOrdersBySession = `-- name: ListOrdersBySession :many
SELECT ` + orderColumns + `
FROM orders
WHERE session_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrdersBySession(ctx context.Context, sessionID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersBySession, sessionID)
	return collectOrders(rows, err)
}

const listOpenOrdersBySession = `-- name: ListOpenOrdersBySession :many
SELECT ` + orderColumns + `
FROM orders
WHERE session_id = $1 AND status IN ('received', 'preparing', 'ready')
ORDER BY created_at, id
`

func (q *Queries) ListOpenOrdersBySession(ctx context.Context, sessionID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOpenOrdersBySession, sessionID)
	return collectOrders(rows, err)
}

const listOpenOrdersBySessionForUpdate = `-- name: ListOpenOrdersBySessionForUpdate :many
SELECT ` + orderColumns + `
FROM orders
WHERE session_id = $1 AND status IN ('received', 'preparing', 'ready')
ORDER BY created_at, id
FOR UPDATE
`

func (q *Queries) ListOpenOrdersBySessionForUpdate(ctx context.Context, sessionID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOpenOrdersBySessionForUpdate, sessionID)
	return collectOrders(rows, err)
}

const countUnpaidOrdersBySession = `-- name: CountUnpaidOrdersBySession :one
SELECT COUNT(*)
FROM orders
WHERE session_id = $1 AND status IN ('received', 'preparing', 'ready')
`

func (q *Queries) CountUnpaidOrdersBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countUnpaidOrdersBySession, sessionID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

// UpdateOrderStatus returns pgx.ErrNoRows when the order is no longer in
// ExpectedStatus.
const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID             uuid.UUID   `json:"id"`
	Status         OrderStatus `json:"status"`
	ExpectedStatus OrderStatus `json:"expected_status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.ExpectedStatus))
}

const recalculateOrderTotal = `-- name: RecalculateOrderTotal :one
UPDATE orders SET
    total_amount = CASE WHEN status IN ('rejected', 'cancelled') THEN 0 ELSE COALESCE((
        SELECT SUM(subtotal) FROM order_items
        WHERE order_id = $1 AND status IN ('accepted', 'ready', 'served')
    ), 0) END,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) RecalculateOrderTotal(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, recalculateOrderTotal, id))
}

const completeOrder = `-- name: CompleteOrder :one
UPDATE orders SET status = 'completed', bill_id = $2, payment_method = $3, updated_at = now()
WHERE id = $1 AND status IN ('preparing', 'ready')
RETURNING ` + orderColumns

type CompleteOrderParams struct {
	ID            uuid.UUID     `json:"id"`
	BillID        uuid.UUID     `json:"bill_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

func (q *Queries) CompleteOrder(ctx context.Context, arg CompleteOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, completeOrder, arg.ID, arg.BillID, arg.PaymentMethod))
}
