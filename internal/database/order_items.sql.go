package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderItemColumns = `id, order_id, menu_item_id, name, quantity, unit_price, modifiers_total,
       subtotal, status, note, created_at, updated_at`

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Name,
		&i.Quantity,
		&i.UnitPrice,
		&i.ModifiersTotal,
		&i.Subtotal,
		&i.Status,
		&i.Note,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrderItems(rows pgx.Rows, err error) ([]OrderItem, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
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

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price, modifiers_total, subtotal, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID        uuid.UUID      `json:"order_id"`
	MenuItemID     uuid.UUID      `json:"menu_item_id"`
	Name           string         `json:"name"`
	Quantity       int32          `json:"quantity"`
	UnitPrice      pgtype.Numeric `json:"unit_price"`
	ModifiersTotal pgtype.Numeric `json:"modifiers_total"`
	Subtotal       pgtype.Numeric `json:"subtotal"`
	Note           pgtype.Text    `json:"note"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.Name,
		arg.Quantity,
		arg.UnitPrice,
		arg.ModifiersTotal,
		arg.Subtotal,
		arg.Note,
	))
}

const createOrderItemModifier = `-- name: CreateOrderItemModifier :one
INSERT INTO order_item_modifiers (order_item_id, modifier_id, name, price)
VALUES ($1, $2, $3, $4)
RETURNING id, order_item_id, modifier_id, name, price
`

type CreateOrderItemModifierParams struct {
	OrderItemID uuid.UUID      `json:"order_item_id"`
	ModifierID  uuid.UUID      `json:"modifier_id"`
	Name        string         `json:"name"`
	Price       pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateOrderItemModifier(ctx context.Context, arg CreateOrderItemModifierParams) (OrderItemModifier, error) {
	row := q.db.QueryRow(ctx, createOrderItemModifier,
		arg.OrderItemID,
		arg.ModifierID,
		arg.Name,
		arg.Price,
	)
	var i OrderItemModifier
	err := row.Scan(
		&i.ID,
		&i.OrderItemID,
		&i.ModifierID,
		&i.Name,
		&i.Price,
	)
	return i, err
}

const getOrderItem = `-- name: GetOrderItem :one
SELECT ` + orderItemColumns + `
FROM order_items
WHERE id = $1
`

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, getOrderItem, id))
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	return collectOrderItems(rows, err)
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY created_at, id
`

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIds []uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrders, orderIds)
	return collectOrderItems(rows, err)
}

const listOrderItemModifiersByOrders = `-- name: ListOrderItemModifiersByOrders :many
SELECT m.id, m.order_item_id, m.modifier_id, m.name, m.price
FROM order_item_modifiers m
JOIN order_items oi ON oi.id = m.order_item_id
WHERE oi.order_id = ANY($1::uuid[])
ORDER BY m.order_item_id, m.name, m.id
`

func (q *Queries) ListOrderItemModifiersByOrders(ctx context.Context, orderIds []uuid.UUID) ([]OrderItemModifier, error) {
	rows, err := q.db.Query(ctx, listOrderItemModifiersByOrders, orderIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItemModifier{}
	for rows.Next() {
		var i OrderItemModifier
		if err := rows.Scan(
			&i.ID,
			&i.OrderItemID,
			&i.ModifierID,
			&i.Name,
			&i.Price,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateOrderItemStatus returns pgx.ErrNoRows when the item is no longer in
// ExpectedStatus, so two staff racing on the same item apply it once.
const updateOrderItemStatus = `-- name: UpdateOrderItemStatus :one
UPDATE order_items SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderItemColumns

type UpdateOrderItemStatusParams struct {
	ID             uuid.UUID       `json:"id"`
	Status         OrderItemStatus `json:"status"`
	ExpectedStatus OrderItemStatus `json:"expected_status"`
}

func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg UpdateOrderItemStatusParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, updateOrderItemStatus, arg.ID, arg.Status, arg.ExpectedStatus))
}

const rejectOpenItems = `-- name: RejectOpenItems :exec
UPDATE order_items SET status = 'rejected', updated_at = now()
WHERE order_id = $1 AND status IN ('pending', 'accepted')
`

func (q *Queries) RejectOpenItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, rejectOpenItems, orderID)
	return err
}
