package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, category_id, name, description, status, price, prep_time_minutes,
       image_url, is_chef_recommended, deleted_at, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Description,
		&i.Status,
		&i.Price,
		&i.PrepTimeMinutes,
		&i.ImageUrl,
		&i.IsChefRecommended,
		&i.DeletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listMenuItems = `-- name: ListMenuItems :many
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE deleted_at IS NULL
  AND ($1::uuid IS NULL OR category_id = $1)
  AND ($2::text IS NULL OR status = $2)
ORDER BY is_chef_recommended DESC, name
`

type ListMenuItemsParams struct {
	CategoryID pgtype.UUID `json:"category_id"`
	Status     pgtype.Text `json:"status"`
}

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, arg.CategoryID, arg.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItem{}
	for rows.Next() {
		i, err := scanMenuItem(rows)
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

const getMenuItem = `-- name: GetMenuItem :one
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, id))
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (category_id, name, description, status, price, prep_time_minutes, image_url, is_chef_recommended)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	CategoryID        uuid.UUID      `json:"category_id"`
	Name              string         `json:"name"`
	Description       pgtype.Text    `json:"description"`
	Status            MenuItemStatus `json:"status"`
	Price             pgtype.Numeric `json:"price"`
	PrepTimeMinutes   int32          `json:"prep_time_minutes"`
	ImageUrl          pgtype.Text    `json:"image_url"`
	IsChefRecommended bool           `json:"is_chef_recommended"`
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, createMenuItem,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Status,
		arg.Price,
		arg.PrepTimeMinutes,
		arg.ImageUrl,
		arg.IsChefRecommended,
	))
}

// Nullable columns use an explicit Set flag so a patch can distinguish
// "leave unchanged" from "set to NULL".
const updateMenuItem = `-- name: UpdateMenuItem :one
UPDATE menu_items SET
    category_id         = COALESCE($2, category_id),
    name                = COALESCE($3, name),
    description         = CASE WHEN $4::bool THEN $5 ELSE description END,
    status              = COALESCE($6, status),
    price               = COALESCE($7, price),
    prep_time_minutes   = COALESCE($8, prep_time_minutes),
    image_url           = CASE WHEN $9::bool THEN $10 ELSE image_url END,
    is_chef_recommended = COALESCE($11, is_chef_recommended),
    updated_at          = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + menuItemColumns

type UpdateMenuItemParams struct {
	ID                uuid.UUID      `json:"id"`
	CategoryID        pgtype.UUID    `json:"category_id"`
	Name              pgtype.Text    `json:"name"`
	SetDescription    bool           `json:"set_description"`
	Description       pgtype.Text    `json:"description"`
	Status            pgtype.Text    `json:"status"`
	Price             pgtype.Numeric `json:"price"`
	PrepTimeMinutes   pgtype.Int4    `json:"prep_time_minutes"`
	SetImageUrl       bool           `json:"set_image_url"`
	ImageUrl          pgtype.Text    `json:"image_url"`
	IsChefRecommended pgtype.Bool    `json:"is_chef_recommended"`
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, updateMenuItem,
		arg.ID,
		arg.CategoryID,
		arg.Name,
		arg.SetDescription,
		arg.Description,
		arg.Status,
		arg.Price,
		arg.PrepTimeMinutes,
		arg.SetImageUrl,
		arg.ImageUrl,
		arg.IsChefRecommended,
	))
}

const softDeleteMenuItem = `-- name: SoftDeleteMenuItem :one
UPDATE menu_items SET deleted_at = now(), status = 'unavailable', updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING id
`

func (q *Queries) SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteMenuItem, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

const listModifiersByMenuItem = `-- name: ListModifiersByMenuItem :many
SELECT id, menu_item_id, name, price, is_active
FROM menu_item_modifiers
WHERE menu_item_id = $1 AND is_active = TRUE
ORDER BY name
`

func (q *Queries) ListModifiersByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]MenuItemModifier, error) {
	rows, err := q.db.Query(ctx, listModifiersByMenuItem, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItemModifier{}
	for rows.Next() {
		var i MenuItemModifier
		if err := rows.Scan(
			&i.ID,
			&i.MenuItemID,
			&i.Name,
			&i.Price,
			&i.IsActive,
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

const getModifierForOrder = `-- name: GetModifierForOrder :one
SELECT id, menu_item_id, name, price, is_active
FROM menu_item_modifiers
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetModifierForOrder(ctx context.Context, id uuid.UUID) (MenuItemModifier, error) {
	row := q.db.QueryRow(ctx, getModifierForOrder, id)
	var i MenuItemModifier
	err := row.Scan(
		&i.ID,
		&i.MenuItemID,
		&i.Name,
		&i.Price,
		&i.IsActive,
	)
	return i, err
}

const createModifier = `-- name: CreateModifier :one
INSERT INTO menu_item_modifiers (menu_item_id, name, price)
VALUES ($1, $2, $3)
RETURNING id, menu_item_id, name, price, is_active
`

type CreateModifierParams struct {
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateModifier(ctx context.Context, arg CreateModifierParams) (MenuItemModifier, error) {
	row := q.db.QueryRow(ctx, createModifier, arg.MenuItemID, arg.Name, arg.Price)
	var i MenuItemModifier
	err := row.Scan(
		&i.ID,
		&i.MenuItemID,
		&i.Name,
		&i.Price,
		&i.IsActive,
	)
	return i, err
}
