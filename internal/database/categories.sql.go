package database

import (
	"context"

	"github.com/google/uuid"
)

const listCategories = `-- name: ListCategories :many
SELECT id, name, sort_order, is_active, created_at
FROM categories
WHERE is_active = TRUE
ORDER BY sort_order, name
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Category{}
	for rows.Next() {
		var i Category
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.SortOrder,
			&i.IsActive,
			&i.CreatedAt,
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

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, sort_order)
VALUES ($1, $2)
RETURNING id, name, sort_order, is_active, created_at
`

type CreateCategoryParams struct {
	Name      string `json:"name"`
	SortOrder int32  `json:"sort_order"`
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, arg.Name, arg.SortOrder)
	var i Category
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.SortOrder,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const categoryExists = `-- name: CategoryExists :one
SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND is_active = TRUE)
`

func (q *Queries) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	row := q.db.QueryRow(ctx, categoryExists, id)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}
