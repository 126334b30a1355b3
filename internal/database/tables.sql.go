package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const listTables = `-- name: ListTables :many
SELECT id, name, capacity, is_active, created_at
FROM dining_tables
WHERE is_active = TRUE
ORDER BY name
`

func (q *Queries) ListTables(ctx context.Context) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DiningTable{}
	for rows.Next() {
		var i DiningTable
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Capacity,
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

const getTable = `-- name: GetTable :one
SELECT id, name, capacity, is_active, created_at
FROM dining_tables
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	row := q.db.QueryRow(ctx, getTable, id)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Capacity,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const createTable = `-- name: CreateTable :one
INSERT INTO dining_tables (name, capacity)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET capacity = EXCLUDED.capacity
RETURNING id, name, capacity, is_active, created_at
`

type CreateTableParams struct {
	Name     string `json:"name"`
	Capacity int32  `json:"capacity"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, createTable, arg.Name, arg.Capacity)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Capacity,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

func scanSession(row pgx.Row) (TableSession, error) {
	var i TableSession
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.StartedAt,
		&i.EndedAt,
	)
	return i, err
}

const getActiveSession = `-- name: GetActiveSession :one
SELECT id, table_id, status, started_at, ended_at
FROM table_sessions
WHERE table_id = $1 AND status = 'active'
`

func (q *Queries) GetActiveSession(ctx context.Context, tableID uuid.UUID) (TableSession, error) {
	return scanSession(q.db.QueryRow(ctx, getActiveSession, tableID))
}

// CreateSession returns pgx.ErrNoRows when another request opened the
// table's session first.
const createSession = `-- name: CreateSession :one
INSERT INTO table_sessions (table_id)
VALUES ($1)
ON CONFLICT (table_id) WHERE status = 'active' DO NOTHING
RETURNING id, table_id, status, started_at, ended_at
`

func (q *Queries) CreateSession(ctx context.Context, tableID uuid.UUID) (TableSession, error) {
	return scanSession(q.db.QueryRow(ctx, createSession, tableID))
}

const getSession = `-- name: GetSession :one
SELECT id, table_id, status, started_at, ended_at
FROM table_sessions
WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (TableSession, error) {
	return scanSession(q.db.QueryRow(ctx, getSession, id))
}

// Session-scoped mutations (acknowledge, checkout) serialize on this lock.
const getSessionForUpdate = `-- name: GetSessionForUpdate :one
SELECT id, table_id, status, started_at, ended_at
FROM table_sessions
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (TableSession, error) {
	return scanSession(q.db.QueryRow(ctx, getSessionForUpdate, id))
}

const closeSession = `-- name: CloseSession :one
UPDATE table_sessions SET status = 'closed', ended_at = now()
WHERE id = $1 AND status = 'active'
RETURNING id, table_id, status, started_at, ended_at
`

func (q *Queries) CloseSession(ctx context.Context, id uuid.UUID) (TableSession, error) {
	return scanSession(q.db.QueryRow(ctx, closeSession, id))
}
