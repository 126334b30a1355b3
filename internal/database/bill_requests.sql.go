package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const billRequestColumns = `id, table_id, session_id, status, note, close_reason, created_at,
       acknowledged_at, acknowledged_by, cancelled_at`

func scanBillRequest(row pgx.Row) (BillRequest, error) {
	var i BillRequest
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.SessionID,
		&i.Status,
		&i.Note,
		&i.CloseReason,
		&i.CreatedAt,
		&i.AcknowledgedAt,
		&i.AcknowledgedBy,
		&i.CancelledAt,
	)
	return i, err
}

func collectBillRequests(rows pgx.Rows, err error) ([]BillRequest, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []BillRequest{}
	for rows.Next() {
		i, err := scanBillRequest(rows)
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

// InsertBillRequest returns pgx.ErrNoRows when the session already has an
// open request. bill_requests_one_open_idx makes this atomic.
const insertBillRequest = `-- name: InsertBillRequest :one
INSERT INTO bill_requests (table_id, session_id, note)
VALUES ($1, $2, $3)
ON CONFLICT (table_id, session_id) WHERE status IN ('pending', 'acknowledged') DO NOTHING
RETURNING ` + billRequestColumns

type InsertBillRequestParams struct {
	TableID   uuid.UUID   `json:"table_id"`
	SessionID uuid.UUID   `json:"session_id"`
	Note      pgtype.Text `json:"note"`
}

func (q *Queries) InsertBillRequest(ctx context.Context, arg InsertBillRequestParams) (BillRequest, error) {
	return scanBillRequest(q.db.QueryRow(ctx, insertBillRequest, arg.TableID, arg.SessionID, arg.Note))
}

const getOpenBillRequest = `-- name: GetOpenBillRequest :one
SELECT ` + billRequestColumns + `
FROM bill_requests
WHERE table_id = $1 AND session_id = $2 AND status IN ('pending', 'acknowledged')
`

type GetOpenBillRequestParams struct {
	TableID   uuid.UUID `json:"table_id"`
	SessionID uuid.UUID `json:"session_id"`
}

func (q *Queries) GetOpenBillRequest(ctx context.Context, arg GetOpenBillRequestParams) (BillRequest, error) {
	return scanBillRequest(q.db.QueryRow(ctx, getOpenBillRequest, arg.TableID, arg.SessionID))
}

const getBillRequest = `-- name: GetBillRequest :one
SELECT ` + billRequestColumns + `
FROM bill_requests
WHERE id = $1
`

func (q *Queries) GetBillRequest(ctx context.Context, id uuid.UUID) (BillRequest, error) {
	return scanBillRequest(q.db.QueryRow(ctx, getBillRequest, id))
}

const acknowledgeBillRequest = `-- name: AcknowledgeBillRequest :one
UPDATE bill_requests SET status = 'acknowledged', acknowledged_at = now(), acknowledged_by = $2
WHERE id = $1 AND status = 'pending'
RETURNING ` + billRequestColumns

type AcknowledgeBillRequestParams struct {
	ID             uuid.UUID `json:"id"`
	AcknowledgedBy uuid.UUID `json:"acknowledged_by"`
}

func (q *Queries) AcknowledgeBillRequest(ctx context.Context, arg AcknowledgeBillRequestParams) (BillRequest, error) {
	return scanBillRequest(q.db.QueryRow(ctx, acknowledgeBillRequest, arg.ID, arg.AcknowledgedBy))
}

const cancelBillRequest = `-- name: CancelBillRequest :one
UPDATE bill_requests SET status = 'cancelled', cancelled_at = now(), close_reason = $2
WHERE id = $1 AND status IN ('pending', 'acknowledged')
RETURNING ` + billRequestColumns

type CancelBillRequestParams struct {
	ID          uuid.UUID `json:"id"`
	CloseReason string    `json:"close_reason"`
}

func (q *Queries) CancelBillRequest(ctx context.Context, arg CancelBillRequestParams) (BillRequest, error) {
	return scanBillRequest(q.db.QueryRow(ctx, cancelBillRequest, arg.ID, arg.CloseReason))
}

const cancelOpenBillRequestsBySession = `-- name: CancelOpenBillRequestsBySession :many
UPDATE bill_requests SET status = 'cancelled', cancelled_at = now(), close_reason = $2
WHERE session_id = $1 AND status IN ('pending', 'acknowledged')
RETURNING ` + billRequestColumns

type CancelOpenBillRequestsBySessionParams struct {
	SessionID   uuid.UUID `json:"session_id"`
	CloseReason string    `json:"close_reason"`
}

func (q *Queries) CancelOpenBillRequestsBySession(ctx context.Context, arg CancelOpenBillRequestsBySessionParams) ([]BillRequest, error) {
	rows, err := q.db.Query(ctx, cancelOpenBillRequestsBySession, arg.SessionID, arg.CloseReason)
	return collectBillRequests(rows, err)
}

const listOpenBillRequests = `-- name: ListOpenBillRequests :many
SELECT ` + billRequestColumns + `
FROM bill_requests
WHERE status IN ('pending', 'acknowledged')
ORDER BY created_at, id
`

func (q *Queries) ListOpenBillRequests(ctx context.Context) ([]BillRequest, error) {
	rows, err := q.db.Query(ctx, listOpenBillRequests)
	return collectBillRequests(rows, err)
}

const expirePendingBillRequests = `-- name: ExpirePendingBillRequests :many
UPDATE bill_requests SET status = 'cancelled', cancelled_at = now(), close_reason = 'expired'
WHERE status = 'pending' AND created_at < $1
RETURNING ` + billRequestColumns

func (q *Queries) ExpirePendingBillRequests(ctx context.Context, createdBefore time.Time) ([]BillRequest, error) {
	rows, err := q.db.Query(ctx, expirePendingBillRequests, createdBefore)
	return collectBillRequests(rows, err)
}
