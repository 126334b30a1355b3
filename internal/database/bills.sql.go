package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createBill = `-- name: CreateBill :one
INSERT INTO bills (
    table_id, session_id, subtotal, discount_type, discount_value, coupon_id,
    discount_amount, tax_rate, tax_amount, final_amount, payment_method, digest,
    processed_by, session_started_at, session_ended_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING id, table_id, session_id, subtotal, discount_type, discount_value, coupon_id,
          discount_amount, tax_rate, tax_amount, final_amount, payment_method, digest,
          processed_by, session_started_at, session_ended_at, created_at
`

type CreateBillParams struct {
	TableID          pgtype.UUID        `json:"table_id"`
	SessionID        pgtype.UUID        `json:"session_id"`
	Subtotal         pgtype.Numeric     `json:"subtotal"`
	DiscountType     pgtype.Text        `json:"discount_type"`
	DiscountValue    pgtype.Numeric     `json:"discount_value"`
	CouponID         pgtype.UUID        `json:"coupon_id"`
	DiscountAmount   pgtype.Numeric     `json:"discount_amount"`
	TaxRate          pgtype.Numeric     `json:"tax_rate"`
	TaxAmount        pgtype.Numeric     `json:"tax_amount"`
	FinalAmount      pgtype.Numeric     `json:"final_amount"`
	PaymentMethod    PaymentMethod      `json:"payment_method"`
	Digest           string             `json:"digest"`
	ProcessedBy      uuid.UUID          `json:"processed_by"`
	SessionStartedAt pgtype.Timestamptz `json:"session_started_at"`
	SessionEndedAt   pgtype.Timestamptz `json:"session_ended_at"`
}

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (Bill, error) {
	row := q.db.QueryRow(ctx, createBill,
		arg.TableID,
		arg.SessionID,
		arg.Subtotal,
		arg.DiscountType,
		arg.DiscountValue,
		arg.CouponID,
		arg.DiscountAmount,
		arg.TaxRate,
		arg.TaxAmount,
		arg.FinalAmount,
		arg.PaymentMethod,
		arg.Digest,
		arg.ProcessedBy,
		arg.SessionStartedAt,
		arg.SessionEndedAt,
	)
	var i Bill
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.SessionID,
		&i.Subtotal,
		&i.DiscountType,
		&i.DiscountValue,
		&i.CouponID,
		&i.DiscountAmount,
		&i.TaxRate,
		&i.TaxAmount,
		&i.FinalAmount,
		&i.PaymentMethod,
		&i.Digest,
		&i.ProcessedBy,
		&i.SessionStartedAt,
		&i.SessionEndedAt,
		&i.CreatedAt,
	)
	return i, err
}

const getDailySales = `-- name: GetDailySales :many
SELECT
    (created_at AT TIME ZONE 'Asia/Ho_Chi_Minh')::date AS sale_date,
    payment_method,
    COUNT(*)                      AS bill_count,
    COALESCE(SUM(subtotal), 0)        AS subtotal,
    COALESCE(SUM(discount_amount), 0) AS discount_amount,
    COALESCE(SUM(tax_amount), 0)      AS tax_amount,
    COALESCE(SUM(final_amount), 0)    AS final_amount
FROM bills
WHERE created_at >= $1 AND created_at < $2
GROUP BY sale_date, payment_method
ORDER BY sale_date, payment_method
`

type GetDailySalesParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type GetDailySalesRow struct {
	SaleDate       pgtype.Date    `json:"sale_date"`
	PaymentMethod  PaymentMethod  `json:"payment_method"`
	BillCount      int64          `json:"bill_count"`
	Subtotal       pgtype.Numeric `json:"subtotal"`
	DiscountAmount pgtype.Numeric `json:"discount_amount"`
	TaxAmount      pgtype.Numeric `json:"tax_amount"`
	FinalAmount    pgtype.Numeric `json:"final_amount"`
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetDailySalesRow{}
	for rows.Next() {
		var i GetDailySalesRow
		if err := rows.Scan(
			&i.SaleDate,
			&i.PaymentMethod,
			&i.BillCount,
			&i.Subtotal,
			&i.DiscountAmount,
			&i.TaxAmount,
			&i.FinalAmount,
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
