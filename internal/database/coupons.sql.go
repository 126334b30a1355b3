package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const couponColumns = `id, code, discount_type, discount_value, min_order_amount, usage_limit,
       used_count, starts_at, expires_at, is_active, created_at`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var i Coupon
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.DiscountType,
		&i.DiscountValue,
		&i.MinOrderAmount,
		&i.UsageLimit,
		&i.UsedCount,
		&i.StartsAt,
		&i.ExpiresAt,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const getCouponByCode = `-- name: GetCouponByCode :one
SELECT ` + couponColumns + `
FROM coupons
WHERE code = upper($1)
`

func (q *Queries) GetCouponByCode(ctx context.Context, code string) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, getCouponByCode, code))
}

const getCoupon = `-- name: GetCoupon :one
SELECT ` + couponColumns + `
FROM coupons
WHERE id = $1
`

func (q *Queries) GetCoupon(ctx context.Context, id uuid.UUID) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, getCoupon, id))
}

const getCouponForUpdate = `-- name: GetCouponForUpdate :one
SELECT ` + couponColumns + `
FROM coupons
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetCouponForUpdate(ctx context.Context, id uuid.UUID) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, getCouponForUpdate, id))
}

// RedeemCoupon returns pgx.ErrNoRows when the usage limit was reached
// concurrently.
const redeemCoupon = `-- name: RedeemCoupon :one
UPDATE coupons SET used_count = used_count + 1
WHERE id = $1 AND is_active = TRUE AND (usage_limit IS NULL OR used_count < usage_limit)
RETURNING ` + couponColumns

func (q *Queries) RedeemCoupon(ctx context.Context, id uuid.UUID) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, redeemCoupon, id))
}

const createCoupon = `-- name: CreateCoupon :one
INSERT INTO coupons (code, discount_type, discount_value, min_order_amount, usage_limit, expires_at)
VALUES (upper($1), $2, $3, $4, $5, $6)
ON CONFLICT (code) DO UPDATE SET discount_value = EXCLUDED.discount_value
RETURNING ` + couponColumns

type CreateCouponParams struct {
	Code           string             `json:"code"`
	DiscountType   DiscountType       `json:"discount_type"`
	DiscountValue  pgtype.Numeric     `json:"discount_value"`
	MinOrderAmount pgtype.Numeric     `json:"min_order_amount"`
	UsageLimit     pgtype.Int4        `json:"usage_limit"`
	ExpiresAt      pgtype.Timestamptz `json:"expires_at"`
}

func (q *Queries) CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, createCoupon,
		arg.Code,
		arg.DiscountType,
		arg.DiscountValue,
		arg.MinOrderAmount,
		arg.UsageLimit,
		arg.ExpiresAt,
	))
}
