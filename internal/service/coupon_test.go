package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/coupon"
	"github.com/tableorder/api/internal/database"
)

type mockCouponStore struct {
	getCouponByCodeFn func(ctx context.Context, code string) (database.Coupon, error)
}

func (m *mockCouponStore) GetCouponByCode(ctx context.Context, code string) (database.Coupon, error) {
	return m.getCouponByCodeFn(ctx, code)
}

func newTestCouponService(c *database.Coupon) *CouponService {
	svc := NewCouponService(&mockCouponStore{
		getCouponByCodeFn: func(ctx context.Context, code string) (database.Coupon, error) {
			if c == nil || code != c.Code {
				return database.Coupon{}, pgx.ErrNoRows
			}
			return *c, nil
		},
	})
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestCouponValidate_Fixed(t *testing.T) {
	c := &database.Coupon{
		Code:           "GIAM20K",
		DiscountType:   database.DiscountTypeFixed,
		DiscountValue:  makeNumeric("20000"),
		MinOrderAmount: makeNumeric("0"),
		IsActive:       true,
	}
	svc := newTestCouponService(c)

	res, err := svc.Validate(context.Background(), " GIAM20K ", decimal.NewFromInt(50000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Valid {
		t.Error("expected valid")
	}
	if !res.DiscountAmount.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("discount = %s, want 20000", res.DiscountAmount)
	}
	if res.Message == "" || res.Coupon == nil {
		t.Errorf("expected coupon and message, got %+v", res)
	}
}

func TestCouponValidate_PercentClampedToAmount(t *testing.T) {
	c := &database.Coupon{
		Code:           "HALF",
		DiscountType:   database.DiscountTypePercent,
		DiscountValue:  makeNumeric("150"),
		MinOrderAmount: makeNumeric("0"),
		IsActive:       true,
	}
	svc := newTestCouponService(c)

	res, err := svc.Validate(context.Background(), "HALF", decimal.NewFromInt(100000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.DiscountAmount.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("discount = %s, want clamp to 100000", res.DiscountAmount)
	}
}

func TestCouponValidate_Rejections(t *testing.T) {
	active := database.Coupon{
		Code:           "SALE",
		DiscountType:   database.DiscountTypePercent,
		DiscountValue:  makeNumeric("10"),
		MinOrderAmount: makeNumeric("100000"),
		IsActive:       true,
	}
	expired := active
	expired.ExpiresAt = pgtype.Timestamptz{Time: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Valid: true}
	usedUp := active
	usedUp.UsageLimit = pgtype.Int4{Int32: 5, Valid: true}
	usedUp.UsedCount = 5

	tests := []struct {
		name    string
		coupon  *database.Coupon
		code    string
		amount  int64
		wantErr error
	}{
		{"unknown code", &active, "NOPE", 200000, coupon.ErrInvalidCode},
		{"blank code", &active, "  ", 200000, coupon.ErrInvalidCode},
		{"below minimum", &active, "SALE", 50000, coupon.ErrMinOrder},
		{"expired", &expired, "SALE", 200000, coupon.ErrExpired},
		{"usage limit", &usedUp, "SALE", 200000, coupon.ErrUsageLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestCouponService(tt.coupon)
			_, err := svc.Validate(context.Background(), tt.code, decimal.NewFromInt(tt.amount))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if coupon.Message(err) == "" {
				t.Error("rejection must carry a display message")
			}
		})
	}
}

func TestCouponValidate_StoreError(t *testing.T) {
	svc := NewCouponService(&mockCouponStore{
		getCouponByCodeFn: func(ctx context.Context, code string) (database.Coupon, error) {
			return database.Coupon{}, errors.New("db down")
		},
	})
	_, err := svc.Validate(context.Background(), "SALE", decimal.NewFromInt(1))
	if err == nil || coupon.IsRejection(err) {
		t.Fatalf("expected plain error, got %v", err)
	}
}
