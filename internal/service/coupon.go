package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/coupon"
	"github.com/tableorder/api/internal/database"
)

// CouponStore is the lookup CouponService needs.
type CouponStore interface {
	GetCouponByCode(ctx context.Context, code string) (database.Coupon, error)
}

// CouponValidation is the answer shown next to the coupon input.
type CouponValidation struct {
	Valid          bool             `json:"valid"`
	Coupon         *database.Coupon `json:"coupon,omitempty"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	Message        string           `json:"message"`
}

// CouponService checks coupon codes against an order amount.
type CouponService struct {
	store CouponStore
	now   func() time.Time
}

// NewCouponService creates a new CouponService.
func NewCouponService(store CouponStore) *CouponService {
	return &CouponService{store: store, now: time.Now}
}

// Validate looks up code and evaluates it against orderAmount. Rejections
// are returned as *coupon.RejectionError carrying the display message.
func (s *CouponService) Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (CouponValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return CouponValidation{}, coupon.NotFound()
	}
	c, err := s.store.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CouponValidation{}, coupon.NotFound()
		}
		return CouponValidation{}, fmt.Errorf("get coupon: %w", err)
	}
	amount, err := coupon.Evaluate(c, orderAmount, s.now())
	if err != nil {
		return CouponValidation{}, err
	}
	return CouponValidation{
		Valid:          true,
		Coupon:         &c,
		DiscountAmount: amount,
		Message:        "Áp dụng mã giảm giá thành công (-" + coupon.FormatVND(amount) + ").",
	}, nil
}
