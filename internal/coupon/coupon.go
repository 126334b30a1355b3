// Package coupon decides whether a coupon applies to an order amount and
// what it is worth. The discount is computed with the billing engine's
// formula so checkout re-derives the same figure.
package coupon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tableorder/api/internal/billing"
	"github.com/tableorder/api/internal/database"
)

var (
	ErrInvalidCode   = errors.New("coupon not found or inactive")
	ErrNotStarted    = errors.New("coupon not started")
	ErrExpired       = errors.New("coupon expired")
	ErrUsageLimit    = errors.New("coupon usage limit reached")
	ErrMinOrder      = errors.New("order below coupon minimum")
	ErrInvalidAmount = errors.New("invalid order amount")
)

// RejectionError carries the message shown next to the coupon input.
type RejectionError struct {
	Reason  error
	Message string
}

func (e *RejectionError) Error() string { return e.Message }
func (e *RejectionError) Unwrap() error { return e.Reason }

func reject(reason error, msg string) *RejectionError {
	return &RejectionError{Reason: reason, Message: msg}
}

// IsRejection reports whether err is a coupon rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// Message returns the user-facing text of a rejection, or "" otherwise.
func Message(err error) string {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Message
	}
	return ""
}

func NotFound() error {
	return reject(ErrInvalidCode, "Mã giảm giá không hợp lệ.")
}

// Evaluate checks c against orderAmount at time now and returns the
// rounded discount it grants.
func Evaluate(c database.Coupon, orderAmount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if orderAmount.IsNegative() {
		return decimal.Zero, reject(ErrInvalidAmount, "Số tiền đơn hàng không hợp lệ.")
	}
	if !c.IsActive {
		return decimal.Zero, NotFound()
	}
	if c.StartsAt.Valid && now.Before(c.StartsAt.Time) {
		return decimal.Zero, reject(ErrNotStarted, "Mã giảm giá chưa đến thời gian áp dụng.")
	}
	if c.ExpiresAt.Valid && !now.Before(c.ExpiresAt.Time) {
		return decimal.Zero, reject(ErrExpired, "Mã giảm giá đã hết hạn.")
	}
	if c.UsageLimit.Valid && c.UsedCount >= c.UsageLimit.Int32 {
		return decimal.Zero, reject(ErrUsageLimit, "Mã giảm giá đã hết lượt sử dụng.")
	}
	minAmount := database.NumericToDecimal(c.MinOrderAmount)
	if orderAmount.LessThan(minAmount) {
		return decimal.Zero, reject(ErrMinOrder,
			"Đơn hàng chưa đủ điều kiện áp dụng mã (tối thiểu "+FormatVND(minAmount)+").")
	}
	return billing.RoundMoney(billing.DiscountAmount(orderAmount, string(c.DiscountType), database.NumericToDecimal(c.DiscountValue))), nil
}

// AsDiscount converts c into the discount the billing engine applies.
func AsDiscount(c database.Coupon) billing.Discount {
	id := c.ID
	return billing.Discount{
		Type:     string(c.DiscountType),
		Value:    database.NumericToDecimal(c.DiscountValue),
		CouponID: &id,
	}
}

// FormatVND renders an amount as "50.000₫", rounded to whole dong.
func FormatVND(amount decimal.Decimal) string {
	return message.NewPrinter(language.Vietnamese).Sprintf("%d₫", amount.Round(0).IntPart())
}
