// Package billing computes bills from order lines. Compute is a pure
// function of its inputs so a preview and the checkout that follows it
// produce the same figures and the same digest.
package billing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/enum"
	"github.com/tableorder/api/internal/orderflow"
)

// CurrencyScale is the number of minor-unit digits kept on money amounts.
// VND has none.
const CurrencyScale int32 = 0

var (
	VATRate = decimal.RequireFromString("0.10")
	hundred = decimal.NewFromInt(100)
)

var (
	ErrInvalidDiscountType  = errors.New("invalid discount_type")
	ErrInvalidDiscountValue = errors.New("invalid discount_value")
)

type Modifier struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Line is one order item as persisted.
type Line struct {
	ItemID    uuid.UUID                `json:"item_id"`
	OrderID   uuid.UUID                `json:"order_id"`
	Name      string                   `json:"name"`
	Quantity  int32                    `json:"quantity"`
	UnitPrice decimal.Decimal          `json:"unit_price"`
	Modifiers []Modifier               `json:"modifiers"`
	Status    database.OrderItemStatus `json:"status"`
	CreatedAt time.Time                `json:"created_at"`
}

// LineTotal is quantity × unit price plus the line's modifier prices.
func (l Line) LineTotal() decimal.Decimal {
	total := l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
	for _, m := range l.Modifiers {
		total = total.Add(m.Price)
	}
	return total
}

// Discount is the discount applied to a bill. A zero value means none.
type Discount struct {
	Type     string          `json:"discount_type,omitempty"`
	Value    decimal.Decimal `json:"discount_value"`
	CouponID *uuid.UUID      `json:"coupon_id,omitempty"`
}

func (d Discount) IsZero() bool {
	return d.Type == "" && d.CouponID == nil
}

// Validate checks a manually entered discount.
func (d Discount) Validate() error {
	if d.Type == "" {
		if !d.Value.IsZero() {
			return ErrInvalidDiscountType
		}
		return nil
	}
	if !enum.IsDiscountType(d.Type) {
		return ErrInvalidDiscountType
	}
	if d.Value.IsNegative() {
		return ErrInvalidDiscountValue
	}
	return nil
}

// Resolve picks the discount to apply. A coupon replaces any manual
// discount; the two are never combined.
func Resolve(manual Discount, coupon *Discount) Discount {
	if coupon != nil {
		return *coupon
	}
	return manual
}

// BillLine is a billed line with its computed subtotal.
type BillLine struct {
	Line
	Subtotal decimal.Decimal `json:"subtotal"`
}

type Bill struct {
	Items          []BillLine      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountType   string          `json:"discount_type,omitempty"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	CouponID       *uuid.UUID      `json:"coupon_id,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	// TransferAmount rounds the unrounded final amount up, so a bank
	// transfer never under-charges.
	TransferAmount decimal.Decimal `json:"transfer_amount"`
	Digest         string          `json:"digest"`
}

// DiscountAmount returns the discount a type/value pair yields on subtotal,
// unrounded and clamped to [0, subtotal].
func DiscountAmount(subtotal decimal.Decimal, discountType string, value decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch discountType {
	case enum.DiscountTypePercent:
		amount = subtotal.Mul(value).Div(hundred)
	case enum.DiscountTypeFixed:
		amount = value
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// RoundMoney rounds half away from zero to the currency scale.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyScale)
}

// Compute builds the bill for lines under discount d. Only billable lines
// are charged; lines are ordered by creation time then id.
func Compute(lines []Line, d Discount) Bill {
	billable := make([]Line, 0, len(lines))
	for _, l := range lines {
		if orderflow.Billable(l.Status) {
			billable = append(billable, l)
		}
	}
	sort.SliceStable(billable, func(i, j int) bool {
		if !billable[i].CreatedAt.Equal(billable[j].CreatedAt) {
			return billable[i].CreatedAt.Before(billable[j].CreatedAt)
		}
		return bytes.Compare(billable[i].ItemID[:], billable[j].ItemID[:]) < 0
	})

	b := Bill{
		Items:         make([]BillLine, 0, len(billable)),
		Subtotal:      decimal.Zero,
		DiscountType:  d.Type,
		DiscountValue: d.Value,
		CouponID:      d.CouponID,
		TaxRate:       VATRate,
	}
	for _, l := range billable {
		sub := l.LineTotal()
		b.Items = append(b.Items, BillLine{Line: l, Subtotal: sub})
		b.Subtotal = b.Subtotal.Add(sub)
	}

	rawDiscount := DiscountAmount(b.Subtotal, d.Type, d.Value)
	rawTax := b.Subtotal.Sub(rawDiscount).Mul(VATRate)
	rawFinal := b.Subtotal.Sub(rawDiscount).Add(rawTax)

	b.DiscountAmount = RoundMoney(rawDiscount)
	b.TaxAmount = RoundMoney(b.Subtotal.Sub(b.DiscountAmount).Mul(VATRate))
	b.FinalAmount = RoundMoney(b.Subtotal.Sub(b.DiscountAmount).Add(b.TaxAmount))
	b.TransferAmount = rawFinal.Ceil()
	if b.TransferAmount.LessThan(b.FinalAmount) {
		b.TransferAmount = b.FinalAmount
	}
	b.Digest = digest(b)
	return b
}

// digest hashes a canonical rendering of the bill's inputs and outputs.
// Decimals are written at a fixed scale so 50000 and 50000.00 hash alike.
func digest(b Bill) string {
	h := sha256.New()
	for _, l := range b.Items {
		fmt.Fprintf(h, "item|%s|%s|%d|%s", l.ItemID, l.OrderID, l.Quantity, canonical(l.UnitPrice))
		for _, m := range l.Modifiers {
			fmt.Fprintf(h, "|mod:%s:%s", m.Name, canonical(m.Price))
		}
		fmt.Fprintf(h, "|%s\n", canonical(l.Subtotal))
	}
	coupon := ""
	if b.CouponID != nil {
		coupon = b.CouponID.String()
	}
	fmt.Fprintf(h, "discount|%s|%s|%s\n", b.DiscountType, canonical(b.DiscountValue), coupon)
	fmt.Fprintf(h, "totals|%s|%s|%s|%s|%s|%s\n",
		canonical(b.Subtotal),
		canonical(b.DiscountAmount),
		canonical(b.TaxRate),
		canonical(b.TaxAmount),
		canonical(b.FinalAmount),
		canonical(b.TransferAmount),
	)
	return hex.EncodeToString(h.Sum(nil))
}

func canonical(d decimal.Decimal) string {
	return d.StringFixed(2)
}
