package database

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NumericToDecimal converts a pgtype.Numeric to a decimal. NULL and
// unparseable values become zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalToNumeric stores d with two fractional digits, matching the
// NUMERIC(14,2) money columns.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// NumericString formats a money column for JSON responses.
func NumericString(n pgtype.Numeric) string {
	return NumericToDecimal(n).StringFixed(2)
}
