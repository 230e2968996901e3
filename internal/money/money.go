// Package money provides the fixed-point monetary value type used by every
// financial computation in the system. Values carry two fractional digits
// (cent scale); all arithmetic is exact except where a rounding rule is
// documented on the operation.
package money

import (
	"database/sql/driver"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

const scale = 2

// Money is a decimal currency amount at cent scale. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// FromString parses a decimal string such as "1210.00" or "-50.5".
// The result is rounded half-up to the cent.
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, shared.ErrInvalidAmount)
	}
	return Money{d: d.Round(scale)}, nil
}

// FromFloat converts a binary float to Money, rounding half-up to the cent.
// The conversion is lossy; use it only at system boundaries that still carry
// floats. NaN and infinities are rejected.
func FromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, fmt.Errorf("money: non-finite float: %w", shared.ErrInvalidAmount)
	}
	return Money{d: decimal.NewFromFloat(f).Round(scale)}, nil
}

// FromMinorUnits builds Money from an integer count of cents.
func FromMinorUnits(cents int64) Money {
	return Money{d: decimal.New(cents, -scale)}
}

// FromDecimal rounds an arbitrary decimal half-up to the cent.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(scale)}
}

// MustParse parses a literal amount and panics on failure. Test helper and
// seed-data use only.
func MustParse(s string) Money {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + o exactly.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// Sub returns m - o exactly.
func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// MulQuantity multiplies by a decimal quantity and rounds half-up to the cent.
func (m Money) MulQuantity(q decimal.Decimal) Money {
	return Money{d: m.d.Mul(q).Round(scale)}
}

// MulPercent applies a percent rate (e.g. 21 for 21 %) and rounds half-up to
// the cent.
func (m Money) MulPercent(rate decimal.Decimal) Money {
	return Money{d: m.d.Mul(rate).Div(decimal.NewFromInt(100)).Round(scale)}
}

// Div divides by a non-zero decimal and rounds half-up to the cent.
func (m Money) Div(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, fmt.Errorf("money: division by zero: %w", shared.ErrInvalidAmount)
	}
	return Money{d: m.d.DivRound(divisor, scale)}, nil
}

// Cmp compares two amounts: -1 if m < o, 0 if equal, 1 if m > o.
func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

// Equal reports exact equality.
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// WithinCentOf reports whether |m - o| <= 0.01. Used only for the status
// machine tolerance, never for accounting sums.
func (m Money) WithinCentOf(o Money) bool {
	return m.d.Sub(o.d).Abs().LessThanOrEqual(decimal.New(1, -scale))
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// MinorUnits returns the amount as an integer count of cents.
func (m Money) MinorUnits() int64 {
	return m.d.Shift(scale).IntPart()
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixed(scale)
}

// MarshalJSON encodes the amount as a 2-decimal string, never a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer so Money binds to NUMERIC columns.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Zero()
		return nil
	case string:
		parsed, err := FromString(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case []byte:
		parsed, err := FromString(string(v))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case int64:
		*m = Money{d: decimal.NewFromInt(v)}
		return nil
	case float64:
		parsed, err := FromFloat(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T: %w", src, shared.ErrInvalidAmount)
	}
}

// Sum adds a slice of amounts.
func Sum(amounts ...Money) Money {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
