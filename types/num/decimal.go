package num

import (
	"github.com/shopspring/decimal"
)

// Decimal is an arbitrary precision decimal, used wherever a ratio of raw
// token quantities has to leave the integer domain (density checks, volume
// estimates, values crossing the query surface).
type Decimal = decimal.Decimal

func NewDecimalFromFloat(f float64) Decimal {
	return decimal.NewFromFloat(f)
}

func DecimalZero() Decimal {
	return decimal.Zero
}

func DecimalOne() Decimal {
	return decimal.NewFromInt(1)
}

func DecimalFromInt64(i int64) Decimal {
	return decimal.NewFromInt(i)
}

func DecimalFromUint(u *Uint) Decimal {
	return decimal.NewFromBigInt(u.BigInt(), 0)
}

func DecimalFromString(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}

// MustDecimalFromString parses the given string, panics on invalid input.
// For use with constants in code and in tests.
func MustDecimalFromString(s string) Decimal {
	d, err := DecimalFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MaxD returns the largest of the 2 decimals.
func MaxD(a, b Decimal) Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MinD returns the smallest of the 2 decimals.
func MinD(a, b Decimal) Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
