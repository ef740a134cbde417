package domain

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
)

// Money is a fixed-precision decimal amount with 2 fractional digits,
// stored internally as an integer count of cents to avoid floating-point
// drift on spend/revenue totals. It implements sql.Scanner/driver.Valuer so
// it round-trips through a NUMERIC column without a third-party decimal
// library.
type Money int64

// NewMoney builds a Money value from a float, rounding to the nearest cent.
func NewMoney(amount float64) Money {
	return Money(math.Round(amount * 100))
}

// Float64 returns the amount as a float64 dollar value.
func (m Money) Float64() float64 { return float64(m) / 100 }

// Mul scales the amount by a ratio, rounding to the nearest cent.
func (m Money) Mul(ratio float64) Money {
	return Money(math.Round(float64(m) * ratio))
}

func (m Money) String() string {
	return strconv.FormatFloat(m.Float64(), 'f', 2, 64)
}

// Scan implements sql.Scanner against a NUMERIC/float8 column.
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = 0
		return nil
	case float64:
		*m = NewMoney(v)
		return nil
	case int64:
		*m = Money(v * 100)
		return nil
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return fmt.Errorf("scan money: %w", err)
		}
		*m = NewMoney(f)
		return nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("scan money: %w", err)
		}
		*m = NewMoney(f)
		return nil
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
}

// Value implements driver.Valuer, writing the amount as a float64.
func (m Money) Value() (driver.Value, error) {
	return m.Float64(), nil
}

// RoundRatio rounds a ratio to 6 significant digits for KPI/trend persistence.
func RoundRatio(v float64) float64 {
	if v == 0 {
		return 0
	}
	mag := math.Ceil(math.Log10(math.Abs(v)))
	factor := math.Pow(10, 6-mag)
	return math.Round(v*factor) / factor
}

// Round4 rounds to 4 decimal places, used for confidence and accuracy scores.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Clamp01 clamps a value into the closed [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
