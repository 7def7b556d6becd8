package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Number is a numeric column value that tolerates the shapes MySQL hands back
// for DECIMAL, aggregate and loosely typed columns: integers, floats, textual
// numbers and NULL. Anything that does not parse as a finite number scans as an
// invalid Number, which reads as zero.
type Number struct {
	Decimal decimal.Decimal
	Valid   bool
}

// NewNumber returns a valid Number holding v.
func NewNumber(v float64) Number {
	return Number{Decimal: decimal.NewFromFloat(v), Valid: true}
}

// Scan implements sql.Scanner. It never fails: unparseable input yields an
// invalid Number.
func (n *Number) Scan(src any) error {
	*n = Number{}
	switch v := src.(type) {
	case nil:
	case int64:
		n.Decimal, n.Valid = decimal.NewFromInt(v), true
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			n.Decimal, n.Valid = decimal.NewFromFloat(v), true
		}
	case bool:
		if v {
			n.Decimal = decimal.NewFromInt(1)
		}
		n.Valid = true
	case []byte:
		n.parse(string(v))
	case string:
		n.parse(v)
	}
	return nil
}

func (n *Number) parse(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return
	}
	n.Decimal, n.Valid = d, true
}

// Float64 returns the value, or 0 when the column was NULL or unparseable.
func (n Number) Float64() float64 {
	if !n.Valid {
		return 0
	}
	f, _ := n.Decimal.Float64()
	return f
}

// Int64 returns the integer part of the value, or 0 when invalid.
func (n Number) Int64() int64 {
	if !n.Valid {
		return 0
	}
	return n.Decimal.IntPart()
}

func (n Number) String() string {
	if !n.Valid {
		return "NULL"
	}
	return fmt.Sprint(n.Decimal)
}
