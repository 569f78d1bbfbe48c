// Package models contains shared data models used across the consulta codebase.
package models

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Credits is an amount of prepaid credit in hundredths of a currency unit.
// All arithmetic is integer-only; 12 == 0.12.
type Credits int64

// ParseCredits parses a decimal amount such as "10", "0.5" or "12.34".
// More than two fractional digits is an error.
func ParseCredits(s string) (Credits, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, fmt.Errorf("credits: empty amount")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if (whole == "" && frac == "") || !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("credits: invalid amount %q", s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("credits: %q has more than two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("credits: amount %q out of range", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("credits: invalid amount %q", s)
	}

	c := Credits(w*100 + f)
	if neg {
		c = -c
	}
	return c, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String formats the amount with exactly two decimal places.
func (c Credits) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float64 returns the amount in currency units.
func (c Credits) Float64() float64 {
	return float64(c) / 100
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (c Credits) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (c *Credits) UnmarshalJSON(b []byte) error {
	parsed, err := ParseCredits(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scan implements sql.Scanner for BIGINT columns.
func (c *Credits) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*c = Credits(v)
	case int32:
		*c = Credits(v)
	case nil:
		*c = 0
	default:
		return fmt.Errorf("credits: cannot scan %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (c Credits) Value() (driver.Value, error) {
	return int64(c), nil
}
