package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Cents is a monetary amount in hundredths of the store currency.
// All arithmetic in the order pipeline happens on this fixed-point
// representation; values are rendered as two-decimal strings at the edges.
type Cents int64

// String renders the amount as a two-decimal string, e.g. "250.00".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders the amount as a JSON string with two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

// UnmarshalJSON accepts either a decimal string ("250.00") or a JSON
// number interpreted in currency units.
func (c *Cents) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*c = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	parsed, err := ParseCents(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCents parses a decimal amount with at most two fraction digits.
func ParseCents(value string) (Cents, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("money: empty amount")
	}

	negative := false
	switch value[0] {
	case '-':
		negative = true
		value = value[1:]
	case '+':
		value = value[1:]
	}

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("money: invalid amount %q", value)
	}

	var hundredths int64
	if frac != "" {
		if len(frac) > 2 {
			return 0, fmt.Errorf("money: amount %q has more than two decimals", value)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		hundredths, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("money: invalid amount %q", value)
		}
	}

	total := units*100 + hundredths
	if negative {
		total = -total
	}
	return Cents(total), nil
}

// MulQuantity multiplies a unit price by a line quantity.
func MulQuantity(unit Cents, quantity int) Cents {
	return unit * Cents(quantity)
}

// PercentOf computes percent of amount rounded half-up to the nearest cent.
func PercentOf(amount Cents, percent int64) Cents {
	if amount <= 0 || percent <= 0 {
		return 0
	}
	return Cents((int64(amount)*percent + 50) / 100)
}
