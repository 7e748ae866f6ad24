package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ─── Money ──────────────────────────────────────────────────────────────────
// Monetary amounts are an integer count of centavos. All arithmetic is
// integer-only; the wire and storage representation is a fixed two-decimal
// string ("45.00"), never a binary float. A running balance computed in
// float64 can report 0.01 outstanding on a fully paid account, which is why
// this type exists.

// Money is a monetary amount in centavos (1/100 of the major unit).
type Money int64

// Centavos returns the raw centavo count.
func (m Money) Centavos() int64 { return int64(m) }

// FromCentavos builds a Money from a raw centavo count.
func FromCentavos(n int64) Money { return Money(n) }

// ParseMoney parses a decimal string like "45.00", "45.5" or "45" into
// Money. At most two decimal places are accepted; a third would silently
// change the amount, so it is rejected instead.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("money: empty amount")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" || s == "." {
		return 0, fmt.Errorf("money: malformed amount %q", s)
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("money: more than two decimal places in %q", s)
	}
	// Only digits past this point: ParseInt would accept an inner sign,
	// quietly turning "5.-5" into 4.95.
	if !allDigits(intPart) || !allDigits(fracPart) {
		return 0, fmt.Errorf("money: malformed amount %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	// Right-pad the fraction to centavos: "5" means 50 centavos.
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	major, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("money: malformed amount %q", s)
	}
	minor, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("money: malformed amount %q", s)
	}

	total := major*100 + minor
	if neg {
		total = -total
	}
	return Money(total), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParseMoney is ParseMoney that panics on error. Intended for constants
// in tests and configuration defaults.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the amount with exactly two decimal places.
func (m Money) String() string {
	n := int64(m)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return m + o }

// Sub returns m - o without any floor.
func (m Money) Sub(o Money) Money { return m - o }

// SubFloor returns m - o clamped at zero. The second return value reports
// whether the subtraction underflowed (i.e. o > m) and the result was
// clamped.
func (m Money) SubFloor(o Money) (Money, bool) {
	r := m - o
	if r < 0 {
		return 0, true
	}
	return r, false
}

// Cmp compares two amounts: -1 if m < o, 0 if equal, 1 if m > o.
func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m == 0 }

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m > 0 }

// IsNegative reports whether the amount is less than zero.
func (m Money) IsNegative() bool { return m < 0 }

// MarshalJSON encodes the amount as a decimal string: "45.00".
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a decimal string ("45.00"). Numeric JSON values are
// rejected: the API contract transmits money as strings only.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("money: expected a decimal string, got %s", string(data))
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
