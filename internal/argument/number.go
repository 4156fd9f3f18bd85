package argument

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"os4/internal/keys"
)

// ErrBadNumber is returned for input that does not form a number.
var ErrBadNumber = errors.New("bad number")

// Mask selects the optional keys accepted while a number is entered.
type Mask uint8

const (
	// AllowEEX accepts the exponent key without ending the entry.
	AllowEEX Mask = 1 << 0
	// AllowDecimal accepts a decimal point.
	AllowDecimal Mask = 1 << 1
)

// MaskOf combines options into a mask.
func MaskOf(opts ...Mask) Mask {
	var m Mask
	for _, o := range opts {
		m |= o
	}
	return m
}

// Has reports whether every bit of o is in m.
func (m Mask) Has(o Mask) bool { return m&o == o }

// ParseNumber parses entry text: optional sign, digits, an optional decimal
// point and, when the mask allows it, an exponent ("E" followed by an
// optionally signed integer). A leading "E" reads as 1E.
func ParseNumber(text string, mask Mask) (float64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("empty input: %w", ErrBadNumber)
	}
	mant, exp, hasExp := strings.Cut(strings.ToUpper(s), "E")
	if hasExp && !mask.Has(AllowEEX) {
		return 0, fmt.Errorf("%q: exponent not allowed: %w", text, ErrBadNumber)
	}
	sign := ""
	if strings.HasPrefix(mant, "-") {
		sign, mant = "-", mant[1:]
	}
	if strings.Contains(mant, ".") && !mask.Has(AllowDecimal) {
		return 0, fmt.Errorf("%q: decimal point not allowed: %w", text, ErrBadNumber)
	}
	if mant == "" || mant == "." {
		if !hasExp {
			return 0, fmt.Errorf("%q: %w", text, ErrBadNumber)
		}
		mant = "1"
	}
	for _, r := range mant {
		if (r < '0' || r > '9') && r != '.' {
			return 0, fmt.Errorf("%q: %w", text, ErrBadNumber)
		}
	}
	if strings.Count(mant, ".") > 1 {
		return 0, fmt.Errorf("%q: %w", text, ErrBadNumber)
	}
	lit := sign + mant
	if hasExp {
		e := strings.TrimPrefix(exp, "-")
		if strings.Trim(e, "0123456789") != "" {
			return 0, fmt.Errorf("%q: bad exponent: %w", text, ErrBadNumber)
		}
		if e == "" {
			exp = "0"
		}
		lit += "e" + exp
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", text, ErrBadNumber)
	}
	return v, nil
}

// KeyText returns the entry text a key contributes, if any.
func KeyText(c keys.Code) (string, bool) {
	if d, ok := c.Digit(); ok {
		return strconv.Itoa(d), true
	}
	switch c {
	case keys.KeyEEX:
		return "E", true
	case keys.KeyDot:
		return ".", true
	case keys.KeyCHS:
		return "-", true
	}
	return "", false
}

// ParseNumberInput parses a number typed as a key sequence. CHS toggles
// the sign of the mantissa, or of the exponent once EEX has been pressed.
func ParseNumberInput(seq []keys.Code, mask Mask) (float64, error) {
	var f field
	for _, c := range seq {
		if !f.add(c, mask) {
			return 0, fmt.Errorf("key %s: %w", c.Name(), ErrBadNumber)
		}
	}
	return ParseNumber(f.String(), mask)
}

// field is one numeric input field being typed.
type field struct {
	neg    bool
	mant   string
	exp    string
	eex    bool
	expNeg bool
}

func (f *field) digits() int { return len(strings.ReplaceAll(f.mant, ".", "")) }

func (f *field) empty() bool { return f.mant == "" && !f.eex && !f.neg }

// add applies one key and reports whether it was accepted.
func (f *field) add(c keys.Code, mask Mask) bool {
	if d, ok := c.Digit(); ok {
		if f.eex {
			if len(f.exp) >= 2 {
				return false
			}
			f.exp += strconv.Itoa(d)
		} else {
			f.mant += strconv.Itoa(d)
		}
		return true
	}
	switch c {
	case keys.KeyDot:
		if !mask.Has(AllowDecimal) || f.eex || strings.Contains(f.mant, ".") {
			return false
		}
		f.mant += "."
	case keys.KeyEEX:
		if !mask.Has(AllowEEX) || f.eex {
			return false
		}
		f.eex = true
	case keys.KeyCHS:
		if f.eex {
			f.expNeg = !f.expNeg
		} else {
			f.neg = !f.neg
		}
	default:
		return false
	}
	return true
}

// back removes the last thing typed and reports whether anything was left
// to remove.
func (f *field) back() bool {
	switch {
	case f.eex && f.exp != "":
		f.exp = f.exp[:len(f.exp)-1]
	case f.eex:
		f.eex, f.expNeg = false, false
	case f.mant != "":
		f.mant = f.mant[:len(f.mant)-1]
	case f.neg:
		f.neg = false
	default:
		return false
	}
	return true
}

func (f field) String() string {
	var b strings.Builder
	if f.neg {
		b.WriteByte('-')
	}
	b.WriteString(f.mant)
	if f.eex {
		b.WriteByte('E')
		if f.expNeg {
			b.WriteByte('-')
		}
		b.WriteString(f.exp)
	}
	return b.String()
}
