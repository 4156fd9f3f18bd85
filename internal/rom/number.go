package rom

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"os4/internal/buffer"
)

var (
	// ErrOutOfRange is returned for numbers beyond 9.999999999E99.
	ErrOutOfRange = errors.New("out of range")
	// ErrNotNumber is returned when a register does not hold a number.
	ErrNotNumber = errors.New("register does not hold a number")
)

// A number register holds 14 BCD nibbles: sign, ten mantissa digits,
// exponent sign and two exponent digits. Sign nibbles are 0 or 9.
const (
	mantDigits = 10
	nibbles    = 2 * buffer.RegisterSize
	negNibble  = 9
)

// EncodeNumber packs v into a register. Numbers too small for the exponent
// range become zero.
func EncodeNumber(v float64) (buffer.Register, error) {
	var r buffer.Register
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return r, ErrOutOfRange
	}
	if v == 0 {
		return r, nil
	}
	text := strconv.FormatFloat(math.Abs(v), 'e', mantDigits-1, 64)
	// d.ddddddddde+xx
	exp, err := strconv.Atoi(text[mantDigits+2:])
	if err != nil {
		return r, fmt.Errorf("encode %g: %w", v, err)
	}
	if exp > 99 {
		return r, fmt.Errorf("%g: %w", v, ErrOutOfRange)
	}
	if exp < -99 {
		return r, nil
	}

	var n [nibbles]byte
	if v < 0 {
		n[0] = negNibble
	}
	n[1] = text[0] - '0'
	for i := 0; i < mantDigits-1; i++ {
		n[2+i] = text[2+i] - '0'
	}
	if exp < 0 {
		n[11] = negNibble
		exp = -exp
	}
	n[12] = byte(exp / 10)
	n[13] = byte(exp % 10)
	for i := range r {
		r[i] = n[2*i]<<4 | n[2*i+1]
	}
	return r, nil
}

// DecodeNumber unpacks a register written by EncodeNumber.
func DecodeNumber(r buffer.Register) (float64, error) {
	var n [nibbles]byte
	for i, b := range r {
		n[2*i] = b >> 4
		n[2*i+1] = b & 0x0f
	}
	if (n[0] != 0 && n[0] != negNibble) || (n[11] != 0 && n[11] != negNibble) {
		return 0, ErrNotNumber
	}
	buf := make([]byte, 0, 16)
	if n[0] == negNibble {
		buf = append(buf, '-')
	}
	for i := 1; i <= mantDigits; i++ {
		if n[i] > 9 {
			return 0, ErrNotNumber
		}
		buf = append(buf, '0'+n[i])
		if i == 1 {
			buf = append(buf, '.')
		}
	}
	buf = append(buf, 'e')
	if n[11] == negNibble {
		buf = append(buf, '-')
	}
	if n[12] > 9 || n[13] > 9 {
		return 0, ErrNotNumber
	}
	buf = append(buf, '0'+n[12], '0'+n[13])
	return strconv.ParseFloat(string(buf), 64)
}

// FormatNumber renders v the way the display shows it: FIX 4, switching to
// scientific notation when fixed point would lose the number.
func FormatNumber(v float64) string {
	a := math.Abs(v)
	if a != 0 && (a >= 1e10 || a < 1e-4) {
		return strconv.FormatFloat(v, 'E', 4, 64)
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
