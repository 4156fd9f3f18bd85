// Package keys models the calculator keyboard: key codes, key table entries,
// dense and sparse key tables, and a builder that turns symbolic action
// names into jump table indices.
package keys

import (
	"fmt"
	"strconv"
	"strings"
)

// Code identifies a physical key on one of the two planes (unshifted and
// shifted). Code(0) means no key. Valid codes are 1..Count.
type Code uint8

const (
	Rows      = 8
	Columns   = 5
	PlaneSize = Rows * Columns
	Count     = 2 * PlaneSize
)

// None is the absent key.
const None Code = 0

var unshiftedNames = [Rows][Columns]string{
	{"SIGMA+", "1/X", "SQRT", "LOG", "LN"},
	{"X<>Y", "RDN", "SIN", "COS", "TAN"},
	{"SHIFT", "XEQ", "STO", "RCL", "SST"},
	{"ENTER", "CHS", "EEX", "BACK"},
	{"-", "7", "8", "9"},
	{"+", "4", "5", "6"},
	{"*", "1", "2", "3"},
	{"/", "0", ".", "R/S"},
}

var shiftedNames = [Rows][Columns]string{
	{"SIGMA-", "Y^X", "X^2", "10^X", "E^X"},
	{"CLSIGMA", "%", "ASIN", "ACOS", "ATAN"},
	{"SHIFT", "ASN", "LBL", "GTO", "BST"},
	{"CATALOG", "ISG", "RTN", "CLX"},
	{"X=Y?", "SF", "CF", "FS?"},
	{"X<=Y?", "BEEP", "P-R", "R-P"},
	{"X>Y?", "FIX", "SCI", "ENG"},
	{"X=0?", "PI", "LASTX", "VIEW"},
}

// columns returns how many keys a row has.
func columns(row int) int {
	if row <= 3 {
		return 5
	}
	return 4
}

// Key returns the unshifted code at row, col (both 1-based), or None.
func Key(row, col int) Code {
	if row < 1 || row > Rows || col < 1 || col > columns(row) {
		return None
	}
	return Code(1 + (row-1)*Columns + (col - 1))
}

// ShiftedKey returns the shifted code at row, col, or None.
func ShiftedKey(row, col int) Code {
	k := Key(row, col)
	if k == None {
		return None
	}
	return k + PlaneSize
}

// Frequently used keys.
var (
	KeyShift = Key(3, 1)
	KeyXEQ   = Key(3, 2)
	KeySST   = Key(3, 5)
	KeyBST   = ShiftedKey(3, 5)
	KeyEnter = Key(4, 1)
	KeyCHS   = Key(4, 2)
	KeyEEX   = Key(4, 3)
	KeyBack  = Key(4, 4)
	KeyDot   = Key(8, 3)
	KeyRS    = Key(8, 4)
	KeyCAT   = ShiftedKey(4, 1)
)

var digitKeys = [10]Code{
	Key(8, 2),
	Key(7, 2), Key(7, 3), Key(7, 4),
	Key(6, 2), Key(6, 3), Key(6, 4),
	Key(5, 2), Key(5, 3), Key(5, 4),
}

// DigitKey returns the key for digit d.
func DigitKey(d int) Code {
	if d < 0 || d > 9 {
		return None
	}
	return digitKeys[d]
}

// Digit returns the digit value of an unshifted digit key.
func (c Code) Digit() (int, bool) {
	for d, k := range digitKeys {
		if k == c {
			return d, true
		}
	}
	return 0, false
}

// Valid reports whether c is a key that exists.
func (c Code) Valid() bool {
	if c == None || int(c) > Count {
		return false
	}
	u := c.Unshifted()
	return int(u-1)%Columns < columns(c.Row())
}

// Index returns the 0-based table index of c.
func (c Code) Index() int { return int(c) - 1 }

// Shifted reports whether c is on the shifted plane.
func (c Code) Shifted() bool { return int(c) > PlaneSize }

// Unshifted returns the same key on the unshifted plane.
func (c Code) Unshifted() Code {
	if c.Shifted() {
		return c - PlaneSize
	}
	return c
}

// Shift returns the same key on the shifted plane.
func (c Code) Shift() Code {
	if c == None || c.Shifted() {
		return c
	}
	return c + PlaneSize
}

// Row returns the 1-based keyboard row.
func (c Code) Row() int { return int(c.Unshifted()-1)/Columns + 1 }

// Col returns the 1-based keyboard column.
func (c Code) Col() int { return int(c.Unshifted()-1)%Columns + 1 }

// String returns the conventional row/column key code, negative when shifted.
func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
	n := c.Row()*10 + c.Col()
	if c.Shifted() {
		n = -n
	}
	return strconv.Itoa(n)
}

// Name returns the key legend.
func (c Code) Name() string {
	if !c.Valid() {
		return c.String()
	}
	if c.Shifted() {
		return shiftedNames[c.Row()-1][c.Col()-1]
	}
	return unshiftedNames[c.Row()-1][c.Col()-1]
}

// Parse accepts a legend ("LN"), a shifted legend prefixed with ^ ("^LN"),
// the shifted legend itself ("E^X") or a numeric row/column code ("15", "-15").
func Parse(s string) (Code, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return None, fmt.Errorf("empty key name")
	}
	if n, err := strconv.Atoi(name); err == nil && (n > 9 || n < -9) {
		shifted := n < 0
		if shifted {
			n = -n
		}
		var c Code
		if shifted {
			c = ShiftedKey(n/10, n%10)
		} else {
			c = Key(n/10, n%10)
		}
		if c == None {
			return None, fmt.Errorf("no key with code %s", s)
		}
		return c, nil
	}
	if strings.HasPrefix(name, "^") && len(name) > 1 {
		c, err := Parse(name[1:])
		if err != nil {
			return None, err
		}
		return c.Shift(), nil
	}
	for r := 0; r < Rows; r++ {
		for col := 0; col < columns(r+1); col++ {
			if unshiftedNames[r][col] == name {
				return Key(r+1, col+1), nil
			}
		}
	}
	for r := 0; r < Rows; r++ {
		for col := 0; col < columns(r+1); col++ {
			if shiftedNames[r][col] == name {
				return ShiftedKey(r+1, col+1), nil
			}
		}
	}
	return None, fmt.Errorf("unknown key %q", s)
}

// All returns every valid key, unshifted plane first.
func All() []Code {
	out := make([]Code, 0, Count)
	for c := Code(1); int(c) <= Count; c++ {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// AutoLabel returns the local label a key auto assigns to: the top two rows
// give A-J, the shifted top row gives a-e.
func AutoLabel(c Code) (string, bool) {
	if !c.Valid() {
		return "", false
	}
	switch {
	case !c.Shifted() && c.Row() == 1:
		return string(rune('A' + c.Col() - 1)), true
	case !c.Shifted() && c.Row() == 2:
		return string(rune('F' + c.Col() - 1)), true
	case c.Shifted() && c.Row() == 1:
		return string(rune('a' + c.Col() - 1)), true
	}
	return "", false
}
