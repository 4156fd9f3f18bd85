package ui

import (
	"sort"
	"strings"

	"os4/internal/keys"
)

// Keymap maps terminal keys (as tea.KeyMsg.String() spells them) to
// calculator keys. alt+<key> gives the shifted key of <key>.
type Keymap map[string]keys.Code

// DefaultKeymap covers the digit block and the keys the demo ROM uses.
// Upper case A-J are the top two rows, the local label keys.
func DefaultKeymap() Keymap {
	m := Keymap{
		".":         keys.KeyDot,
		"+":         keys.Key(6, 1),
		"-":         keys.Key(5, 1),
		"*":         keys.Key(7, 1),
		"/":         keys.Key(8, 1),
		"enter":     keys.KeyEnter,
		"backspace": keys.KeyBack,
		"tab":       keys.KeyShift,
		" ":         keys.KeyRS,
		"e":         keys.KeyEEX,
		"n":         keys.KeyCHS,
		"x":         keys.KeyXEQ,
		"s":         keys.Key(3, 3),
		"r":         keys.Key(3, 4),
		"down":      keys.KeySST,
		"up":        keys.KeyBST,
		"c":         keys.KeyCAT,
		"a":         keys.ShiftedKey(3, 2),
		"l":         keys.ShiftedKey(8, 3),
		"p":         keys.ShiftedKey(8, 2),
		"v":         keys.ShiftedKey(8, 4),
		"k":         keys.ShiftedKey(4, 4),
		"w":         keys.Key(2, 1),
		"d":         keys.Key(2, 2),
	}
	for d := 0; d <= 9; d++ {
		m[string(rune('0'+d))] = keys.DigitKey(d)
	}
	for i := 0; i < 10; i++ {
		m[string(rune('A'+i))] = keys.Key(i/5+1, i%5+1)
	}
	return m
}

// Lookup resolves a terminal key.
func (m Keymap) Lookup(s string) (keys.Code, bool) {
	if c, ok := m[s]; ok {
		return c, true
	}
	if base, ok := strings.CutPrefix(s, "alt+"); ok {
		if c, ok := m[base]; ok && c != keys.KeyShift {
			return c.Shift(), true
		}
	}
	return keys.None, false
}

// Help lists the bindings as "key=LEGEND", sorted by terminal key.
func (m Keymap) Help() []string {
	out := make([]string, 0, len(m))
	for k, c := range m {
		name := k
		if name == " " {
			name = "space"
		}
		out = append(out, name+"="+c.Name())
	}
	sort.Strings(out)
	return out
}
