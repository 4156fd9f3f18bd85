// Package status holds the OS4 system status flags. The flags live in the
// header of the system buffer; their bit positions are part of the ABI and
// must not change between minor versions.
package status

import (
	"fmt"
	"strings"
)

// Flag is a bit position in the status word.
type Flag uint8

const (
	// NoApps is set if all application shells are disabled, meaning default
	// behavior. System shells still have priority and are active.
	NoApps Flag = 0
	// DisplayOverride is set when the message flag really means that we
	// override the display.
	DisplayOverride Flag = 1
	// OrphanShells is set when orphan shells should be released.
	OrphanShells Flag = 2
	// Argument is set while a semi-merged single argument entry is in progress.
	Argument Flag = 3
	// Pause is our own pause flag.
	Pause Flag = 4
	// SecProxy is set when doing partial key for secondary functions.
	SecProxy Flag = 5
	// SecArgument is set while a secondary function collects its argument.
	SecArgument Flag = 6
	// ArgumentDual is set while a dual (two field) argument entry is in progress.
	ArgumentDual Flag = 7
	// IntervalTimer is set while the interval timer is armed.
	IntervalTimer Flag = 8
	// HideTopKeyAssign suppresses top row auto label assignment.
	HideTopKeyAssign Flag = 9

	flagCount = 10
)

var flagNames = [flagCount]string{
	"NoApps", "DisplayOverride", "OrphanShells", "Argument", "Pause",
	"SecProxy", "SecArgument", "ArgumentDual", "IntervalTimer", "HideTopKeyAssign",
}

func (f Flag) String() string {
	if int(f) < len(flagNames) {
		return flagNames[f]
	}
	return fmt.Sprintf("Flag(%d)", uint8(f))
}

// validMask covers every defined flag bit.
const validMask uint16 = 1<<flagCount - 1

// Status is the status word. The zero value has every flag clear.
type Status struct {
	bits uint16
}

// FromBits builds a Status from a raw word, dropping undefined bits.
func FromBits(bits uint16) Status {
	return Status{bits: bits & validMask}
}

// Bits returns the raw word.
func (s Status) Bits() uint16 { return s.bits }

// Has reports whether f is set.
func (s Status) Has(f Flag) bool { return s.bits&(1<<f) != 0 }

// Set sets f. The argument flags go through BeginArgument/BeginDualArgument.
func (s *Status) Set(f Flag) {
	if f == Argument || f == ArgumentDual {
		panic(fmt.Sprintf("status: %s must be set through BeginArgument/BeginDualArgument", f))
	}
	s.bits |= 1 << f
}

// Clear clears f.
func (s *Status) Clear(f Flag) { s.bits &^= 1 << f }

// Toggle flips f and returns its new state.
func (s *Status) Toggle(f Flag) bool {
	if s.Has(f) {
		s.Clear(f)
		return false
	}
	s.Set(f)
	return true
}

// BeginArgument marks a single argument entry in progress. Argument and
// ArgumentDual are never set together.
func (s *Status) BeginArgument() {
	s.bits &^= 1 << ArgumentDual
	s.bits |= 1 << Argument
}

// BeginDualArgument marks a dual argument entry in progress.
func (s *Status) BeginDualArgument() {
	s.bits &^= 1 << Argument
	s.bits |= 1 << ArgumentDual
}

// EndArgument clears both argument flags.
func (s *Status) EndArgument() {
	s.bits &^= 1<<Argument | 1<<ArgumentDual | 1<<SecArgument
}

// ArgumentInProgress reports whether any argument entry is active.
func (s Status) ArgumentInProgress() bool {
	return s.Has(Argument) || s.Has(ArgumentDual)
}

// Encode writes the word into the two flag bytes of a buffer header
// (low byte first).
func (s Status) Encode(dst []byte) {
	dst[0] = byte(s.bits)
	dst[1] = byte(s.bits >> 8)
}

// Decode reads a word written by Encode. A word with both argument bits set
// is corrupt.
func Decode(src []byte) (Status, error) {
	s := FromBits(uint16(src[0]) | uint16(src[1])<<8)
	if s.Has(Argument) && s.Has(ArgumentDual) {
		return Status{}, fmt.Errorf("corrupt status word %#04x: both argument flags set", s.bits)
	}
	return s, nil
}

func (s Status) String() string {
	var names []string
	for f := Flag(0); f < flagCount; f++ {
		if s.Has(f) {
			names = append(names, f.String())
		}
	}
	return "[" + strings.Join(names, " ") + "]"
}
