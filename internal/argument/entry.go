// Package argument implements semi-merged argument entry: digits typed
// after a function key are collected into one field (single entry) or two
// fields (dual entry) while normal key dispatch goes on around them.
package argument

import (
	"errors"
	"fmt"
	"strings"

	"os4/internal/keys"
	"os4/internal/logging"
	"os4/internal/status"
)

// ErrBusy is returned when an entry cannot start because another one is
// in progress.
var ErrBusy = errors.New("argument entry in progress")

// State is the entry state.
type State int

const (
	NoEntry State = iota
	SingleMerged
	DualMerged
)

func (s State) String() string {
	switch s {
	case NoEntry:
		return "none"
	case SingleMerged:
		return "single"
	case DualMerged:
		return "dual"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Policy decides what a dual request does while single entry is active,
// and the other way round.
type Policy string

const (
	// Reject refuses the new entry with ErrBusy.
	Reject Policy = "reject"
	// Replace drops the entry in progress and starts the new one.
	Replace Policy = "replace"
)

// MaxMantissa is the digit limit of a field that accepts options.
const MaxMantissa = 10

// Outcome is what a key did to the entry.
type Outcome int

const (
	Consumed Outcome = iota
	Committed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Consumed:
		return "consumed"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is a committed entry.
type Result struct {
	Prompt string
	Dual   bool
	Values [2]float64
	Text   [2]string
}

// Step reports the effect of one key. Pass means the key still has to be
// dispatched normally.
type Step struct {
	Outcome Outcome
	Pass    bool
	Result  *Result
}

// Entry is the argument entry machine. The Argument and ArgumentDual
// status flags track its state.
type Entry struct {
	status    *status.Status
	policy    Policy
	maxDigits int

	state  State
	prompt string
	mask   Mask
	fields [2]field
	cur    int
}

// New returns an idle entry machine. maxDigits is the length of a plain
// digit argument, which commits as soon as it is full.
func New(st *status.Status, maxDigits int, policy Policy) *Entry {
	if st == nil {
		st = &status.Status{}
	}
	if maxDigits < 1 {
		maxDigits = 2
	}
	if policy == "" {
		policy = Reject
	}
	return &Entry{status: st, policy: policy, maxDigits: maxDigits}
}

// SetPolicy changes the dual/single arbitration policy.
func (e *Entry) SetPolicy(p Policy) { e.policy = p }

// SetMaxDigits changes the plain argument length.
func (e *Entry) SetMaxDigits(n int) {
	if n > 0 {
		e.maxDigits = n
	}
}

// State returns the current state.
func (e *Entry) State() State { return e.state }

// Active reports whether an entry is in progress.
func (e *Entry) Active() bool { return e.state != NoEntry }

// Prompt returns the prompt of the entry in progress.
func (e *Entry) Prompt() string { return e.prompt }

func (e *Entry) start(s State, prompt string, mask Mask) {
	e.state = s
	e.prompt = prompt
	e.mask = mask
	e.fields = [2]field{}
	e.cur = 0
	if s == DualMerged {
		e.status.BeginDualArgument()
	} else {
		e.status.BeginArgument()
	}
	logging.ArgumentDebug("%s entry for %q mask=%#x", s, prompt, uint8(mask))
}

// Begin starts a single entry, or continues the single entry in progress.
func (e *Entry) Begin(prompt string, mask Mask) error {
	switch e.state {
	case SingleMerged:
		return nil
	case DualMerged:
		if e.policy != Replace {
			return fmt.Errorf("single entry for %q: %w", prompt, ErrBusy)
		}
	}
	e.start(SingleMerged, prompt, mask)
	return nil
}

// BeginDual starts a dual entry, or continues the dual entry in progress.
// While a single entry is active the policy decides.
func (e *Entry) BeginDual(prompt string, mask Mask) error {
	switch e.state {
	case DualMerged:
		return nil
	case SingleMerged:
		if e.policy != Replace {
			return fmt.Errorf("dual entry for %q: %w", prompt, ErrBusy)
		}
		logging.ArgumentDebug("dual entry replaces single entry for %q", e.prompt)
	}
	e.start(DualMerged, prompt, mask)
	return nil
}

// Clear abandons the entry.
func (e *Entry) Clear() {
	if e.state == NoEntry {
		return
	}
	e.state = NoEntry
	e.fields = [2]field{}
	e.cur = 0
	e.status.EndArgument()
}

func (e *Entry) plain() bool { return e.mask == 0 }

// end finishes the entry because of a key that belongs to normal dispatch.
func (e *Entry) end() (Step, error) {
	if e.fields[0].mant == "" && !e.fields[0].eex {
		e.Clear()
		return Step{Outcome: Cancelled, Pass: true}, nil
	}
	step, err := e.Commit()
	step.Pass = true
	return step, err
}

// Key feeds one key to the entry.
func (e *Entry) Key(c keys.Code) (Step, error) {
	if e.state == NoEntry {
		return Step{Outcome: Cancelled, Pass: true}, nil
	}
	f := &e.fields[e.cur]

	if _, ok := c.Digit(); ok {
		if !f.eex && !e.plain() && f.digits() >= MaxMantissa {
			return Step{Outcome: Consumed}, nil
		}
		if !f.add(c, e.mask) {
			return Step{Outcome: Consumed}, nil
		}
		if e.plain() && f.digits() >= e.maxDigits {
			return e.advance()
		}
		return Step{Outcome: Consumed}, nil
	}

	switch c {
	case keys.KeyEEX, keys.KeyDot:
		if f.add(c, e.mask) {
			return Step{Outcome: Consumed}, nil
		}
		if c == keys.KeyEEX && e.mask.Has(AllowEEX) {
			return Step{Outcome: Consumed}, nil
		}
		return e.end()
	case keys.KeyCHS:
		if e.plain() {
			return e.end()
		}
		f.add(c, e.mask)
		return Step{Outcome: Consumed}, nil
	case keys.KeyBack:
		if f.back() {
			return Step{Outcome: Consumed}, nil
		}
		if e.cur == 1 {
			e.cur = 0
			e.fields[0].back()
			return Step{Outcome: Consumed}, nil
		}
		e.Clear()
		return Step{Outcome: Cancelled}, nil
	case keys.KeyEnter:
		if f.mant == "" && !f.eex {
			if e.cur == 0 {
				e.Clear()
				return Step{Outcome: Cancelled}, nil
			}
			return Step{Outcome: Consumed}, nil
		}
		return e.advance()
	}
	return e.end()
}

// advance moves to the second field of a dual entry, or commits.
func (e *Entry) advance() (Step, error) {
	if e.state == DualMerged && e.cur == 0 {
		e.cur = 1
		return Step{Outcome: Consumed}, nil
	}
	return e.Commit()
}

// Commit finishes the entry and parses its fields.
func (e *Entry) Commit() (Step, error) {
	if e.state == NoEntry {
		return Step{}, fmt.Errorf("commit: no entry in progress")
	}
	res := Result{Prompt: e.prompt, Dual: e.state == DualMerged}
	n := 1
	if res.Dual {
		n = 2
	}
	mask := e.mask
	if e.plain() {
		mask = 0
	}
	for i := 0; i < n; i++ {
		res.Text[i] = e.fields[i].String()
		v, err := ParseNumber(res.Text[i], mask)
		if err != nil {
			e.Clear()
			return Step{Outcome: Cancelled}, fmt.Errorf("%s field %d: %w", res.Prompt, i+1, err)
		}
		res.Values[i] = v
	}
	e.Clear()
	logging.Argument("%s committed %v", res.Prompt, res.Text[:n])
	return Step{Outcome: Committed, Result: &res}, nil
}

func (e *Entry) render(f field) string {
	s := f.String()
	if e.plain() {
		return s + strings.Repeat("_", max(0, e.maxDigits-f.digits()))
	}
	return s + "_"
}

// Display renders the prompt line, e.g. "STO 1_" or "MOVE 12,_".
func (e *Entry) Display() string {
	switch e.state {
	case SingleMerged:
		return e.prompt + " " + e.render(e.fields[0])
	case DualMerged:
		second := ""
		if e.cur == 1 {
			second = e.render(e.fields[1])
		}
		first := e.fields[0].String()
		if e.cur == 0 {
			first = e.render(e.fields[0])
		}
		return e.prompt + " " + first + "," + second
	}
	return ""
}
