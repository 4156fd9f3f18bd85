package secondary

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"os4/internal/logging"
	"os4/internal/status"
)

// State is the partial key state.
type State int

const (
	Idle State = iota
	Accumulating
	Resolved
	// TimedOut passes at once: Poll reports it and the machine is idle.
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case Resolved:
		return "resolved"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Partial selects a secondary function of one ROM by typing its index
// digit by digit. Every digit narrows the candidates; a unique candidate
// resolves at once. The entry times out if no digit arrives within the
// timeout. SecProxy is set while digits are being collected.
type Partial struct {
	reg     *Registry
	status  *status.Status
	timeout time.Duration

	state    State
	rom      int
	typed    string
	deadline time.Time
}

// NewPartial returns an idle partial key machine.
func NewPartial(reg *Registry, st *status.Status, timeout time.Duration) *Partial {
	if st == nil {
		st = &status.Status{}
	}
	return &Partial{reg: reg, status: st, timeout: timeout}
}

// SetTimeout changes the timeout for entries started afterwards.
func (p *Partial) SetTimeout(d time.Duration) { p.timeout = d }

// State returns the state. Resolved is reported until the next Begin.
func (p *Partial) State() State { return p.state }

// Active reports whether digits are being collected.
func (p *Partial) Active() bool { return p.state == Accumulating }

// Typed returns the digits entered so far.
func (p *Partial) Typed() string { return p.typed }

// Deadline returns when the current entry times out.
func (p *Partial) Deadline() time.Time { return p.deadline }

// Begin starts collecting an index into rom's table.
func (p *Partial) Begin(rom int, now time.Time) error {
	t, ok := p.reg.Table(rom)
	if !ok || len(t.Functions) == 0 {
		return fmt.Errorf("rom %d: %w", rom, ErrNotFound)
	}
	p.state = Accumulating
	p.rom = rom
	p.typed = ""
	p.deadline = now.Add(p.timeout)
	p.status.Set(status.SecProxy)
	logging.SecondaryDebug("partial key for rom %d, %d functions", rom, len(t.Functions))
	return nil
}

func (p *Partial) width() int {
	t, ok := p.reg.Table(p.rom)
	if !ok || len(t.Functions) == 0 {
		return 1
	}
	return len(strconv.Itoa(len(t.Functions) - 1))
}

func (p *Partial) candidates() []int {
	t, ok := p.reg.Table(p.rom)
	if !ok {
		return nil
	}
	w := p.width()
	var out []int
	for i := range t.Functions {
		if strings.HasPrefix(fmt.Sprintf("%0*d", w, i), p.typed) {
			out = append(out, i)
		}
	}
	return out
}

func (p *Partial) finish(s State) {
	p.state = s
	p.status.Clear(status.SecProxy)
}

// Digit adds digit d. It returns the function once it is the only
// candidate, ErrNoMatch when no function starts with the digits typed.
func (p *Partial) Digit(d int, now time.Time) (Ref, bool, error) {
	if p.state != Accumulating {
		return Ref{}, false, fmt.Errorf("partial key not active")
	}
	if d < 0 || d > 9 {
		return Ref{}, false, fmt.Errorf("digit %d out of range", d)
	}
	p.typed += strconv.Itoa(d)
	p.deadline = now.Add(p.timeout)
	c := p.candidates()
	switch len(c) {
	case 0:
		typed := p.typed
		p.finish(Idle)
		return Ref{}, false, fmt.Errorf("rom %d index %s: %w", p.rom, typed, ErrNoMatch)
	case 1:
		p.finish(Resolved)
		return Ref{ROM: p.rom, Index: c[0]}, true, nil
	}
	return Ref{}, false, nil
}

// Enter resolves the digits typed so far as an exact index.
func (p *Partial) Enter() (Ref, error) {
	if p.state != Accumulating {
		return Ref{}, fmt.Errorf("partial key not active")
	}
	typed := p.typed
	if typed == "" {
		p.finish(Idle)
		return Ref{}, fmt.Errorf("rom %d: %w", p.rom, ErrNoMatch)
	}
	n, _ := strconv.Atoi(typed)
	ref := Ref{ROM: p.rom, Index: n}
	if _, err := p.reg.Address(ref); err != nil {
		p.finish(Idle)
		return Ref{}, fmt.Errorf("rom %d index %s: %w", p.rom, typed, ErrNoMatch)
	}
	p.finish(Resolved)
	return ref, nil
}

// Back removes the last digit, or cancels when none is left.
func (p *Partial) Back() {
	if p.state != Accumulating {
		return
	}
	if p.typed == "" {
		p.Cancel()
		return
	}
	p.typed = p.typed[:len(p.typed)-1]
}

// Cancel abandons the entry.
func (p *Partial) Cancel() {
	if p.state == Accumulating {
		p.finish(Idle)
	}
}

// Poll fires the timeout. It returns ErrNoMatch once when the deadline has
// passed and leaves the machine idle.
func (p *Partial) Poll(now time.Time) error {
	if p.state != Accumulating || now.Before(p.deadline) {
		return nil
	}
	typed := p.typed
	p.finish(Idle)
	logging.SecondaryDebug("partial key %s after %q", TimedOut, typed)
	return fmt.Errorf("rom %d after %q: timed out: %w", p.rom, typed, ErrNoMatch)
}

// Display renders the prompt, e.g. "XROM 05,1_".
func (p *Partial) Display() string {
	w := p.width()
	return fmt.Sprintf("XROM %02d,%s%s", p.rom, p.typed, strings.Repeat("_", max(0, w-len(p.typed))))
}
