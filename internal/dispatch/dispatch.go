// Package dispatch resolves a key press against the shell stack.
package dispatch

import (
	"fmt"

	"os4/internal/keys"
	"os4/internal/logging"
	"os4/internal/secondary"
	"os4/internal/shell"
	"os4/internal/status"
)

// Source is what resolved a key.
type Source int

const (
	// SourceDefault means no shell took the key; the calculator's own
	// behavior applies.
	SourceDefault Source = iota
	// SourceAssignment is a user mode secondary function assignment.
	SourceAssignment
	// SourceShell is a shell key table entry.
	SourceShell
	// SourceAutoAssign is a top row key bound to a local label.
	SourceAutoAssign
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceAssignment:
		return "assignment"
	case SourceShell:
		return "shell"
	case SourceAutoAssign:
		return "auto-assign"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Resolution is the outcome of resolving one key.
type Resolution struct {
	Key    keys.Code
	Source Source

	// Shell, Entry and Action are set for SourceShell. Action is the jump
	// table name; function entries leave it empty.
	Shell  *shell.Shell
	Entry  keys.Entry
	Action string

	// Label is set for SourceAutoAssign.
	Label string
	// Secondary is set for SourceAssignment.
	Secondary secondary.Ref

	// Exited lists transient applications torn down on the way.
	Exited []*shell.Shell
}

// KeepsDigitEntry reports whether digit entry survives this key.
func (r Resolution) KeepsDigitEntry() bool {
	return r.Source == SourceShell && r.Entry.Keeps()
}

// Assignments is the user mode key assignment overlay.
type Assignments interface {
	Assignment(key keys.Code) (secondary.Ref, bool)
}

// Labels reports whether a local label exists in the current program.
type Labels func(name string) bool

// Dispatcher resolves keys. It mutates the stack only to exit transient
// applications on pass-through keys.
type Dispatcher struct {
	stack   *shell.Stack
	status  *status.Status
	assigns Assignments
	labels  Labels

	// UserMode enables the assignment overlay.
	UserMode bool
}

// New returns a dispatcher. assigns and labels may be nil.
func New(stack *shell.Stack, st *status.Status, assigns Assignments, labels Labels) *Dispatcher {
	if st == nil {
		st = &status.Status{}
	}
	return &Dispatcher{stack: stack, status: st, assigns: assigns, labels: labels, UserMode: true}
}

// Resolve finds what key does. The order is: user mode assignments, then
// the active shells top down (system shells before the active
// application). A transient application that passes the key is exited and
// the search starts again on what is left of the stack. A key nobody takes
// resolves to SourceDefault.
func (d *Dispatcher) Resolve(key keys.Code) (Resolution, error) {
	res := Resolution{Key: key}
	if !key.Valid() {
		return res, fmt.Errorf("resolve: invalid key %s", key)
	}

	if d.UserMode && d.assigns != nil {
		if ref, ok := d.assigns.Assignment(key); ok {
			res.Source = SourceAssignment
			res.Secondary = ref
			logging.KeysDebug("key %s: assigned %s", key, ref)
			return res, nil
		}
	}

	for {
		exited := false
		for c := d.stack.Top(); c.Valid(); c = d.stack.Next(c) {
			sh := c.Shell()
			if sh.Keys == nil {
				continue
			}
			e := sh.Keys.Lookup(key)
			if !e.IsPass() {
				res.Source = SourceShell
				res.Shell = sh
				res.Entry = e
				if !e.IsFunction() {
					name, err := sh.ActionName(e)
					if err != nil {
						return res, err
					}
					res.Action = name
				}
				logging.KeysDebug("key %s: %s %s (%s)", key, sh.Name, res.Action, e)
				return res, nil
			}
			if label, ok := d.autoAssign(sh, key); ok {
				res.Source = SourceAutoAssign
				res.Shell = sh
				res.Label = label
				logging.KeysDebug("key %s: auto assigned LBL %s", key, label)
				return res, nil
			}
			if sh.IsTransient() && sh == d.stack.ActiveApp() {
				if _, ok := d.stack.ExitTransientApp(); ok {
					logging.KeysDebug("key %s: passed through transient %s", key, sh.Name)
					res.Exited = append(res.Exited, sh)
					exited = true
					break
				}
			}
		}
		if !exited {
			break
		}
	}

	res.Source = SourceDefault
	logging.KeysDebug("key %s: default", key)
	return res, nil
}

func (d *Dispatcher) autoAssign(sh *shell.Shell, key keys.Code) (string, bool) {
	if !sh.Keys.Has(keys.FlagAutoAssign) || d.status.Has(status.HideTopKeyAssign) || d.labels == nil {
		return "", false
	}
	label, ok := keys.AutoLabel(key)
	if !ok || !d.labels(label) {
		return "", false
	}
	return label, true
}
