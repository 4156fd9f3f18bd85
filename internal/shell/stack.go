package shell

import (
	"fmt"

	"os4/internal/logging"
	"os4/internal/status"
)

// Event describes a stack change.
type Event int

const (
	Activated Event = iota
	Deactivated
	Exited
	Reclaimed
)

func (e Event) String() string {
	switch e {
	case Activated:
		return "activated"
	case Deactivated:
		return "deactivated"
	case Exited:
		return "exited"
	case Reclaimed:
		return "reclaimed"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Change is passed to the OnChange hook.
type Change struct {
	Event Event
	Shell *Shell
}

type frame struct {
	sh     *Shell
	active bool
}

// Stack is the shell stack. System shells are always above application and
// extension shells; within a class the most recently activated is on top.
// Any number of application shells can be stacked but only the topmost one
// is active, and none while apps are disabled.
//
// Stack is not safe for concurrent use; the system drives it from a single
// read-key loop.
type Stack struct {
	frames   []frame // frames[0] is the top
	capacity int
	status   *status.Status
	onChange func(Change)
}

// NewStack returns an empty stack holding at most capacity shells. The
// NoApps and OrphanShells flags are kept in st; a nil st gets a private one.
func NewStack(capacity int, st *status.Status) *Stack {
	if st == nil {
		st = &status.Status{}
	}
	return &Stack{capacity: capacity, status: st}
}

// OnChange installs the hook called after every activation change.
func (s *Stack) OnChange(fn func(Change)) { s.onChange = fn }

func (s *Stack) notify(e Event, sh *Shell) {
	logging.ShellDebug("%s %s", sh, e)
	if s.onChange != nil {
		s.onChange(Change{Event: e, Shell: sh})
	}
}

func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("shell stack corrupt: "+format, args...))
	}
}

func (s *Stack) check() {
	active := 0
	seenOther := false
	for _, f := range s.frames {
		if f.sh.IsSystem() {
			assertf(!seenOther, "system shell %s below %s class", f.sh.Name, "non-system")
		} else {
			seenOther = true
		}
		if f.sh.IsApp() && f.active {
			active++
		}
	}
	assertf(active <= 1, "%d active applications", active)
	assertf(active == 0 || !s.status.Has(status.NoApps), "active application while apps are disabled")
}

func (s *Stack) index(sh *Shell) int {
	for i, f := range s.frames {
		if f.sh == sh {
			return i
		}
	}
	return -1
}

func (s *Stack) activeApp() int {
	for i, f := range s.frames {
		if f.sh.IsApp() && f.active {
			return i
		}
	}
	return -1
}

func (s *Stack) removeAt(i int) {
	s.frames = append(s.frames[:i], s.frames[i+1:]...)
}

func (s *Stack) insert(i int, f frame) {
	s.frames = append(s.frames, frame{})
	copy(s.frames[i+1:], s.frames[i:])
	s.frames[i] = f
}

// systemCount is the index of the first non-system frame.
func (s *Stack) systemCount() int {
	n := 0
	for n < len(s.frames) && s.frames[n].sh.IsSystem() {
		n++
	}
	return n
}

// Len returns the number of shells on the stack, active or not.
func (s *Stack) Len() int { return len(s.frames) }

// Capacity returns the maximum number of shells.
func (s *Stack) Capacity() int { return s.capacity }

// Contains reports whether sh is on the stack.
func (s *Stack) Contains(sh *Shell) bool { return s.index(sh) >= 0 }

// Active reports whether sh is on the stack and active.
func (s *Stack) Active(sh *Shell) bool {
	i := s.index(sh)
	return i >= 0 && s.frames[i].active
}

// Find returns the shell named name, or nil.
func (s *Stack) Find(name string) *Shell {
	for _, f := range s.frames {
		if f.sh.Name == name {
			return f.sh
		}
	}
	return nil
}

// Activate puts sh on top of its priority class. Activating an application
// deactivates the previous one; a previous transient application is exited
// instead. Activating a shell already on the stack moves it to the top of
// its class.
func (s *Stack) Activate(sh *Shell) error {
	if err := sh.Validate(); err != nil {
		return err
	}
	if i := s.index(sh); i >= 0 {
		s.removeAt(i)
	} else if len(s.frames) >= s.capacity {
		logging.ShellWarn("no room to activate %s (%d shells)", sh, len(s.frames))
		return fmt.Errorf("activate %s: %w", sh.Name, ErrNoRoom)
	}

	if sh.IsApp() {
		if i := s.activeApp(); i >= 0 {
			prev := s.frames[i].sh
			if prev.Kind == TransAppShell {
				s.removeAt(i)
				if prev.OnExit != nil {
					prev.OnExit()
				}
				s.notify(Exited, prev)
			} else {
				s.frames[i].active = false
				s.notify(Deactivated, prev)
			}
		}
		s.status.Clear(status.NoApps)
	}

	at := 0
	if !sh.IsSystem() {
		at = s.systemCount()
	}
	s.insert(at, frame{sh: sh, active: true})
	s.check()
	logging.Shell("activated %s", sh)
	s.notify(Activated, sh)
	return nil
}

// Exit removes sh cooperatively: its OnExit hook runs. If sh was the active
// application the next application down becomes active.
func (s *Stack) Exit(sh *Shell) error {
	return s.remove(sh, Exited)
}

// Reclaim removes sh without running its exit hook, as when its owner
// buffer has gone away.
func (s *Stack) Reclaim(sh *Shell) error {
	return s.remove(sh, Reclaimed)
}

func (s *Stack) remove(sh *Shell, ev Event) error {
	i := s.index(sh)
	if i < 0 {
		return fmt.Errorf("%s %s: %w", ev, sh, ErrNotFound)
	}
	wasActive := s.frames[i].active
	s.removeAt(i)
	if ev == Exited && sh.OnExit != nil {
		sh.OnExit()
	}
	s.notify(ev, sh)
	if sh.IsApp() && wasActive {
		s.reactivateApp()
	}
	s.check()
	return nil
}

func (s *Stack) reactivateApp() {
	if s.status.Has(status.NoApps) || s.activeApp() >= 0 {
		return
	}
	for i, f := range s.frames {
		if f.sh.IsApp() {
			s.frames[i].active = true
			s.notify(Activated, f.sh)
			return
		}
	}
}

// ActiveApp returns the active application shell, or nil.
func (s *Stack) ActiveApp() *Shell {
	if i := s.activeApp(); i >= 0 {
		return s.frames[i].sh
	}
	return nil
}

// HasActiveTransientApp reports whether the active application is transient.
func (s *Stack) HasActiveTransientApp() bool {
	app := s.ActiveApp()
	return app != nil && app.Kind == TransAppShell
}

// ExitTransientApp exits the active application if it is transient and
// returns it.
func (s *Stack) ExitTransientApp() (*Shell, bool) {
	if !s.HasActiveTransientApp() {
		return nil, false
	}
	app := s.ActiveApp()
	if err := s.Exit(app); err != nil {
		return nil, false
	}
	return app, true
}

// DisableApps deactivates the application shells and sets NoApps.
func (s *Stack) DisableApps() {
	s.status.Set(status.NoApps)
	if i := s.activeApp(); i >= 0 {
		s.frames[i].active = false
		s.notify(Deactivated, s.frames[i].sh)
	}
	s.check()
}

// EnableApps clears NoApps and reactivates the topmost application.
func (s *Stack) EnableApps() {
	s.status.Clear(status.NoApps)
	s.reactivateApp()
	s.check()
}

// SweepOrphans reclaims every shell whose owner buffer no longer exists and
// clears the OrphanShells flag.
func (s *Stack) SweepOrphans(exists func(id int) bool) []*Shell {
	var orphans []*Shell
	for _, f := range s.frames {
		if f.sh.Owner != 0 && !exists(f.sh.Owner) {
			orphans = append(orphans, f.sh)
		}
	}
	for _, sh := range orphans {
		logging.ShellWarn("reclaiming orphan %s (buffer %d gone)", sh, sh.Owner)
		_ = s.Reclaim(sh)
	}
	s.status.Clear(status.OrphanShells)
	return orphans
}

// Cursor walks the active shells from the top. A cursor is only valid until
// the next stack mutation.
type Cursor struct {
	st *Stack
	i  int
}

// End is the sentinel cursor returned when there are no more shells.
var End = Cursor{i: -1}

// Valid reports whether c points at a shell.
func (c Cursor) Valid() bool { return c.st != nil && c.i >= 0 && c.i < len(c.st.frames) }

// Shell returns the shell under c, or nil at End.
func (c Cursor) Shell() *Shell {
	if !c.Valid() {
		return nil
	}
	return c.st.frames[c.i].sh
}

func (s *Stack) scan(from int, match func(*Shell) bool) Cursor {
	for i := from; i < len(s.frames); i++ {
		if s.frames[i].active && match(s.frames[i].sh) {
			return Cursor{st: s, i: i}
		}
	}
	return End
}

func anyShell(*Shell) bool { return true }

// Top returns a cursor on the topmost active shell, or End.
func (s *Stack) Top() Cursor { return s.scan(0, anyShell) }

// Next returns the active shell below c, or End.
func (s *Stack) Next(c Cursor) Cursor {
	if !c.Valid() || c.st != s {
		return End
	}
	return s.scan(c.i+1, anyShell)
}

// TopExtension returns the topmost active shell with extension handlers.
func (s *Stack) TopExtension() Cursor { return s.scan(0, (*Shell).HasExtensions) }

// NextExtension returns the next extension shell below c.
func (s *Stack) NextExtension(c Cursor) Cursor {
	if !c.Valid() || c.st != s {
		return End
	}
	return s.scan(c.i+1, (*Shell).HasExtensions)
}

// Shells returns the active shells in dispatch order.
func (s *Stack) Shells() []*Shell {
	var out []*Shell
	for c := s.Top(); c.Valid(); c = s.Next(c) {
		out = append(out, c.Shell())
	}
	return out
}

// Names lists every shell on the stack from the top; inactive ones are
// shown in parentheses.
func (s *Stack) Names() []string {
	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		if f.active {
			out = append(out, f.sh.Name)
		} else {
			out = append(out, "("+f.sh.Name+")")
		}
	}
	return out
}
