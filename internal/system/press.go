package system

import (
	"errors"
	"fmt"
	"time"

	"os4/internal/argument"
	"os4/internal/bus"
	"os4/internal/dispatch"
	"os4/internal/keys"
	"os4/internal/logging"
	"os4/internal/secondary"
	"os4/internal/shell"
	"os4/internal/status"
)

// Press runs one key through the read-key cycle: pending timeouts, the
// shift latch, partial key and argument entry, then key dispatch. A user
// error unwinds any entry in progress and is returned.
func (s *System) Press(key keys.Code) error {
	s.Poll()
	err := s.press(key)
	if err != nil && IsUserError(err) {
		logging.KeysDebug("key %s unwound: %v", key, err)
		s.unwind()
	}
	s.sync()
	return err
}

func (s *System) press(key keys.Code) error {
	if !key.Valid() {
		return s.errorExit(MsgInvalidKey, fmt.Errorf("key %d", key))
	}
	if key == keys.KeyShift {
		s.shifted = !s.shifted
		return nil
	}
	if s.shifted {
		s.shifted = false
		if !key.Shifted() {
			key = key.Shift()
		}
	}
	if s.status.Has(status.Pause) {
		s.status.Clear(status.Pause)
		logging.KeysDebug("pause stopped by %s", key)
		return nil
	}
	s.DisplayDone()

	if s.partial.Active() {
		done, err := s.partialKey(key)
		if done || err != nil {
			return err
		}
	}
	if s.arg.Active() {
		done, err := s.argumentKey(key)
		if done || err != nil {
			return err
		}
	}
	return s.KeyDispatch(key)
}

// partialKey feeds key to partial key entry. done is false when the key
// cancelled the entry and still has to be dispatched.
func (s *System) partialKey(key keys.Code) (bool, error) {
	if d, ok := key.Digit(); ok {
		ref, found, err := s.partial.Digit(d, s.clock.Now())
		if err != nil {
			return true, s.errorExit(MsgNoMatch, err)
		}
		if found {
			return true, s.InvokeSecondary(ref)
		}
		return true, nil
	}
	switch key {
	case keys.KeyBack:
		s.partial.Back()
		return true, nil
	case keys.KeyEnter:
		ref, err := s.partial.Enter()
		if err != nil {
			return true, s.errorExit(MsgNoMatch, err)
		}
		return true, s.InvokeSecondary(ref)
	}
	s.partial.Cancel()
	return false, nil
}

// argumentKey feeds key to argument entry. done is false when the key
// passes through to dispatch.
func (s *System) argumentKey(key keys.Code) (bool, error) {
	step, err := s.arg.Key(key)
	if step.Outcome != argument.Consumed {
		s.arg.SetMaxDigits(s.cfg.Argument.MaxDigits)
		s.status.Clear(status.SecArgument)
	}
	if err != nil {
		s.pendingArg = nil
		return true, s.errorExit(MsgDataError, err)
	}
	switch step.Outcome {
	case argument.Committed:
		fn := s.pendingArg
		s.pendingArg = nil
		if fn != nil {
			if err := fn(s, *step.Result); err != nil {
				return true, err
			}
		}
	case argument.Cancelled:
		s.pendingArg = nil
	}
	return !step.Pass, nil
}

// KeyDispatch resolves key against the assignments and the shell stack and
// runs what it finds.
func (s *System) KeyDispatch(key keys.Code) error {
	res, err := s.disp.Resolve(key)
	if err != nil {
		return err
	}
	if len(res.Exited) > 0 {
		s.sync()
	}
	switch res.Source {
	case dispatch.SourceAssignment:
		s.digitEntry = false
		return s.InvokeSecondary(res.Secondary)
	case dispatch.SourceShell:
		err := s.runEntry(res)
		if !res.KeepsDigitEntry() {
			s.digitEntry = false
		}
		return err
	case dispatch.SourceAutoAssign:
		s.digitEntry = false
		fn := s.labels[res.Label]
		logging.Keys("XEQ %s", res.Label)
		return fn(s, key)
	}
	return s.defaultKey(key)
}

// KeyKeyboard looks key up in one shell's table only, without the rest of
// the stack, and runs it. It reports whether the shell took the key.
func (s *System) KeyKeyboard(sh *shell.Shell, key keys.Code) (bool, error) {
	if sh == nil || sh.Keys == nil {
		return false, fmt.Errorf("key keyboard: %w", shell.ErrNotFound)
	}
	e := sh.Keys.Lookup(key)
	if e.IsPass() {
		return false, nil
	}
	res := dispatch.Resolution{Key: key, Source: dispatch.SourceShell, Shell: sh, Entry: e}
	if !e.IsFunction() {
		name, err := sh.ActionName(e)
		if err != nil {
			return false, err
		}
		res.Action = name
	}
	return true, s.runEntry(res)
}

func (s *System) runEntry(res dispatch.Resolution) error {
	spec, ok := s.shells[res.Shell.Name]
	if !ok || spec.Shell != res.Shell {
		return fmt.Errorf("shell %s is not registered", res.Shell.Name)
	}
	if res.Entry.IsFunction() {
		slot := res.Entry.Action()
		if slot < 0 || slot >= len(spec.Functions) || spec.Functions[slot] == nil {
			return fmt.Errorf("shell %s: no function %d", res.Shell.Name, slot)
		}
		return spec.Functions[slot](s, res.Key)
	}
	return spec.Actions[res.Action](s, res.Key)
}

func (s *System) defaultKey(key keys.Code) error {
	if _, ok := key.Digit(); ok {
		s.digitEntry = true
	} else if key != keys.KeyBack && key != keys.KeyCHS && key != keys.KeyEEX && key != keys.KeyDot {
		s.digitEntry = false
	}
	s.lastDefault = key
	if s.onDefault != nil {
		return s.onDefault(s, key)
	}
	logging.KeysDebug("key %s: default behavior", key)
	return nil
}

// LastDefault returns the last key that fell through to default behavior.
func (s *System) LastDefault() keys.Code { return s.lastDefault }

// Digit entry

// DigitEntry reports whether a number is being keyed in.
func (s *System) DigitEntry() bool { return s.digitEntry }

// FastDigitEntry starts or continues digit entry with key and returns
// whether the key was a digit entry key.
func (s *System) FastDigitEntry(key keys.Code) bool {
	if _, ok := key.Digit(); ok || key == keys.KeyDot || key == keys.KeyEEX {
		s.digitEntry = true
		return true
	}
	return false
}

// ClearSystemDigitEntry ends digit entry.
func (s *System) ClearSystemDigitEntry() { s.digitEntry = false }

// Argument entry

// Argument starts a single semi-merged argument entry for prompt. done runs
// when the entry is committed. Starting an entry clears any message.
func (s *System) Argument(prompt string, mask argument.Mask, done ArgumentDone) error {
	if err := s.arg.Begin(prompt, mask); err != nil {
		return s.errorExit(MsgBusy, err)
	}
	s.DisplayDone()
	s.pendingArg = done
	s.sync()
	return nil
}

// DualArgument starts a two field argument entry.
func (s *System) DualArgument(prompt string, mask argument.Mask, done ArgumentDone) error {
	if err := s.arg.BeginDual(prompt, mask); err != nil {
		return s.errorExit(MsgBusy, err)
	}
	s.DisplayDone()
	s.pendingArg = done
	s.sync()
	return nil
}

// Partial key

// PartialKey starts collecting a secondary function index for rom.
func (s *System) PartialKey(rom int) error {
	if err := s.partial.Begin(rom, s.clock.Now()); err != nil {
		return s.errorExit(MsgNonexist, err)
	}
	s.sync()
	return nil
}

// Secondaries

// SecondaryAddress returns the secondary function ref points at.
func (s *System) SecondaryAddress(ref secondary.Ref) (*secondary.Function, error) {
	return s.sec.Address(ref)
}

// AssignSecondary binds key to ref.
func (s *System) AssignSecondary(key keys.Code, ref secondary.Ref) error {
	if err := s.sec.Assign(key, ref); err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			return s.errorExit(MsgNonexist, err)
		}
		return err
	}
	logging.Secondary("ASN %s to %s", ref, key)
	return nil
}

// ClearAssignment removes the assignment on key.
func (s *System) ClearAssignment(key keys.Code) bool { return s.sec.ClearAssignment(key) }

// SecondaryAssignment returns the assignment on key.
func (s *System) SecondaryAssignment(key keys.Code) (secondary.Ref, bool) {
	return s.sec.Assignment(key)
}

// ClearSecondaryAssignments removes every assignment.
func (s *System) ClearSecondaryAssignments() int { return s.sec.ClearAll() }

// InvokeSecondary runs the function ref points at. A function that takes
// an argument prompts for it first and runs on commit.
func (s *System) InvokeSecondary(ref secondary.Ref) error {
	fn, err := s.sec.Address(ref)
	if err != nil {
		return s.errorExit(MsgNonexist, err)
	}
	if fn.Argument > 0 {
		s.arg.SetMaxDigits(fn.Argument)
		if err := s.arg.Begin(fn.Name, 0); err != nil {
			s.arg.SetMaxDigits(s.cfg.Argument.MaxDigits)
			return s.errorExit(MsgBusy, err)
		}
		s.DisplayDone()
		s.status.Set(status.SecArgument)
		s.pendingArg = func(s *System, res argument.Result) error {
			return s.runSecondary(fn, ref, res.Values[0])
		}
		return nil
	}
	return s.runSecondary(fn, ref, 0)
}

func (s *System) runSecondary(fn *secondary.Function, ref secondary.Ref, arg float64) error {
	logging.Secondary("XEQ %s (%s) arg=%g", fn.Name, ref, arg)
	if fn.Run == nil {
		return nil
	}
	if err := fn.Run(arg); err != nil {
		if IsUserError(err) {
			return err
		}
		return s.errorExit(MsgDataError, err)
	}
	return nil
}

// RunSecondary runs a secondary function by name with arg.
func (s *System) RunSecondary(name string, arg float64) error {
	ref, ok := s.sec.Lookup(name)
	if !ok {
		return s.errorExit(MsgNonexist, fmt.Errorf("%s: %w", name, secondary.ErrNotFound))
	}
	fn, err := s.sec.Address(ref)
	if err != nil {
		return s.errorExit(MsgNonexist, err)
	}
	return s.runSecondary(fn, ref, arg)
}

// Messages

// SendMessage delivers msg to the extension shell named ext.
func (s *System) SendMessage(ext string, msg uint8, data interface{}) (interface{}, bool, error) {
	sh := s.stack.Find(ext)
	if sh == nil {
		return nil, false, fmt.Errorf("extension %s: %w", ext, shell.ErrNotFound)
	}
	return s.bus.Send(sh, msg, data)
}

// Broadcast delivers msg to the extensions on the stack.
func (s *System) Broadcast(msg uint8, data interface{}) ([]bus.Reply, error) {
	return s.bus.Broadcast(msg, data)
}

// Timers

// SetTimeout arms the interval timer: fn runs on the first poll at or
// after d from now. A new timeout replaces the previous one.
func (s *System) SetTimeout(d time.Duration, fn func(s *System) error) {
	s.timer = &timer{deadline: s.clock.Now().Add(d), fn: fn}
	s.status.Set(status.IntervalTimer)
	logging.TimerDebug("timeout armed for %s", d)
	s.sync()
}

// ClearTimeout disarms the interval timer.
func (s *System) ClearTimeout() {
	s.timer = nil
	s.status.Clear(status.IntervalTimer)
	s.sync()
}

// Pause sets the pause flag; the next key stops the pause and is dropped.
func (s *System) Pause() {
	s.status.Set(status.Pause)
	s.sync()
}

// Poll fires expired timeouts: the partial key timeout and the interval
// timer. It is called at the start of every key and by idle loops.
func (s *System) Poll() {
	now := s.clock.Now()
	if err := s.partial.Poll(now); err != nil {
		s.ErrorMessage(MsgNoMatch)
	}
	if t := s.timer; t != nil && !now.Before(t.deadline) {
		s.timer = nil
		s.status.Clear(status.IntervalTimer)
		logging.TimerDebug("timeout fired")
		if t.fn != nil {
			if err := t.fn(s); err != nil {
				logging.KeysDebug("timeout handler: %v", err)
				if IsUserError(err) {
					s.unwind()
				}
			}
		}
	}
	s.sync()
}
