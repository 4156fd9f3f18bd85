package system

import (
	"errors"
	"fmt"
	"strings"

	"os4/internal/buffer"
	"os4/internal/keys"
	"os4/internal/logging"
	"os4/internal/secondary"
	"os4/internal/shell"
	"os4/internal/status"
	"os4/internal/store"
)

// Transient state that does not survive a restore.
var transientFlags = []status.Flag{
	status.DisplayOverride, status.Pause, status.SecProxy,
	status.SecArgument, status.IntervalTimer,
}

// Snapshot captures continuous memory: the buffer area, the status word,
// the shell stack and the key assignments.
func (s *System) Snapshot(label string) *store.Snapshot {
	s.sync()
	snap := &store.Snapshot{
		Label:  label,
		Status: s.status.Bits(),
		Memory: s.mem.Snapshot(),
		Shells: s.stack.Names(),
	}
	for _, b := range s.sec.Bindings() {
		snap.Assignments = append(snap.Assignments, store.Assignment{
			Key: uint8(b.Key), ROM: b.Ref.ROM, Index: b.Ref.Index,
		})
	}
	return snap
}

// Restore loads snap. Entry state, timers and transient apps are dropped.
// Shells and assignments that refer to ROMs not plugged in are skipped.
func (s *System) Restore(snap *store.Snapshot) error {
	if err := s.mem.Restore(snap.Memory); err != nil {
		return fmt.Errorf("restore memory: %w", err)
	}
	if _, err := s.mem.EnsureSystem(); err != nil {
		return fmt.Errorf("restore system buffer: %w", err)
	}

	s.arg.Clear()
	s.partial.Cancel()
	s.pendingArg = nil
	s.timer = nil
	s.shifted = false
	s.message = ""

	st := status.FromBits(snap.Status)
	st.EndArgument()
	for _, f := range transientFlags {
		st.Clear(f)
	}
	// Stack membership is rebuilt below; NoApps is replayed afterwards.
	noApps := st.Has(status.NoApps)
	st.Clear(status.NoApps)
	*s.status = st

	for _, name := range s.stack.Names() {
		if sh := s.stack.Find(strings.Trim(name, "()")); sh != nil {
			_ = s.stack.Reclaim(sh)
		}
	}

	var errs []error
	for i := len(snap.Shells) - 1; i >= 0; i-- {
		name := strings.Trim(snap.Shells[i], "()")
		spec, ok := s.shells[name]
		if !ok {
			logging.BootWarn("restore: shell %s not available, skipped", name)
			continue
		}
		// Transient apps keep their state outside continuous memory.
		if spec.Shell.Kind == shell.TransAppShell {
			logging.BootDebug("restore: transient app %s dropped", name)
			continue
		}
		if err := s.stack.Activate(spec.Shell); err != nil {
			errs = append(errs, err)
		}
	}
	if noApps {
		s.stack.DisableApps()
	}

	s.sec.ClearAll()
	for _, a := range snap.Assignments {
		ref := secondary.Ref{ROM: a.ROM, Index: a.Index}
		if err := s.sec.Assign(keys.Code(a.Key), ref); err != nil {
			logging.BootWarn("restore: assignment %s on key %d skipped: %v", ref, a.Key, err)
		}
	}

	s.sync()
	logging.Boot("restored snapshot %s (%d registers, %d shells, %d assignments)",
		snap.ID, len(snap.Memory)/buffer.RegisterSize, s.stack.Len(), len(s.sec.Bindings()))
	return errors.Join(errs...)
}

// Save writes a snapshot to the attached store.
func (s *System) Save(label string) (*store.Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("no snapshot store attached")
	}
	snap := s.Snapshot(label)
	if err := s.db.Save(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Load restores snapshot id from the attached store.
func (s *System) Load(id string) error {
	if s.db == nil {
		return fmt.Errorf("no snapshot store attached")
	}
	snap, err := s.db.Get(id)
	if err != nil {
		return err
	}
	return s.Restore(snap)
}
