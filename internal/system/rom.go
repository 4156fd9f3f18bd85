package system

import (
	"errors"
	"fmt"

	"os4/internal/keys"
	"os4/internal/logging"
	"os4/internal/secondary"
	"os4/internal/shell"
)

// Action is the code behind a jump table name. key is the key that
// triggered it, keys.None when invoked directly.
type Action func(s *System, key keys.Code) error

// ShellSpec registers a shell together with the actions its key table
// names and the functions its function entries refer to.
type ShellSpec struct {
	Shell     *shell.Shell
	Actions   map[string]Action
	Functions []Action
	// Activate puts the shell on the stack when the ROM is plugged in.
	Activate bool
}

// ROM is a plug-in: shells, a secondary function table and an init hook.
// Plug checks Requires against the installed API before anything else.
type ROM struct {
	Name        string
	Requires    Version
	Shells      []ShellSpec
	Secondaries *secondary.Table
	Init        func(s *System) error
}

func (spec *ShellSpec) validate() error {
	sh := spec.Shell
	if err := sh.Validate(); err != nil {
		return err
	}
	for _, name := range sh.Jump {
		if spec.Actions[name] == nil {
			return fmt.Errorf("shell %s: no action for %q", sh.Name, name)
		}
	}
	return nil
}

// Plug installs rom.
func (s *System) Plug(rom *ROM) error {
	if err := CheckVersion(rom.Requires); err != nil {
		return fmt.Errorf("rom %s: %w", rom.Name, err)
	}
	if _, ok := s.roms[rom.Name]; ok {
		return fmt.Errorf("rom %s already plugged in", rom.Name)
	}
	seen := make(map[string]bool)
	for i := range rom.Shells {
		spec := &rom.Shells[i]
		if err := spec.validate(); err != nil {
			return fmt.Errorf("rom %s: %w", rom.Name, err)
		}
		name := spec.Shell.Name
		if _, dup := s.shells[name]; dup || seen[name] {
			return fmt.Errorf("rom %s: shell %s already registered", rom.Name, name)
		}
		seen[name] = true
	}
	if rom.Secondaries != nil {
		if err := s.sec.Register(rom.Secondaries); err != nil {
			return fmt.Errorf("rom %s: %w", rom.Name, err)
		}
	}

	s.roms[rom.Name] = rom
	s.romOrder = append(s.romOrder, rom.Name)
	for i := range rom.Shells {
		spec := &rom.Shells[i]
		s.shells[spec.Shell.Name] = spec
	}
	logging.Boot("plugged %s (requires %s, %d shells)", rom.Name, rom.Requires, len(rom.Shells))

	var errs []error
	for i := range rom.Shells {
		if rom.Shells[i].Activate {
			if err := s.stack.Activate(rom.Shells[i].Shell); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if rom.Init != nil {
		if err := rom.Init(s); err != nil {
			errs = append(errs, fmt.Errorf("rom %s init: %w", rom.Name, err))
		}
	}
	s.sync()
	return errors.Join(errs...)
}

// Unplug removes a ROM, reclaiming its shells from the stack.
func (s *System) Unplug(name string) error {
	rom, ok := s.roms[name]
	if !ok {
		return fmt.Errorf("rom %s not plugged in", name)
	}
	for _, spec := range rom.Shells {
		if s.stack.Contains(spec.Shell) {
			_ = s.stack.Reclaim(spec.Shell)
		}
		delete(s.shells, spec.Shell.Name)
	}
	if rom.Secondaries != nil {
		s.sec.Unregister(rom.Secondaries.ROM)
	}
	delete(s.roms, name)
	for i, n := range s.romOrder {
		if n == name {
			s.romOrder = append(s.romOrder[:i], s.romOrder[i+1:]...)
			break
		}
	}
	s.sync()
	return nil
}

// ROMs returns the plugged in ROMs in plug order.
func (s *System) ROMs() []*ROM {
	out := make([]*ROM, 0, len(s.romOrder))
	for _, n := range s.romOrder {
		out = append(out, s.roms[n])
	}
	return out
}

// LookupShell returns a registered shell by name.
func (s *System) LookupShell(name string) (*shell.Shell, bool) {
	spec, ok := s.shells[name]
	if !ok {
		return nil, false
	}
	return spec.Shell, true
}
