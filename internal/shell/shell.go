// Package shell implements the shell stack: the ordered set of system,
// application and extension shells that decide how keys are handled.
package shell

import (
	"errors"
	"fmt"

	"os4/internal/keys"
)

var (
	// ErrNoRoom is returned when the stack is at capacity.
	ErrNoRoom = errors.New("shell stack full")
	// ErrNotFound is returned when a shell is not on the stack.
	ErrNotFound = errors.New("shell not found")
	// ErrInvalid is returned for a shell definition that cannot be activated.
	ErrInvalid = errors.New("invalid shell")
)

// Kind is the shell priority class.
type Kind uint8

const (
	GenericExtension Kind = 0
	AppShell         Kind = 4
	TransAppShell    Kind = 6
	SysShell         Kind = 8
)

func (k Kind) String() string {
	switch k {
	case GenericExtension:
		return "extension"
	case AppShell:
		return "app"
	case TransAppShell:
		return "transient"
	case SysShell:
		return "system"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ExtensionEntry maps an extension message to its handler. Handle returns
// the reply and whether the message was handled. An entry with Message 0
// ends the list.
type ExtensionEntry struct {
	Message uint8
	Handle  func(data interface{}) (interface{}, bool)
}

// Shell is a registered shell definition. The same *Shell value is what
// goes on the stack, so identity is pointer identity.
type Shell struct {
	Name string
	Kind Kind

	// Keys is the shell keyboard. Extension shells have none.
	Keys *keys.Table
	// Jump holds the action names referenced by Keys entries.
	Jump []string

	// Display renders the shell's standard display, if it has one.
	Display func() string
	// OnExit runs on a cooperative exit, not on reclaim.
	OnExit func()

	Extensions []ExtensionEntry

	// Owner is the buffer id the shell lives on; 0 means none. A shell whose
	// owner buffer disappears is an orphan.
	Owner int
}

// IsApp reports whether s is an application shell, transient or not.
func (s *Shell) IsApp() bool { return s.Kind == AppShell || s.Kind == TransAppShell }

// IsSystem reports whether s is a system shell.
func (s *Shell) IsSystem() bool { return s.Kind == SysShell }

// IsTransient reports whether s terminates on a pass-through key.
func (s *Shell) IsTransient() bool {
	return s.Kind == TransAppShell && s.Keys != nil && s.Keys.Has(keys.FlagTransientApp)
}

// HasExtensions reports whether s responds to any extension message.
func (s *Shell) HasExtensions() bool {
	return len(s.Extensions) > 0 && s.Extensions[0].Message != 0
}

// Handler returns the handler for msg, walking the list up to its end marker.
func (s *Shell) Handler(msg uint8) (func(interface{}) (interface{}, bool), bool) {
	for _, e := range s.Extensions {
		if e.Message == 0 {
			break
		}
		if e.Message == msg && e.Handle != nil {
			return e.Handle, true
		}
	}
	return nil, false
}

// ActionName returns the jump table name for entry e.
func (s *Shell) ActionName(e keys.Entry) (string, error) {
	n := e.Action()
	if n < 0 || n >= len(s.Jump) {
		return "", fmt.Errorf("%s: entry %s outside jump table of %d", s.Name, e, len(s.Jump))
	}
	return s.Jump[n], nil
}

// Validate checks the definition before it goes on the stack.
func (s *Shell) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil shell", ErrInvalid)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	switch s.Kind {
	case GenericExtension:
		if !s.HasExtensions() {
			return fmt.Errorf("%w: extension %s has no handlers", ErrInvalid, s.Name)
		}
	case AppShell, TransAppShell, SysShell:
		if s.Keys == nil {
			return fmt.Errorf("%w: %s has no key table", ErrInvalid, s.Name)
		}
	default:
		return fmt.Errorf("%w: %s has kind %s", ErrInvalid, s.Name, s.Kind)
	}
	return nil
}

func (s *Shell) String() string {
	if s == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s(%s)", s.Name, s.Kind)
}
