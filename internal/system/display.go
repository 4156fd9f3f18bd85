package system

import (
	"os4/internal/bus"
	"os4/internal/status"
)

// SetMessage puts msg on the display until the next key.
func (s *System) SetMessage(msg string) {
	s.message = msg
	s.status.Set(status.DisplayOverride)
}

// DisplayDone drops a message override.
func (s *System) DisplayDone() {
	s.message = ""
	s.status.Clear(status.DisplayOverride)
}

// Message returns the message on display, if any.
func (s *System) Message() string { return s.message }

// ShellDisplay returns what the topmost shell with a display routine shows.
func (s *System) ShellDisplay() string {
	for c := s.stack.Top(); c.Valid(); c = s.stack.Next(c) {
		if sh := c.Shell(); sh.Display != nil {
			return sh.Display()
		}
	}
	return ""
}

// Display returns the display line: a message override first, then any
// entry in progress, then the shell display.
func (s *System) Display() string {
	switch {
	case s.status.Has(status.DisplayOverride):
		return s.message
	case s.partial.Active():
		return s.partial.Display()
	case s.arg.Active():
		return s.arg.Display()
	}
	return s.ShellDisplay()
}

// Catalog asks the extensions for a catalog. The first extension that
// answers wins.
func (s *System) Catalog(n int) (bus.Reply, bool) {
	replies, err := s.bus.Broadcast(bus.ExtensionCAT, n)
	if err != nil || len(replies) == 0 {
		return bus.Reply{}, false
	}
	return replies[0], true
}
