package system

import (
	"errors"

	"os4/internal/logging"
	"os4/internal/status"
)

// Standard user error texts.
const (
	MsgNoRoom     = "NO ROOM"
	MsgNonexist   = "NONEXISTENT"
	MsgDataError  = "DATA ERROR"
	MsgNoMatch    = "NO MATCH"
	MsgBusy       = "BUSY"
	MsgInvalidKey = "INVALID KEY"
)

// UserError is an error shown to the user. An action returning one unwinds
// the current key: argument and partial key entry are dropped and the
// message stays on the display.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error { return e.Err }

// IsUserError reports whether err carries a user error.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// ErrorMessage shows msg as an error on the display. The key cycle goes on.
func (s *System) ErrorMessage(msg string) {
	logging.KeysDebug("error message %q", msg)
	s.SetMessage(msg)
}

// ErrorExit shows msg and returns the error that unwinds the key cycle.
func (s *System) ErrorExit(msg string) error {
	return s.errorExit(msg, nil)
}

func (s *System) errorExit(msg string, cause error) error {
	s.ErrorMessage(msg)
	return &UserError{Message: msg, Err: cause}
}

// NoRoom is the error exit for an exhausted buffer area.
func (s *System) NoRoom() error {
	return s.ErrorExit(MsgNoRoom)
}

// unwind drops any entry in progress after an error exit.
func (s *System) unwind() {
	s.arg.Clear()
	s.arg.SetMaxDigits(s.cfg.Argument.MaxDigits)
	s.partial.Cancel()
	s.pendingArg = nil
	s.status.Clear(status.SecArgument)
	s.shifted = false
}
