// Package system is the OS4 core object. It owns the buffer area, the
// shell stack, the dispatcher, the secondary registry, argument entry and
// the extension bus, and runs the read-key cycle that ties them together.
// All of it is driven from one goroutine; System is not safe for
// concurrent use.
package system

import (
	"errors"
	"fmt"
	"time"

	"os4/internal/argument"
	"os4/internal/buffer"
	"os4/internal/bus"
	"os4/internal/config"
	"os4/internal/dispatch"
	"os4/internal/keys"
	"os4/internal/logging"
	"os4/internal/secondary"
	"os4/internal/shell"
	"os4/internal/status"
	"os4/internal/store"
)

// Clock tells the time for timeouts. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures a System.
type Option func(*System)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *System) { s.clock = c }
}

// WithStore attaches a snapshot store.
func WithStore(db *store.Store) Option {
	return func(s *System) { s.db = db }
}

// WithDefault sets the handler for keys no shell takes.
func WithDefault(fn Action) Option {
	return func(s *System) { s.onDefault = fn }
}

// ArgumentDone receives a committed argument.
type ArgumentDone func(s *System, res argument.Result) error

type timer struct {
	deadline time.Time
	fn       func(s *System) error
}

// System is one running OS4 instance.
type System struct {
	cfg   *config.Config
	clock Clock
	db    *store.Store

	status  *status.Status
	mem     *buffer.Store
	stack   *shell.Stack
	disp    *dispatch.Dispatcher
	sec     *secondary.Registry
	partial *secondary.Partial
	arg     *argument.Entry
	bus     *bus.Bus

	roms     map[string]*ROM
	romOrder []string
	shells   map[string]*ShellSpec
	labels   map[string]Action

	shifted     bool
	digitEntry  bool
	message     string
	pendingArg  ArgumentDone
	timer       *timer
	lastDefault keys.Code
	onDefault   Action
}

// New builds a System from cfg. The system buffer is created right away.
func New(cfg *config.Config, opts ...Option) (*System, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st := &status.Status{}
	s := &System{
		cfg:    cfg,
		clock:  realClock{},
		status: st,
		mem:    buffer.New(cfg.Memory.Registers),
		stack:  shell.NewStack(cfg.Memory.MaxShells, st),
		sec:    secondary.NewRegistry(),
		roms:   make(map[string]*ROM),
		shells: make(map[string]*ShellSpec),
		labels: make(map[string]Action),
	}
	for _, o := range opts {
		o(s)
	}
	s.disp = dispatch.New(s.stack, st, s.sec, s.hasLabel)
	s.partial = secondary.NewPartial(s.sec, st, cfg.GetPartialKeyTimeout())
	s.arg = argument.New(st, cfg.Argument.MaxDigits, argument.Policy(cfg.Argument.DualWhileSingle))
	s.bus = bus.New(s.stack)
	s.bus.OnDeferred = func(msg uint8, replies []bus.Reply) {
		logging.BusDebug("deferred message %d delivered to %d extension(s)", msg, len(replies))
	}
	s.stack.OnChange(s.shellChanged)

	if _, err := s.mem.EnsureSystem(); err != nil {
		return nil, fmt.Errorf("system buffer: %w", err)
	}
	s.Apply(cfg)
	logging.Boot("OS4 %s up: %d registers, %d shell slots", APIVersion, cfg.Memory.Registers, cfg.Memory.MaxShells)
	return s, nil
}

// Apply takes the settings that can change at run time from cfg: keyboard
// flags, the partial key timeout and the argument policy.
func (s *System) Apply(cfg *config.Config) {
	s.cfg = cfg
	s.disp.UserMode = cfg.Keyboard.UserMode
	if cfg.Keyboard.HideTopKeyAssign {
		s.status.Set(status.HideTopKeyAssign)
	} else {
		s.status.Clear(status.HideTopKeyAssign)
	}
	s.partial.SetTimeout(cfg.GetPartialKeyTimeout())
	s.arg.SetPolicy(argument.Policy(cfg.Argument.DualWhileSingle))
	s.arg.SetMaxDigits(cfg.Argument.MaxDigits)
	s.sync()
	logging.Config("applied config: user_mode=%v hide_top_key_assign=%v policy=%s",
		cfg.Keyboard.UserMode, cfg.Keyboard.HideTopKeyAssign, cfg.Argument.DualWhileSingle)
}

// Config returns the active configuration.
func (s *System) Config() *config.Config { return s.cfg }

// Status returns the status word.
func (s *System) Status() status.Status { return *s.status }

// Memory returns the buffer area.
func (s *System) Memory() *buffer.Store { return s.mem }

// Stack returns the shell stack.
func (s *System) Stack() *shell.Stack { return s.stack }

// Secondaries returns the secondary function registry.
func (s *System) Secondaries() *secondary.Registry { return s.sec }

// Bus returns the extension message bus.
func (s *System) Bus() *bus.Bus { return s.bus }

// Entry returns the argument entry machine.
func (s *System) Entry() *argument.Entry { return s.arg }

// PartialKeyState returns the partial key state.
func (s *System) PartialKeyState() secondary.State { return s.partial.State() }

// UserMode reports whether assignments overlay the keyboard.
func (s *System) UserMode() bool { return s.disp.UserMode }

// Shifted reports whether the shift latch is set.
func (s *System) Shifted() bool { return s.shifted }

// SetUserMode switches user mode.
func (s *System) SetUserMode(on bool) { s.disp.UserMode = on }

// sync writes the status word into the system buffer header and sweeps
// orphan shells.
func (s *System) sync() {
	if s.status.Has(status.OrphanShells) {
		s.stack.SweepOrphans(func(id int) bool {
			_, ok := s.mem.Find(id)
			return ok
		})
	}
	hdr, err := s.mem.HeaderBytes(buffer.SystemBufferID)
	if err != nil {
		logging.BufferWarn("system buffer missing: %v", err)
		return
	}
	s.status.Encode(hdr[:2])
	if err := s.mem.SetHeaderBytes(buffer.SystemBufferID, hdr); err != nil {
		logging.BufferWarn("status sync failed: %v", err)
	}
}

func (s *System) shellChanged(c shell.Change) {
	if _, err := s.bus.Broadcast(bus.ExtensionShellChanged, c); err != nil && !errors.Is(err, bus.ErrDeferred) {
		logging.ShellWarn("shell change notification: %v", err)
	}
}

// Shells

func (s *System) spec(name string) (*ShellSpec, error) {
	spec, ok := s.shells[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, shell.ErrNotFound)
	}
	return spec, nil
}

// ActivateShell puts a registered shell on the stack.
func (s *System) ActivateShell(name string) error {
	spec, err := s.spec(name)
	if err != nil {
		return err
	}
	if err := s.stack.Activate(spec.Shell); err != nil {
		if errors.Is(err, shell.ErrNoRoom) {
			return s.errorExit(MsgNoRoom, err)
		}
		return err
	}
	s.sync()
	return nil
}

// ExitShell exits a shell cooperatively.
func (s *System) ExitShell(name string) error {
	spec, err := s.spec(name)
	if err != nil {
		return err
	}
	err = s.stack.Exit(spec.Shell)
	s.sync()
	return err
}

// ReclaimShell removes a shell without running its exit hook.
func (s *System) ReclaimShell(name string) error {
	spec, err := s.spec(name)
	if err != nil {
		return err
	}
	err = s.stack.Reclaim(spec.Shell)
	s.sync()
	return err
}

// ExitTransientApp exits the active transient application, if any.
func (s *System) ExitTransientApp() bool {
	_, ok := s.stack.ExitTransientApp()
	s.sync()
	return ok
}

// HasActiveTransientApp reports whether a transient application is active.
func (s *System) HasActiveTransientApp() bool { return s.stack.HasActiveTransientApp() }

// ShellName returns the display name of sh.
func (s *System) ShellName(sh *shell.Shell) string {
	if sh == nil {
		return ""
	}
	return sh.Name
}

// Buffers

// FindBuffer reports whether buffer id exists.
func (s *System) FindBuffer(id int) (buffer.Addr, bool) { return s.mem.Find(id) }

// EnsureBuffer finds or creates buffer id with at least size registers.
func (s *System) EnsureBuffer(id, size int) (buffer.Addr, error) {
	a, created, err := s.mem.Ensure(id, size)
	if err != nil {
		if errors.Is(err, buffer.ErrNoRoom) {
			return 0, s.errorExit(MsgNoRoom, err)
		}
		return 0, err
	}
	if created {
		logging.Buffer("created buffer %d (%d registers)", id, size)
	}
	s.sync()
	return a, nil
}

// GrowBuffer adds n registers to buffer id.
func (s *System) GrowBuffer(id, n int) error {
	if _, err := s.mem.Grow(id, n); err != nil {
		if errors.Is(err, buffer.ErrNoRoom) {
			return s.errorExit(MsgNoRoom, err)
		}
		return err
	}
	s.sync()
	return nil
}

// ShrinkBuffer removes n registers from the end of buffer id.
func (s *System) ShrinkBuffer(id, n int) error {
	_, err := s.mem.Shrink(id, n)
	s.sync()
	return err
}

// OpenSpace inserts n registers into buffer id at offset.
func (s *System) OpenSpace(id, offset, n int) error {
	if _, err := s.mem.OpenSpace(id, offset, n); err != nil {
		if errors.Is(err, buffer.ErrNoRoom) {
			return s.errorExit(MsgNoRoom, err)
		}
		return err
	}
	s.sync()
	return nil
}

// ReclaimBuffer releases buffer id. Shells living on it become orphans and
// are swept.
func (s *System) ReclaimBuffer(id int) error {
	if err := s.mem.Reclaim(id); err != nil {
		return err
	}
	s.status.Set(status.OrphanShells)
	s.sync()
	return nil
}

// ReclaimSystemBuffer releases every hosted buffer except the seed buffer
// and compacts the buffer area.
func (s *System) ReclaimSystemBuffer() (int, error) {
	for _, id := range s.mem.HostedIDs() {
		if id == buffer.SeedBuffer {
			continue
		}
		if err := s.mem.ReclaimHosted(id); err != nil {
			return 0, err
		}
	}
	freed, err := s.mem.PackHosted()
	if err != nil {
		return 0, err
	}
	freed += s.mem.Pack()
	s.sync()
	return freed, nil
}

// AllocScratch sets up an n register scratch area.
func (s *System) AllocScratch(n int) error {
	if err := s.mem.AllocScratch(n); err != nil {
		if errors.Is(err, buffer.ErrNoRoom) {
			return s.errorExit(MsgNoRoom, err)
		}
		return err
	}
	s.sync()
	return nil
}

// ClearScratch releases the scratch area.
func (s *System) ClearScratch() error {
	err := s.mem.ClearScratch()
	s.sync()
	return err
}

// ScratchArea returns the scratch area size.
func (s *System) ScratchArea() (int, error) { return s.mem.ScratchArea() }

// Labels

// DefineLabel makes a local label available to top row auto assignment.
func (s *System) DefineLabel(name string, fn Action) { s.labels[name] = fn }

// ClearLabels removes every local label.
func (s *System) ClearLabels() { s.labels = make(map[string]Action) }

func (s *System) hasLabel(name string) bool {
	_, ok := s.labels[name]
	return ok
}
