// Package rom is the built-in demo ROM: an RPN calculator application, a
// system shell with CATALOG and ASN, a transient catalog browser, an
// extension that lists buffers for CAT 4 and a table of secondary
// functions.
package rom

import (
	"fmt"
	"math"
	"time"

	"os4/internal/argument"
	"os4/internal/buffer"
	"os4/internal/bus"
	"os4/internal/keys"
	"os4/internal/logging"
	"os4/internal/secondary"
	"os4/internal/shell"
	"os4/internal/system"
)

// Shell names.
const (
	SystemShell    = "SYS"
	RPNShell       = "RPN"
	CatalogShell   = "CATALOG"
	BufferCatShell = "BUFCAT"
)

// DemoROMID is the XROM number of the demo secondary table.
const DemoROMID = 6

// Demo is one instance of the demo ROM. Each System needs its own.
type Demo struct {
	ROM     *system.ROM
	Calc    *Calc
	Catalog *Catalog

	sys *system.System
}

// New builds the demo ROM.
func New() *Demo {
	d := &Demo{Calc: &Calc{}, Catalog: &Catalog{}}
	d.ROM = &system.ROM{
		Name:     "DEMO",
		Requires: system.MakeVersion(0, 1),
		Shells: []system.ShellSpec{
			d.systemShell(),
			d.rpnShell(),
			d.catalogShell(),
			d.bufferExtension(),
		},
		Secondaries: d.secondaries(),
		Init: func(s *system.System) error {
			d.sys = s
			return d.Calc.init(s)
		},
	}
	return d
}

func (d *Demo) systemShell() system.ShellSpec {
	tbl, jump := keys.NewBuilder().Sparse().
		Key(keys.KeyCAT, "catalog").
		Key(keys.ShiftedKey(3, 2), "asn").
		MustBuild()
	return system.ShellSpec{
		Shell: &shell.Shell{Name: SystemShell, Kind: shell.SysShell, Keys: tbl, Jump: jump},
		Actions: map[string]system.Action{
			"catalog": func(s *system.System, _ keys.Code) error {
				if err := d.Calc.finish(); err != nil {
					return err
				}
				return s.Argument("CAT", 0, func(s *system.System, res argument.Result) error {
					return d.Catalog.open(s, int(res.Values[0]))
				})
			},
			"asn": func(s *system.System, _ keys.Code) error {
				if err := d.Calc.finish(); err != nil {
					return err
				}
				return s.DualArgument("ASN", 0, d.assign)
			},
		},
		Activate: true,
	}
}

// assign binds DEMO function n to the key at row/column rc (e.g. 11 for
// the top left key).
func (d *Demo) assign(s *system.System, res argument.Result) error {
	rc := int(res.Values[1])
	key := keys.Key(rc/10, rc%10)
	if key == keys.None {
		return s.ErrorExit(system.MsgInvalidKey)
	}
	ref := secondary.Ref{ROM: DemoROMID, Index: int(res.Values[0])}
	return s.AssignSecondary(key, ref)
}

func (d *Demo) rpnShell() system.ShellSpec {
	c := d.Calc
	b := keys.NewBuilder().Flag(keys.FlagAutoAssign)
	for n := 0; n <= 9; n++ {
		b.KeyKeep(keys.DigitKey(n), "digit")
	}
	b.KeyKeep(keys.KeyDot, "digit").
		KeyKeep(keys.KeyEEX, "digit").
		KeyKeep(keys.KeyCHS, "chs").
		KeyKeep(keys.KeyBack, "back").
		Key(keys.KeyEnter, "enter").
		Key(keys.Key(6, 1), "add").
		Key(keys.Key(5, 1), "sub").
		Key(keys.Key(7, 1), "mul").
		Key(keys.Key(8, 1), "div").
		Key(keys.Key(1, 2), "inv").
		Key(keys.Key(1, 3), "sqrt").
		Key(keys.Key(1, 4), "log").
		Key(keys.Key(1, 5), "ln").
		Key(keys.Key(2, 1), "swap").
		Key(keys.Key(2, 2), "rdn").
		Key(keys.Key(2, 3), "sin").
		Key(keys.Key(2, 4), "cos").
		Key(keys.Key(2, 5), "tan").
		Key(keys.ShiftedKey(1, 2), "pow").
		Key(keys.ShiftedKey(1, 3), "sq").
		Key(keys.ShiftedKey(1, 4), "exp10").
		Key(keys.ShiftedKey(1, 5), "exp").
		Key(keys.ShiftedKey(2, 3), "asin").
		Key(keys.ShiftedKey(2, 4), "acos").
		Key(keys.ShiftedKey(2, 5), "atan").
		Key(keys.ShiftedKey(4, 4), "clx").
		Key(keys.ShiftedKey(8, 2), "pi").
		Key(keys.ShiftedKey(8, 3), "lastx").
		Key(keys.ShiftedKey(8, 4), "view").
		Key(keys.Key(3, 3), "sto").
		Key(keys.Key(3, 4), "rcl").
		Key(keys.KeyXEQ, "xeq").
		Function(keys.KeyRS, 0)
	tbl, jump := b.MustBuild()

	un := func(f func(float64) float64) system.Action {
		return c.unary(func(x float64) (float64, error) { return checked(f(x)) })
	}
	bin := func(f func(y, x float64) float64) system.Action {
		return c.binary(func(y, x float64) (float64, error) { return checked(f(y, x)) })
	}
	deg := math.Pi / 180

	return system.ShellSpec{
		Shell: &shell.Shell{
			Name: RPNShell, Kind: shell.AppShell, Keys: tbl, Jump: jump,
			Display: c.Display, Owner: RPNBufferID,
		},
		Actions: map[string]system.Action{
			"digit": c.digit,
			"chs":   c.chs,
			"back":  c.back,
			"enter": c.enterKey,
			"add":   bin(func(y, x float64) float64 { return y + x }),
			"sub":   bin(func(y, x float64) float64 { return y - x }),
			"mul":   bin(func(y, x float64) float64 { return y * x }),
			"div": c.binary(func(y, x float64) (float64, error) {
				if x == 0 {
					return 0, errDomain
				}
				return y / x, nil
			}),
			"pow":   bin(math.Pow),
			"inv":   un(func(x float64) float64 { return 1 / x }),
			"sqrt":  un(math.Sqrt),
			"sq":    un(func(x float64) float64 { return x * x }),
			"log":   un(math.Log10),
			"ln":    un(math.Log),
			"exp10": un(func(x float64) float64 { return math.Pow(10, x) }),
			"exp":   un(math.Exp),
			"sin":   un(func(x float64) float64 { return math.Sin(x * deg) }),
			"cos":   un(func(x float64) float64 { return math.Cos(x * deg) }),
			"tan":   un(func(x float64) float64 { return math.Tan(x * deg) }),
			"asin":  un(func(x float64) float64 { return math.Asin(x) / deg }),
			"acos":  un(func(x float64) float64 { return math.Acos(x) / deg }),
			"atan":  un(func(x float64) float64 { return math.Atan(x) / deg }),
			"swap":  c.swap,
			"rdn":   c.rdn,
			"clx":   c.clx,
			"pi":    c.pi,
			"lastx": c.lastX,
			"view":  c.view,
			"sto":   c.sto,
			"rcl":   c.rcl,
			"xeq":   c.xeq,
		},
		// R/S toggles user mode; the keyboard has no USER key.
		Functions: []system.Action{func(s *system.System, _ keys.Code) error {
			if err := c.finish(); err != nil {
				return err
			}
			s.SetUserMode(!s.UserMode())
			if s.UserMode() {
				s.SetMessage("USER ON")
			} else {
				s.SetMessage("USER OFF")
			}
			return nil
		}},
		Activate: true,
	}
}

func (d *Demo) catalogShell() system.ShellSpec {
	cat := d.Catalog
	tbl, jump := keys.NewBuilder().Sparse().Flag(keys.FlagTransientApp).
		Key(keys.KeySST, "next").
		Key(keys.KeyBST, "prev").
		Key(keys.KeyRS, "run").
		Key(keys.KeyBack, "exit").
		MustBuild()
	return system.ShellSpec{
		Shell: &shell.Shell{
			Name: CatalogShell, Kind: shell.TransAppShell, Keys: tbl, Jump: jump,
			Display: cat.Display, OnExit: cat.reset,
		},
		Actions: map[string]system.Action{
			"next": cat.next,
			"prev": cat.prev,
			"run":  cat.run,
			"exit": cat.exit,
		},
	}
}

func (d *Demo) bufferExtension() system.ShellSpec {
	return system.ShellSpec{
		Shell: &shell.Shell{Name: BufferCatShell, Kind: shell.GenericExtension, Extensions: []shell.ExtensionEntry{
			{Message: bus.ExtensionCAT, Handle: bufferCatalog(&d.sys)},
			{Message: bus.ExtensionShellChanged, Handle: func(data interface{}) (interface{}, bool) {
				if c, ok := data.(shell.Change); ok {
					logging.ShellDebug("%s: %s", c.Shell.Name, c.Event)
				}
				return nil, false
			}},
		}},
		Activate: true,
	}
}

func (d *Demo) secondaries() *secondary.Table {
	c := d.Calc
	run := func(a system.Action) func(float64) error {
		return func(float64) error { return a(d.sys, keys.None) }
	}
	return &secondary.Table{
		ROM:  DemoROMID,
		Name: "DEMO",
		Functions: []secondary.Function{
			{Name: "-DEMO 1A", Run: func(float64) error { return d.sys.ErrorExit(system.MsgNonexist) }},
			{Name: "X^3", Run: run(c.unary(func(x float64) (float64, error) { return checked(x * x * x) }))},
			{Name: "N!", Run: run(c.unary(factorial))},
			{Name: "RNDM", Run: func(float64) error { return d.random() }},
			{Name: "SEED", Argument: 2, Run: func(arg float64) error { return d.seed(arg / 100) }},
			{Name: "CLRG", Run: func(float64) error { return c.clearRegisters() }},
			{Name: "PSE", Run: func(float64) error {
				d.sys.Pause()
				return nil
			}},
			{Name: "TIMER", Argument: 2, Run: func(arg float64) error {
				d.sys.SetTimeout(time.Duration(arg)*time.Second, func(s *system.System) error {
					s.SetMessage("TIMER")
					return nil
				})
				return nil
			}},
			{Name: "ASN?", Run: func(float64) error {
				d.sys.SetMessage(fmt.Sprintf("%d ASSIGNED", len(d.sys.Secondaries().Bindings())))
				return nil
			}},
			{Name: "PACK", Run: func(float64) error {
				freed, err := d.sys.ReclaimSystemBuffer()
				if err != nil {
					return err
				}
				d.sys.SetMessage(fmt.Sprintf("PACKED %d", freed))
				return nil
			}},
			{Name: "FREE?", Run: func(float64) error {
				return c.Push(float64(d.sys.Memory().Free()))
			}},
		},
	}
}

func factorial(x float64) (float64, error) {
	if x < 0 || x != math.Trunc(x) || x > 69 {
		return 0, errDomain
	}
	r := 1.0
	for i := 2.0; i <= x; i++ {
		r *= i
	}
	return r, nil
}

// The generator keeps its seed in the hosted seed buffer.
func (d *Demo) seedRegister() (float64, error) {
	mem := d.sys.Memory()
	if _, err := mem.EnsureHosted(buffer.SeedBuffer, 1); err != nil {
		return 0, d.sys.NoRoom()
	}
	r, err := mem.GetHosted(buffer.SeedBuffer, 0)
	if err != nil {
		return 0, err
	}
	return DecodeNumber(r)
}

func (d *Demo) seed(v float64) error {
	if _, err := d.seedRegister(); err != nil {
		return err
	}
	r, err := EncodeNumber(v - math.Floor(v))
	if err != nil {
		return err
	}
	return d.sys.Memory().PutHosted(buffer.SeedBuffer, 0, r)
}

func (d *Demo) random() error {
	s, err := d.seedRegister()
	if err != nil {
		return err
	}
	s = s*9821 + 0.211327
	s -= math.Floor(s)
	if err := d.seed(s); err != nil {
		return err
	}
	return d.Calc.Push(s)
}
