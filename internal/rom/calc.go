package rom

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"os4/internal/argument"
	"os4/internal/keys"
	"os4/internal/logging"
	"os4/internal/system"
)

// RPN buffer layout: header, X Y Z T, LastX, then the data registers.
const (
	RPNBufferID   = 2
	DataRegisters = 16

	regX     = 1
	regLastX = 5
	regData  = 6
	rpnSize  = regData + DataRegisters
)

// entryMask is what keyed-in numbers accept.
var entryMask = argument.MaskOf(argument.AllowEEX, argument.AllowDecimal)

// Calc is the RPN calculator behind the RPN application shell. Its stack
// and registers live in the RPN buffer so they are part of continuous
// memory.
type Calc struct {
	sys *system.System

	// entry is the number being keyed in.
	entry string
	// lift is false right after ENTER and CLX: the next number overwrites X.
	lift bool
}

func (c *Calc) init(s *system.System) error {
	c.sys = s
	c.lift = true
	if _, err := s.EnsureBuffer(RPNBufferID, rpnSize); err != nil {
		return err
	}
	return nil
}

func (c *Calc) get(offset int) (float64, error) {
	r, err := c.sys.Memory().Get(RPNBufferID, offset)
	if err != nil {
		return 0, err
	}
	v, err := DecodeNumber(r)
	if err != nil {
		return 0, c.sys.ErrorExit(system.MsgDataError)
	}
	return v, nil
}

func (c *Calc) put(offset int, v float64) error {
	r, err := EncodeNumber(v)
	if errors.Is(err, ErrOutOfRange) {
		return c.sys.ErrorExit("OUT OF RANGE")
	}
	if err != nil {
		return err
	}
	return c.sys.Memory().Put(RPNBufferID, offset, r)
}

// Stack returns X, Y, Z and T.
func (c *Calc) Stack() ([4]float64, error) {
	var out [4]float64
	if err := c.finish(); err != nil {
		return out, err
	}
	for i := range out {
		v, err := c.get(regX + i)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// X returns the X register.
func (c *Calc) X() (float64, error) {
	if err := c.finish(); err != nil {
		return 0, err
	}
	return c.get(regX)
}

// Register returns data register n.
func (c *Calc) Register(n int) (float64, error) {
	if n < 0 || n >= DataRegisters {
		return 0, c.sys.ErrorExit(system.MsgNonexist)
	}
	return c.get(regData + n)
}

func (c *Calc) setRegister(n int, v float64) error {
	if n < 0 || n >= DataRegisters {
		return c.sys.ErrorExit(system.MsgNonexist)
	}
	return c.put(regData+n, v)
}

// push lifts the stack and puts v in X.
func (c *Calc) push(v float64) error {
	for i := 3; i > 0; i-- {
		w, err := c.get(regX + i - 1)
		if err != nil {
			return err
		}
		if err := c.put(regX+i, w); err != nil {
			return err
		}
	}
	return c.put(regX, v)
}

// drop moves Y Z T down one, duplicating T.
func (c *Calc) drop() error {
	for i := 1; i < 4; i++ {
		w, err := c.get(regX + i)
		if err != nil {
			return err
		}
		if err := c.put(regX+i-1, w); err != nil {
			return err
		}
	}
	return nil
}

// Push enters v as if it had been keyed in.
func (c *Calc) Push(v float64) error {
	if err := c.finish(); err != nil {
		return err
	}
	return c.enter(v)
}

func (c *Calc) enter(v float64) error {
	if c.lift {
		if err := c.push(v); err != nil {
			return err
		}
	} else if err := c.put(regX, v); err != nil {
		return err
	}
	c.lift = true
	return nil
}

// finish ends digit entry, putting the number keyed in into X.
func (c *Calc) finish() error {
	if c.entry == "" {
		return nil
	}
	text := c.entry
	c.entry = ""
	c.sys.ClearSystemDigitEntry()
	text = strings.TrimSuffix(text, "-")
	if text == "" {
		text = "0"
	}
	v, err := argument.ParseNumber(text, entryMask)
	if err != nil {
		return c.sys.ErrorExit(system.MsgDataError)
	}
	logging.KeysDebug("rpn: keyed in %s", text)
	return c.enter(v)
}

// Display shows the entry in progress or X.
func (c *Calc) Display() string {
	if c.entry != "" {
		return c.entry + "_"
	}
	if c.sys == nil {
		return ""
	}
	x, err := c.get(regX)
	if err != nil {
		return ""
	}
	return FormatNumber(x)
}

func (c *Calc) mantissaDigits() int {
	m := c.entry
	if i := strings.IndexByte(m, 'E'); i >= 0 {
		m = m[:i]
	}
	n := 0
	for _, r := range m {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// digit handles the number entry keys.
func (c *Calc) digit(s *system.System, key keys.Code) error {
	s.FastDigitEntry(key)
	eex := strings.IndexByte(c.entry, 'E')
	switch key {
	case keys.KeyDot:
		if eex < 0 && !strings.Contains(c.entry, ".") {
			if c.entry == "" || c.entry == "-" {
				c.entry += "0"
			}
			c.entry += "."
		}
	case keys.KeyEEX:
		if eex < 0 {
			if c.entry == "" {
				c.entry = "1"
			}
			c.entry += "E"
		}
	default:
		d, _ := key.Digit()
		if eex >= 0 {
			if len(strings.TrimPrefix(c.entry[eex+1:], "-")) >= 2 {
				return nil
			}
		} else if c.mantissaDigits() >= mantDigits {
			return nil
		}
		c.entry += string(rune('0' + d))
	}
	return nil
}

func (c *Calc) chs(s *system.System, _ keys.Code) error {
	if c.entry == "" {
		x, err := c.get(regX)
		if err != nil {
			return err
		}
		return c.put(regX, -x)
	}
	s.FastDigitEntry(keys.KeyCHS)
	if i := strings.IndexByte(c.entry, 'E'); i >= 0 {
		if strings.HasPrefix(c.entry[i+1:], "-") {
			c.entry = c.entry[:i+1] + c.entry[i+2:]
		} else {
			c.entry = c.entry[:i+1] + "-" + c.entry[i+1:]
		}
		return nil
	}
	if strings.HasPrefix(c.entry, "-") {
		c.entry = c.entry[1:]
	} else {
		c.entry = "-" + c.entry
	}
	return nil
}

// back deletes the last character keyed in, or clears X.
func (c *Calc) back(s *system.System, _ keys.Code) error {
	if c.entry != "" {
		c.entry = c.entry[:len(c.entry)-1]
		if c.entry == "" || c.entry == "-" {
			c.entry = ""
			s.ClearSystemDigitEntry()
			c.lift = false
			return c.put(regX, 0)
		}
		return nil
	}
	return c.clx(s, keys.None)
}

func (c *Calc) clx(*system.System, keys.Code) error {
	if err := c.finish(); err != nil {
		return err
	}
	c.lift = false
	return c.put(regX, 0)
}

func (c *Calc) enterKey(*system.System, keys.Code) error {
	if err := c.finish(); err != nil {
		return err
	}
	x, err := c.get(regX)
	if err != nil {
		return err
	}
	if err := c.push(x); err != nil {
		return err
	}
	c.lift = false
	return nil
}

// unary replaces X with f(X), saving LastX.
func (c *Calc) unary(f func(x float64) (float64, error)) system.Action {
	return func(s *system.System, _ keys.Code) error {
		if err := c.finish(); err != nil {
			return err
		}
		x, err := c.get(regX)
		if err != nil {
			return err
		}
		r, err := f(x)
		if err != nil {
			return s.ErrorExit(system.MsgDataError)
		}
		if err := c.put(regX, r); err != nil {
			return err
		}
		c.lift = true
		return c.put(regLastX, x)
	}
}

// binary replaces Y and X with f(Y, X) and drops the stack.
func (c *Calc) binary(f func(y, x float64) (float64, error)) system.Action {
	return func(s *system.System, _ keys.Code) error {
		if err := c.finish(); err != nil {
			return err
		}
		x, err := c.get(regX)
		if err != nil {
			return err
		}
		y, err := c.get(regX + 1)
		if err != nil {
			return err
		}
		r, err := f(y, x)
		if err != nil {
			return s.ErrorExit(system.MsgDataError)
		}
		if err := c.drop(); err != nil {
			return err
		}
		if err := c.put(regX, r); err != nil {
			return err
		}
		c.lift = true
		return c.put(regLastX, x)
	}
}

var errDomain = errors.New("domain error")

func checked(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errDomain
	}
	return v, nil
}

func (c *Calc) swap(*system.System, keys.Code) error {
	if err := c.finish(); err != nil {
		return err
	}
	x, err := c.get(regX)
	if err != nil {
		return err
	}
	y, err := c.get(regX + 1)
	if err != nil {
		return err
	}
	if err := c.put(regX, y); err != nil {
		return err
	}
	c.lift = true
	return c.put(regX+1, x)
}

func (c *Calc) rdn(*system.System, keys.Code) error {
	if err := c.finish(); err != nil {
		return err
	}
	x, err := c.get(regX)
	if err != nil {
		return err
	}
	if err := c.drop(); err != nil {
		return err
	}
	c.lift = true
	return c.put(regX+3, x)
}

func (c *Calc) lastX(*system.System, keys.Code) error {
	if err := c.finish(); err != nil {
		return err
	}
	v, err := c.get(regLastX)
	if err != nil {
		return err
	}
	return c.enter(v)
}

func (c *Calc) pi(*system.System, keys.Code) error {
	return c.Push(math.Pi)
}

// sto and rcl prompt for a register number.
func (c *Calc) sto(s *system.System, _ keys.Code) error {
	if err := c.finish(); err != nil {
		return err
	}
	return s.Argument("STO", 0, func(s *system.System, res argument.Result) error {
		x, err := c.get(regX)
		if err != nil {
			return err
		}
		c.lift = true
		return c.setRegister(int(res.Values[0]), x)
	})
}

func (c *Calc) rcl(s *system.System, _ keys.Code) error {
	if err := c.finish(); err != nil {
		return err
	}
	return s.Argument("RCL", 0, func(s *system.System, res argument.Result) error {
		v, err := c.Register(int(res.Values[0]))
		if err != nil {
			return err
		}
		return c.enter(v)
	})
}

func (c *Calc) view(s *system.System, _ keys.Code) error {
	if err := c.finish(); err != nil {
		return err
	}
	return s.Argument("VIEW", 0, func(s *system.System, res argument.Result) error {
		n := int(res.Values[0])
		v, err := c.Register(n)
		if err != nil {
			return err
		}
		s.SetMessage(fmt.Sprintf("R%02d=%s", n, FormatNumber(v)))
		return nil
	})
}

// xeq prompts for the index of a DEMO function.
func (c *Calc) xeq(s *system.System, _ keys.Code) error {
	if err := c.finish(); err != nil {
		return err
	}
	return s.PartialKey(DemoROMID)
}

func (c *Calc) clearRegisters() error {
	for n := 0; n < DataRegisters; n++ {
		if err := c.put(regData+n, 0); err != nil {
			return err
		}
	}
	return nil
}
