package rom

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"os4/internal/buffer"
	"os4/internal/config"
	"os4/internal/keys"
	"os4/internal/secondary"
	"os4/internal/store"
	"os4/internal/system"
)

func boot(t *testing.T, opts ...system.Option) (*system.System, *Demo) {
	t.Helper()
	s, err := system.New(config.DefaultConfig(), opts...)
	require.NoError(t, err)
	d := New()
	require.NoError(t, s.Plug(d.ROM))
	return s, d
}

// keyIn presses keys given by legend, e.g. "1 2 ENTER 3 +".
func keyIn(t *testing.T, s *system.System, seq string) {
	t.Helper()
	for _, name := range strings.Fields(seq) {
		k, err := keys.Parse(name)
		require.NoError(t, err, name)
		require.NoError(t, s.Press(k), name)
	}
}

func x(t *testing.T, d *Demo) float64 {
	t.Helper()
	v, err := d.Calc.X()
	require.NoError(t, err)
	return v
}

func TestNumberCodec(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 12.5, 1e-5, -2.5e-42, 9.999999999e99, math.Pi} {
		r, err := EncodeNumber(v)
		require.NoError(t, err, v)
		got, err := DecodeNumber(r)
		require.NoError(t, err, v)
		assert.InDelta(t, v, got, math.Abs(v)*1e-9, "%g", v)
	}

	r, err := EncodeNumber(-12.5)
	require.NoError(t, err)
	assert.Equal(t, buffer.Register{0x91, 0x25, 0x00, 0x00, 0x00, 0x00, 0x01}, r)

	_, err = EncodeNumber(1e100)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = EncodeNumber(math.NaN())
	assert.ErrorIs(t, err, ErrOutOfRange)

	r, err = EncodeNumber(1e-120)
	require.NoError(t, err)
	assert.Equal(t, buffer.Register{}, r)

	_, err = DecodeNumber(buffer.Register{0x1a})
	assert.ErrorIs(t, err, ErrNotNumber)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "0.0000"},
		{15, "15.0000"},
		{-0.5, "-0.5000"},
		{1e12, "1.0000E+12"},
		{2e-6, "2.0000E-06"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.v))
	}
}

func TestRPNArithmetic(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "1 2 ENTER 3 +")
	assert.Equal(t, 15.0, x(t, d))
	assert.Equal(t, "15.0000", s.Display())

	keyIn(t, s, "4 *")
	assert.Equal(t, 60.0, x(t, d))
	keyIn(t, s, "LASTX")
	assert.Equal(t, 4.0, x(t, d))
	keyIn(t, s, "/")
	assert.Equal(t, 15.0, x(t, d))
}

func TestRPNStackLift(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "1 ENTER 2 ENTER 3 ENTER 4")
	st, err := d.Calc.Stack()
	require.NoError(t, err)
	assert.Equal(t, [4]float64{4, 3, 2, 1}, st)

	keyIn(t, s, "RDN")
	st, err = d.Calc.Stack()
	require.NoError(t, err)
	assert.Equal(t, [4]float64{3, 2, 1, 4}, st)

	keyIn(t, s, "X<>Y CLX 9")
	st, err = d.Calc.Stack()
	require.NoError(t, err)
	assert.Equal(t, [4]float64{9, 3, 1, 4}, st, "no lift after CLX")
}

func TestNumberEntry(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "1 . 5")
	assert.Equal(t, "1.5_", s.Display())
	assert.True(t, s.DigitEntry())

	keyIn(t, s, "EEX 3 CHS")
	assert.Equal(t, "1.5E-3_", s.Display())
	keyIn(t, s, "BACK BACK")
	assert.Equal(t, "1.5E_", s.Display())
	keyIn(t, s, "EEX 2 ENTER")
	assert.False(t, s.DigitEntry())
	assert.Equal(t, 150.0, x(t, d))

	keyIn(t, s, "CHS")
	assert.Equal(t, -150.0, x(t, d))
}

func TestDivideByZero(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "1 ENTER 0")
	err := s.Press(keys.Key(8, 1))
	require.Error(t, err)
	assert.True(t, system.IsUserError(err))
	assert.Equal(t, system.MsgDataError, s.Display())

	st, err := d.Calc.Stack()
	require.NoError(t, err)
	assert.Equal(t, [4]float64{0, 1, 0, 0}, st)
}

func TestStoreAndRecall(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "4 2 STO")
	assert.Equal(t, "STO __", s.Display())
	keyIn(t, s, "0 3 CLX RCL 0 3")
	assert.Equal(t, 42.0, x(t, d))
	v, err := d.Calc.Register(3)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	err = s.Press(keys.Key(3, 3))
	require.NoError(t, err)
	keyIn(t, s, "9")
	err = s.Press(keys.DigitKey(9))
	require.Error(t, err)
	assert.Equal(t, system.MsgNonexist, s.Display())
}

func TestXEQPartialKey(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "5 XEQ")
	assert.Equal(t, "XROM 06,__", s.Display())
	keyIn(t, s, "0 2")
	assert.Equal(t, 120.0, x(t, d))
}

func TestCatalogBrowse(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "3 CATALOG 0 1")
	require.Equal(t, CatalogShell, s.Stack().ActiveApp().Name)
	assert.Equal(t, "00 -DEMO 1A", s.Display())

	keyIn(t, s, "SST SST BST")
	assert.Equal(t, "01 X^3", s.Display())
	keyIn(t, s, "R/S")
	assert.Equal(t, RPNShell, s.Stack().ActiveApp().Name)
	assert.Equal(t, 27.0, x(t, d))
	assert.Empty(t, d.Catalog.Items(), "reset on exit")
}

func TestCatalogPassThrough(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "CATALOG 1 ENTER")
	require.True(t, s.HasActiveTransientApp())
	keyIn(t, s, "7")
	assert.False(t, s.HasActiveTransientApp())
	assert.Equal(t, "7_", s.Display())
	assert.Equal(t, 7.0, x(t, d))
}

func TestBufferCatalogExtension(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "CATALOG 0 4")
	require.Equal(t, CatalogShell, s.Stack().ActiveApp().Name)
	var names []string
	for _, it := range d.Catalog.Items() {
		names = append(names, it.Name)
	}
	assert.Contains(t, names, "BUF 02 SIZE 22")
	assert.Equal(t, BufferCatalog, d.Catalog.Number())

	keyIn(t, s, "BACK")
	assert.Equal(t, RPNShell, s.Stack().ActiveApp().Name)

	err := s.Press(keys.KeyCAT)
	require.NoError(t, err)
	keyIn(t, s, "0")
	err = s.Press(keys.DigitKey(7))
	require.Error(t, err)
	assert.Equal(t, system.MsgNonexist, s.Display())
}

func TestAssignWithDualArgument(t *testing.T) {
	s, d := boot(t)
	keyIn(t, s, "ASN 0 1")
	assert.Equal(t, "ASN 01,__", s.Display())
	keyIn(t, s, "1 1")
	ref, ok := s.SecondaryAssignment(keys.Key(1, 1))
	require.True(t, ok)
	assert.Equal(t, secondary.Ref{ROM: DemoROMID, Index: 1}, ref)

	keyIn(t, s, "2 SIGMA+")
	assert.Equal(t, 8.0, x(t, d))

	// R/S leaves user mode: the key is back to its own meaning.
	keyIn(t, s, "R/S")
	assert.Equal(t, "USER OFF", s.Display())
	keyIn(t, s, "SIGMA+")
	assert.Equal(t, keys.Key(1, 1), s.LastDefault())
}

func TestSeededRandom(t *testing.T) {
	s, d := boot(t)
	require.NoError(t, s.RunSecondary("SEED", 50))
	require.NoError(t, s.RunSecondary("RNDM", 0))
	assert.InDelta(t, 0.711327, x(t, d), 1e-9)

	_, ok := s.Memory().FindHosted(buffer.SeedBuffer)
	assert.True(t, ok)
}

func TestFactorialDomain(t *testing.T) {
	s, _ := boot(t)
	keyIn(t, s, "2 . 5")
	err := s.RunSecondary("N!", 0)
	require.Error(t, err)
	assert.Equal(t, system.MsgDataError, s.Display())
}

func TestSnapshotKeepsCalculator(t *testing.T) {
	db, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	s, _ := boot(t, system.WithStore(db))
	keyIn(t, s, "4 2 ENTER 7 STO 0 5")
	snap, err := s.Save("calc")
	require.NoError(t, err)

	r, d := boot(t, system.WithStore(db))
	require.NoError(t, r.Load(snap.ID))
	st, err := d.Calc.Stack()
	require.NoError(t, err)
	assert.Equal(t, [4]float64{7, 42, 0, 0}, st)
	v, err := d.Calc.Register(5)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestDemoPlugsIntoFreshSystem(t *testing.T) {
	s, err := system.New(config.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Plug(New().ROM))
	assert.Equal(t, RPNShell, s.Stack().ActiveApp().Name)

	// The table header holds a place but is not a function.
	err = s.InvokeSecondary(secondary.Ref{ROM: DemoROMID, Index: 0})
	require.Error(t, err)
	assert.True(t, system.IsUserError(err))
	assert.Equal(t, system.MsgNonexist, s.Display())
}

func TestRestoreDropsOpenCatalog(t *testing.T) {
	s, _ := boot(t)
	keyIn(t, s, "CATALOG 0 1")
	require.True(t, s.HasActiveTransientApp())
	snap := s.Snapshot("open catalog")

	r, d := boot(t)
	require.NoError(t, r.Restore(snap))
	assert.False(t, r.HasActiveTransientApp())
	assert.Equal(t, RPNShell, r.Stack().ActiveApp().Name)
	assert.NotContains(t, r.Stack().Names(), CatalogShell)

	keyIn(t, r, "2 ENTER 3 +")
	assert.Equal(t, 5.0, x(t, d))
	assert.NotPanics(t, func() { _ = r.Press(keys.KeyRS) })
}

func TestCatalogRunWithoutItems(t *testing.T) {
	s, d := boot(t)
	require.NoError(t, s.ActivateShell(CatalogShell))
	require.Empty(t, d.Catalog.Items())
	assert.Equal(t, "", d.Catalog.Display())

	err := s.Press(keys.KeyRS)
	require.Error(t, err)
	assert.True(t, system.IsUserError(err))
	assert.False(t, s.HasActiveTransientApp())
}
