package keys

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeLayout(t *testing.T) {
	assert.Equal(t, Code(1), Key(1, 1))
	assert.Equal(t, None, Key(4, 5), "row 4 has four keys")
	assert.Equal(t, None, Key(9, 1))
	assert.Len(t, All(), 2*(3*5+5*4))

	ln := Key(1, 5)
	assert.Equal(t, "15", ln.String())
	assert.Equal(t, "LN", ln.Name())
	assert.Equal(t, "-15", ln.Shift().String())
	assert.Equal(t, "E^X", ln.Shift().Name())
	assert.Equal(t, ln, ln.Shift().Unshifted())
	assert.Equal(t, 1, ln.Shift().Row())
	assert.Equal(t, 5, ln.Shift().Col())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Code
	}{
		{"LN", Key(1, 5)},
		{"ln", Key(1, 5)},
		{"^LN", ShiftedKey(1, 5)},
		{"E^X", ShiftedKey(1, 5)},
		{"15", Key(1, 5)},
		{"-15", ShiftedKey(1, 5)},
		{"7", DigitKey(7)},
		{"-", Key(5, 1)},
		{"R/S", KeyRS},
		{"BST", KeyBST},
		{"^SST", KeyBST},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "FOO", "45", "-99", "^"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRoundTripsNames(t *testing.T) {
	for _, c := range All() {
		if c == KeyShift.Shift() {
			continue // SHIFT on the shifted plane has the same legend
		}
		got, err := Parse(c.Name())
		require.NoError(t, err, c.Name())
		assert.Equal(t, c, got, c.Name())
	}
}

func TestDigits(t *testing.T) {
	for d := 0; d <= 9; d++ {
		v, ok := DigitKey(d).Digit()
		require.True(t, ok)
		assert.Equal(t, d, v)
	}
	_, ok := KeyEEX.Digit()
	assert.False(t, ok)
	_, ok = DigitKey(7).Shift().Digit()
	assert.False(t, ok)
}

func TestAutoLabel(t *testing.T) {
	l, ok := AutoLabel(Key(1, 1))
	assert.True(t, ok)
	assert.Equal(t, "A", l)
	l, _ = AutoLabel(Key(2, 5))
	assert.Equal(t, "J", l)
	l, _ = AutoLabel(ShiftedKey(1, 3))
	assert.Equal(t, "c", l)
	_, ok = AutoLabel(ShiftedKey(2, 1))
	assert.False(t, ok)
	_, ok = AutoLabel(KeyXEQ)
	assert.False(t, ok)
}

func TestEntryEncoding(t *testing.T) {
	assert.True(t, Pass.IsPass())
	assert.Equal(t, -1, Pass.Action())

	e := BuiltinKey(0)
	assert.Equal(t, Entry(1), e, "action 0 is stored as 1")
	assert.False(t, e.IsPass())
	assert.False(t, e.Keeps())

	k := BuiltinKeyKeep(4)
	assert.Equal(t, 4, k.Action())
	assert.True(t, k.Keeps())

	f := FunctionKey(9)
	assert.True(t, f.IsFunction())
	assert.Equal(t, 9, f.Action())
	assert.Equal(t, "fn(9)", f.String())
}

func TestDenseLookup(t *testing.T) {
	tbl := NewDense(FlagAutoAssign)
	assert.False(t, tbl.Sparse())
	assert.True(t, tbl.Has(FlagAutoAssign))
	require.NoError(t, tbl.Set(KeySST, BuiltinKey(2)))
	assert.Equal(t, BuiltinKey(2), tbl.Lookup(KeySST))
	assert.Equal(t, Pass, tbl.Lookup(KeyBST))
	assert.Equal(t, Pass, tbl.Lookup(None))
	assert.Error(t, tbl.Set(Code(200), BuiltinKey(0)))
	assert.Equal(t, 1, tbl.Len())
}

func TestSparseLookupWithXKD(t *testing.T) {
	tbl := NewSparse()
	require.NoError(t, tbl.Set(KeySST, BuiltinKey(0)))
	assert.Equal(t, Pass, tbl.Lookup(KeyRS))

	require.NoError(t, tbl.Set(XKD, BuiltinKey(7)))
	assert.Equal(t, BuiltinKey(0), tbl.Lookup(KeySST))
	assert.Equal(t, BuiltinKey(7), tbl.Lookup(KeyRS), "unlisted key goes to XKD")

	require.NoError(t, tbl.Set(KeySST, BuiltinKey(3)))
	assert.Equal(t, BuiltinKey(3), tbl.Lookup(KeySST))
	assert.Equal(t, 2, tbl.Len())
}

func TestBuilder(t *testing.T) {
	tbl, jump, err := NewBuilder().
		Sparse().
		Flag(FlagTransientApp).
		Key(KeySST, "next").
		Key(KeyBST, "prev").
		KeyKeep(KeyBack, "next").
		Pass(KeyRS).
		XKD("other").
		Build()
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"next", "prev", "other"}, jump); diff != "" {
		t.Errorf("jump table mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, tbl.Sparse())
	assert.True(t, tbl.Has(FlagTransientApp))
	assert.Equal(t, BuiltinKey(0), tbl.Lookup(KeySST))
	assert.Equal(t, BuiltinKey(1), tbl.Lookup(KeyBST))
	assert.Equal(t, BuiltinKeyKeep(0), tbl.Lookup(KeyBack))
	assert.Equal(t, Pass, tbl.Lookup(KeyRS), "explicit pass is not replaced by XKD")
	assert.Equal(t, BuiltinKey(2), tbl.Lookup(KeyEnter))
}

func TestBuilderErrors(t *testing.T) {
	_, _, err := NewBuilder().XKD("x").Build()
	assert.Error(t, err, "XKD on a dense table")

	_, _, err = NewBuilder().Key(Code(99), "x").Build()
	assert.Error(t, err)

	_, _, err = NewBuilder().Key(KeySST, "").Build()
	assert.Error(t, err)

	assert.Panics(t, func() { NewBuilder().Function(KeySST, -1).MustBuild() })
}
