package argument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"os4/internal/keys"
	"os4/internal/status"
)

func press(t *testing.T, e *Entry, cs ...keys.Code) Step {
	t.Helper()
	var last Step
	for _, c := range cs {
		var err error
		last, err = e.Key(c)
		require.NoError(t, err, "key %s", c.Name())
	}
	return last
}

func TestParseNumber(t *testing.T) {
	both := MaskOf(AllowEEX, AllowDecimal)
	tests := []struct {
		in   string
		mask Mask
		want float64
		bad  bool
	}{
		{in: "12", want: 12},
		{in: "-7", want: -7},
		{in: "1.5", mask: both, want: 1.5},
		{in: "1.5", bad: true},
		{in: "2E3", mask: both, want: 2000},
		{in: "2E-2", mask: AllowEEX, want: 0.02},
		{in: "E2", mask: AllowEEX, want: 100},
		{in: "-E2", mask: AllowEEX, want: -100},
		{in: "3E", mask: AllowEEX, want: 3},
		{in: "2E3", bad: true},
		{in: "", bad: true},
		{in: "-", bad: true},
		{in: "1.2.3", mask: both, bad: true},
		{in: "1E2E3", mask: AllowEEX, bad: true},
		{in: "x1", bad: true},
	}
	for _, tt := range tests {
		got, err := ParseNumber(tt.in, tt.mask)
		if tt.bad {
			assert.ErrorIs(t, err, ErrBadNumber, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-12, tt.in)
	}
}

func TestParseNumberInput(t *testing.T) {
	seq := []keys.Code{keys.DigitKey(4), keys.KeyDot, keys.DigitKey(5), keys.KeyEEX, keys.KeyCHS, keys.DigitKey(1)}
	v, err := ParseNumberInput(seq, MaskOf(AllowEEX, AllowDecimal))
	require.NoError(t, err)
	assert.InDelta(t, 0.45, v, 1e-12)

	_, err = ParseNumberInput(seq, AllowDecimal)
	assert.ErrorIs(t, err, ErrBadNumber)
}

func TestSingleEntryCommitsAtMaxDigits(t *testing.T) {
	st := &status.Status{}
	e := New(st, 2, Reject)
	require.NoError(t, e.Begin("STO", 0))
	assert.True(t, st.Has(status.Argument))
	assert.Equal(t, "STO __", e.Display())

	step := press(t, e, keys.DigitKey(0))
	assert.Equal(t, Consumed, step.Outcome)
	assert.Equal(t, "STO 0_", e.Display())

	step = press(t, e, keys.DigitKey(7))
	require.Equal(t, Committed, step.Outcome)
	assert.False(t, step.Pass)
	assert.Equal(t, 7.0, step.Result.Values[0])
	assert.Equal(t, "07", step.Result.Text[0])
	assert.Equal(t, NoEntry, e.State())
	assert.False(t, st.ArgumentInProgress())
}

func TestEEXNeedsMask(t *testing.T) {
	e := New(nil, 2, Reject)
	require.NoError(t, e.Begin("TONE", 0))
	press(t, e, keys.DigitKey(3))
	step := press(t, e, keys.KeyEEX)
	assert.Equal(t, Committed, step.Outcome, "EEX ends the entry")
	assert.True(t, step.Pass, "EEX is then dispatched")
	assert.Equal(t, 3.0, step.Result.Values[0])

	require.NoError(t, e.Begin("NUM", AllowEEX))
	step = press(t, e, keys.DigitKey(3), keys.KeyEEX, keys.DigitKey(2))
	assert.Equal(t, Consumed, step.Outcome)
	assert.Equal(t, "NUM 3E2_", e.Display())
	step = press(t, e, keys.KeyEnter)
	require.Equal(t, Committed, step.Outcome)
	assert.Equal(t, 300.0, step.Result.Values[0])
}

func TestBackspace(t *testing.T) {
	st := &status.Status{}
	e := New(st, 3, Reject)
	require.NoError(t, e.Begin("GTO", 0))
	press(t, e, keys.DigitKey(1), keys.DigitKey(2))
	press(t, e, keys.KeyBack)
	assert.Equal(t, "GTO 1__", e.Display())
	press(t, e, keys.KeyBack)
	step := press(t, e, keys.KeyBack)
	assert.Equal(t, Cancelled, step.Outcome)
	assert.False(t, step.Pass)
	assert.False(t, st.ArgumentInProgress())
}

func TestOtherKeyCancelsAndPasses(t *testing.T) {
	e := New(nil, 2, Reject)
	require.NoError(t, e.Begin("RCL", 0))
	step := press(t, e, keys.KeySST)
	assert.Equal(t, Cancelled, step.Outcome)
	assert.True(t, step.Pass)

	step, err := e.Key(keys.KeySST)
	require.NoError(t, err)
	assert.True(t, step.Pass, "no entry: every key passes")
}

func TestDualEntry(t *testing.T) {
	st := &status.Status{}
	e := New(st, 2, Reject)
	require.NoError(t, e.BeginDual("MOVE", 0))
	assert.True(t, st.Has(status.ArgumentDual))
	assert.False(t, st.Has(status.Argument))

	press(t, e, keys.DigitKey(1), keys.DigitKey(2))
	assert.Equal(t, "MOVE 12,__", e.Display())
	press(t, e, keys.KeyBack)
	assert.Equal(t, "MOVE 1_,", e.Display(), "back from an empty second field returns to the first")
	press(t, e, keys.DigitKey(3))
	step := press(t, e, keys.DigitKey(4), keys.DigitKey(5))
	require.Equal(t, Committed, step.Outcome)
	assert.True(t, step.Result.Dual)
	assert.Equal(t, [2]float64{13, 45}, step.Result.Values)
}

func TestDualWhileSingleReject(t *testing.T) {
	st := &status.Status{}
	e := New(st, 2, Reject)
	require.NoError(t, e.Begin("STO", 0))
	press(t, e, keys.DigitKey(4))

	err := e.BeginDual("MOVE", 0)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, SingleMerged, e.State(), "single entry untouched")
	assert.Equal(t, "STO 4_", e.Display())
	assert.True(t, st.Has(status.Argument))
	assert.False(t, st.Has(status.ArgumentDual))
}

func TestDualWhileSingleReplace(t *testing.T) {
	st := &status.Status{}
	e := New(st, 2, Replace)
	require.NoError(t, e.Begin("STO", 0))
	press(t, e, keys.DigitKey(4))

	require.NoError(t, e.BeginDual("MOVE", 0))
	assert.Equal(t, DualMerged, e.State())
	assert.Equal(t, "MOVE __,", e.Display())
	assert.False(t, st.Has(status.Argument))
	assert.True(t, st.Has(status.ArgumentDual))

	require.NoError(t, e.Begin("STO", 0))
	assert.Equal(t, SingleMerged, e.State())
}

func TestBeginContinues(t *testing.T) {
	e := New(nil, 2, Reject)
	require.NoError(t, e.Begin("STO", 0))
	press(t, e, keys.DigitKey(4))
	require.NoError(t, e.Begin("STO", 0))
	assert.Equal(t, "STO 4_", e.Display())
}

func TestCommitErrors(t *testing.T) {
	e := New(nil, 2, Reject)
	_, err := e.Commit()
	assert.Error(t, err)

	require.NoError(t, e.BeginDual("MOVE", 0))
	press(t, e, keys.DigitKey(1), keys.DigitKey(2))
	_, err = e.Commit()
	assert.ErrorIs(t, err, ErrBadNumber, "second field empty")
	assert.False(t, e.Active())
}
