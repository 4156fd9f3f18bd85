package secondary

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"os4/internal/keys"
	"os4/internal/status"
)

func table(rom, n int, ran *[]string) *Table {
	t := &Table{ROM: rom, Name: fmt.Sprintf("ROM%d", rom)}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("F%d", i)
		t.Functions = append(t.Functions, Function{
			Name: name,
			Run: func(arg float64) error {
				*ran = append(*ran, fmt.Sprintf("%s(%g)", name, arg))
				return nil
			},
		})
	}
	return t
}

func TestRegister(t *testing.T) {
	var ran []string
	r := NewRegistry()
	require.NoError(t, r.Register(table(5, 3, &ran)))
	assert.ErrorIs(t, r.Register(table(5, 1, &ran)), ErrAlreadyRegistered)
	assert.Error(t, r.Register(&Table{ROM: 40}))
	assert.Error(t, r.Register(&Table{ROM: 6, Functions: []Function{{Name: "X"}}}))
	assert.Equal(t, []int{5}, r.ROMs())
}

func TestAddressAndInvoke(t *testing.T) {
	var ran []string
	r := NewRegistry()
	r.MustRegister(table(5, 3, &ran))

	fn, err := r.Address(Ref{ROM: 5, Index: 2})
	require.NoError(t, err)
	assert.Equal(t, "F2", fn.Name)

	_, err = r.Address(Ref{ROM: 5, Index: 3})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Address(Ref{ROM: 9})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Invoke(Ref{ROM: 5, Index: 1}, 4))
	require.NoError(t, r.RunSecondary("F0", 0))
	assert.ErrorIs(t, r.RunSecondary("NOPE", 0), ErrNotFound)
	assert.Equal(t, []string{"F1(4)", "F0(0)"}, ran)
}

func TestAssignClearRoundTrip(t *testing.T) {
	var ran []string
	r := NewRegistry()
	r.MustRegister(table(5, 3, &ran))
	key := keys.Key(1, 1)

	_, before := r.Assignment(key)
	require.False(t, before)

	require.NoError(t, r.Assign(key, Ref{ROM: 5, Index: 1}))
	ref, ok := r.Assignment(key)
	require.True(t, ok)
	assert.Equal(t, "XROM 05,01", ref.String())
	require.NoError(t, r.InvokeKey(key, 2))

	assert.True(t, r.ClearAssignment(key))
	_, after := r.Assignment(key)
	assert.Equal(t, before, after)
	assert.False(t, r.ClearAssignment(key))
	assert.ErrorIs(t, r.InvokeKey(key, 0), ErrNotFound)

	assert.ErrorIs(t, r.Assign(key, Ref{ROM: 5, Index: 7}), ErrNotFound)
	assert.Error(t, r.Assign(keys.None, Ref{ROM: 5}))
}

func TestClearAllAndBindings(t *testing.T) {
	var ran []string
	r := NewRegistry()
	r.MustRegister(table(5, 3, &ran))
	r.MustRegister(table(6, 1, &ran))
	require.NoError(t, r.Assign(keys.KeySST, Ref{ROM: 5, Index: 2}))
	require.NoError(t, r.Assign(keys.Key(1, 1), Ref{ROM: 6}))

	want := []Binding{
		{Key: keys.Key(1, 1), Ref: Ref{ROM: 6}},
		{Key: keys.KeySST, Ref: Ref{ROM: 5, Index: 2}},
	}
	if diff := cmp.Diff(want, r.Bindings()); diff != "" {
		t.Errorf("bindings (-want +got):\n%s", diff)
	}

	r.Unregister(6)
	assert.Len(t, r.Bindings(), 1)
	assert.Equal(t, 1, r.ClearAll())
	assert.Empty(t, r.Bindings())
}

func TestPartialResolvesUniqueMatch(t *testing.T) {
	var ran []string
	r := NewRegistry()
	r.MustRegister(table(5, 11, &ran)) // indices 00..10
	st := &status.Status{}
	p := NewPartial(r, st, time.Second)
	now := time.Unix(0, 0)

	require.NoError(t, p.Begin(5, now))
	assert.True(t, st.Has(status.SecProxy))
	assert.Equal(t, "XROM 05,__", p.Display())

	ref, done, err := p.Digit(1, now)
	require.NoError(t, err)
	assert.True(t, done, "only 10 starts with 1")
	assert.Equal(t, Ref{ROM: 5, Index: 10}, ref)
	assert.Equal(t, Resolved, p.State())
	assert.False(t, st.Has(status.SecProxy))
}

func TestPartialNeedsAllDigitsWhenAmbiguous(t *testing.T) {
	var ran []string
	r := NewRegistry()
	r.MustRegister(table(5, 12, &ran))
	p := NewPartial(r, nil, time.Second)
	now := time.Unix(0, 0)

	require.NoError(t, p.Begin(5, now))
	_, done, err := p.Digit(1, now)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "XROM 05,1_", p.Display())

	ref, done, err := p.Digit(1, now)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 11, ref.Index)
}

func TestPartialEnterAndNoMatch(t *testing.T) {
	var ran []string
	r := NewRegistry()
	r.MustRegister(table(5, 12, &ran))
	p := NewPartial(r, nil, time.Second)
	now := time.Unix(0, 0)

	require.NoError(t, p.Begin(5, now))
	_, _, err := p.Digit(0, now)
	require.NoError(t, err)
	_, err = p.Enter()
	require.NoError(t, err, "0 is an exact index")

	require.NoError(t, p.Begin(5, now))
	_, _, err = p.Digit(3, now)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, Idle, p.State())

	assert.Error(t, p.Begin(9, now))
}

func TestPartialTimeout(t *testing.T) {
	var ran []string
	r := NewRegistry()
	r.MustRegister(table(5, 12, &ran))
	st := &status.Status{}
	p := NewPartial(r, st, 3*time.Second)
	start := time.Unix(100, 0)

	require.NoError(t, p.Begin(5, start))
	_, _, err := p.Digit(1, start.Add(2*time.Second))
	require.NoError(t, err)

	assert.NoError(t, p.Poll(start.Add(4*time.Second)), "digit re-armed the timer")
	err = p.Poll(start.Add(5 * time.Second))
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, Idle, p.State())
	assert.False(t, p.Active())
	assert.False(t, st.Has(status.SecProxy))
	assert.NoError(t, p.Poll(start.Add(10*time.Second)), "fires once")
}

func TestPartialBackCancels(t *testing.T) {
	var ran []string
	r := NewRegistry()
	r.MustRegister(table(5, 12, &ran))
	p := NewPartial(r, nil, time.Second)
	now := time.Unix(0, 0)

	require.NoError(t, p.Begin(5, now))
	_, _, _ = p.Digit(1, now)
	p.Back()
	assert.Equal(t, "", p.Typed())
	assert.True(t, p.Active())
	p.Back()
	assert.False(t, p.Active())
}
