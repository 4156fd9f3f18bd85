package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "os4.db")
	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Close())

	// Reopening keeps the schema.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSaveAndGet(t *testing.T) {
	s := openMemory(t)
	snap := &Snapshot{
		Label:  "manual",
		Status: 0x0201,
		Memory: make([]byte, 7*16),
		Shells: []string{"SYS", "RPN"},
		Assignments: []Assignment{
			{Key: 1, ROM: 5, Index: 2},
			{Key: 23, ROM: 5, Index: 0},
		},
	}
	snap.Memory[3] = 0xaa
	require.NoError(t, s.Save(snap))
	require.NotEmpty(t, snap.ID)
	require.False(t, snap.CreatedAt.IsZero())

	got, err := s.Get(snap.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(snap, got, cmpTime()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func cmpTime() cmp.Option {
	return cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })
}

func TestLatestAndList(t *testing.T) {
	s := openMemory(t)
	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, label := range []string{"one", "two", "three"} {
		require.NoError(t, s.Save(&Snapshot{
			Label:     label,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Memory:    make([]byte, 7*(i+1)),
		}))
	}

	latest, err = s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "three", latest.Label)

	list, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "three", list[0].Label)
	assert.Equal(t, 3, list[0].Registers)
	assert.Equal(t, "two", list[1].Label)

	all, err := s.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteCascades(t *testing.T) {
	s := openMemory(t)
	snap := &Snapshot{Memory: []byte{1}, Assignments: []Assignment{{Key: 1, ROM: 1}}}
	require.NoError(t, s.Save(snap))

	require.NoError(t, s.Delete(snap.ID))
	assert.ErrorIs(t, s.Delete(snap.ID), ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM assignments`).Scan(&n))
	assert.Zero(t, n)
}

func TestPrune(t *testing.T) {
	s := openMemory(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(&Snapshot{
			Label:     string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			Memory:    []byte{byte(i)},
		}))
	}
	n, err := s.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e", list[0].Label)
	assert.Equal(t, "d", list[1].Label)
}
