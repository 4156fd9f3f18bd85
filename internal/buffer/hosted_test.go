package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSystemHasTrailer(t *testing.T) {
	s := New(16)
	_, err := s.EnsureSystem()
	require.NoError(t, err)

	size, err := s.Size(SystemBufferID)
	require.NoError(t, err)
	assert.Equal(t, 2, size)
	r, err := s.Get(SystemBufferID, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(trailerMark), r[0])
	assert.Empty(t, s.HostedIDs())
}

func TestHostedLifecycle(t *testing.T) {
	s := New(64)
	created, err := s.EnsureHosted(SeedBuffer, 1)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureHosted(SeedBuffer, 5)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = s.EnsureHosted(7, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{SeedBuffer, 7}, s.HostedIDs())

	require.NoError(t, s.PutHosted(SeedBuffer, 0, Register{0x5e}))
	require.NoError(t, s.PutHosted(7, 1, Register{0x77}))

	require.NoError(t, s.GrowHosted(SeedBuffer, 2))
	n, ok := s.FindHosted(SeedBuffer)
	require.True(t, ok)
	assert.Equal(t, 3, n)

	r, err := s.GetHosted(7, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x77), r[0], "neighbour keeps its content after growth")

	require.NoError(t, s.ShrinkHosted(SeedBuffer, 2))
	r, err = s.GetHosted(SeedBuffer, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5e), r[0])

	_, err = s.GetHosted(SeedBuffer, 1)
	assert.ErrorIs(t, err, ErrBadSize)
}

func TestPackHosted(t *testing.T) {
	s := New(64)
	for _, id := range []int{2, 3, 4} {
		_, err := s.EnsureHosted(id, id)
		require.NoError(t, err)
		require.NoError(t, s.PutHosted(id, 0, Register{byte(id)}))
	}
	sysBefore, _ := s.Size(SystemBufferID)

	require.NoError(t, s.ReclaimHosted(3))
	_, ok := s.FindHosted(3)
	assert.False(t, ok)

	freed, err := s.PackHosted()
	require.NoError(t, err)
	assert.Equal(t, 4, freed)

	sysAfter, _ := s.Size(SystemBufferID)
	assert.Equal(t, sysBefore-4, sysAfter)
	assert.Equal(t, []int{2, 4}, s.HostedIDs())
	r, err := s.GetHosted(4, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(4), r[0])
}

func TestHostedNoRoom(t *testing.T) {
	s := New(8)
	_, err := s.EnsureHosted(2, 4)
	require.NoError(t, err)
	_, err = s.EnsureHosted(3, 4)
	assert.ErrorIs(t, err, ErrNoRoom)
	assert.Equal(t, []int{2}, s.HostedIDs())
}

func TestSystemBufferFullIsNoRoom(t *testing.T) {
	s := New(300)
	_, err := s.EnsureHosted(2, 250)
	require.NoError(t, err)
	size, err := s.Size(SystemBufferID)
	require.NoError(t, err)
	require.Equal(t, 253, size)

	_, err = s.EnsureHosted(3, 4)
	assert.ErrorIs(t, err, ErrNoRoom)
	assert.ErrorIs(t, s.GrowHosted(2, 10), ErrNoRoom)
	assert.ErrorIs(t, s.AllocScratch(4), ErrNoRoom)
	_, err = s.OpenSpace(SystemBufferID, 1, 3)
	assert.ErrorIs(t, err, ErrNoRoom)

	assert.ErrorIs(t, s.GrowHosted(2, -1), ErrBadSize)
	_, err = s.OpenSpace(SystemBufferID, 0, 1)
	assert.ErrorIs(t, err, ErrBadSize)
	assert.Equal(t, []int{2}, s.HostedIDs())
}

func TestScratchArea(t *testing.T) {
	s := New(32)
	_, err := s.ScratchArea()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.AllocScratch(3))
	require.NoError(t, s.PutHosted(ScratchBuffer, 2, Register{9}))
	n, err := s.ScratchArea()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// A new allocation starts from zeroed registers.
	require.NoError(t, s.AllocScratch(4))
	r, err := s.GetHosted(ScratchBuffer, 2)
	require.NoError(t, err)
	assert.Equal(t, Register{}, r)

	require.NoError(t, s.ClearScratch())
	_, err = s.ScratchArea()
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.ClearScratch())
}
