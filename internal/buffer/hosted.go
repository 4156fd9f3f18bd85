package buffer

import (
	"fmt"

	"os4/internal/logging"
)

// Hosted buffers live inside the system buffer, between its header and a
// trailer register. Each starts with its own header {id, size, flags}.

const (
	// SeedBuffer is the hosted buffer holding the random seed.
	SeedBuffer = 0
	// ScratchBuffer backs AllocScratch.
	ScratchBuffer = 1
	// MaxHostedID is the largest hosted buffer id.
	MaxHostedID = 0x3f

	trailerMark = 0xff
	// systemMinSize is header plus trailer.
	systemMinSize = 2
)

// EnsureSystem finds or creates the system buffer with its trailer.
func (s *Store) EnsureSystem() (Addr, error) {
	a, created, err := s.Ensure(SystemBufferID, systemMinSize)
	if err != nil {
		return 0, err
	}
	if created {
		if err := s.Put(SystemBufferID, 1, Register{trailerMark}); err != nil {
			return 0, err
		}
	}
	return a, nil
}

type hostedEntry struct {
	offset   int // body offset of the hosted header within the system buffer
	id       int
	size     int
	released bool
}

func (s *Store) hostedChain() ([]hostedEntry, int, error) {
	size, err := s.Size(SystemBufferID)
	if err != nil {
		return nil, 0, err
	}
	var out []hostedEntry
	off := 1
	for {
		assertf(off < size, "system buffer has no trailer")
		r, _ := s.Get(SystemBufferID, off)
		if r[hdrID] == trailerMark {
			return out, off, nil
		}
		hs := int(r[hdrSize])
		assertf(hs >= 1 && off+hs < size, "corrupt hosted header at offset %d", off)
		out = append(out, hostedEntry{
			offset:   off,
			id:       int(r[hdrID]),
			size:     hs,
			released: r[hdrFlags]&flagReleased != 0,
		})
		off += hs
	}
}

func (s *Store) findHosted(id int) (hostedEntry, error) {
	chain, _, err := s.hostedChain()
	if err != nil {
		return hostedEntry{}, err
	}
	for _, e := range chain {
		if e.id == id && !e.released {
			return e, nil
		}
	}
	return hostedEntry{}, fmt.Errorf("hosted buffer %d: %w", id, ErrNotFound)
}

// FindHosted reports whether hosted buffer id exists and its body size
// (header excluded).
func (s *Store) FindHosted(id int) (int, bool) {
	e, err := s.findHosted(id)
	if err != nil {
		return 0, false
	}
	return e.size - 1, true
}

// EnsureHosted finds or creates hosted buffer id with size body registers.
func (s *Store) EnsureHosted(id, size int) (bool, error) {
	if id < 0 || id > MaxHostedID {
		return false, fmt.Errorf("hosted %w: %d", ErrBadID, id)
	}
	if _, err := s.EnsureSystem(); err != nil {
		return false, err
	}
	if _, err := s.findHosted(id); err == nil {
		return false, nil
	}
	if size < 0 || size+1 > MaxSize {
		return false, fmt.Errorf("hosted buffer %d size %d: %w", id, size, ErrBadSize)
	}
	_, trailer, err := s.hostedChain()
	if err != nil {
		return false, err
	}
	if _, err := s.OpenSpace(SystemBufferID, trailer, size+1); err != nil {
		return false, fmt.Errorf("hosted buffer %d: %w", id, err)
	}
	if err := s.Put(SystemBufferID, trailer, Register{byte(id), byte(size + 1)}); err != nil {
		return false, err
	}
	logging.BufferDebug("Created hosted buffer %d size %d", id, size)
	return true, nil
}

// GrowHosted appends n body registers to hosted buffer id.
func (s *Store) GrowHosted(id, n int) error {
	e, err := s.findHosted(id)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("grow hosted %d by %d: %w", id, n, ErrBadSize)
	}
	if e.size+n > MaxSize {
		return fmt.Errorf("grow hosted %d: %w", id, ErrNoRoom)
	}
	if _, err := s.OpenSpace(SystemBufferID, e.offset+e.size, n); err != nil {
		return fmt.Errorf("grow hosted %d: %w", id, err)
	}
	return s.setHostedSize(e.offset, e.size+n)
}

// ShrinkHosted removes n body registers from the end of hosted buffer id.
func (s *Store) ShrinkHosted(id, n int) error {
	e, err := s.findHosted(id)
	if err != nil {
		return err
	}
	if n < 0 || n >= e.size {
		return fmt.Errorf("shrink hosted %d by %d: %w", id, n, ErrBadSize)
	}
	if _, err := s.CloseSpace(SystemBufferID, e.offset+e.size-n, n); err != nil {
		return err
	}
	return s.setHostedSize(e.offset, e.size-n)
}

func (s *Store) setHostedSize(offset, size int) error {
	r, err := s.Get(SystemBufferID, offset)
	if err != nil {
		return err
	}
	r[hdrSize] = byte(size)
	return s.Put(SystemBufferID, offset, r)
}

// ReclaimHosted marks hosted buffer id released.
func (s *Store) ReclaimHosted(id int) error {
	e, err := s.findHosted(id)
	if err != nil {
		return err
	}
	r, _ := s.Get(SystemBufferID, e.offset)
	r[hdrFlags] |= flagReleased
	return s.Put(SystemBufferID, e.offset, r)
}

// PackHosted removes released hosted buffers from the system buffer.
func (s *Store) PackHosted() (int, error) {
	chain, _, err := s.hostedChain()
	if err != nil {
		return 0, err
	}
	freed := 0
	for i := len(chain) - 1; i >= 0; i-- {
		if !chain[i].released {
			continue
		}
		if _, err := s.CloseSpace(SystemBufferID, chain[i].offset, chain[i].size); err != nil {
			return freed, err
		}
		freed += chain[i].size
	}
	return freed, nil
}

// GetHosted reads body register index (0-based) of hosted buffer id.
func (s *Store) GetHosted(id, index int) (Register, error) {
	e, err := s.findHosted(id)
	if err != nil {
		return Register{}, err
	}
	if index < 0 || index >= e.size-1 {
		return Register{}, fmt.Errorf("hosted %d index %d: %w", id, index, ErrBadSize)
	}
	return s.Get(SystemBufferID, e.offset+1+index)
}

// PutHosted writes body register index of hosted buffer id.
func (s *Store) PutHosted(id, index int, r Register) error {
	e, err := s.findHosted(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= e.size-1 {
		return fmt.Errorf("hosted %d index %d: %w", id, index, ErrBadSize)
	}
	return s.Put(SystemBufferID, e.offset+1+index, r)
}

// HostedIDs lists live hosted buffer ids in order.
func (s *Store) HostedIDs() []int {
	chain, _, err := s.hostedChain()
	if err != nil {
		return nil
	}
	var ids []int
	for _, e := range chain {
		if !e.released {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// AllocScratch gives a fresh zeroed scratch area of n registers, dropping
// any previous one.
func (s *Store) AllocScratch(n int) error {
	if err := s.ClearScratch(); err != nil {
		return err
	}
	_, err := s.EnsureHosted(ScratchBuffer, n)
	return err
}

// ClearScratch drops the scratch area, if any.
func (s *Store) ClearScratch() error {
	if _, ok := s.FindHosted(ScratchBuffer); !ok {
		return nil
	}
	if err := s.ReclaimHosted(ScratchBuffer); err != nil {
		return err
	}
	_, err := s.PackHosted()
	return err
}

// ScratchArea returns the size of the scratch area, or ErrNotFound.
func (s *Store) ScratchArea() (int, error) {
	n, ok := s.FindHosted(ScratchBuffer)
	if !ok {
		return 0, fmt.Errorf("scratch area: %w", ErrNotFound)
	}
	return n, nil
}
