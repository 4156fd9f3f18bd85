// Package buffer implements the I/O buffer area: a fixed array of 7-byte
// registers holding a chain of variable sized buffers, each identified by a
// small integer id.
//
// Buffers are laid out back to back from address 0. Each one starts with a
// header register; a header with id 0 (or the end of memory) ends the chain.
// Any call that changes a buffer's size, or packs the store, may move every
// buffer behind it: an Addr obtained before such a call must be looked up
// again afterwards.
package buffer

import (
	"errors"
	"fmt"

	"os4/internal/logging"
)

// RegisterSize is the width of a register in bytes.
const RegisterSize = 7

// Register is one memory register.
type Register [RegisterSize]byte

// Addr is an absolute register address. It is only valid until the next
// mutating store call.
type Addr int

const (
	// MinID and MaxID bound buffer ids. Id 0 marks the end of the chain.
	MinID = 1
	MaxID = 15
	// SystemBufferID is the buffer OS4 keeps its own state in.
	SystemBufferID = 15
	// MaxSize is the largest buffer, header included.
	MaxSize = 255
)

// Header register layout.
const (
	hdrID    = 0
	hdrSize  = 1
	hdrFlags = 2
	// UserByte is the first header byte owners may use (bytes 3..6).
	UserByte = 3

	flagReleased = 0x01
)

var (
	// ErrNoRoom signals the buffer area is exhausted. Callers abandon the
	// current operation; the store is left unchanged.
	ErrNoRoom = errors.New("no room")
	// ErrNotFound signals a missing buffer.
	ErrNotFound = errors.New("buffer not found")
	// ErrBadSize signals an impossible size or offset.
	ErrBadSize = errors.New("bad buffer size")
	// ErrBadID signals an id outside MinID..MaxID.
	ErrBadID = errors.New("bad buffer id")
)

// Store owns the register array. It is the only mutator of buffer memory.
type Store struct {
	regs []Register
}

// New creates an empty store of the given number of registers.
func New(registers int) *Store {
	return &Store{regs: make([]Register, registers)}
}

// Capacity returns the total number of registers.
func (s *Store) Capacity() int { return len(s.regs) }

func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("buffer: "+format, args...))
	}
}

type entry struct {
	addr     Addr
	id       int
	size     int
	released bool
}

// chain walks all buffers in address order, released ones included.
func (s *Store) chain() []entry {
	var out []entry
	a := 0
	for a < len(s.regs) {
		h := s.regs[a]
		id := int(h[hdrID])
		if id == 0 {
			break
		}
		size := int(h[hdrSize])
		assertf(id <= MaxID && size >= 1 && a+size <= len(s.regs),
			"corrupt header at %d: id=%d size=%d", a, id, size)
		out = append(out, entry{addr: Addr(a), id: id, size: size, released: h[hdrFlags]&flagReleased != 0})
		a += size
	}
	return out
}

// Used returns the registers occupied by the chain, released buffers included.
func (s *Store) Used() int {
	n := 0
	for _, e := range s.chain() {
		n += e.size
	}
	return n
}

// Free returns the registers available for allocation without packing.
func (s *Store) Free() int { return len(s.regs) - s.Used() }

// Reclaimable returns registers held by released buffers.
func (s *Store) Reclaimable() int {
	n := 0
	for _, e := range s.chain() {
		if e.released {
			n += e.size
		}
	}
	return n
}

func (s *Store) lookup(id int) (entry, bool) {
	for _, e := range s.chain() {
		if e.id == id && !e.released {
			return e, true
		}
	}
	return entry{}, false
}

// Find returns the header address of a live buffer (chkbuf).
func (s *Store) Find(id int) (Addr, bool) {
	e, ok := s.lookup(id)
	return e.addr, ok
}

// Size returns the size of a live buffer, header included.
func (s *Store) Size(id int) (int, error) {
	e, ok := s.lookup(id)
	if !ok {
		return 0, fmt.Errorf("buffer %d: %w", id, ErrNotFound)
	}
	return e.size, nil
}

// IDs lists live buffer ids in address order.
func (s *Store) IDs() []int {
	var ids []int
	for _, e := range s.chain() {
		if !e.released {
			ids = append(ids, e.id)
		}
	}
	return ids
}

func checkID(id int) error {
	if id < MinID || id > MaxID {
		return fmt.Errorf("%w: %d", ErrBadID, id)
	}
	return nil
}

// reserve makes n registers available at the end of the chain, packing
// released buffers if needed.
func (s *Store) reserve(n int) error {
	if s.Free() >= n {
		return nil
	}
	if s.Free()+s.Reclaimable() >= n {
		s.Pack()
		return nil
	}
	logging.BufferWarn("No room for %d registers (free=%d)", n, s.Free())
	return ErrNoRoom
}

// Ensure returns a live buffer with the given id, creating it with size
// registers (header included) if it does not exist. An existing buffer is
// returned as is, whatever its size.
func (s *Store) Ensure(id, size int) (Addr, bool, error) {
	if err := checkID(id); err != nil {
		return 0, false, err
	}
	if a, ok := s.Find(id); ok {
		return a, false, nil
	}
	if size < 1 || size > MaxSize {
		return 0, false, fmt.Errorf("ensure buffer %d size %d: %w", id, size, ErrBadSize)
	}
	if err := s.reserve(size); err != nil {
		return 0, false, fmt.Errorf("ensure buffer %d: %w", id, err)
	}
	a := s.Used()
	for i := a; i < a+size; i++ {
		s.regs[i] = Register{}
	}
	s.regs[a][hdrID] = byte(id)
	s.regs[a][hdrSize] = byte(size)
	logging.BufferDebug("Created buffer %d at %d size %d", id, a, size)
	return Addr(a), true, nil
}

// OpenSpace inserts n zeroed registers into buffer id before body offset
// (1 = right after the header, size = at the end). Everything behind the
// insertion point moves up.
func (s *Store) OpenSpace(id, offset, n int) (Addr, error) {
	e, ok := s.lookup(id)
	if !ok {
		return 0, fmt.Errorf("open space in buffer %d: %w", id, ErrNotFound)
	}
	if n < 0 || offset < 1 || offset > e.size {
		return 0, fmt.Errorf("open %d at %d in buffer %d: %w", n, offset, id, ErrBadSize)
	}
	if e.size+n > MaxSize {
		return 0, fmt.Errorf("buffer %d full at size %d: %w", id, e.size, ErrNoRoom)
	}
	if n == 0 {
		return e.addr, nil
	}
	if err := s.reserve(n); err != nil {
		return 0, fmt.Errorf("open space in buffer %d: %w", id, err)
	}
	// reserve may have packed; look the buffer up again.
	e, _ = s.lookup(id)
	used := s.Used()
	at := int(e.addr) + offset
	copy(s.regs[at+n:used+n], s.regs[at:used])
	for i := at; i < at+n; i++ {
		s.regs[i] = Register{}
	}
	s.regs[e.addr][hdrSize] = byte(e.size + n)
	logging.BufferDebug("Opened %d registers in buffer %d at offset %d", n, id, offset)
	return e.addr, nil
}

// CloseSpace removes n registers from buffer id starting at body offset.
// The header cannot be removed.
func (s *Store) CloseSpace(id, offset, n int) (Addr, error) {
	e, ok := s.lookup(id)
	if !ok {
		return 0, fmt.Errorf("close space in buffer %d: %w", id, ErrNotFound)
	}
	if n < 0 || offset < 1 || offset+n > e.size {
		return 0, fmt.Errorf("close %d at %d in buffer %d: %w", n, offset, id, ErrBadSize)
	}
	s.remove(int(e.addr)+offset, n)
	s.regs[e.addr][hdrSize] = byte(e.size - n)
	return e.addr, nil
}

// remove deletes n registers at absolute address at, moving the rest down.
func (s *Store) remove(at, n int) {
	if n == 0 {
		return
	}
	used := s.Used()
	copy(s.regs[at:], s.regs[at+n:used])
	for i := used - n; i < used; i++ {
		s.regs[i] = Register{}
	}
}

// Grow appends n registers to the end of buffer id.
func (s *Store) Grow(id, n int) (Addr, error) {
	size, err := s.Size(id)
	if err != nil {
		return 0, err
	}
	return s.OpenSpace(id, size, n)
}

// Shrink removes n registers from the end of buffer id. Content before the
// cut is kept.
func (s *Store) Shrink(id, n int) (Addr, error) {
	size, err := s.Size(id)
	if err != nil {
		return 0, err
	}
	if n >= size {
		return 0, fmt.Errorf("shrink buffer %d by %d: %w", id, n, ErrBadSize)
	}
	return s.CloseSpace(id, size-n, n)
}

// Reclaim marks buffer id as released. Its registers are given back by the
// next Pack.
func (s *Store) Reclaim(id int) error {
	e, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("reclaim buffer %d: %w", id, ErrNotFound)
	}
	s.regs[e.addr][hdrFlags] |= flagReleased
	logging.Buffer("Released buffer %d (%d registers)", id, e.size)
	return nil
}

// Pack removes released buffers and closes the gaps. Live buffer contents
// are kept; their addresses change. Returns the registers freed.
func (s *Store) Pack() int {
	timer := logging.StartTimer(logging.CategoryBuffer, "Pack")
	defer timer.Stop()

	chain := s.chain()
	freed := 0
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].released {
			s.remove(int(chain[i].addr), chain[i].size)
			freed += chain[i].size
		}
	}
	if freed > 0 {
		logging.Buffer("Packed buffer area, freed %d registers", freed)
	}
	return freed
}

func (s *Store) bodyAddr(id, offset int) (int, error) {
	e, ok := s.lookup(id)
	if !ok {
		return 0, fmt.Errorf("buffer %d: %w", id, ErrNotFound)
	}
	if offset < 1 || offset >= e.size {
		return 0, fmt.Errorf("offset %d in buffer %d of size %d: %w", offset, id, e.size, ErrBadSize)
	}
	return int(e.addr) + offset, nil
}

// Get reads body register offset (1-based, header excluded) of buffer id.
func (s *Store) Get(id, offset int) (Register, error) {
	a, err := s.bodyAddr(id, offset)
	if err != nil {
		return Register{}, err
	}
	return s.regs[a], nil
}

// Put writes body register offset of buffer id.
func (s *Store) Put(id, offset int, r Register) error {
	a, err := s.bodyAddr(id, offset)
	if err != nil {
		return err
	}
	s.regs[a] = r
	return nil
}

// Read returns the register at an absolute address.
func (s *Store) Read(a Addr) Register {
	assertf(int(a) >= 0 && int(a) < len(s.regs), "read outside memory at %d", a)
	return s.regs[a]
}

// HeaderBytes returns the owner bytes (3..6) of a live buffer header.
func (s *Store) HeaderBytes(id int) ([RegisterSize - UserByte]byte, error) {
	var out [RegisterSize - UserByte]byte
	e, ok := s.lookup(id)
	if !ok {
		return out, fmt.Errorf("buffer %d: %w", id, ErrNotFound)
	}
	copy(out[:], s.regs[e.addr][UserByte:])
	return out, nil
}

// SetHeaderBytes writes the owner bytes of a live buffer header.
func (s *Store) SetHeaderBytes(id int, b [RegisterSize - UserByte]byte) error {
	e, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("buffer %d: %w", id, ErrNotFound)
	}
	copy(s.regs[e.addr][UserByte:], b[:])
	return nil
}

// Snapshot returns a copy of the whole register array as bytes.
func (s *Store) Snapshot() []byte {
	out := make([]byte, 0, len(s.regs)*RegisterSize)
	for _, r := range s.regs {
		out = append(out, r[:]...)
	}
	return out
}

// Restore replaces memory with a Snapshot. The snapshot may be smaller than
// the store; the remainder is cleared.
func (s *Store) Restore(data []byte) (err error) {
	if len(data)%RegisterSize != 0 || len(data)/RegisterSize > len(s.regs) {
		return fmt.Errorf("restore %d bytes into %d registers: %w", len(data), len(s.regs), ErrBadSize)
	}
	saved := s.regs
	s.regs = make([]Register, len(saved))
	for i := range s.regs {
		if (i+1)*RegisterSize <= len(data) {
			copy(s.regs[i][:], data[i*RegisterSize:])
		}
	}
	defer func() {
		if r := recover(); r != nil {
			s.regs = saved
			err = fmt.Errorf("restore: %v", r)
		}
	}()
	s.chain()
	return nil
}
