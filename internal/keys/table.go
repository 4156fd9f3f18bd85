package keys

import "fmt"

// Entry is one key table slot. Zero means "pass through to the next shell";
// it is never an action, which is why BuiltinKey(n) is n+1.
type Entry uint16

// Pass defers the key to the next table.
const Pass Entry = 0

const (
	valueMask   Entry = 0x0fff
	keepBit     Entry = 0x1000
	functionBit Entry = 0x2000
)

// MaxAction is the largest jump table index an entry can carry.
const MaxAction = int(valueMask) - 1

// BuiltinKey is an entry invoking jump table action n that ends any digit
// entry in progress.
func BuiltinKey(n int) Entry { return Entry(n+1) & valueMask }

// BuiltinKeyKeep is like BuiltinKey but keeps digit entry going.
func BuiltinKeyKeep(n int) Entry { return BuiltinKey(n) | keepBit }

// FunctionKey is an entry for an executable function (an XROM style
// function table slot rather than a shell builtin). It ends digit entry.
func FunctionKey(n int) Entry { return BuiltinKey(n) | functionBit }

// IsPass reports whether the entry defers to the next table.
func (e Entry) IsPass() bool { return e&valueMask == 0 }

// Action returns the jump table index, or -1 for Pass.
func (e Entry) Action() int { return int(e&valueMask) - 1 }

// Keeps reports whether digit entry continues across this key.
func (e Entry) Keeps() bool { return e&keepBit != 0 }

// IsFunction reports whether the entry names a function table slot.
func (e Entry) IsFunction() bool { return e&functionBit != 0 }

func (e Entry) String() string {
	switch {
	case e.IsPass():
		return "pass"
	case e.IsFunction():
		return fmt.Sprintf("fn(%d)", e.Action())
	case e.Keeps():
		return fmt.Sprintf("keep(%d)", e.Action())
	default:
		return fmt.Sprintf("end(%d)", e.Action())
	}
}

// Flag is a key table flag bit.
type Flag uint8

const (
	// FlagAutoAssign makes use of the top row auto label assignment
	// (labels A-J and a-e).
	FlagAutoAssign Flag = 0
	// FlagSparseTable is set if the table is a linear search rather than a
	// lookup.
	FlagSparseTable Flag = 6
	// FlagTransientApp is set for a transient application that terminates
	// on a pass-through key.
	FlagTransientApp Flag = 7
)

// XKD is the key code of a sparse table's catch-all handler entry. It is
// consulted when no other entry matches.
const XKD Code = 0

// SparseEntry is one row of a sparse table.
type SparseEntry struct {
	Key   Code
	Entry Entry
}

// Table is a shell keyboard. Dense tables index by key code in O(1);
// sparse tables scan their entries.
type Table struct {
	flags  uint8
	dense  []Entry
	sparse []SparseEntry
}

// NewDense returns an all-pass dense table.
func NewDense(flags ...Flag) *Table {
	t := &Table{dense: make([]Entry, Count)}
	for _, f := range flags {
		t.flags |= 1 << f
	}
	t.flags &^= 1 << FlagSparseTable
	return t
}

// NewSparse returns an empty sparse table.
func NewSparse(flags ...Flag) *Table {
	t := &Table{}
	for _, f := range flags {
		t.flags |= 1 << f
	}
	t.flags |= 1 << FlagSparseTable
	return t
}

// Has reports whether flag f is set.
func (t *Table) Has(f Flag) bool { return t.flags&(1<<f) != 0 }

// Flags returns the raw flag byte.
func (t *Table) Flags() uint8 { return t.flags }

// Sparse reports whether t is a sparse table.
func (t *Table) Sparse() bool { return t.Has(FlagSparseTable) }

// Set stores e for key c. On a sparse table, c may be XKD.
func (t *Table) Set(c Code, e Entry) error {
	if t.Sparse() {
		if c != XKD && !c.Valid() {
			return fmt.Errorf("invalid key %s", c)
		}
		for i := range t.sparse {
			if t.sparse[i].Key == c {
				t.sparse[i].Entry = e
				return nil
			}
		}
		t.sparse = append(t.sparse, SparseEntry{Key: c, Entry: e})
		return nil
	}
	if !c.Valid() {
		return fmt.Errorf("invalid key %s", c)
	}
	t.dense[c.Index()] = e
	return nil
}

// Lookup returns the entry for c, Pass when the table does not handle it.
func (t *Table) Lookup(c Code) Entry {
	if !c.Valid() {
		return Pass
	}
	if !t.Sparse() {
		return t.dense[c.Index()]
	}
	xkd := Pass
	for _, se := range t.sparse {
		if se.Key == c {
			return se.Entry
		}
		if se.Key == XKD {
			xkd = se.Entry
		}
	}
	return xkd
}

// Len returns the number of non-pass entries.
func (t *Table) Len() int {
	n := 0
	if t.Sparse() {
		for _, se := range t.sparse {
			if !se.Entry.IsPass() {
				n++
			}
		}
		return n
	}
	for _, e := range t.dense {
		if !e.IsPass() {
			n++
		}
	}
	return n
}
