package keys

import (
	"errors"
	"fmt"
)

// Builder assembles a key table and its jump table from symbolic action
// names. Each distinct name gets the next jump table index; the resulting
// table holds only small integers.
//
//	t, jump, err := keys.NewBuilder().
//		Sparse().
//		Flag(keys.FlagTransientApp).
//		Key(keys.KeySST, "next").
//		Key(keys.KeyBST, "prev").
//		Build()
type Builder struct {
	sparse  bool
	flags   []Flag
	names   []string
	index   map[string]int
	entries []SparseEntry
	errs    []error
}

// NewBuilder returns an empty dense table builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// Sparse selects a linear search table.
func (b *Builder) Sparse() *Builder {
	b.sparse = true
	return b
}

// Flag adds a table flag.
func (b *Builder) Flag(f Flag) *Builder {
	b.flags = append(b.flags, f)
	return b
}

// Action registers name in the jump table and returns its index.
func (b *Builder) Action(name string) int {
	if i, ok := b.index[name]; ok {
		return i
	}
	i := len(b.names)
	b.names = append(b.names, name)
	b.index[name] = i
	return i
}

func (b *Builder) add(c Code, e Entry) *Builder {
	if c == XKD && !b.sparse {
		b.errs = append(b.errs, errors.New("XKD entry needs a sparse table"))
		return b
	}
	if c != XKD && !c.Valid() {
		b.errs = append(b.errs, fmt.Errorf("invalid key %s", c))
		return b
	}
	b.entries = append(b.entries, SparseEntry{Key: c, Entry: e})
	return b
}

func (b *Builder) action(name string) int {
	if name == "" {
		b.errs = append(b.errs, errors.New("empty action name"))
		return 0
	}
	i := b.Action(name)
	if i > MaxAction {
		b.errs = append(b.errs, fmt.Errorf("jump table full at %q", name))
	}
	return i
}

// Key binds c to action name, ending digit entry.
func (b *Builder) Key(c Code, name string) *Builder {
	return b.add(c, BuiltinKey(b.action(name)))
}

// KeyKeep binds c to action name, keeping digit entry.
func (b *Builder) KeyKeep(c Code, name string) *Builder {
	return b.add(c, BuiltinKeyKeep(b.action(name)))
}

// Function binds c to function table slot n.
func (b *Builder) Function(c Code, n int) *Builder {
	if n < 0 || n > MaxAction {
		b.errs = append(b.errs, fmt.Errorf("function slot %d out of range", n))
		return b
	}
	return b.add(c, FunctionKey(n))
}

// Pass explicitly defers c to the next shell.
func (b *Builder) Pass(c Code) *Builder {
	return b.add(c, Pass)
}

// XKD installs the sparse table catch-all handler.
func (b *Builder) XKD(name string) *Builder {
	return b.add(XKD, BuiltinKey(b.action(name)))
}

// Build returns the key table and the jump table (action names by index).
func (b *Builder) Build() (*Table, []string, error) {
	if len(b.errs) > 0 {
		return nil, nil, errors.Join(b.errs...)
	}
	var t *Table
	if b.sparse {
		t = NewSparse(b.flags...)
	} else {
		t = NewDense(b.flags...)
	}
	for _, se := range b.entries {
		if err := t.Set(se.Key, se.Entry); err != nil {
			return nil, nil, err
		}
	}
	jump := make([]string, len(b.names))
	copy(jump, b.names)
	return t, jump, nil
}

// MustBuild is Build for static tables; it panics on error.
func (b *Builder) MustBuild() (*Table, []string) {
	t, jump, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t, jump
}
