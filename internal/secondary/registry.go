// Package secondary holds secondary function tables and the key
// assignments that overlay them on the keyboard.
package secondary

import (
	"errors"
	"fmt"
	"sort"

	"os4/internal/keys"
	"os4/internal/logging"
)

var (
	// ErrNotFound is returned for an unknown table, function or assignment.
	ErrNotFound = errors.New("secondary function not found")
	// ErrNoMatch is returned when partial key entry ends without a unique function.
	ErrNoMatch = errors.New("no matching secondary function")
	// ErrAlreadyRegistered is returned when a ROM id is registered twice.
	ErrAlreadyRegistered = errors.New("secondary table already registered")
)

// MaxROM is the largest ROM id; ids fit in five bits as XROM numbers do.
const MaxROM = 31

// Function is one secondary function.
type Function struct {
	Name string
	// Argument is the number of digits the function prompts for, 0 for none.
	Argument int
	Run      func(arg float64) error
}

// Table is the secondary function table of one ROM.
type Table struct {
	ROM       int
	Name      string
	Functions []Function
}

// Ref addresses a secondary function by ROM id and table index.
type Ref struct {
	ROM   int
	Index int
}

func (r Ref) String() string { return fmt.Sprintf("XROM %02d,%02d", r.ROM, r.Index) }

// Binding is a key assignment.
type Binding struct {
	Key keys.Code
	Ref Ref
}

// Registry holds the registered tables and the current key assignments.
// Not safe for concurrent use.
type Registry struct {
	tables  map[int]*Table
	assigns map[keys.Code]Ref
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tables:  make(map[int]*Table),
		assigns: make(map[keys.Code]Ref),
	}
}

// Register adds a ROM's secondary table.
func (r *Registry) Register(t *Table) error {
	if t == nil || t.ROM < 0 || t.ROM > MaxROM {
		return fmt.Errorf("invalid secondary table")
	}
	if _, exists := r.tables[t.ROM]; exists {
		return fmt.Errorf("%w: rom %d", ErrAlreadyRegistered, t.ROM)
	}
	for i, fn := range t.Functions {
		if fn.Name == "" || fn.Run == nil {
			return fmt.Errorf("rom %d function %d: name and Run are required", t.ROM, i)
		}
	}
	r.tables[t.ROM] = t
	logging.SecondaryDebug("registered %d secondaries for rom %d (%s)", len(t.Functions), t.ROM, t.Name)
	return nil
}

// MustRegister registers t and panics on error.
func (r *Registry) MustRegister(t *Table) {
	if err := r.Register(t); err != nil {
		panic(fmt.Sprintf("failed to register secondary table %s: %v", t.Name, err))
	}
}

// Unregister removes a table and every assignment into it.
func (r *Registry) Unregister(rom int) {
	delete(r.tables, rom)
	for k, ref := range r.assigns {
		if ref.ROM == rom {
			delete(r.assigns, k)
		}
	}
}

// Table returns the table registered for rom.
func (r *Registry) Table(rom int) (*Table, bool) {
	t, ok := r.tables[rom]
	return t, ok
}

// ROMs returns the registered ROM ids in ascending order.
func (r *Registry) ROMs() []int {
	ids := make([]int, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Address resolves ref to its function.
func (r *Registry) Address(ref Ref) (*Function, error) {
	t, ok := r.tables[ref.ROM]
	if !ok || ref.Index < 0 || ref.Index >= len(t.Functions) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return &t.Functions[ref.Index], nil
}

// Lookup finds a function by name, searching tables in ROM id order.
func (r *Registry) Lookup(name string) (Ref, bool) {
	for _, id := range r.ROMs() {
		for i, fn := range r.tables[id].Functions {
			if fn.Name == name {
				return Ref{ROM: id, Index: i}, true
			}
		}
	}
	return Ref{}, false
}

// Assign binds key to ref, replacing any earlier binding.
func (r *Registry) Assign(key keys.Code, ref Ref) error {
	if !key.Valid() {
		return fmt.Errorf("assign to invalid key %s", key)
	}
	if _, err := r.Address(ref); err != nil {
		return err
	}
	r.assigns[key] = ref
	logging.Secondary("assigned %s to key %s", ref, key)
	return nil
}

// Assignment returns the binding of key.
func (r *Registry) Assignment(key keys.Code) (Ref, bool) {
	ref, ok := r.assigns[key]
	return ref, ok
}

// ClearAssignment removes the binding of key and reports whether there was one.
func (r *Registry) ClearAssignment(key keys.Code) bool {
	if _, ok := r.assigns[key]; !ok {
		return false
	}
	delete(r.assigns, key)
	return true
}

// ClearAll removes every assignment and returns how many there were.
func (r *Registry) ClearAll() int {
	n := len(r.assigns)
	r.assigns = make(map[keys.Code]Ref)
	return n
}

// Bindings returns the assignments ordered by key code.
func (r *Registry) Bindings() []Binding {
	out := make([]Binding, 0, len(r.assigns))
	for k, ref := range r.assigns {
		out = append(out, Binding{Key: k, Ref: ref})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Invoke runs the function at ref with arg.
func (r *Registry) Invoke(ref Ref, arg float64) error {
	fn, err := r.Address(ref)
	if err != nil {
		return err
	}
	logging.SecondaryDebug("invoke %s %s(%g)", ref, fn.Name, arg)
	return fn.Run(arg)
}

// InvokeKey runs the function assigned to key.
func (r *Registry) InvokeKey(key keys.Code, arg float64) error {
	ref, ok := r.assigns[key]
	if !ok {
		return fmt.Errorf("key %s: %w", key, ErrNotFound)
	}
	return r.Invoke(ref, arg)
}

// RunSecondary runs a function by name.
func (r *Registry) RunSecondary(name string, arg float64) error {
	ref, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return r.Invoke(ref, arg)
}
