package conf

import (
	"sort"
	"sync"
)

// DescriptorSource answers which Descriptor describes a configuration type.
// Table is the standard implementation.
type DescriptorSource interface {
	Lookup(t Type) (*Descriptor, bool)
}

// Table is a concurrency-safe registry of descriptors keyed by Type.
type Table struct {
	mu    sync.RWMutex
	items map[Type]*Descriptor
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{items: make(map[Type]*Descriptor)}
}

// Register adds d to the table.
//
// Registering the same descriptor twice is a no-op; registering a different
// descriptor for an already described type returns ErrConflictingDescriptor.
func (t *Table) Register(d *Descriptor) error {
	if d == nil || d.typ.IsZero() {
		return ErrNilDescriptor
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.items[d.typ]; ok {
		if old == d {
			return nil
		}
		return ErrConflictingDescriptor
	}
	t.items[d.typ] = d
	return nil
}

// MustRegister registers every descriptor or panics on the first error.
// Useful in init functions of generated code.
func (t *Table) MustRegister(ds ...*Descriptor) *Table {
	for _, d := range ds {
		if err := t.Register(d); err != nil {
			panic(err)
		}
	}
	return t
}

// Lookup implements DescriptorSource.
func (t *Table) Lookup(typ Type) (*Descriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.items[typ]
	return d, ok
}

// Types returns the registered types sorted by name.
func (t *Table) Types() []Type {
	t.mu.RLock()
	out := make([]Type, 0, len(t.items))
	for typ := range t.items {
		out = append(out, typ)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Count returns the number of registered descriptors.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Reset removes every descriptor.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[Type]*Descriptor)
}

// defaultTable backs the package-level registration helpers.
var defaultTable = NewTable()

// Descriptors returns the process-wide table used by NewLoader when no table
// or extractor is supplied.
func Descriptors() *Table { return defaultTable }

// Register adds d to the process-wide table.
func Register(d *Descriptor) error { return defaultTable.Register(d) }

// MustRegister adds ds to the process-wide table, panicking on error.
func MustRegister(ds ...*Descriptor) { defaultTable.MustRegister(ds...) }
