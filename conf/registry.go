package conf

import (
	"fmt"
	"sort"
	"sync"
)

// StrategyID names a loader strategy in a Registry.
type StrategyID string

// DefaultStrategy is the built-in strategy: it allocates a zero instance and
// runs the pre-load hook. Types that declare no strategy use it.
const DefaultStrategy StrategyID = "default"

// Strategy turns a configuration type into a raw, pre-injection instance.
//
// Implementations must obtain the instance from req.New, which allocates a
// zero *T and runs the type's pre-load hook, and then bind their data into it.
// The Loader never runs the pre-load hook itself: an instance built any other
// way skips it.
type Strategy interface {
	Load(req Request) (any, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(req Request) (any, error)

// Load implements Strategy.
func (f StrategyFunc) Load(req Request) (any, error) { return f(req) }

// Request is what the Loader hands a Strategy.
type Request struct {
	typ     Type
	preLoad *Hook
}

// NewRequest builds a Request for t without lifecycle hooks. It is meant for
// driving strategies directly, for example in tests.
func NewRequest(t Type) Request { return Request{typ: t} }

// Type returns the requested configuration type.
func (r Request) Type() Type { return r.typ }

// New allocates a zero *T and runs the pre-load hook on it.
func (r Request) New() (any, error) {
	if r.typ.IsZero() {
		return nil, ErrNilType
	}
	v := r.typ.New()
	if r.preLoad != nil {
		if err := r.preLoad.fn(v); err != nil {
			return nil, &preLoadFailure{err: err}
		}
	}
	return v, nil
}

// Factory builds a Strategy. MapRegistry calls it on every Resolve.
type Factory func() (Strategy, error)

// Registry resolves strategy ids to strategies.
//
// Expected usage:
//
//	s, err := reg.Resolve(md.Strategy())
type Registry interface {
	Resolve(id StrategyID) (Strategy, error)
}

// MapRegistry is a simple in-memory registry of strategy factories.
// It is safe for concurrent use.
type MapRegistry struct {
	mu    sync.RWMutex
	items map[StrategyID]Factory
}

// NewMapRegistry returns an empty registry. DefaultStrategy resolves even when
// nothing is provided under it.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{items: map[StrategyID]Factory{}}
}

// Provide stores a factory under id and returns the registry for chaining.
func (r *MapRegistry) Provide(id StrategyID, f Factory) *MapRegistry {
	r.mu.Lock()
	r.items[id] = f
	r.mu.Unlock()
	return r
}

// ProvideStrategy stores a shared strategy instance under id.
func (r *MapRegistry) ProvideStrategy(id StrategyID, s Strategy) *MapRegistry {
	return r.Provide(id, func() (Strategy, error) { return s, nil })
}

// Resolve implements Registry and converts factory panics into errors.
func (r *MapRegistry) Resolve(id StrategyID) (s Strategy, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s = nil
			err = fmt.Errorf("%w: %v", ErrRegistryPanic, rec)
		}
	}()

	f, ok := r.Get(id)
	if !ok {
		if id == DefaultStrategy || id == "" {
			return defaultStrategy{}, nil
		}
		return nil, UnknownStrategyError{ID: id}
	}
	if f == nil {
		return nil, fmt.Errorf("conf: nil factory for strategy %q", id)
	}

	s, err = f()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("conf: factory for strategy %q returned nil", id)
	}
	return s, nil
}

// Get returns the factory if present (no panic).
func (r *MapRegistry) Get(id StrategyID) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.items[id]
	return f, ok
}

// MustGet returns the factory or panics with a helpful message.
func (r *MapRegistry) MustGet(id StrategyID) Factory {
	f, ok := r.Get(id)
	if !ok {
		panic(fmt.Errorf("conf: registry missing strategy %q", id))
	}
	return f
}

// IDs returns the provided strategy ids, sorted.
func (r *MapRegistry) IDs() []StrategyID {
	r.mu.RLock()
	out := make([]StrategyID, 0, len(r.items))
	for id := range r.items {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type defaultStrategy struct{}

func (defaultStrategy) Load(req Request) (any, error) { return req.New() }
