package conf

import (
	"strconv"
	"sync"
)

// Extractor turns a configuration type into validated Metadata.
type Extractor interface {
	Extract(t Type) (*Metadata, error)
}

// NewExtractor returns an Extractor reading descriptors from src.
//
// Extraction is a pure function of the descriptor: two calls for the same type
// yield value-equal Metadata. Wrap it with NewCachingExtractor to reuse results.
func NewExtractor(src DescriptorSource) Extractor {
	return &extractor{src: src}
}

type extractor struct {
	src DescriptorSource
}

// Extract implements Extractor.
//
// It fails with:
//   - MissingDescriptorError when t has no descriptor
//   - InvalidBindingError / DuplicateFieldError for malformed injection points
//   - InvalidDecisionCallbackError when conditionals lack exactly one callback
//   - InvalidConditionalDependencyError for bad prerequisites
//   - InvalidLifecycleHookError for duplicated or nil hooks
func (e *extractor) Extract(t Type) (*Metadata, error) {
	if e.src == nil {
		return nil, MissingDescriptorError{Type: t}
	}
	d, ok := e.src.Lookup(t)
	if !ok || d == nil {
		return nil, MissingDescriptorError{Type: t}
	}

	md := &Metadata{typ: t, strategy: d.Strategy()}
	fields := make(map[string]struct{})

	var err error
	if md.required, err = checkBindings(t, fields, d.required); err != nil {
		return nil, err
	}
	if md.optional, err = checkBindings(t, fields, d.optional); err != nil {
		return nil, err
	}
	if md.nested, err = checkBindings(t, fields, d.nested); err != nil {
		return nil, err
	}
	for _, c := range d.conditional {
		if err := checkBinding(t, fields, c.Binding); err != nil {
			return nil, err
		}
	}

	if md.decision, err = checkDecision(t, d.decisions); err != nil {
		return nil, err
	}
	if len(d.conditional) > 0 && md.decision == nil {
		return nil, InvalidDecisionCallbackError{
			Type:   t,
			Reason: "conditional configurations require a decision callback",
		}
	}

	if md.conditional, err = checkConditionals(t, fields, d.conditional); err != nil {
		return nil, err
	}

	if md.preLoad, err = checkHook(t, PreLoadPhase, d.preLoad); err != nil {
		return nil, err
	}
	if md.postLoad, err = checkHook(t, PostLoadPhase, d.postLoad); err != nil {
		return nil, err
	}

	return md, nil
}

func checkBindings(t Type, fields map[string]struct{}, bs []Binding) ([]Binding, error) {
	for _, b := range bs {
		if err := checkBinding(t, fields, b); err != nil {
			return nil, err
		}
	}
	return append([]Binding(nil), bs...), nil
}

func checkBinding(t Type, fields map[string]struct{}, b Binding) error {
	switch {
	case b.Field == "":
		return InvalidBindingError{Type: t, Field: b.Field, Reason: "empty field name"}
	case b.invalid != "":
		return InvalidBindingError{Type: t, Field: b.Field, Reason: b.invalid}
	case b.inject == nil:
		return InvalidBindingError{Type: t, Field: b.Field, Reason: "nil setter"}
	case b.owner != t:
		return InvalidBindingError{Type: t, Field: b.Field, Reason: "setter declared for " + b.owner.String()}
	case b.Type.IsZero():
		return InvalidBindingError{Type: t, Field: b.Field, Reason: "no dependency type"}
	}
	if _, dup := fields[b.Field]; dup {
		return DuplicateFieldError{Type: t, Field: b.Field}
	}
	fields[b.Field] = struct{}{}
	return nil
}

func checkDecision(t Type, ds []Decision) (*Decision, error) {
	switch {
	case len(ds) == 0:
		return nil, nil
	case len(ds) > 1:
		return nil, InvalidDecisionCallbackError{
			Type:   t,
			Count:  len(ds),
			Reason: "at most one decision callback allowed, found " + strconv.Itoa(len(ds)),
		}
	case ds[0].fn == nil:
		return nil, InvalidDecisionCallbackError{Type: t, Count: 1, Reason: "nil callback"}
	case ds[0].invalid != "":
		return nil, InvalidDecisionCallbackError{Type: t, Count: 1, Reason: ds[0].invalid}
	case ds[0].owner != t:
		return nil, InvalidDecisionCallbackError{Type: t, Count: 1, Reason: "callback declared for " + ds[0].owner.String()}
	}
	dec := ds[0]
	return &dec, nil
}

// checkConditionals resolves prerequisite names to indexes. fields already
// holds every bound field of the type.
func checkConditionals(t Type, fields map[string]struct{}, cs []ConditionalBinding) ([]conditional, error) {
	if len(cs) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(cs))
	for i, c := range cs {
		index[c.Field] = i
	}

	out := make([]conditional, len(cs))
	for i, c := range cs {
		out[i] = conditional{ConditionalBinding: c}
		out[i].After = append([]string(nil), c.After...)

		seen := make(map[int]struct{}, len(c.After))
		for _, name := range c.After {
			fail := InvalidConditionalDependencyError{Type: t, Field: c.Field, Prerequisite: name}
			if name == c.Field {
				fail.Reason = "refers to itself"
				return nil, fail
			}
			j, ok := index[name]
			if !ok {
				if _, bound := fields[name]; bound {
					fail.Reason = "is not a conditional configuration"
				} else {
					fail.Reason = "is not a field of the type"
				}
				return nil, fail
			}
			if _, dup := seen[j]; dup {
				continue
			}
			seen[j] = struct{}{}
			out[i].prerequisites = append(out[i].prerequisites, j)
		}
	}
	return out, nil
}

func checkHook(t Type, phase Phase, hs []Hook) (*Hook, error) {
	switch {
	case len(hs) == 0:
		return nil, nil
	case len(hs) > 1:
		return nil, InvalidLifecycleHookError{
			Type:   t,
			Phase:  phase,
			Count:  len(hs),
			Reason: "at most one hook allowed, found " + strconv.Itoa(len(hs)),
		}
	case hs[0].fn == nil:
		return nil, InvalidLifecycleHookError{Type: t, Phase: phase, Count: 1, Reason: "nil hook"}
	case hs[0].invalid != "":
		return nil, InvalidLifecycleHookError{Type: t, Phase: phase, Count: 1, Reason: hs[0].invalid}
	case hs[0].owner != t:
		return nil, InvalidLifecycleHookError{Type: t, Phase: phase, Count: 1, Reason: "hook declared for " + hs[0].owner.String()}
	}
	h := hs[0]
	return &h, nil
}

// CachingExtractor memoizes successful extractions per Type.
//
// Entries are never evicted: the cache is bounded by the number of described
// types. Errors are not cached, so a fixed descriptor is picked up on the next
// call.
type CachingExtractor struct {
	inner Extractor
	mu    sync.Mutex
	cache sync.Map // Type -> *Metadata
}

// NewCachingExtractor wraps inner with a memoizing layer.
func NewCachingExtractor(inner Extractor) *CachingExtractor {
	return &CachingExtractor{inner: inner}
}

// Extract implements Extractor.
func (c *CachingExtractor) Extract(t Type) (*Metadata, error) {
	if v, ok := c.cache.Load(t); ok {
		return v.(*Metadata), nil
	}

	// Serialize misses so each type is extracted once.
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Load(t); ok {
		return v.(*Metadata), nil
	}
	md, err := c.inner.Extract(t)
	if err != nil {
		return nil, err
	}
	c.cache.Store(t, md)
	return md, nil
}

// Cached reports whether metadata for t is memoized.
func (c *CachingExtractor) Cached(t Type) bool {
	_, ok := c.cache.Load(t)
	return ok
}

// Forget drops the memoized metadata of t.
func (c *CachingExtractor) Forget(t Type) { c.cache.Delete(t) }

// Purge drops every memoized entry.
func (c *CachingExtractor) Purge() {
	c.cache.Range(func(k, _ any) bool {
		c.cache.Delete(k)
		return true
	})
}
