package conf

// Metadata is the validated, immutable loading record of a configuration type.
//
// Accessors return copies, so callers cannot mutate the record.
type Metadata struct {
	typ         Type
	strategy    StrategyID
	required    []Binding
	optional    []Binding
	nested      []Binding
	conditional []conditional
	decision    *Decision
	preLoad     *Hook
	postLoad    *Hook
}

// conditional is a ConditionalBinding with prerequisites resolved to indexes
// into Metadata.conditional.
type conditional struct {
	ConditionalBinding
	prerequisites []int
}

// Type returns the described type.
func (m *Metadata) Type() Type { return m.typ }

// Strategy returns the loader strategy id.
func (m *Metadata) Strategy() StrategyID { return m.strategy }

// Required returns the required dependency bindings in declaration order.
func (m *Metadata) Required() []Binding { return append([]Binding(nil), m.required...) }

// Optional returns the optional dependency bindings in declaration order.
func (m *Metadata) Optional() []Binding { return append([]Binding(nil), m.optional...) }

// Nested returns the nested configuration bindings in declaration order.
func (m *Metadata) Nested() []Binding { return append([]Binding(nil), m.nested...) }

// Conditional returns the conditional configuration bindings in declaration order.
func (m *Metadata) Conditional() []ConditionalBinding {
	out := make([]ConditionalBinding, len(m.conditional))
	for i, c := range m.conditional {
		out[i] = c.ConditionalBinding
		out[i].After = append([]string(nil), c.After...)
	}
	return out
}

// HasDecision reports whether the type declares a decision callback.
func (m *Metadata) HasDecision() bool { return m.decision != nil }

// HasPreLoad reports whether the type declares a pre-load hook.
func (m *Metadata) HasPreLoad() bool { return m.preLoad != nil }

// HasPostLoad reports whether the type declares a post-load hook.
func (m *Metadata) HasPostLoad() bool { return m.postLoad != nil }

// Decide evaluates the decision callback for candidate on instance.
// Without a callback every candidate is approved.
func (m *Metadata) Decide(instance any, candidate Type) bool {
	if m.decision == nil {
		return true
	}
	return m.decision.fn(instance, candidate)
}

// request builds the strategy request for this type.
func (m *Metadata) request() Request {
	return Request{typ: m.typ, preLoad: m.preLoad}
}

// runPostLoad runs the post-load hook, if any.
func (m *Metadata) runPostLoad(instance any) error {
	if m.postLoad == nil {
		return nil
	}
	return m.postLoad.fn(instance)
}
