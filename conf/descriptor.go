package conf

import (
	"reflect"
)

// Phase names a lifecycle hook phase.
type Phase string

const (
	// PreLoadPhase hooks run on the freshly allocated instance, before the
	// strategy binds data into it.
	PreLoadPhase Phase = "pre-load"

	// PostLoadPhase hooks run after every dependency is injected and the
	// instance is cached.
	PostLoadPhase Phase = "post-load"
)

// Descriptor is the registration record of one configuration type.
//
// It is the explicit replacement for annotation discovery: a Descriptor is
// built once with Describe, registered in a Table, and turned into validated
// Metadata by an Extractor. Descriptor performs no validation itself.
type Descriptor struct {
	typ         Type
	strategy    StrategyID
	required    []Binding
	optional    []Binding
	nested      []Binding
	conditional []ConditionalBinding
	decisions   []Decision
	preLoad     []Hook
	postLoad    []Hook
}

// Type returns the described configuration type.
func (d *Descriptor) Type() Type { return d.typ }

// Strategy returns the declared loader strategy, or DefaultStrategy.
func (d *Descriptor) Strategy() StrategyID {
	if d.strategy == "" {
		return DefaultStrategy
	}
	return d.strategy
}

// Option configures a Descriptor under construction.
type Option func(*Descriptor)

// Describe builds the Descriptor of T from opts. Describe[*T] describes T.
//
// Setters, hooks and decision callbacks take *T and *D: instantiating them
// with a pointer type parameter is reported by the Extractor.
//
// Example:
//
//	conf.Describe[Main](
//		conf.ReadWith(reader.YAMLStrategy),
//		conf.Requires("db", func(m *Main, db *DB) { m.db = db }),
//		conf.Nests("service", func(m *Main, s *Service) { m.service = s }),
//		conf.When("extra", func(m *Main, e *Extra) { m.extra = e }),
//		conf.DecideWith((*Main).include),
//	)
func Describe[T any](opts ...Option) *Descriptor {
	d := &Descriptor{typ: TypeOf[T](), strategy: DefaultStrategy}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// ReadWith selects the loader strategy used to materialize the type.
func ReadWith(id StrategyID) Option {
	return func(d *Descriptor) { d.strategy = id }
}

// Binding is a named injection point: a field of the container that receives
// an instance of a dependency type.
type Binding struct {
	// Field names the injection point. It must be unique within a type.
	Field string

	// Type is the dependency's configuration type.
	Type Type

	owner   Type
	inject  func(target, value any) error
	invalid string
}

// Inject assigns value to the binding's field on target.
func (b Binding) Inject(target, value any) error {
	if b.inject == nil {
		return InvalidBindingError{Type: b.owner, Field: b.Field, Reason: "nil setter"}
	}
	return b.inject(target, value)
}

// ConditionalBinding is a Binding gated by the decision callback, resolved
// after the conditional bindings named in After.
type ConditionalBinding struct {
	Binding

	// After lists prerequisite fields, each itself a conditional binding of
	// the same type, resolved (in order) before this one is decided.
	After []string
}

// Decision gates optional and conditional resolution for a container type.
type Decision struct {
	owner   Type
	fn      func(instance any, t Type) bool
	invalid string
}

// Hook is a lifecycle callback bound to one phase of a type.
type Hook struct {
	owner   Type
	phase   Phase
	fn      func(instance any) error
	invalid string
}

// Requires declares a required dependency. The dependency is taken from the
// instance cache when present, loaded otherwise; failure aborts the load.
func Requires[T, D any](field string, bind func(target *T, dependency *D)) Option {
	return func(d *Descriptor) { d.required = append(d.required, bindingOf(field, bind)) }
}

// Optionally declares an optional dependency. It is resolved only when the
// decision callback approves it (or no callback exists); resolution failures
// are logged and leave the field unset.
func Optionally[T, D any](field string, bind func(target *T, dependency *D)) Option {
	return func(d *Descriptor) { d.optional = append(d.optional, bindingOf(field, bind)) }
}

// Nests declares a nested configuration that is always loaded fresh, never
// read from the cache.
func Nests[T, D any](field string, bind func(target *T, nested *D)) Option {
	return func(d *Descriptor) { d.nested = append(d.nested, bindingOf(field, bind)) }
}

// When declares a conditional configuration, loaded fresh when the decision
// callback approves it. after names conditional fields of the same type that
// must be resolved first.
func When[T, D any](field string, bind func(target *T, conditional *D), after ...string) Option {
	return func(d *Descriptor) {
		d.conditional = append(d.conditional, ConditionalBinding{
			Binding: bindingOf(field, bind),
			After:   append([]string(nil), after...),
		})
	}
}

// DecideWith declares the decision callback of T. It receives the
// partially wired container and the candidate dependency type.
func DecideWith[T any](fn func(container *T, candidate Type) bool) Option {
	dec := Decision{owner: TypeOf[T](), invalid: pointerParam(reflect.TypeFor[T]())}
	if fn != nil {
		dec.fn = func(instance any, t Type) bool { return fn(instance.(*T), t) }
	}
	return func(d *Descriptor) { d.decisions = append(d.decisions, dec) }
}

// PreLoad declares the hook run on a fresh instance before data is bound.
func PreLoad[T any](fn func(*T) error) Option {
	h := hookOf(PreLoadPhase, fn)
	return func(d *Descriptor) { d.preLoad = append(d.preLoad, h) }
}

// PostLoad declares the hook run once the instance is fully wired.
func PostLoad[T any](fn func(*T) error) Option {
	h := hookOf(PostLoadPhase, fn)
	return func(d *Descriptor) { d.postLoad = append(d.postLoad, h) }
}

func bindingOf[T, D any](field string, bind func(*T, *D)) Binding {
	b := Binding{
		Field:   field,
		Type:    TypeOf[D](),
		owner:   TypeOf[T](),
		invalid: pointerParam(reflect.TypeFor[T](), reflect.TypeFor[D]()),
	}
	if bind == nil {
		return b
	}
	b.inject = func(target, value any) error {
		t, ok := target.(*T)
		if !ok {
			return InvalidBindingError{Type: b.owner, Field: field, Reason: "target is " + typeName(target)}
		}
		v, ok := value.(*D)
		if !ok {
			return InvalidBindingError{Type: b.owner, Field: field, Reason: "value is " + typeName(value)}
		}
		bind(t, v)
		return nil
	}
	return b
}

func hookOf[T any](phase Phase, fn func(*T) error) Hook {
	h := Hook{owner: TypeOf[T](), phase: phase, invalid: pointerParam(reflect.TypeFor[T]())}
	if fn != nil {
		h.fn = func(instance any) error { return fn(instance.(*T)) }
	}
	return h
}

// pointerParam describes the first pointer among rts, or returns "". The
// closures built over such a parameter assert **T and never match.
func pointerParam(rts ...reflect.Type) string {
	for _, rt := range rts {
		if rt.Kind() == reflect.Pointer {
			return "pointer type parameter " + rt.String()
		}
	}
	return ""
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
