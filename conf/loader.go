package conf

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader is the read orchestrator: it materializes a configuration type,
// resolves its dependencies recursively, runs lifecycle hooks and records the
// result in the instance cache.
//
// A Loader is safe for concurrent use. Besides the Cache it keeps no state
// between calls.
type Loader struct {
	table     *Table
	extractor Extractor
	registry  Registry
	cache     Cache
	log       *zap.Logger
	observer  Observer

	shared bool
	group  singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithTable reads descriptors from t through a memoizing extractor.
func WithTable(t *Table) LoaderOption {
	return func(l *Loader) { l.table = t }
}

// WithExtractor replaces the metadata extractor. It overrides WithTable.
func WithExtractor(e Extractor) LoaderOption {
	return func(l *Loader) {
		if e != nil {
			l.extractor = e
		}
	}
}

// WithRegistry sets the strategy registry.
func WithRegistry(r Registry) LoaderOption {
	return func(l *Loader) {
		if r != nil {
			l.registry = r
		}
	}
}

// WithCache sets the instance cache. Loaders sharing a Cache share
// dependency instances.
func WithCache(c Cache) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.cache = c
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) LoaderOption {
	return func(l *Loader) {
		if o != nil {
			l.observer = o
		}
	}
}

// WithSharedDependencyLoads collapses concurrent cache-miss loads of the same
// dependency type into a single in-flight load whose result every waiter
// receives. Nested and conditional configurations are still loaded fresh.
//
// A type that requires itself, directly or through other required or
// optional dependencies, deadlocks under this option instead of recursing.
func WithSharedDependencyLoads() LoaderOption {
	return func(l *Loader) { l.shared = true }
}

// NewLoader returns a Loader. Without options it reads descriptors from the
// process-wide table (see Register) and resolves only DefaultStrategy.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		registry: NewMapRegistry(),
		cache:    NewMemoryCache(),
		log:      zap.NewNop(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.extractor == nil {
		table := l.table
		if table == nil {
			table = defaultTable
		}
		l.extractor = NewCachingExtractor(NewExtractor(table))
	}
	return l
}

// Cache returns the instance cache.
func (l *Loader) Cache() Cache { return l.cache }

// Load materializes t with every dependency wired in.
//
// The top-level request always runs the full pipeline; the cache is only
// consulted for required and optional dependencies. Failures are returned as
// LoadError.
func (l *Loader) Load(t Type) (any, error) {
	if t.IsZero() {
		return nil, LoadError{Type: t, Cause: ErrNilType}
	}

	res := &resolution{log: l.log.With(zap.String("load_id", uuid.NewString()))}
	v, err := l.read(res, t)
	if err != nil {
		res.log.Debug("configuration load failed",
			zap.Stringer("type", t),
			zap.String("path", pathString(res.path)),
			zap.Error(err),
		)
		return nil, LoadError{Type: t, Path: res.path, Cause: err}
	}
	return v, nil
}

// Load is the typed form of (*Loader).Load.
func Load[T any](l *Loader) (*T, error) {
	v, err := l.Load(TypeOf[T]())
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// resolution is the per-call state of a top-level Load.
type resolution struct {
	log   *zap.Logger
	stack []Type
	path  []Type // set at the first unswallowed failure
}

func (r *resolution) push(t Type) { r.stack = append(r.stack, t) }
func (r *resolution) pop()        { r.stack = r.stack[:len(r.stack)-1] }

// fail records the current chain, extended by extra, as the failure path.
func (r *resolution) fail(extra ...Type) {
	if r.path != nil {
		return
	}
	r.path = append(append([]Type(nil), r.stack...), extra...)
}

// read runs the full pipeline for t.
func (l *Loader) read(res *resolution, t Type) (v any, err error) {
	res.push(t)
	start := time.Now()
	l.observer.LoadStarted(t)
	defer func() {
		d := time.Since(start)
		if err != nil {
			res.fail()
		}
		res.pop()
		l.observer.LoadFinished(t, d, err)
		if err == nil {
			res.log.Debug("configuration read", zap.Stringer("type", t), zap.Duration("duration", d))
		}
	}()

	md, err := l.extractor.Extract(t)
	if err != nil {
		return nil, err
	}

	if v, err = l.instantiate(md); err != nil {
		return nil, err
	}
	if err = l.injectRequired(res, md, v); err != nil {
		return nil, err
	}
	l.injectOptional(res, md, v)
	if err = l.injectNested(res, md, v); err != nil {
		return nil, err
	}
	if err = l.readConditionally(res, md, v); err != nil {
		return nil, err
	}

	l.cache.Put(t, v)

	if err = md.runPostLoad(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (l *Loader) instantiate(md *Metadata) (any, error) {
	fail := func(cause error) error {
		return LoadStrategyError{Type: md.typ, Strategy: md.strategy, Cause: cause}
	}

	s, err := l.registry.Resolve(md.strategy)
	if err != nil {
		return nil, fail(err)
	}

	v, err := s.Load(md.request())
	if err != nil {
		var pre *preLoadFailure
		if errors.As(err, &pre) {
			return nil, pre.err
		}
		return nil, fail(err)
	}
	if v == nil {
		return nil, fail(ErrNilInstance)
	}
	if !md.typ.holds(v) {
		return nil, fail(UnexpectedInstanceError{Want: md.typ, Got: typeName(v)})
	}
	return v, nil
}

func (l *Loader) injectRequired(res *resolution, md *Metadata, v any) error {
	for _, b := range md.required {
		dep, err := l.resolveDependency(res, b.Type)
		if err != nil {
			return err
		}
		if err := b.Inject(v, dep); err != nil {
			return err
		}
	}
	return nil
}

// injectOptional never fails: an approved dependency that cannot be resolved
// is logged and left unset.
func (l *Loader) injectOptional(res *resolution, md *Metadata, v any) {
	for _, b := range md.optional {
		if !md.Decide(v, b.Type) {
			continue
		}
		dep, err := l.resolveDependency(res, b.Type)
		if err == nil {
			err = b.Inject(v, dep)
		}
		if err == nil {
			continue
		}

		res.path = nil
		res.log.Warn("optional dependency not resolved",
			zap.Stringer("type", md.typ),
			zap.String("field", b.Field),
			zap.Stringer("dependency", b.Type),
			zap.Error(err),
		)
		l.observer.OptionalSkipped(md.typ, b.Field, err)
	}
}

func (l *Loader) injectNested(res *resolution, md *Metadata, v any) error {
	for _, b := range md.nested {
		dep, err := l.read(res, b.Type)
		if err != nil {
			return err
		}
		if err := b.Inject(v, dep); err != nil {
			return err
		}
	}
	return nil
}

// readConditionally resolves conditional configurations in declaration
// order. Prerequisites of an entry are decided and loaded before the entry's
// own decision. A prerequisite counts as resolved only once it is loaded; a
// rejected one is decided again later, against the container as wired by
// then. An entry is marked resolved on its own turn whatever the decision.
func (l *Loader) readConditionally(res *resolution, md *Metadata, v any) error {
	resolved := make([]bool, len(md.conditional))
	for i, c := range md.conditional {
		if resolved[i] {
			continue
		}
		for _, j := range c.prerequisites {
			if resolved[j] {
				continue
			}
			loaded, err := l.readConditional(res, md, v, md.conditional[j].Binding)
			if err != nil {
				return err
			}
			resolved[j] = loaded
		}
		if _, err := l.readConditional(res, md, v, c.Binding); err != nil {
			return err
		}
		resolved[i] = true
	}
	return nil
}

// readConditional reports whether b was approved, loaded and injected.
func (l *Loader) readConditional(res *resolution, md *Metadata, v any, b Binding) (bool, error) {
	if !md.Decide(v, b.Type) {
		return false, nil
	}
	dep, err := l.read(res, b.Type)
	if err != nil {
		return false, err
	}
	if err := b.Inject(v, dep); err != nil {
		return false, err
	}
	return true, nil
}

// resolveDependency returns the cached instance of t or loads it.
func (l *Loader) resolveDependency(res *resolution, t Type) (any, error) {
	if v, ok := l.cache.Get(t); ok {
		l.observer.CacheHit(t)
		return v, nil
	}
	if l.shared {
		return l.resolveShared(res, t)
	}
	return l.read(res, t)
}

func (l *Loader) resolveShared(res *resolution, t Type) (any, error) {
	v, err, _ := l.group.Do(t.key(), func() (any, error) {
		if v, ok := l.cache.Get(t); ok {
			return v, nil
		}
		return l.read(res, t)
	})
	if err != nil {
		// Waiters did not run the load; the leader's path is not theirs.
		res.fail(t)
		return nil, err
	}
	return v, nil
}

func pathString(path []Type) string {
	names := make([]string, len(path))
	for i, t := range path {
		names[i] = t.String()
	}
	return strings.Join(names, " -> ")
}
