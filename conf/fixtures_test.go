package conf_test

import (
	"sync"
	"testing"
	"time"

	"github.com/sghaida/confwire/conf"
	"go.uber.org/zap/zaptest"
)

type Plain struct {
	Name string
}

type DB struct {
	DSN string
}

type Service struct {
	Name string
	db   *DB
}

type Extra struct {
	Level int
}

type Audit struct {
	Enabled bool
}

type Alpha struct{ ID int }
type Beta struct{ ID int }
type Gamma struct{ ID int }

type Main struct {
	service *Service
	extra   *Extra
	audit   *Audit
	alpha   *Alpha
	beta    *Beta
	gamma   *Gamma
	db      *DB
}

// eventRecorder is a conf.Observer that counts events per type.
type eventRecorder struct {
	mu       sync.Mutex
	started  map[conf.Type]int
	finished map[conf.Type]int
	hits     map[conf.Type]int
	failures map[conf.Type]int
	skipped  []string
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{
		started:  map[conf.Type]int{},
		finished: map[conf.Type]int{},
		hits:     map[conf.Type]int{},
		failures: map[conf.Type]int{},
	}
}

func (r *eventRecorder) LoadStarted(t conf.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[t]++
}

func (r *eventRecorder) LoadFinished(t conf.Type, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished[t]++
	if err != nil {
		r.failures[t]++
	}
}

func (r *eventRecorder) CacheHit(t conf.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[t]++
}

func (r *eventRecorder) OptionalSkipped(_ conf.Type, field string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped = append(r.skipped, field)
}

func (r *eventRecorder) Started(t conf.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started[t]
}

func (r *eventRecorder) Hits(t conf.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[t]
}

func (r *eventRecorder) Skipped() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.skipped...)
}

// sequence records events in order.
type sequence struct {
	mu     sync.Mutex
	events []string
}

func (s *sequence) add(e string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *sequence) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// newLoader builds a loader over a fresh table holding ds.
func newLoader(t *testing.T, reg *conf.MapRegistry, ds ...*conf.Descriptor) (*conf.Loader, *eventRecorder) {
	t.Helper()

	if reg == nil {
		reg = conf.NewMapRegistry()
	}
	rec := newEventRecorder()
	l := conf.NewLoader(
		conf.WithTable(conf.NewTable().MustRegister(ds...)),
		conf.WithRegistry(reg),
		conf.WithObserver(rec),
		conf.WithLogger(zaptest.NewLogger(t)),
	)
	return l, rec
}

// failing returns a factory whose strategy always fails with err.
func failing(err error) conf.Factory {
	return func() (conf.Strategy, error) {
		return conf.StrategyFunc(func(conf.Request) (any, error) { return nil, err }), nil
	}
}

// returning returns a factory whose strategy always returns v.
func returning(v any) conf.Factory {
	return func() (conf.Strategy, error) {
		return conf.StrategyFunc(func(conf.Request) (any, error) { return v, nil }), nil
	}
}

func bindingFields(bs []conf.Binding) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Field + ":" + b.Type.String()
	}
	return out
}
