package conf

import "time"

// Observer receives loader events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	// LoadStarted fires when the loader starts materializing t.
	LoadStarted(t Type)

	// LoadFinished fires when the load of t ends, successfully or not.
	LoadFinished(t Type, d time.Duration, err error)

	// CacheHit fires when a dependency of type t is served from the cache.
	CacheHit(t Type)

	// OptionalSkipped fires when an optional dependency of container failed
	// to resolve and field was left unset.
	OptionalSkipped(container Type, field string, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) LoadStarted(Type) {}
func (NopObserver) LoadFinished(Type, time.Duration, error) {}
func (NopObserver) CacheHit(Type) {}
func (NopObserver) OptionalSkipped(Type, string, error) {}

var _ Observer = NopObserver{}
