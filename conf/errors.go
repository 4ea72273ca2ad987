package conf

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrInvalidMetadata classifies descriptor validation failures. Every
	// extraction error matches it via errors.Is.
	ErrInvalidMetadata = errors.New("conf: invalid configuration metadata")

	// ErrLoaderInstantiation classifies failures to resolve or run a loader
	// strategy. LoadStrategyError matches it via errors.Is.
	ErrLoaderInstantiation = errors.New("conf: loader strategy failed")

	// ErrNilType is returned when Load is called with the zero Type.
	ErrNilType = errors.New("conf: nil configuration type")

	// ErrNilDescriptor is returned when registering a nil descriptor.
	ErrNilDescriptor = errors.New("conf: nil descriptor")

	// ErrConflictingDescriptor is returned when a different descriptor is
	// registered for a type that already has one.
	ErrConflictingDescriptor = errors.New("conf: conflicting descriptor registration")

	// ErrNilInstance is the cause of a LoadStrategyError when a strategy
	// returns a nil instance without an error.
	ErrNilInstance = errors.New("conf: strategy returned nil instance")

	// ErrRegistryPanic is the cause of a LoadStrategyError when a strategy
	// factory panics.
	ErrRegistryPanic = errors.New("conf: panic while resolving strategy")
)

// MissingDescriptorError is returned by an Extractor when the type has no
// registered descriptor.
type MissingDescriptorError struct{ Type Type }

// Error implements the error interface.
func (e MissingDescriptorError) Error() string {
	// Example: conf: no descriptor registered for "appconfig.Main"
	return "conf: no descriptor registered for " + strconv.Quote(e.Type.String())
}

// Is reports whether target is ErrInvalidMetadata.
func (e MissingDescriptorError) Is(target error) bool { return target == ErrInvalidMetadata }

// InvalidDecisionCallbackError is returned when a type declares conditional
// configurations without a decision callback, declares more than one
// callback, or declares a nil one.
type InvalidDecisionCallbackError struct {
	Type Type

	// Count is the number of decision callbacks declared.
	Count int

	Reason string
}

// Error implements the error interface.
func (e InvalidDecisionCallbackError) Error() string {
	return "conf: invalid decision callback on " + strconv.Quote(e.Type.String()) + ": " + e.Reason
}

// Is reports whether target is ErrInvalidMetadata.
func (e InvalidDecisionCallbackError) Is(target error) bool { return target == ErrInvalidMetadata }

// InvalidConditionalDependencyError is returned when a conditional
// configuration names a prerequisite that is not a conditional configuration
// of the same type, or names itself.
type InvalidConditionalDependencyError struct {
	Type         Type
	Field        string
	Prerequisite string
	Reason       string
}

// Error implements the error interface.
func (e InvalidConditionalDependencyError) Error() string {
	// Example: conf: conditional "extra" on "appconfig.Main": prerequisite "db" is not a conditional configuration
	return "conf: conditional " + strconv.Quote(e.Field) + " on " + strconv.Quote(e.Type.String()) +
		": prerequisite " + strconv.Quote(e.Prerequisite) + " " + e.Reason
}

// Is reports whether target is ErrInvalidMetadata.
func (e InvalidConditionalDependencyError) Is(target error) bool { return target == ErrInvalidMetadata }

// DuplicateFieldError is returned when a field is bound more than once on the
// same type, for example as both a required and an optional dependency.
type DuplicateFieldError struct {
	Type  Type
	Field string
}

// Error implements the error interface.
func (e DuplicateFieldError) Error() string {
	return "conf: field " + strconv.Quote(e.Field) + " bound more than once on " + strconv.Quote(e.Type.String())
}

// Is reports whether target is ErrInvalidMetadata.
func (e DuplicateFieldError) Is(target error) bool { return target == ErrInvalidMetadata }

// InvalidBindingError is returned for a malformed injection point: an empty
// field name, a nil setter, or a setter declared for another type.
type InvalidBindingError struct {
	Type   Type
	Field  string
	Reason string
}

// Error implements the error interface.
func (e InvalidBindingError) Error() string {
	return "conf: invalid binding " + strconv.Quote(e.Field) + " on " + strconv.Quote(e.Type.String()) + ": " + e.Reason
}

// Is reports whether target is ErrInvalidMetadata.
func (e InvalidBindingError) Is(target error) bool { return target == ErrInvalidMetadata }

// InvalidLifecycleHookError is returned when a type declares more than one
// hook for a phase, a nil hook, or a hook for another type.
type InvalidLifecycleHookError struct {
	Type   Type
	Phase  Phase
	Count  int
	Reason string
}

// Error implements the error interface.
func (e InvalidLifecycleHookError) Error() string {
	return "conf: invalid " + string(e.Phase) + " hook on " + strconv.Quote(e.Type.String()) + ": " + e.Reason
}

// Is reports whether target is ErrInvalidMetadata.
func (e InvalidLifecycleHookError) Is(target error) bool { return target == ErrInvalidMetadata }

// UnknownStrategyError is returned by a Registry for an unregistered id.
type UnknownStrategyError struct{ ID StrategyID }

// Error implements the error interface.
func (e UnknownStrategyError) Error() string {
	return "conf: unknown loader strategy " + strconv.Quote(string(e.ID))
}

// UnexpectedInstanceError is the cause of a LoadStrategyError when a strategy
// returns a value that is not a pointer to the requested type.
type UnexpectedInstanceError struct {
	Want Type
	Got  string
}

// Error implements the error interface.
func (e UnexpectedInstanceError) Error() string {
	return "conf: strategy returned " + e.Got + ", want *" + e.Want.String()
}

// LoadStrategyError wraps a failure to resolve or run the loader strategy of a
// configuration type.
type LoadStrategyError struct {
	Type     Type
	Strategy StrategyID
	Cause    error
}

// Error implements the error interface.
func (e LoadStrategyError) Error() string {
	// Example: conf: loading "appconfig.DB" with strategy "yaml": open db.yaml: no such file or directory
	msg := "conf: loading " + strconv.Quote(e.Type.String()) + " with strategy " + strconv.Quote(string(e.Strategy))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e LoadStrategyError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrLoaderInstantiation.
func (e LoadStrategyError) Is(target error) bool { return target == ErrLoaderInstantiation }

// LoadError is the single error type returned by Loader.Load.
//
// Cause is the original leaf error. Dependency failures are not re-wrapped on
// the way up, so Cause is what the failing strategy, extractor or hook
// returned (a LoadStrategyError for strategy failures).
type LoadError struct {
	// Type is the root type passed to Load.
	Type Type

	// Path is the resolution chain from the root to the type that failed.
	Path []Type

	Cause error
}

// Error implements the error interface.
func (e LoadError) Error() string {
	var b strings.Builder
	b.WriteString("conf: load ")
	b.WriteString(strconv.Quote(e.Type.String()))
	if len(e.Path) > 1 {
		b.WriteString(" (via ")
		for i, t := range e.Path {
			if i > 0 {
				b.WriteString(" -> ")
			}
			b.WriteString(t.String())
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the original cause.
func (e LoadError) Unwrap() error { return e.Cause }

// preLoadFailure carries a pre-load hook error out of a strategy so the
// Loader can propagate it unwrapped instead of as a LoadStrategyError.
type preLoadFailure struct{ err error }

func (e *preLoadFailure) Error() string { return e.err.Error() }
func (e *preLoadFailure) Unwrap() error { return e.err }
