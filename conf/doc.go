// Package conf loads graphs of typed configuration objects.
//
// Each configuration type is described once, at process start, by a Descriptor:
// which loader strategy materializes it, which other configuration types it
// depends on and how (required, optional, nested, conditional), the decision
// callback that gates optional and conditional inclusion, and the lifecycle
// hooks to run around loading.
//
// Descriptors replace annotation scanning with an explicit table. Injection
// points are typed closures (func(*T, *D)), so wiring stays statically checked
// and generated code (see cmd/confgen) can assign unexported fields without
// runtime field poking.
//
// Loading
//
// A Loader resolves one root type per call:
//
//	l := conf.NewLoader(conf.WithTable(table), conf.WithRegistry(reg))
//	cfg, err := conf.Load[AppConfig](l)
//
// For the requested type the Loader extracts Metadata, asks the strategy for a
// raw instance, injects required dependencies (cache first, then a recursive
// load), optional dependencies (failures are logged and swallowed), nested
// configurations (always freshly loaded), conditional configurations (in
// declared order, prerequisites first), caches the wired instance, and runs
// the post-load hook.
//
// Errors
//
// Load returns a single LoadError. Its Cause is the original leaf error, never
// re-wrapped along the dependency chain, so callers classify failures with
// errors.As / errors.Is on the cause: ErrInvalidMetadata for malformed
// descriptors, ErrLoaderInstantiation for strategy failures, or whatever error a
// lifecycle hook returned.
//
// Cycles
//
// No cycle detection is performed. A required-dependency cycle recurses until
// the goroutine stack is exhausted.
package conf
