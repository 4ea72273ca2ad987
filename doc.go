// Package confwire loads graphs of typed configuration objects.
//
// Each configuration type is described once with an explicit descriptor
// (strategy, required / optional / nested / conditional dependencies,
// decision callback, lifecycle hooks) and a Loader resolves the whole graph
// on demand, sharing required dependencies through an instance cache.
//
// The goal is to keep wiring explicit: no annotation scanning, no field
// poking, typed setter closures that the compiler checks.
//
// See subpackages:
//   - conf: descriptors, metadata extraction, strategy registry and the Loader
//   - reader: file-backed strategies (yaml, json, viper, koanf)
//   - metrics: Prometheus observer for loader activity
//   - logger: zap logger construction for binaries
//   - cmd/confgen: descriptor code generator
//   - examples/appconfig: runnable end-to-end example
package confwire
