package reader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sghaida/confwire/conf"
)

// ErrNoSource classifies failures to locate the source of a type.
var ErrNoSource = errors.New("reader: no configuration source")

// NoSourceError is returned when neither WithPath nor Sourcer names a source
// for the requested type.
type NoSourceError struct{ Type conf.Type }

// Error implements the error interface.
func (e NoSourceError) Error() string {
	return "reader: no configuration source for " + strconv.Quote(e.Type.String())
}

// Is reports whether target is ErrNoSource.
func (e NoSourceError) Is(target error) bool { return target == ErrNoSource }

// Sourcer is implemented by configuration types that know where their data
// lives. It is called on the freshly allocated instance, after the pre-load
// hook, so the hook may compute the path.
type Sourcer interface {
	ConfigSource() string
}

// Option configures the strategies built by this package.
type Option func(*options)

type options struct {
	paths     map[conf.Type]string
	baseDir   string
	envPrefix string
	strict    bool
	expandEnv bool
}

func newOptions(opts []Option) *options {
	o := &options{paths: map[conf.Type]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithPath sets the source file of t. It takes precedence over Sourcer.
func WithPath(t conf.Type, path string) Option {
	return func(o *options) { o.paths[t] = path }
}

// WithBaseDir resolves relative source paths against dir.
func WithBaseDir(dir string) Option {
	return func(o *options) { o.baseDir = dir }
}

// WithEnvPrefix enables environment overrides for the Viper and Koanf
// strategies. PREFIX_SERVER_PORT overrides the key server.port.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envPrefix = strings.TrimSuffix(prefix, "_") }
}

// WithStrict rejects keys that do not map to a field of the type.
func WithStrict() Option {
	return func(o *options) { o.strict = true }
}

// WithEnvExpansion expands ${VAR} references in source files before decoding.
func WithEnvExpansion() Option {
	return func(o *options) { o.expandEnv = true }
}

// source returns the path configured for t, asking the instance when none is.
func (o *options) source(t conf.Type, instance any) (string, error) {
	path := o.paths[t]
	if path == "" {
		if s, ok := instance.(Sourcer); ok {
			path = s.ConfigSource()
		}
	}
	if path == "" {
		return "", NoSourceError{Type: t}
	}
	if o.baseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(o.baseDir, path)
	}
	return path, nil
}

// read returns the source contents, expanded when configured.
func (o *options) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reader: %w", err)
	}
	if o.expandEnv {
		data = []byte(os.ExpandEnv(string(data)))
	}
	return data, nil
}

// envKey maps PREFIX_SERVER_PORT to server.port.
func (o *options) envKey(name string) string {
	name = strings.TrimPrefix(name, o.envPrefix+"_")
	return strings.ReplaceAll(strings.ToLower(name), "_", ".")
}

// prepare allocates the instance and locates its source.
func (o *options) prepare(req conf.Request) (instance any, path string, err error) {
	instance, err = req.New()
	if err != nil {
		return nil, "", err
	}
	path, err = o.source(req.Type(), instance)
	if err != nil {
		return nil, "", err
	}
	return instance, path, nil
}

func blank(data []byte) bool { return len(bytes.TrimSpace(data)) == 0 }

// format returns the lower-cased extension of path without the dot.
func format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
