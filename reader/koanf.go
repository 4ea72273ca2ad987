package reader

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/sghaida/confwire/conf"
)

// KoanfStrategy reads a YAML (or JSON) file with github.com/knadh/koanf/v2
// and unmarshals it using `koanf` tags.
const KoanfStrategy conf.StrategyID = "koanf"

// errReadNotSupported is returned by bytesProvider.Read.
var errReadNotSupported = errors.New("reader: Read not supported by bytes provider, use ReadBytes()")

// bytesProvider feeds already read (and expanded) contents to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }
func (b bytesProvider) Read() (map[string]any, error) { return nil, errReadNotSupported }

type koanfStrategy struct{ o *options }

// NewKoanf returns the Koanf strategy.
func NewKoanf(opts ...Option) conf.Strategy { return koanfStrategy{o: newOptions(opts)} }

func (s koanfStrategy) Load(req conf.Request) (any, error) {
	v, path, err := s.o.prepare(req)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	// Without expansion koanf reads the file itself.
	var provider koanf.Provider = file.Provider(path)
	if s.o.expandEnv {
		data, err := s.o.read(path)
		if err != nil {
			return nil, err
		}
		provider = bytesProvider(data)
	}
	if err := k.Load(provider, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("reader: load %s: %w", path, err)
	}

	if s.o.envPrefix != "" {
		if err := k.Load(env.Provider(s.o.envPrefix+"_", ".", s.o.envKey), nil); err != nil {
			return nil, fmt.Errorf("reader: load env: %w", err)
		}
	}

	if err := k.UnmarshalWithConf("", v, koanf.UnmarshalConf{DecoderConfig: s.decoderConfig()}); err != nil {
		return nil, fmt.Errorf("reader: unmarshal %s: %w", path, err)
	}
	return v, nil
}

// decoderConfig mirrors koanf's default decoder; strict mode adds ErrorUnused.
func (s koanfStrategy) decoderConfig() *mapstructure.DecoderConfig {
	return &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      s.o.strict,
	}
}
