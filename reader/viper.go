package reader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sghaida/confwire/conf"
	"github.com/spf13/viper"
)

// ViperStrategy reads a file with github.com/spf13/viper and unmarshals it
// using `mapstructure` tags. The file format follows the extension.
const ViperStrategy conf.StrategyID = "viper"

type viperStrategy struct{ o *options }

// NewViper returns the Viper strategy.
func NewViper(opts ...Option) conf.Strategy { return viperStrategy{o: newOptions(opts)} }

func (s viperStrategy) Load(req conf.Request) (any, error) {
	v, path, err := s.o.prepare(req)
	if err != nil {
		return nil, err
	}
	data, err := s.o.read(path)
	if err != nil {
		return nil, err
	}

	vp := viper.New()
	vp.SetConfigType(format(path))
	if s.o.envPrefix != "" {
		vp.SetEnvPrefix(s.o.envPrefix)
		vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		vp.AutomaticEnv()
	}
	if err := vp.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("reader: read %s: %w", path, err)
	}

	unmarshal := vp.Unmarshal
	if s.o.strict {
		unmarshal = vp.UnmarshalExact
	}
	if err := unmarshal(v); err != nil {
		return nil, fmt.Errorf("reader: unmarshal %s: %w", path, err)
	}
	return v, nil
}
