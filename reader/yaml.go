package reader

import (
	"bytes"
	"fmt"

	"github.com/sghaida/confwire/conf"
	"gopkg.in/yaml.v3"
)

// YAMLStrategy decodes a YAML document with gopkg.in/yaml.v3.
const YAMLStrategy conf.StrategyID = "yaml"

type yamlStrategy struct{ o *options }

// NewYAML returns the YAML strategy.
func NewYAML(opts ...Option) conf.Strategy { return yamlStrategy{o: newOptions(opts)} }

func (s yamlStrategy) Load(req conf.Request) (any, error) {
	v, path, err := s.o.prepare(req)
	if err != nil {
		return nil, err
	}
	data, err := s.o.read(path)
	if err != nil {
		return nil, err
	}
	if blank(data) {
		return v, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(s.o.strict)
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("reader: decode %s: %w", path, err)
	}
	return v, nil
}
