package reader

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/sghaida/confwire/conf"
)

// JSONStrategy decodes a JSON document with github.com/goccy/go-json.
const JSONStrategy conf.StrategyID = "json"

type jsonStrategy struct{ o *options }

// NewJSON returns the JSON strategy.
func NewJSON(opts ...Option) conf.Strategy { return jsonStrategy{o: newOptions(opts)} }

func (s jsonStrategy) Load(req conf.Request) (any, error) {
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

	dec := json.NewDecoder(bytes.NewReader(data))
	if s.o.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("reader: decode %s: %w", path, err)
	}
	return v, nil
}
