package reader

import "github.com/sghaida/confwire/conf"

// Register provides every strategy of this package on reg and returns it.
// Each Resolve builds a fresh strategy over the same options.
func Register(reg *conf.MapRegistry, opts ...Option) *conf.MapRegistry {
	o := newOptions(opts)
	return reg.
		Provide(YAMLStrategy, func() (conf.Strategy, error) { return yamlStrategy{o: o}, nil }).
		Provide(JSONStrategy, func() (conf.Strategy, error) { return jsonStrategy{o: o}, nil }).
		Provide(ViperStrategy, func() (conf.Strategy, error) { return viperStrategy{o: o}, nil }).
		Provide(KoanfStrategy, func() (conf.Strategy, error) { return koanfStrategy{o: o}, nil })
}
