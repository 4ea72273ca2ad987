// Package reader provides file-backed loader strategies for conf.
//
// Each strategy allocates the instance through conf.Request.New, so the
// type's pre-load hook runs before any data is bound, and then decodes one
// source file into it:
//
//	YAMLStrategy   gopkg.in/yaml.v3, `yaml` tags
//	JSONStrategy   github.com/goccy/go-json, `json` tags
//	ViperStrategy  github.com/spf13/viper, `mapstructure` tags, env overrides
//	KoanfStrategy  github.com/knadh/koanf/v2, `koanf` tags, env overrides
//
// The source of a type is taken from WithPath, or from the instance itself
// when it implements Sourcer. Relative paths are resolved against WithBaseDir.
//
// Register wires every strategy into a conf.MapRegistry:
//
//	reg := reader.Register(conf.NewMapRegistry(), reader.WithBaseDir("config"))
//	l := conf.NewLoader(conf.WithRegistry(reg))
package reader
