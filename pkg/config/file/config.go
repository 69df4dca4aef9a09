package file

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config/wrapper"
)

// Provider serves config values from a YAML, TOML or JSON file. The file is
// read once when the provider is created.
type Provider struct {
	v *viper.Viper
}

// NewProvider loads the config file at path. The format is inferred from
// the file extension.
func NewProvider(path string) (*Provider, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "error reading config file %s", path)
	}

	return &Provider{v: v}, nil
}

type conf struct {
	v   *viper.Viper
	key string
}

// NewConfig returns a config for key. Keys are case insensitive, and nested
// values are addressed with dots.
func (p *Provider) NewConfig(key string) config.Config {
	return &conf{
		v:   p.v,
		key: strings.ToLower(key),
	}
}

// Get implements Config.Get
func (c *conf) Get(_ context.Context) (interface{}, error) {
	if !c.v.IsSet(c.key) {
		return nil, config.ErrNoValue
	}

	val := c.v.Get(c.key)
	if val == nil {
		return nil, config.ErrNoValue
	}
	return val, nil
}

// Shutdown implements Config.Shutdown
func (c *conf) Shutdown() {
}

// NewUint64Config creates a file-based uint64 config
func (p *Provider) NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(p.NewConfig(key), defaultValue)
}

// NewStringConfig creates a file-based string config
func (p *Provider) NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(p.NewConfig(key), defaultValue)
}

// NewBoolConfig creates a file-based bool config
func (p *Provider) NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(p.NewConfig(key), defaultValue)
}

// NewDurationConfig creates a file-based duration config
func (p *Provider) NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(p.NewConfig(key), defaultValue)
}
