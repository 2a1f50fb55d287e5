package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	ProviderConfig
	StoreConfig
	BridgeConfig
}

type mainConfig struct {
	EnvVars
	Providers
	Store
	Bridge
}

var _ Config = mainConfig{}

// New reads the configuration from the process environment.
func New() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "[config.New] env.Parse")
	}
	if err := c.Store.validate(); err != nil {
		return nil, errors.Wrap(err, "[config.New] store")
	}
	return c, nil
}

// NewFromMap reads the configuration from an explicit variable set instead of the environment.
func NewFromMap(vars map[string]string) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, env.Options{Environment: vars}); err != nil {
		return nil, errors.Wrap(err, "[config.NewFromMap] env.Parse")
	}
	if err := c.Store.validate(); err != nil {
		return nil, errors.Wrap(err, "[config.NewFromMap] store")
	}
	return c, nil
}
