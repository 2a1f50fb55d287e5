package config

import "time"

type BridgeConfig interface {
	GetRequestTimeout() time.Duration
	GetReloginTimeout() time.Duration
}

type Bridge struct {
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"20s"`
	ReloginTimeout time.Duration `env:"RELOGIN_TIMEOUT" envDefault:"30s"`
}

var _ BridgeConfig = Bridge{}

// GetRequestTimeout bounds every HTTP call made by an adapter.
func (b Bridge) GetRequestTimeout() time.Duration {
	return b.RequestTimeout
}

// GetReloginTimeout bounds how long a caller waits on a shared re-login.
func (b Bridge) GetReloginTimeout() time.Duration {
	return b.ReloginTimeout
}
