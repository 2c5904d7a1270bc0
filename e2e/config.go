package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`

	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
