package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_GRPC_ADDR and RELAY_WS_URL target a running relay. When empty, an in-process relay is started.
	GrpcAddr string `envconfig:"RELAY_GRPC_ADDR"`
	WsURL    string `envconfig:"RELAY_WS_URL"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
