package main

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	GrpcAddr string `envconfig:"RELAY_GRPC_ADDR" default:"localhost:50051"`
	Name     string `envconfig:"RELAY_NAME"`
	// RELAY_COLOURS enables colorized output
	Colours bool `envconfig:"RELAY_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
