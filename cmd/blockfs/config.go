package main

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const envVarPrefix = "BLOCKFS"

// Config holds the defaults for the global flags. Every field can be set
// from the environment, e.g. BLOCKFS_DISK=/tmp/fs.img.
type Config struct {
	Disk  string `envconfig:"DISK"  default:"blockfs.img"`
	Size  uint64 `envconfig:"SIZE"  default:"10000"`
	Debug uint64 `envconfig:"DEBUG" default:"0"`
}

func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}
	return &c, nil
}
