// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"github.com/kelseyhightower/envconfig"
)

// Config holds command-line defaults that can be overridden by
// environment variables.
type Config struct {
	Threads    int    `envconfig:"VDS_THREADS"`
	Partitions int    `envconfig:"VDS_PARTITIONS"`
	Compress   bool   `envconfig:"VDS_COMPRESS"`
	LogLevel   string `envconfig:"VDS_LOGLEVEL" default:"info"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
