// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClipCC Contributors

// Package config loads clipcc-ext configuration from a YAML file layered
// with command-line flags.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/Menersar/clipcc-extension/internal/xdg"
)

// Config holds the clipcc-ext runtime configuration.
type Config struct {
	// ExtensionsDir is the directory scanned for extension manifests.
	ExtensionsDir string `koanf:"extensions-dir"`
	// MetricsAddr is the observability listen address. Empty disables
	// the observability server.
	MetricsAddr string `koanf:"metrics-addr"`
	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log-format"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log-level"`
}

// DefaultExtensionsDir returns the XDG-derived extensions directory.
func DefaultExtensionsDir() string {
	return xdg.ExtensionsDir()
}

// Load reads configuration with the following precedence, lowest first:
// flag defaults, the YAML config file at path (if non-empty), explicitly
// set flags. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.With("path", path).Hint("failed to read config file").Wrap(err)
		}
	}

	if flags != nil {
		// posflag fills unset keys with flag defaults and overrides
		// file values with explicitly set flags.
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Hint("failed to read flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Hint("failed to unmarshal config").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ExtensionsDir == "" {
		c.ExtensionsDir = DefaultExtensionsDir()
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.With("log-format", c.LogFormat).New("log-format must be 'json' or 'text'")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return oops.With("log-level", c.LogLevel).New("log-level must be debug, info, warn, or error")
	}
	return nil
}
