// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package config loads the static server configuration. Runtime ingestion
// settings (provider, model, keys) live in the settings store, not here;
// this file covers what must be known before the stores exist.
package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// Config is the top-level Raglane configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Chunking ChunkingConfig `mapstructure:"chunking"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls how the HTTP API listens for connections.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StorageConfig selects the registry backend and the data directory that
// holds the registry database and vector index artifacts.
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`
	DataPath string `mapstructure:"data_path"`
}

// ChunkingConfig sets the splitter's window geometry.
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix RAGLANE_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.listen", "127.0.0.1:8091")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_path", defaultDataPath())
	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 200)
	v.SetDefault("logging.level", "info")

	// Environment
	v.SetEnvPrefix("RAGLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, raglerr.Errorf(raglerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// defaultDataPath returns ~/.local/share/raglane, falling back to a relative
// directory when the home directory cannot be resolved.
func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "raglane-data"
	}
	return filepath.Join(home, ".local", "share", "raglane")
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found, collecting every issue rather than stopping at
// the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateChunking()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	if c.Storage.DataPath == "" {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue,
			"config: storage.data_path must not be empty"))
	}

	return errs
}

func (c *Config) validateChunking() []error {
	var errs []error

	if c.Chunking.Size <= 0 {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue,
			"config: chunking.size must be greater than 0, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue,
			"config: chunking.overlap must not be negative, got %d", c.Chunking.Overlap))
	}
	if c.Chunking.Size > 0 && c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue,
			"config: chunking.overlap must be smaller than chunking.size, got %d >= %d",
			c.Chunking.Overlap, c.Chunking.Size,
		))
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, raglerr.Errorf(raglerr.CodeConfigValidateInvalidValue,
			"config: logging.level must be one of [debug, info, warn, error], got %q",
			c.Logging.Level,
		))
	}

	return errs
}
