// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	cerr "github.com/contextd-dev/contextd/pkg/errors"
)

// Config is the top-level contextd configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
}

// ServerConfig controls how contextd listens for connections.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AuthConfig controls credential checking and token issuance.
type AuthConfig struct {
	// TokenSecret signs bearer tokens. Empty generates a random secret at
	// startup, invalidating tokens across restarts.
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

// StorageConfig selects the storage backend and its location.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// EmbeddingConfig controls the embedding vector space.
type EmbeddingConfig struct {
	Dimension int `mapstructure:"dimension"`
}

// ChunkingConfig controls how documents are split before embedding.
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// RetrievalConfig bounds query parameters.
type RetrievalConfig struct {
	MaxTopK int `mapstructure:"max_top_k"`
}

// SetDefaults installs the default value for every config key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:40304")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.max_body_bytes", 10*1024*1024)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_ttl", "15m")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 100)
	v.SetDefault("retrieval.max_top_k", 20)
}

// SetupEnv binds environment variable overrides with the CONTEXTD_ prefix,
// e.g. CONTEXTD_SERVER_LISTEN.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("CONTEXTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates the configuration held by v. The
// caller is responsible for having applied defaults, env bindings, and any
// config file.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cerr.Errorf(cerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, cerr.Errorf(cerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, cerr.Errorf(cerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors. It collects every
// problem rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateAuth()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateIndexing()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
				"config: server.listen must be a valid host:port address, got %q: %w",
				c.Server.Listen, err,
			))
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: server.max_body_bytes must be greater than 0, got %d",
			c.Server.MaxBodyBytes,
		))
	}

	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: server.read_timeout must be greater than 0, got %s",
			c.Server.ReadTimeout,
		))
	}

	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: server.write_timeout must be greater than 0, got %s",
			c.Server.WriteTimeout,
		))
	}

	return errs
}

func (c *Config) validateAuth() []error {
	var errs []error

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: auth.token_ttl must be greater than 0, got %s",
			c.Auth.TokenTTL,
		))
	}

	if s := c.Auth.TokenSecret; s != "" && len(s) < 16 {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: auth.token_secret must be at least 16 bytes when set, got %d",
			len(s),
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	if c.Storage.Backend == "sqlite" && c.Storage.DataDir == "" {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: storage.data_dir must not be empty for the sqlite backend"))
	}

	return errs
}

func (c *Config) validateIndexing() []error {
	var errs []error

	if c.Embedding.Dimension <= 0 {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: embedding.dimension must be greater than 0, got %d",
			c.Embedding.Dimension,
		))
	}

	if c.Chunking.Size <= 0 {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: chunking.size must be greater than 0, got %d",
			c.Chunking.Size,
		))
	}

	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: chunking.overlap must be in [0, chunking.size), got %d with size %d",
			c.Chunking.Overlap, c.Chunking.Size,
		))
	}

	if c.Retrieval.MaxTopK <= 0 {
		errs = append(errs, cerr.Errorf(cerr.CodeConfigValidateInvalidValue,
			"config: retrieval.max_top_k must be greater than 0, got %d",
			c.Retrieval.MaxTopK,
		))
	}

	return errs
}
