// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/contextd-dev/contextd/internal/config"
	"github.com/contextd-dev/contextd/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contextd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:40304", cfg.Server.Listen)
	assert.Equal(t, int64(10*1024*1024), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, 20, cfg.Retrieval.MaxTopK)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9000"
storage:
  backend: memory
chunking:
  size: 500
  overlap: 50
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	// Untouched keys keep their defaults.
	assert.Equal(t, 384, cfg.Embedding.Dimension)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9000"
`)
	t.Setenv("CONTEXTD_SERVER_LISTEN", "127.0.0.1:7777")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7777", cfg.Server.Listen)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigLoadReadFailure))
}

func TestLoad_CollectsAllValidationErrors(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "not-an-address"
storage:
  backend: "cassandra"
chunking:
  size: 100
  overlap: 100
retrieval:
  max_top_k: 0
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigValidateInvalidValue))
	msg := err.Error()
	assert.Contains(t, msg, "server.listen")
	assert.Contains(t, msg, "storage.backend")
	assert.Contains(t, msg, "chunking.overlap")
	assert.Contains(t, msg, "retrieval.max_top_k")
}

func TestValidate_TokenSecretLength(t *testing.T) {
	path := writeConfig(t, `
auth:
  token_secret: "short"
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.token_secret")
}

func TestValidate_PortRange(t *testing.T) {
	for _, listen := range []string{"127.0.0.1:0", "127.0.0.1:70000", "127.0.0.1:abc"} {
		path := writeConfig(t, "server:\n  listen: \""+listen+"\"\n")
		_, err := config.Load(path)
		require.Error(t, err, "listen %q should be rejected", listen)
	}
}

func TestDefaultConfigYAML_MatchesDefaults(t *testing.T) {
	// The embedded starter file must parse and agree with the coded defaults.
	var doc struct {
		Server struct {
			Listen       string `yaml:"listen"`
			MaxBodyBytes int64  `yaml:"max_body_bytes"`
		} `yaml:"server"`
		Storage struct {
			Backend string `yaml:"backend"`
		} `yaml:"storage"`
		Embedding struct {
			Dimension int `yaml:"dimension"`
		} `yaml:"embedding"`
		Chunking struct {
			Size    int `yaml:"size"`
			Overlap int `yaml:"overlap"`
		} `yaml:"chunking"`
	}
	require.NoError(t, yaml.Unmarshal(config.DefaultConfigYAML, &doc))

	defaults, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, defaults.Server.Listen, doc.Server.Listen)
	assert.Equal(t, defaults.Server.MaxBodyBytes, doc.Server.MaxBodyBytes)
	assert.Equal(t, defaults.Storage.Backend, doc.Storage.Backend)
	assert.Equal(t, defaults.Embedding.Dimension, doc.Embedding.Dimension)
	assert.Equal(t, defaults.Chunking.Size, doc.Chunking.Size)
	assert.Equal(t, defaults.Chunking.Overlap, doc.Chunking.Overlap)
}

func TestBootstrapConfig_WritesOnce(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := config.BootstrapConfig()
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, data)

	// Second call is a no-op.
	assert.Empty(t, config.BootstrapConfig())
}
