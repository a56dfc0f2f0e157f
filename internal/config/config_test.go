package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 8000, cfg.Endpoint.Port)
	assert.Equal(t, "/tpfinalpositiongan/v1", cfg.Endpoint.Path)
	assert.Equal(t, 30*time.Second, cfg.Endpoint.Timeout)
	assert.Equal(t, ImageConfig{Channels: 2, Rows: 128, Cols: 512}, cfg.Image)
	assert.Empty(t, cfg.Logging.Level, "unset level leaves room for LOG_LEVEL")
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
endpoint:
  host: model.internal
  timeout: 2s
retry:
  max_attempts: 3
  initial_interval: 10ms
image:
  rows: 4
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "model.internal", cfg.Endpoint.Host)
	assert.Equal(t, 8000, cfg.Endpoint.Port, "unset keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Endpoint.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, 4, cfg.Image.Rows)
	assert.Equal(t, 512, cfg.Image.Cols)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "reading config file")

	_, err = Load(writeConfig(t, "endpoint: [not, a, map]"))
	require.ErrorContains(t, err, "parsing config file")

	_, err = Load(writeConfig(t, "endpoint:\n  port: 70000\n"))
	require.ErrorContains(t, err, "endpoint.port")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"relative path":  func(c *Config) { c.Endpoint.Path = "v1" },
		"zero timeout":   func(c *Config) { c.Endpoint.Timeout = 0 },
		"no attempts":    func(c *Config) { c.Retry.MaxAttempts = 0 },
		"zero channels":  func(c *Config) { c.Image.Channels = 0 },
		"negative limit": func(c *Config) { c.Guardrail.MaxElements = -1 },
		"negative rps":   func(c *Config) { c.Mock.RequestsPerSecond = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
