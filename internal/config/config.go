package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for the endpoint client, the
// converter and the mock endpoint.
type Config struct {
	Endpoint  EndpointConfig  `yaml:"endpoint"`
	Retry     RetryConfig     `yaml:"retry"`
	Image     ImageConfig     `yaml:"image"`
	Guardrail GuardrailConfig `yaml:"guardrail"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Mock      MockConfig      `yaml:"mock"`
}

// EndpointConfig holds connection details for the model service
type EndpointConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// ImageConfig is the tensor geometry the model expects and returns.
type ImageConfig struct {
	Channels int `yaml:"channels"`
	Rows     int `yaml:"rows"`
	Cols     int `yaml:"cols"`
}

type GuardrailConfig struct {
	MaxDims     int `yaml:"max_dims"`
	MaxElements int `yaml:"max_elements"`
}

// LoggingConfig selects the log level. An empty Level defers to
// LOG_LEVEL, then info.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type MockConfig struct {
	Listen            string `yaml:"listen"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
}

// Default returns the settings the proof of concept was built against.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Port:    8000,
			Path:    "/tpfinalpositiongan/v1",
			Timeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:     1,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		Image: ImageConfig{
			Channels: 2,
			Rows:     128,
			Cols:     512,
		},
		Guardrail: GuardrailConfig{
			MaxDims:     32,
			MaxElements: 1 << 28,
		},
		Mock: MockConfig{Listen: ":8000"},
	}
}

// Load reads the configuration from the specified file path on top of
// Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges. Host is not required here because the
// client takes it from the command line.
func (c *Config) Validate() error {
	if c.Endpoint.Port <= 0 || c.Endpoint.Port > 65535 {
		return fmt.Errorf("endpoint.port out of range: %d", c.Endpoint.Port)
	}
	if c.Endpoint.Path == "" || c.Endpoint.Path[0] != '/' {
		return fmt.Errorf("endpoint.path must start with '/': %q", c.Endpoint.Path)
	}
	if c.Endpoint.Timeout <= 0 {
		return fmt.Errorf("endpoint.timeout must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Image.Channels <= 0 || c.Image.Rows <= 0 || c.Image.Cols <= 0 {
		return fmt.Errorf("image dimensions must be positive: %d x %d x %d",
			c.Image.Channels, c.Image.Rows, c.Image.Cols)
	}
	if c.Guardrail.MaxDims < 0 || c.Guardrail.MaxElements < 0 {
		return fmt.Errorf("guardrail limits must not be negative")
	}
	if c.Mock.RequestsPerSecond < 0 {
		return fmt.Errorf("mock.requests_per_second must not be negative")
	}
	return nil
}
