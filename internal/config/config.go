// Package config loads the server's YAML configuration file, grounded
// on pkg/config/loader.go's parse-then-decode-then-expand pipeline but
// trimmed to a single Provider (file) with no hot-reload watcher, since
// nothing in this server needs to pick up config changes at runtime.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LLMConfig points the streaming client at an upstream endpoint.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// RetryConfig mirrors retry.Config's fields for file-driven overrides.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// BusConfig configures the message bus's fan-out behavior.
type BusConfig struct {
	QueueDepth int `yaml:"queue_depth"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// ProjectConfig points the project persistence surface at its data
// directory, one JSON file per project (empty keeps the in-memory-only
// store).
type ProjectConfig struct {
	DataDir string `yaml:"data_dir"`
}

// Config is the root of the server's YAML file.
type Config struct {
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	LLM       LLMConfig     `yaml:"llm"`
	Retry     RetryConfig   `yaml:"retry"`
	Bus       BusConfig     `yaml:"bus"`
	Server    ServerConfig  `yaml:"server"`
	Project   ProjectConfig `yaml:"project"`
}

// SetDefaults fills in the zero-valued fields that carry fixed
// defaults.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = time.Second
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 30 * time.Second
	}
	if c.Bus.QueueDepth == 0 {
		c.Bus.QueueDepth = 256
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
}

// Validate checks the few invariants a malformed file can violate
// without relying on a zero value to mean "unset".
func (c *Config) Validate() error {
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.max_retries must not be negative")
	}
	if c.Bus.QueueDepth <= 0 {
		return fmt.Errorf("config: bus.queue_depth must be positive")
	}
	return nil
}

// Load reads path, expands ${VAR} references against the process
// environment (bare $VAR is left as is), decodes it via mapstructure (so duration strings like
// "30s" bind straight into time.Duration fields), applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := &Config{}
	if raw != nil {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "yaml",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		})
		if err != nil {
			return nil, fmt.Errorf("config: build decoder: %w", err)
		}
		if err := decoder.Decode(expandEnvVars(raw)); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars recursively substitutes ${RVC_...} references with the
// matching environment variable, the same convention used for secrets
// like API keys.
func expandEnvVars(v any) any {
	switch val := v.(type) {
	case string:
		return envVarPattern.ReplaceAllStringFunc(val, func(match string) string {
			name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
			return os.Getenv(name)
		})
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandEnvVars(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandEnvVars(item)
		}
		return out
	default:
		return v
	}
}
