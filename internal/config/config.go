package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/airlockhq/airlock/internal/tools"
	"github.com/airlockhq/airlock/internal/workspace"
)

type SandboxConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Target  string        `mapstructure:"target"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ProviderConfig struct {
	BaseURL string            `mapstructure:"base_url"`
	APIKey  string            `mapstructure:"api_key"`
	Models  map[string]string `mapstructure:"models"`
}

type AgentConfig struct {
	MaxIterations    int    `mapstructure:"max_iterations"`
	ProfilesDir      string `mapstructure:"profiles_dir"`
	ContextMaxTokens int    `mapstructure:"context_max_tokens"`
}

type ServerConfig struct {
	Port     int `mapstructure:"port"`
	PoolSize int `mapstructure:"pool_size"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type SamplesConfig struct {
	Dir string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	Sandbox         SandboxConfig                     `mapstructure:"sandbox"`
	Providers       map[string]ProviderConfig         `mapstructure:"providers"`
	DefaultProvider string                            `mapstructure:"default_provider"`
	Agent           AgentConfig                       `mapstructure:"agent"`
	Server          ServerConfig                      `mapstructure:"server"`
	Storage         StorageConfig                     `mapstructure:"storage"`
	Samples         SamplesConfig                     `mapstructure:"samples"`
	Logging         LoggingConfig                     `mapstructure:"logging"`
	Tools           map[string]tools.ToolServerConfig `mapstructure:"tools"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("airlock")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.airlock")

	v.SetDefault("sandbox.api_key", "${DAYTONA_API_KEY}")
	v.SetDefault("sandbox.base_url", workspace.DefaultBaseURL)
	v.SetDefault("sandbox.target", "us")
	v.SetDefault("sandbox.timeout", "180s")
	v.SetDefault("default_provider", "openai")
	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.context_max_tokens", 6000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.pool_size", 2)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".airlock", "airlock.db"))
	v.SetDefault("samples.dir", "samples")
	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: keys and endpoints come from env defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variable references in secrets
	cfg.Sandbox.APIKey = expandEnv(cfg.Sandbox.APIKey)
	for name, p := range cfg.Providers {
		p.APIKey = expandEnv(p.APIKey)
		cfg.Providers[name] = p
	}

	return &cfg, nil
}

// expandEnv resolves ${VAR} references so API keys never live in the file.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

// ValidateSandbox checks the workspace provider credentials before any
// external call is attempted, so a missing key aborts the run up front
// instead of failing mid-flight.
func (c *Config) ValidateSandbox() error {
	if c.Sandbox.APIKey == "" {
		return fmt.Errorf("sandbox API key is required: set sandbox.api_key in airlock.yaml or export DAYTONA_API_KEY")
	}
	return nil
}

// Workspace returns the provider client config.
func (c *Config) Workspace() workspace.Config {
	return workspace.Config{
		APIKey:  c.Sandbox.APIKey,
		BaseURL: c.Sandbox.BaseURL,
		Target:  c.Sandbox.Target,
		Timeout: c.Sandbox.Timeout,
	}
}

// Provider returns the config for a named LLM provider, falling back to the default.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	if name == "" {
		name = c.DefaultProvider
	}
	p, ok := c.Providers[name]
	if !ok {
		// Bare OpenAI works with just the env key, no config file needed.
		if name == "openai" {
			return ProviderConfig{
				BaseURL: "https://api.openai.com/v1/",
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Models:  map[string]string{"default": "gpt-4o"},
			}, nil
		}
		return ProviderConfig{}, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}
