package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DAYTONA_API_KEY", "dtn_test_key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Sandbox.APIKey != "dtn_test_key" {
		t.Errorf("Sandbox.APIKey = %q (env expansion)", cfg.Sandbox.APIKey)
	}
	if cfg.Sandbox.Target != "us" {
		t.Errorf("Sandbox.Target = %q", cfg.Sandbox.Target)
	}
	if cfg.Sandbox.Timeout != 180*time.Second {
		t.Errorf("Sandbox.Timeout = %v", cfg.Sandbox.Timeout)
	}
	if cfg.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("Agent.MaxIterations = %d", cfg.Agent.MaxIterations)
	}
	if cfg.Server.Port != 8080 || cfg.Server.PoolSize != 2 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Storage.DBPath == "" {
		t.Error("Storage.DBPath should have a default")
	}
}

func TestValidateSandbox(t *testing.T) {
	t.Setenv("DAYTONA_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ValidateSandbox(); err == nil {
		t.Fatal("ValidateSandbox should fail without a key")
	}

	cfg.Sandbox.APIKey = "dtn_key"
	if err := cfg.ValidateSandbox(); err != nil {
		t.Errorf("ValidateSandbox with key: %v", err)
	}
}

func TestProviderFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := &Config{DefaultProvider: "openai"}

	p, err := cfg.Provider("")
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if p.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", p.APIKey)
	}
	if p.Models["default"] == "" {
		t.Error("builtin openai provider should have a default model")
	}

	if _, err := cfg.Provider("nonexistent"); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("AIRLOCK_TEST_SECRET", "s3cret")

	if got := expandEnv("${AIRLOCK_TEST_SECRET}"); got != "s3cret" {
		t.Errorf("expandEnv = %q", got)
	}
	if got := expandEnv("literal-value"); got != "literal-value" {
		t.Errorf("expandEnv(literal) = %q", got)
	}
	if got := expandEnv("${AIRLOCK_TEST_UNSET_VAR}"); got != "" {
		t.Errorf("expandEnv(unset) = %q", got)
	}
}
