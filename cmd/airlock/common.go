package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/airlockhq/airlock/internal/config"
	"github.com/airlockhq/airlock/internal/llm"
	"github.com/airlockhq/airlock/internal/samples"
	"github.com/airlockhq/airlock/internal/storage"
	"github.com/airlockhq/airlock/internal/storage/sqlite"
	"github.com/airlockhq/airlock/internal/workspace"
)

// loadSandboxConfig loads config and fails fast when the workspace
// provider key is missing, before any external call happens.
func loadSandboxConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateSandbox(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLLMClient builds an OpenAI-compatible client honoring the global
// provider/model flags.
func newLLMClient(cfg *config.Config) (llm.Client, error) {
	providerName := providerFlag
	if providerName == "" {
		providerName = cfg.DefaultProvider
	}
	provider, err := cfg.Provider(providerName)
	if err != nil {
		return nil, err
	}
	if provider.APIKey == "" {
		return nil, fmt.Errorf("no API key for provider %s: set providers.%s.api_key or the provider env var", providerName, providerName)
	}

	model := modelFlag
	if model == "" {
		model = provider.Models["default"]
	}
	return llm.NewClient(provider.BaseURL, provider.APIKey, model), nil
}

// withSandbox creates a workspace, runs fn, and always removes the
// workspace afterwards.
func withSandbox(ctx context.Context, cfg *config.Config, fn func(sb *workspace.Sandbox) error) error {
	client, err := workspace.NewClient(cfg.Workspace())
	if err != nil {
		return err
	}

	sb, err := client.Create(ctx, workspace.CreateParams{
		Language: "python",
		Target:   cfg.Sandbox.Target,
	})
	if err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	fmt.Printf("Workspace: %s\n", sb.ID)

	defer func() {
		if err := client.Remove(context.Background(), sb); err != nil {
			fmt.Printf("Warning: failed to remove workspace %s: %v\n", sb.ID, err)
		} else {
			fmt.Printf("Workspace removed: %s\n", sb.ID)
		}
	}()

	return fn(sb)
}

// resolveSample returns the named sample. With no name it offers a
// menu when several samples exist.
func resolveSample(cfg *config.Config, name string) (samples.Sample, error) {
	list, err := samples.Load(cfg.Samples.Dir)
	if err != nil {
		return samples.Sample{}, err
	}
	if name != "" {
		return samples.Find(list, name)
	}
	if len(list) == 1 {
		return list[0], nil
	}
	return chooseSample(list)
}

func chooseSample(list []samples.Sample) (samples.Sample, error) {
	fmt.Println("Samples:")
	for i, s := range list {
		fmt.Printf("  %d. %s\n", i+1, s.Name)
	}
	fmt.Printf("Select [1-%d] (default 1): ", len(list))

	var input string
	fmt.Scanln(&input)
	if input == "" {
		return list[0], nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(list) {
		return samples.Sample{}, fmt.Errorf("invalid selection: %s", input)
	}
	return list[n-1], nil
}

// saveRun records a pipeline outcome; persistence failures warn rather
// than fail the command.
func saveRun(ctx context.Context, cfg *config.Config, r *storage.Run) string {
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		fmt.Printf("Warning: could not open run store: %v\n", err)
		return ""
	}
	defer store.Close()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if err := store.CreateRun(ctx, r); err != nil {
		fmt.Printf("Warning: could not save run: %v\n", err)
		return ""
	}
	return r.ID
}

// printExecResult writes remote stdout/stderr through without any
// reformatting.
func printExecResult(result *workspace.ExecResult) {
	if result.Stdout != "" {
		fmt.Print(result.Stdout)
		if !strings.HasSuffix(result.Stdout, "\n") {
			fmt.Println()
		}
	}
	if result.Stderr != "" {
		fmt.Print(result.Stderr)
		if !strings.HasSuffix(result.Stderr, "\n") {
			fmt.Println()
		}
	}
}
