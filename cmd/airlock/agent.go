package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/airlockhq/airlock/internal/agent"
	"github.com/airlockhq/airlock/internal/config"
	"github.com/airlockhq/airlock/internal/runner"
	"github.com/airlockhq/airlock/internal/tools"
	"github.com/airlockhq/airlock/internal/workspace"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Start an interactive agent session",
	Long: `Start an interactive conversation with an Airlock agent. The agent can
run Python for you, always inside a remote workspace.

Examples:
  airlock agent
  airlock agent --provider openai --model gpt-4o`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

// workspaceExecutor lazily provisions one workspace for the whole agent
// session and runs python_run calls in it.
type workspaceExecutor struct {
	cfg *config.Config

	mu     sync.Mutex
	client *workspace.Client
	sb     *workspace.Sandbox
	runs   int
}

func (e *workspaceExecutor) session(ctx context.Context) (*workspace.Sandbox, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sb != nil {
		return e.sb, nil
	}

	client, err := workspace.NewClient(e.cfg.Workspace())
	if err != nil {
		return nil, err
	}
	sb, err := client.Create(ctx, workspace.CreateParams{
		Language: "python",
		Target:   e.cfg.Sandbox.Target,
	})
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	e.client = client
	e.sb = sb
	return sb, nil
}

func (e *workspaceExecutor) RunPython(ctx context.Context, code string) (string, error) {
	sb, err := e.session(ctx)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.runs++
	name := fmt.Sprintf("agent_%d.py", e.runs)
	e.mu.Unlock()

	result, err := (&runner.Runner{}).Run(ctx, sb, runner.Artifact{Name: name, Source: code})
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString(result.Stdout)
	if result.Stderr != "" {
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString("STDERR:\n" + result.Stderr)
	}
	if result.ExitCode != 0 {
		fmt.Fprintf(&out, "\nexit code: %d", result.ExitCode)
	}
	return out.String(), nil
}

func (e *workspaceExecutor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sb != nil {
		_ = e.client.Remove(context.Background(), e.sb)
		e.sb = nil
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadSandboxConfig()
	if err != nil {
		return err
	}

	// Load agent profile if specified
	var profile *agent.Profile
	if profileFlag != "" {
		profilePath := filepath.Join(cfg.Agent.ProfilesDir, profileFlag+".yaml")
		profile, err = agent.LoadProfile(profilePath)
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}
	}

	providerName := providerFlag
	if providerName == "" {
		if profile != nil && profile.Provider != "" {
			providerName = profile.Provider
		} else {
			providerName = cfg.DefaultProvider
		}
	}

	if profile != nil && modelFlag == "" && profile.Model != "" {
		modelFlag = profile.Model
	}
	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	maxIter := cfg.Agent.MaxIterations
	if profile != nil && profile.MaxIter > 0 {
		maxIter = profile.MaxIter
	}

	fmt.Printf("Airlock - Interactive Agent\n")
	if profile != nil {
		fmt.Printf("Profile: %s\n", profile.Name)
	}
	fmt.Printf("Provider: %s\n", providerName)

	// Create tool registry from config
	registry := tools.NewRegistry()
	defer registry.Close()

	for name, toolCfg := range cfg.Tools {
		if err := registry.Register(name, toolCfg); err != nil {
			fmt.Printf("Warning: failed to start tool server %s: %v\n", name, err)
		}
	}

	executor := &workspaceExecutor{cfg: cfg}
	defer executor.Close()

	a := agent.New(client, registry, maxIter)
	a.SetExecutor(executor)
	a.SetMaxTokens(cfg.Agent.ContextMaxTokens)

	if registry.HasTools() {
		fmt.Printf("Tools: MCP servers loaded\n")
	} else {
		fmt.Printf("Tools: builtin python_run (remote workspace)\n")
	}

	// Apply profile overrides
	if profile != nil {
		a.SetSystemPrompt(profile.SystemPrompt)
		a.FilterTools(profile.Tools)
	}

	fmt.Printf("Type /help for commands, /quit to exit\n\n")

	// Wire up callbacks for display
	a.OnTextDelta = func(delta string) {
		fmt.Print(delta)
	}
	a.OnToolCall = func(name string, args map[string]any) {
		fmt.Printf("\n  \033[33m⚡ Tool: %s\033[0m\n", agent.FormatToolCall(name, args))
	}
	a.OnToolResult = func(name string, result string) {
		// Show first few lines of result
		lines := strings.Split(strings.TrimSpace(result), "\n")
		preview := lines
		if len(preview) > 8 {
			preview = preview[:8]
		}
		for _, line := range preview {
			fmt.Printf("  \033[90m│ %s\033[0m\n", line)
		}
		if len(lines) > 8 {
			fmt.Printf("  \033[90m│ ... (%d more lines)\033[0m\n", len(lines)-8)
		}
		fmt.Println()
	}

	// Set up readline for input with history
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36myou>\033[0m ",
		HistoryFile:     "/tmp/airlock_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Per-request cancellation: Ctrl+C cancels the active LLM request,
	// not the whole app. A second Ctrl+C while idle exits.
	var reqCancel context.CancelFunc
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if reqCancel != nil {
				reqCancel()
			}
		}
	}()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Handle slash commands. Quit returns through the defers so the
		// session workspace is removed.
		if strings.HasPrefix(input, "/") {
			switch strings.ToLower(strings.Fields(input)[0]) {
			case "/quit", "/exit", "/q":
				fmt.Println("Goodbye!")
				return nil
			}
			if handleCommand(input, a) {
				continue
			}
		}

		// Create a per-request context so Ctrl+C only cancels this request
		reqCtx, cancel := context.WithCancel(context.Background())
		reqCancel = cancel

		// Run the agent with streaming output
		fmt.Printf("\n\033[32mairlock>\033[0m ")
		_, err = a.RunStreaming(reqCtx, input)
		wasInterrupted := reqCtx.Err() != nil
		cancel()
		reqCancel = nil

		if err != nil {
			if wasInterrupted {
				fmt.Println("\n(interrupted)")
				continue
			}
			fmt.Printf("\n\033[31merror: %s\033[0m\n\n", err)
			continue
		}

		fmt.Printf("\n\n")
	}
}

func handleCommand(input string, a *agent.Agent) bool {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/reset":
		a.Reset()
		fmt.Println("Conversation reset.")
		fmt.Println()
	case "/history":
		fmt.Println(a.HistoryJSON())
		fmt.Println()
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help     - Show this help")
		fmt.Println("  /reset    - Clear conversation history")
		fmt.Println("  /history  - Show raw conversation history (JSON)")
		fmt.Println("  /quit     - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", input)
	}
	return true
}
