package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/airlockhq/airlock/internal/evaluator"
	"github.com/airlockhq/airlock/internal/storage"
	"github.com/airlockhq/airlock/internal/workspace"
)

var (
	variantsFlag   int
	evaluateOutput string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [sample]",
	Short: "Generate optimized variants and race them in parallel workspaces",
	Long: `Generate N optimized variations of a sample function, capture reference
outputs from the original in a validator workspace, then evaluate every
version in its own workspace in parallel. The best version (correct
first, fastest second) is written out.

Examples:
  airlock evaluate
  airlock evaluate fib.py -n 5 -o fib_best.py`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().IntVarP(&variantsFlag, "variants", "n", 3, "Number of variations to generate")
	evaluateCmd.Flags().StringVarP(&evaluateOutput, "output", "o", "", "Write the best version to a file")
	rootCmd.AddCommand(evaluateCmd)
}

// sandboxLauncher provisions one workspace per variant.
type sandboxLauncher struct {
	client *workspace.Client
	target string
}

func (l *sandboxLauncher) Launch(ctx context.Context, name string) (evaluator.Session, func(), error) {
	sb, err := l.client.Create(ctx, workspace.CreateParams{
		Name:     name,
		Language: "python",
		Target:   l.target,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = l.client.Remove(context.Background(), sb)
	}
	return sb, cleanup, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadSandboxConfig()
	if err != nil {
		return err
	}
	llmClient, err := newLLMClient(cfg)
	if err != nil {
		return err
	}
	wsClient, err := workspace.NewClient(cfg.Workspace())
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	sample, err := resolveSample(cfg, name)
	if err != nil {
		return err
	}
	fmt.Printf("Sample: %s\n", sample.Name)

	ctx := cmd.Context()
	ev := evaluator.New(llmClient, &sandboxLauncher{client: wsClient, target: cfg.Sandbox.Target})
	ev.OnEvent = func(msg string) { fmt.Printf("  %s\n", msg) }

	fmt.Printf("Generating %d variations...\n", variantsFlag)
	variations, err := ev.GenerateVariations(ctx, sample.Source, variantsFlag)
	if err != nil {
		return err
	}
	fmt.Printf("Got %d variations, evaluating...\n", len(variations))

	base := strings.TrimSuffix(sample.Name, filepath.Ext(sample.Name))
	for i, v := range variations {
		path := fmt.Sprintf("%s_variant_%d.py", base, i+1)
		if err := os.WriteFile(path, []byte(v+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	outcome, err := ev.Evaluate(ctx, sample.Source, variations)
	if err != nil {
		return err
	}

	printOutcome(outcome)

	best := outcome.Best()
	if best == nil {
		return fmt.Errorf("no evaluable versions")
	}
	fmt.Printf("\nBest: %s (%d/%d passed, %.4fs)\n", best.Name, best.Successes, len(outcome.Cases), best.TotalTime)

	out := evaluateOutput
	if out == "" {
		out = base + "_best.py"
	}
	if err := os.WriteFile(out, []byte(best.Code+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Printf("Wrote %s\n", out)

	outcomeJSON, _ := json.Marshal(outcome)
	saveRun(ctx, cfg, &storage.Run{
		Kind:   storage.KindEvaluate,
		Label:  sample.Name,
		Status: storage.StatusCompleted,
		Source: sample.Source,
		Output: string(outcomeJSON),
	})
	return nil
}

func printOutcome(o *evaluator.Outcome) {
	total := len(o.Cases)
	fmt.Printf("\n%-12s %-10s %-12s %s\n", "VERSION", "PASSED", "TIME", "NOTE")
	fmt.Println(strings.Repeat("─", 50))
	for _, r := range o.Results {
		note := ""
		if r.Err != "" {
			note = r.Err
		}
		fmt.Printf("%-12s %-10s %-12s %s\n",
			r.Name,
			fmt.Sprintf("%d/%d", r.Successes, total),
			fmt.Sprintf("%.4fs", r.TotalTime),
			note)
	}
}
