package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/airlockhq/airlock/internal/commenter"
	"github.com/airlockhq/airlock/internal/runner"
	"github.com/airlockhq/airlock/internal/storage"
	"github.com/airlockhq/airlock/internal/workspace"
)

var commentOutput string

var commentCmd = &cobra.Command{
	Use:   "comment [sample]",
	Short: "Analyze and document a Python sample with AI",
	Long: `Ask the model to analyze a sample and produce a commented rendition,
then verify the commented code still runs in a workspace before writing
it out. Behavior must be unchanged, only documentation is added.

Examples:
  airlock comment
  airlock comment fib.py -o fib_commented.py`,
	Args: cobra.MaximumNArgs(1),
	RunE: runComment,
}

func init() {
	commentCmd.Flags().StringVarP(&commentOutput, "output", "o", "", "Output file (default: <sample>_commented.py)")
	rootCmd.AddCommand(commentCmd)
}

func runComment(cmd *cobra.Command, args []string) error {
	cfg, err := loadSandboxConfig()
	if err != nil {
		return err
	}
	client, err := newLLMClient(cfg)
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
	fmt.Println("Analyzing and commenting...")
	result, err := commenter.New(client).Comment(ctx, sample.Source)
	if err != nil {
		return err
	}

	fmt.Printf("\nAnalysis:\n%s\n\n", result.Analysis)

	// The commented version must still run; a model that broke the code
	// fails here instead of shipping a bad file.
	var exec *workspace.ExecResult
	var sandboxID string
	err = withSandbox(ctx, cfg, func(sb *workspace.Sandbox) error {
		sandboxID = sb.ID
		exec, err = (&runner.Runner{}).Run(ctx, sb, runner.Artifact{
			Name:   "commented.py",
			Source: result.Commented,
		})
		return err
	})
	if err != nil {
		return err
	}
	if exec.ExitCode != 0 {
		printExecResult(exec)
		return fmt.Errorf("commented code failed with exit %d, not writing output", exec.ExitCode)
	}

	out := commentOutput
	if out == "" {
		base := strings.TrimSuffix(sample.Name, filepath.Ext(sample.Name))
		out = base + "_commented.py"
	}
	if err := os.WriteFile(out, []byte(result.Commented+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Printf("Wrote %s\n", out)

	saveRun(ctx, cfg, &storage.Run{
		Kind:      storage.KindComment,
		Label:     sample.Name,
		SandboxID: sandboxID,
		Status:    storage.StatusCompleted,
		Source:    sample.Source,
		Stdout:    exec.Stdout,
		Stderr:    exec.Stderr,
		Output:    result.Commented,
	})
	return nil
}
