package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/airlockhq/airlock/internal/runner"
	"github.com/airlockhq/airlock/internal/storage"
	"github.com/airlockhq/airlock/internal/workspace"
)

var runCmd = &cobra.Command{
	Use:   "run [sample]",
	Short: "Run a Python sample in a remote workspace",
	Long: `Upload a sample from the samples directory to a fresh workspace,
execute it there, and print its output unmodified. The command exits
with the same status the remote program did.

Examples:
  airlock run
  airlock run fib.py`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadSandboxConfig()
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
	var result *workspace.ExecResult
	var sandboxID string

	err = withSandbox(ctx, cfg, func(sb *workspace.Sandbox) error {
		sandboxID = sb.ID
		rn := &runner.Runner{
			OnStage: func(stage, detail string) {
				fmt.Printf("  %s %s\n", stage, detail)
			},
		}
		result, err = rn.Run(ctx, sb, runner.Artifact{Name: sample.Name, Source: sample.Source})
		return err
	})
	if err != nil {
		return err
	}

	printExecResult(result)

	status := storage.StatusCompleted
	if result.ExitCode != 0 {
		status = storage.StatusFailed
	}
	saveRun(ctx, cfg, &storage.Run{
		Kind:      storage.KindRun,
		Label:     sample.Name,
		SandboxID: sandboxID,
		Status:    status,
		ExitCode:  result.ExitCode,
		Source:    sample.Source,
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
	})

	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}
	return nil
}
