package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/airlockhq/airlock/internal/storage"
	"github.com/airlockhq/airlock/internal/tester"
	"github.com/airlockhq/airlock/internal/workspace"
)

var genTestOutput string

var genTestCmd = &cobra.Command{
	Use:   "gen-test [sample]",
	Short: "Generate tests for a sample and run them remotely",
	Long: `Ask the model to write test functions for a sample, combine them with
the source, execute everything in a workspace, and report per-test
results.

Examples:
  airlock gen-test
  airlock gen-test fib.py -o fib_test.py`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenTest,
}

func init() {
	genTestCmd.Flags().StringVarP(&genTestOutput, "output", "o", "", "Write generated tests to a file")
	rootCmd.AddCommand(genTestCmd)
}

func runGenTest(cmd *cobra.Command, args []string) error {
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
	t := tester.New(client, nil)

	fmt.Println("Generating tests...")
	tests, err := t.GenerateTests(ctx, sample.Source)
	if err != nil {
		return err
	}

	var report *tester.Report
	var sandboxID string
	err = withSandbox(ctx, cfg, func(sb *workspace.Sandbox) error {
		sandboxID = sb.ID
		report, err = t.Run(ctx, sb, sample.Source, tests)
		return err
	})
	if err != nil {
		return err
	}

	for _, tr := range report.Results {
		if tr.Passed {
			fmt.Printf("  PASS %s\n", tr.Name)
		} else {
			fmt.Printf("  FAIL %s: %s\n", tr.Name, tr.Detail)
		}
	}
	fmt.Printf("\n%d/%d tests passed (exit %d)\n", report.Passed(), len(report.Results), report.Exec.ExitCode)

	if genTestOutput != "" {
		if err := os.WriteFile(genTestOutput, []byte(tests+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", genTestOutput, err)
		}
		fmt.Printf("Wrote %s\n", genTestOutput)
	}

	status := storage.StatusCompleted
	if report.Passed() < len(report.Results) {
		status = storage.StatusFailed
	}
	reportJSON, _ := json.Marshal(report.Results)
	saveRun(ctx, cfg, &storage.Run{
		Kind:      storage.KindTest,
		Label:     sample.Name,
		SandboxID: sandboxID,
		Status:    status,
		ExitCode:  report.Exec.ExitCode,
		Source:    sample.Source,
		Stdout:    report.Exec.Stdout,
		Stderr:    report.Exec.Stderr,
		Output:    string(reportJSON),
	})

	if status == storage.StatusFailed {
		os.Exit(1)
	}
	return nil
}
