package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/airlockhq/airlock/internal/storage"
	"github.com/airlockhq/airlock/internal/summarizer"
	"github.com/airlockhq/airlock/internal/workspace"
)

var summarizeOutput string

var summarizeCmd = &cobra.Command{
	Use:   "summarize <repo>",
	Short: "Clone a GitHub repository in a workspace and summarize it with AI",
	Long: `Clone the repository inside a workspace, collect git statistics and key
files there, and ask the model for a structured technical summary.

The repo can be "owner/name", "github.com/owner/name", or a full URL.

Examples:
  airlock summarize golang/go
  airlock summarize https://github.com/spf13/cobra -o cobra.md`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeOutput, "output", "o", "", "Write the summary to a file")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := loadSandboxConfig()
	if err != nil {
		return err
	}
	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sum := summarizer.New(client)
	sum.OnStage = func(stage, detail string) {
		fmt.Printf("  %s %s\n", stage, detail)
	}

	var summary *summarizer.Summary
	var sandboxID string
	err = withSandbox(ctx, cfg, func(sb *workspace.Sandbox) error {
		sandboxID = sb.ID
		summary, err = sum.Summarize(ctx, sb, args[0])
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", summary.Text)

	if summarizeOutput != "" {
		if err := os.WriteFile(summarizeOutput, []byte(summary.Text+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", summarizeOutput, err)
		}
		fmt.Printf("\nWrote %s\n", summarizeOutput)
	}

	saveRun(ctx, cfg, &storage.Run{
		Kind:      storage.KindSummarize,
		Label:     summary.Stats.URL,
		SandboxID: sandboxID,
		Status:    storage.StatusCompleted,
		Output:    summary.Text,
	})
	return nil
}
