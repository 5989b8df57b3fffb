package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportMarkdown renders a run as a markdown document.
func ExportMarkdown(r *Run) string {
	var b strings.Builder

	title := r.Label
	if title == "" {
		title = string(r.Kind)
	}
	b.WriteString(fmt.Sprintf("# %s\n\n", title))
	b.WriteString(fmt.Sprintf("- **Run:** %s\n", r.ID))
	b.WriteString(fmt.Sprintf("- **Kind:** %s\n", r.Kind))
	if r.SandboxID != "" {
		b.WriteString(fmt.Sprintf("- **Workspace:** %s\n", r.SandboxID))
	}
	b.WriteString(fmt.Sprintf("- **Created:** %s\n", r.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("- **Status:** %s\n", r.Status))
	b.WriteString(fmt.Sprintf("- **Exit code:** %d\n", r.ExitCode))
	b.WriteString("\n---\n\n")

	if r.Source != "" {
		b.WriteString(fmt.Sprintf("## Source\n\n```python\n%s\n```\n\n", strings.TrimRight(r.Source, "\n")))
	}
	if r.Stdout != "" {
		b.WriteString(fmt.Sprintf("## Stdout\n\n```\n%s\n```\n\n", strings.TrimRight(r.Stdout, "\n")))
	}
	if r.Stderr != "" {
		b.WriteString(fmt.Sprintf("## Stderr\n\n```\n%s\n```\n\n", strings.TrimRight(r.Stderr, "\n")))
	}
	if r.Output != "" {
		b.WriteString(fmt.Sprintf("## Result\n\n%s\n", r.Output))
	}

	return b.String()
}

// ExportJSON renders a run as formatted JSON.
func ExportJSON(r *Run) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
