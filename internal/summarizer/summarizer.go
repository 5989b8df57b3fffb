package summarizer

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/airlockhq/airlock/internal/llm"
	"github.com/airlockhq/airlock/internal/workspace"
)

const summarySystemPrompt = `You are a senior software engineer reviewing a repository. Given repository statistics and key file contents, produce a concise technical summary with these sections: Overview, Main Components, Technology Stack, Architecture Notes, Suggested Improvements. Base every statement on the provided material only.`

// Session is the workspace surface the summarizer needs.
type Session interface {
	Exec(ctx context.Context, command string) (*workspace.ExecResult, error)
	Clone(ctx context.Context, url, dir string) error
}

// Stats holds the raw repository facts collected inside the workspace.
type Stats struct {
	URL          string   `json:"url"`
	Branch       string   `json:"branch"`
	CommitCount  int      `json:"commit_count"`
	Contributors int      `json:"contributors"`
	RecentLog    string   `json:"recent_log"`
	FileCensus   string   `json:"file_census"` // extension -> count, one per line
	KeyFiles     []string `json:"key_files"`
}

// Summary pairs the collected stats with the model's write-up.
type Summary struct {
	Stats *Stats `json:"stats"`
	Text  string `json:"text"`
}

// Summarizer clones a repository into a workspace, gathers statistics
// with git and shell commands there, and asks the model for a summary.
type Summarizer struct {
	llm llm.Client

	// OnStage, if set, receives progress notes for display.
	OnStage func(stage, detail string)
}

func New(client llm.Client) *Summarizer {
	return &Summarizer{llm: client}
}

func (s *Summarizer) stage(name, detail string) {
	if s.OnStage != nil {
		s.OnStage(name, detail)
	}
}

// NormalizeURL accepts "owner/repo", a full https URL, or a URL missing
// its scheme, and returns a cloneable https URL.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(raw, ".git"))
	if raw == "" {
		return "", fmt.Errorf("empty repository URL")
	}
	switch {
	case strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://"):
		return raw, nil
	case strings.HasPrefix(raw, "github.com/"):
		return "https://" + raw, nil
	case strings.Count(raw, "/") == 1 && !strings.Contains(raw, ":"):
		return "https://github.com/" + raw, nil
	}
	return "", fmt.Errorf("unrecognized repository reference: %s", raw)
}

// Summarize runs the full pipeline against an already-created workspace.
func (s *Summarizer) Summarize(ctx context.Context, sess Session, repoURL string) (*Summary, error) {
	url, err := NormalizeURL(repoURL)
	if err != nil {
		return nil, err
	}

	dir := path.Join(workspace.HomeDir, "repo")
	s.stage("cloning", url)
	if err := sess.Clone(ctx, url, dir); err != nil {
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}

	stats, err := s.collect(ctx, sess, url, dir)
	if err != nil {
		return nil, err
	}

	keyFiles, err := s.readKeyFiles(ctx, sess, dir, stats.KeyFiles)
	if err != nil {
		return nil, err
	}

	s.stage("summarizing", fmt.Sprintf("%d commits, %d key files", stats.CommitCount, len(stats.KeyFiles)))
	text, err := llm.Complete(ctx, s.llm, summarySystemPrompt, buildPrompt(stats, keyFiles))
	if err != nil {
		return nil, fmt.Errorf("summarizing repository: %w", err)
	}

	return &Summary{Stats: stats, Text: strings.TrimSpace(text)}, nil
}

func (s *Summarizer) collect(ctx context.Context, sess Session, url, dir string) (*Stats, error) {
	s.stage("collecting", "repository statistics")
	stats := &Stats{URL: url}

	git := func(args string) (string, error) {
		res, err := sess.Exec(ctx, fmt.Sprintf("cd %s && git %s", dir, args))
		if err != nil {
			return "", err
		}
		if res.ExitCode != 0 {
			return "", fmt.Errorf("git %s: %s", args, strings.TrimSpace(res.Stderr))
		}
		return strings.TrimSpace(res.Stdout), nil
	}

	var err error
	if stats.Branch, err = git("rev-parse --abbrev-ref HEAD"); err != nil {
		return nil, err
	}
	if out, err := git("rev-list --count HEAD"); err == nil {
		stats.CommitCount, _ = strconv.Atoi(out)
	}
	if out, err := git("shortlog -sn HEAD | wc -l"); err == nil {
		stats.Contributors, _ = strconv.Atoi(strings.TrimSpace(out))
	}
	if stats.RecentLog, err = git(`log -10 --pretty=format:"%h %ad %s" --date=short`); err != nil {
		return nil, err
	}

	census, err := sess.Exec(ctx, fmt.Sprintf(
		`cd %s && git ls-files | awk -F. 'NF>1 {print $NF}' | sort | uniq -c | sort -rn | head -15`, dir))
	if err != nil {
		return nil, err
	}
	stats.FileCensus = strings.TrimSpace(census.Stdout)

	stats.KeyFiles = pickKeyFiles(ctx, sess, dir)
	return stats, nil
}

// pickKeyFiles probes for the files that usually explain a repository.
func pickKeyFiles(ctx context.Context, sess Session, dir string) []string {
	candidates := []string{
		"README.md", "README.rst", "readme.md",
		"go.mod", "package.json", "pyproject.toml", "setup.py",
		"requirements.txt", "Cargo.toml", "Makefile", "Dockerfile",
	}
	var found []string
	for _, name := range candidates {
		res, err := sess.Exec(ctx, fmt.Sprintf("test -f %s/%s", dir, name))
		if err == nil && res.ExitCode == 0 {
			found = append(found, name)
		}
		if len(found) >= 5 {
			break
		}
	}
	return found
}

func (s *Summarizer) readKeyFiles(ctx context.Context, sess Session, dir string, names []string) (map[string]string, error) {
	const maxBytes = 4000
	out := make(map[string]string, len(names))
	for _, name := range names {
		res, err := sess.Exec(ctx, fmt.Sprintf("head -c %d %s/%s", maxBytes, dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if res.ExitCode == 0 {
			out[name] = res.Stdout
		}
	}
	return out, nil
}

func buildPrompt(stats *Stats, keyFiles map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s (branch %s)\n", stats.URL, stats.Branch)
	fmt.Fprintf(&b, "Commits: %d  Contributors: %d\n\n", stats.CommitCount, stats.Contributors)
	fmt.Fprintf(&b, "Recent commits:\n%s\n\n", stats.RecentLog)
	fmt.Fprintf(&b, "File types (count, extension):\n%s\n", stats.FileCensus)
	for _, name := range stats.KeyFiles {
		if content, ok := keyFiles[name]; ok {
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", name, content)
		}
	}
	return b.String()
}
