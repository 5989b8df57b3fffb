package evaluator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/airlockhq/airlock/internal/llm"
	"github.com/airlockhq/airlock/internal/workspace"
)

type scriptedLLM struct {
	reply string
}

func (s *scriptedLLM) ChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (*llm.Response, error) {
	return &llm.Response{Message: llm.AssistantMessage(s.reply)}, nil
}

func (s *scriptedLLM) ChatCompletionStream(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, handler llm.StreamHandler) (*llm.Response, error) {
	return s.ChatCompletion(ctx, messages, tools)
}

// fakeWorkspaceSession answers probe and replay runs with canned marker
// output.
type fakeWorkspaceSession struct {
	probeOut  string
	replayOut string
}

func (f *fakeWorkspaceSession) UploadFile(ctx context.Context, path string, content []byte) error {
	return nil
}

func (f *fakeWorkspaceSession) Exec(ctx context.Context, command string) (*workspace.ExecResult, error) {
	switch {
	case strings.HasPrefix(command, "ls -la"):
		return &workspace.ExecResult{}, nil
	case strings.HasPrefix(command, "command -v"):
		return &workspace.ExecResult{Stdout: "/usr/bin/python3\n"}, nil
	case strings.Contains(command, "probe.py"):
		return &workspace.ExecResult{Stdout: f.probeOut}, nil
	case strings.Contains(command, "replay.py"):
		return &workspace.ExecResult{Stdout: f.replayOut}, nil
	}
	return &workspace.ExecResult{}, nil
}

// fakeLauncher hands out sessions keyed by variant name.
type fakeLauncher struct {
	sessions map[string]*fakeWorkspaceSession
	failures map[string]error
	launched []string
	cleaned  int
}

func (l *fakeLauncher) Launch(ctx context.Context, name string) (Session, func(), error) {
	l.launched = append(l.launched, name)
	if err, ok := l.failures[name]; ok {
		return nil, nil, err
	}
	sess, ok := l.sessions[name]
	if !ok {
		sess = &fakeWorkspaceSession{}
	}
	return sess, func() { l.cleaned++ }, nil
}

const probeOutput = `AIRLOCK_CASE {"input": "(2,)", "expected": "4", "failed": false}
AIRLOCK_CASE {"input": "(3,)", "expected": "9", "failed": false}
`

func replayOutput(passes int) string {
	var b strings.Builder
	for i := 0; i < 2; i++ {
		passed := i < passes
		fmt.Fprintf(&b, "AIRLOCK_EVAL {\"input\": \"(%d,)\", \"got\": \"x\", \"passed\": %t, \"seconds\": 0.001}\n", i+2, passed)
	}
	return b.String()
}

func TestParseVariations(t *testing.T) {
	response := "```python\ndef func(x):\n    return x * x\n```\n---\ndef func(x):\n    return x ** 2\n---\n\n"
	got := ParseVariations(response)
	if len(got) != 2 {
		t.Fatalf("variations = %d, want 2", len(got))
	}
	if !strings.HasPrefix(got[0], "def func") || !strings.HasPrefix(got[1], "def func") {
		t.Errorf("variations = %q", got)
	}
}

func TestGenerateVariationsEmpty(t *testing.T) {
	ev := New(&scriptedLLM{reply: "---\n---"}, &fakeLauncher{})
	if _, err := ev.GenerateVariations(context.Background(), "def f(): pass", 3); err == nil {
		t.Fatal("empty model output should be an error")
	}
}

func TestEvaluateOneResultPerVersion(t *testing.T) {
	launcher := &fakeLauncher{
		sessions: map[string]*fakeWorkspaceSession{
			"validator": {probeOut: probeOutput},
			"original":  {probeOut: probeOutput, replayOut: replayOutput(2)},
			"variant-1": {replayOut: replayOutput(2)},
			"variant-2": {replayOut: replayOutput(1)},
		},
	}
	ev := New(&scriptedLLM{}, launcher)

	outcome, err := ev.Evaluate(context.Background(), "def f(x): return x * x",
		[]string{"variant one code", "variant two code"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(outcome.Cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(outcome.Cases))
	}
	// Exactly one result per version, original first, input order kept
	if len(outcome.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(outcome.Results))
	}
	wantNames := []string{"original", "variant-1", "variant-2"}
	for i, want := range wantNames {
		if outcome.Results[i].Name != want {
			t.Errorf("results[%d].Name = %q, want %q", i, outcome.Results[i].Name, want)
		}
	}
	if outcome.Results[2].Successes != 1 {
		t.Errorf("variant-2 successes = %d, want 1", outcome.Results[2].Successes)
	}
	// Every launched workspace is cleaned up
	if launcher.cleaned != len(launcher.launched) {
		t.Errorf("cleaned %d of %d launches", launcher.cleaned, len(launcher.launched))
	}
}

func TestEvaluatePartialFailure(t *testing.T) {
	launcher := &fakeLauncher{
		sessions: map[string]*fakeWorkspaceSession{
			"validator": {probeOut: probeOutput},
			"original":  {replayOut: replayOutput(2)},
			"variant-2": {replayOut: replayOutput(2)},
		},
		failures: map[string]error{
			"variant-1": fmt.Errorf("provider returned 503"),
		},
	}
	ev := New(&scriptedLLM{}, launcher)

	outcome, err := ev.Evaluate(context.Background(), "original code", []string{"v1", "v2"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(outcome.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(outcome.Results))
	}
	// The failed variant keeps its slot with the failure attributed to it
	failed := outcome.Results[1]
	if failed.Name != "variant-1" || failed.Err == "" {
		t.Errorf("failed slot = %+v", failed)
	}
	// The other variants still report normally
	if outcome.Results[0].Successes != 2 || outcome.Results[2].Successes != 2 {
		t.Errorf("healthy results affected: %+v", outcome.Results)
	}
}

func TestBest(t *testing.T) {
	o := &Outcome{
		Cases: []Case{{}, {}},
		Results: []VariantResult{
			{Name: "original", Successes: 2, TotalTime: 0.5},
			{Name: "variant-1", Successes: 2, TotalTime: 0.1},
			{Name: "variant-2", Successes: 1, TotalTime: 0.01},
		},
	}
	if best := o.Best(); best.Name != "variant-1" {
		t.Errorf("Best() = %s, want variant-1 (correct and fastest)", best.Name)
	}
}

func TestBestPrefersCorrectOverFast(t *testing.T) {
	o := &Outcome{
		Cases: []Case{{}, {}},
		Results: []VariantResult{
			{Name: "original", Successes: 2, TotalTime: 1.0},
			{Name: "variant-1", Successes: 1, TotalTime: 0.001},
		},
	}
	if best := o.Best(); best.Name != "original" {
		t.Errorf("Best() = %s, want original", best.Name)
	}
}

func TestBestSkipsErroredFullScores(t *testing.T) {
	o := &Outcome{
		Cases: []Case{{}},
		Results: []VariantResult{
			{Name: "original", Successes: 1, TotalTime: 0.5},
			{Name: "variant-1", Successes: 1, TotalTime: 0.1, Err: "workspace lost"},
		},
	}
	if best := o.Best(); best.Name != "original" {
		t.Errorf("Best() = %s, want original (variant-1 errored)", best.Name)
	}
}

func TestParseCasesIgnoresNoise(t *testing.T) {
	stdout := "warming up\n" + probeOutput + "AIRLOCK_CASE not-json\ndone\n"
	cases := parseCases(stdout)
	if len(cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(cases))
	}
	if cases[0].Input != "(2,)" || cases[0].Expected != "4" {
		t.Errorf("cases[0] = %+v", cases[0])
	}
}
