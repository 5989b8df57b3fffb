package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/airlockhq/airlock/internal/commenter"
	"github.com/airlockhq/airlock/internal/llm"
	"github.com/airlockhq/airlock/internal/runner"
)

const variationsSystemPrompt = `You are a Python optimization expert. Generate complete, working function variations that maintain the exact same interface and behavior as the original. Return only the function definition and its docstring, nothing else - no explanations, no examples, no extra code.`

// Session is the per-workspace execution surface the evaluator needs.
type Session = runner.Session

// Launcher provisions one workspace per variant. The returned cleanup
// tears the workspace down (or returns it to a pool).
type Launcher interface {
	Launch(ctx context.Context, name string) (Session, func(), error)
}

// Case is one reference input/output pair captured from the original
// function. Values are Python reprs; comparison happens inside the
// replay harness, not here.
type Case struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Failed   bool   `json:"failed"` // original raised on this input
}

// CaseResult is one replayed case against a variant.
type CaseResult struct {
	Input   string  `json:"input"`
	Got     string  `json:"got"`
	Passed  bool    `json:"passed"`
	Seconds float64 `json:"seconds"`
}

// VariantResult is the scored outcome for one function version.
type VariantResult struct {
	Name      string       `json:"name"`
	Code      string       `json:"code"`
	Successes int          `json:"successes"`
	TotalTime float64      `json:"total_time"`
	Cases     []CaseResult `json:"cases"`
	Err       string       `json:"error,omitempty"` // infrastructure failure, not a test failure
}

// Outcome is the full evaluation: one result per version, original first.
type Outcome struct {
	Cases   []Case          `json:"cases"`
	Results []VariantResult `json:"results"`
}

// Evaluator generates optimized variations of a function and races them
// against the original in separate workspaces.
type Evaluator struct {
	llm      llm.Client
	launcher Launcher
	runner   *runner.Runner

	// OnEvent, if set, receives progress lines for display.
	OnEvent func(msg string)
}

func New(client llm.Client, launcher Launcher) *Evaluator {
	return &Evaluator{
		llm:      client,
		launcher: launcher,
		runner:   &runner.Runner{},
	}
}

func (e *Evaluator) event(format string, args ...any) {
	if e.OnEvent != nil {
		e.OnEvent(fmt.Sprintf(format, args...))
	}
}

// GenerateVariations asks the model for n optimized rewrites of the
// function, split on "---" separator lines.
func (e *Evaluator) GenerateVariations(ctx context.Context, original string, n int) ([]string, error) {
	prompt := fmt.Sprintf(`Generate %d optimized variations of this Python function.

- ONLY include the function code, NO main block, NO print statements outside the function
- NO explanations or text outside the function code
- Have clear return values
- Be properly indented and use standard Python coding style

Return ONLY the function code with its docstring for each variation.
Separate each variation with a line of 3 hyphens: ---

Original function:
%s`, n, original)

	out, err := llm.Complete(ctx, e.llm, variationsSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating variations: %w", err)
	}

	variations := ParseVariations(out)
	if len(variations) == 0 {
		return nil, fmt.Errorf("generating variations: model returned no usable code")
	}
	return variations, nil
}

// ParseVariations splits a model response on "---" separators and strips
// markdown fences from each piece.
func ParseVariations(response string) []string {
	var out []string
	for _, chunk := range strings.Split(response, "---") {
		clean := commenter.StripCodeFence(chunk)
		if clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

// Reference runs the probe harness against the original function in a
// validator workspace and captures reference cases.
func (e *Evaluator) Reference(ctx context.Context, original string) ([]Case, error) {
	e.event("creating validator workspace")
	sess, cleanup, err := e.launcher.Launch(ctx, "validator")
	if err != nil {
		return nil, fmt.Errorf("launching validator workspace: %w", err)
	}
	defer cleanup()

	if _, err := e.runner.Upload(ctx, sess, runner.Artifact{Name: "function.py", Source: original}); err != nil {
		return nil, err
	}

	result, err := e.runner.Run(ctx, sess, runner.Artifact{Name: "probe.py", Source: probeHarness})
	if err != nil {
		return nil, err
	}

	cases := parseCases(result.Stdout)
	if len(cases) == 0 {
		return nil, fmt.Errorf("reference run produced no cases (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	e.event("captured %d reference cases", len(cases))
	return cases, nil
}

// Evaluate deploys the original plus each variation to its own workspace
// and replays the reference cases in parallel. Exactly one result per
// version comes back, in input order; a version whose workspace fails
// carries the failure in its Err field without affecting the others.
func (e *Evaluator) Evaluate(ctx context.Context, original string, variations []string) (*Outcome, error) {
	cases, err := e.Reference(ctx, original)
	if err != nil {
		return nil, err
	}

	casesJSON, err := json.Marshal(cases)
	if err != nil {
		return nil, fmt.Errorf("encoding cases: %w", err)
	}

	versions := append([]string{original}, variations...)
	results := make([]VariantResult, len(versions))

	g, gctx := errgroup.WithContext(ctx)
	for i, code := range versions {
		name := fmt.Sprintf("variant-%d", i)
		if i == 0 {
			name = "original"
		}
		results[i] = VariantResult{Name: name, Code: code}

		g.Go(func() error {
			res, err := e.evaluateOne(gctx, name, code, string(casesJSON))
			if err != nil {
				// Record per-slot; never fail the group so the other
				// variants still report.
				results[i].Err = err.Error()
				e.event("%s: %v", name, err)
				return nil
			}
			results[i].Successes = res.Successes
			results[i].TotalTime = res.TotalTime
			results[i].Cases = res.Cases
			e.event("%s: %d/%d passed in %.4fs", name, res.Successes, len(cases), res.TotalTime)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Outcome{Cases: cases, Results: results}, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, name, code, casesJSON string) (*VariantResult, error) {
	e.event("%s: creating workspace", name)
	sess, cleanup, err := e.launcher.Launch(ctx, name)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	run := &runner.Runner{}
	if _, err := run.Upload(ctx, sess, runner.Artifact{Name: "function.py", Source: code}); err != nil {
		return nil, err
	}
	if _, err := run.Upload(ctx, sess, runner.Artifact{Name: "cases.json", Source: casesJSON}); err != nil {
		return nil, err
	}

	result, err := run.Run(ctx, sess, runner.Artifact{Name: "replay.py", Source: replayHarness})
	if err != nil {
		return nil, err
	}

	vr := &VariantResult{Name: name, Code: code}
	for _, cr := range parseCaseResults(result.Stdout) {
		vr.Cases = append(vr.Cases, cr)
		if cr.Passed {
			vr.Successes++
			vr.TotalTime += cr.Seconds
		}
	}
	if len(vr.Cases) == 0 {
		return nil, fmt.Errorf("replay produced no results (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return vr, nil
}

// Best selects the winning version: among fully-correct versions the
// fastest wins; otherwise most passes, ties broken by speed.
func (o *Outcome) Best() *VariantResult {
	if len(o.Results) == 0 {
		return nil
	}
	total := len(o.Cases)

	sorted := make([]*VariantResult, len(o.Results))
	for i := range o.Results {
		sorted[i] = &o.Results[i]
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		ra, rb := sorted[a], sorted[b]
		if ra.Successes != rb.Successes {
			return ra.Successes > rb.Successes
		}
		return ra.TotalTime < rb.TotalTime
	})

	for _, r := range sorted {
		if r.Err == "" && r.Successes == total {
			return r
		}
	}
	return sorted[0]
}

func parseCases(stdout string) []Case {
	var cases []Case
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "AIRLOCK_CASE ") {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "AIRLOCK_CASE ")), &c); err == nil {
			cases = append(cases, c)
		}
	}
	return cases
}

func parseCaseResults(stdout string) []CaseResult {
	var out []CaseResult
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "AIRLOCK_EVAL ") {
			continue
		}
		var cr CaseResult
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "AIRLOCK_EVAL ")), &cr); err == nil {
			out = append(out, cr)
		}
	}
	return out
}
