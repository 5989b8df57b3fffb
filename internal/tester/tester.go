package tester

import (
	"context"
	"fmt"
	"strings"

	"github.com/airlockhq/airlock/internal/commenter"
	"github.com/airlockhq/airlock/internal/llm"
	"github.com/airlockhq/airlock/internal/runner"
	"github.com/airlockhq/airlock/internal/workspace"
)

const generateSystemPrompt = `You are a Python test generation assistant. Given Python source, write plain test functions (named test_*) for each top-level function. Use only assert statements and the standard library, no pytest imports. Cover a basic case, a type/edge case, and an error case per function where sensible. Return ONLY the test code.`

// The harness discovers test_* functions in the combined module and runs
// each one, printing a marker line per test. Markers are parsed back out
// of stdout; everything else the code prints is left untouched.
const harness = `

if __name__ == "__main__":
    import traceback as _tb
    _names = sorted(n for n in dir() if n.startswith("test_") and callable(globals()[n]))
    _failed = 0
    for _n in _names:
        try:
            globals()[_n]()
            print("AIRLOCK_PASS " + _n)
        except Exception as _e:
            _failed += 1
            print("AIRLOCK_FAIL " + _n + ": " + repr(_e))
            _tb.print_exc()
    print("AIRLOCK_DONE %d/%d" % (len(_names) - _failed, len(_names)))
    raise SystemExit(1 if _failed else 0)
`

// TestResult is the outcome of one generated test function.
type TestResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Report is the full outcome of a generated-test run. Raw output is kept
// verbatim alongside the parsed per-test results.
type Report struct {
	Tests   string                `json:"tests"` // generated test source
	Results []TestResult          `json:"results"`
	Exec    *workspace.ExecResult `json:"exec"`
}

// Passed reports how many tests passed.
func (r *Report) Passed() int {
	n := 0
	for _, t := range r.Results {
		if t.Passed {
			n++
		}
	}
	return n
}

// Tester generates tests for Python code and runs them in a workspace.
type Tester struct {
	llm    llm.Client
	runner *runner.Runner
}

func New(client llm.Client, run *runner.Runner) *Tester {
	if run == nil {
		run = &runner.Runner{}
	}
	return &Tester{llm: client, runner: run}
}

// GenerateTests asks the model for test functions covering the source.
func (t *Tester) GenerateTests(ctx context.Context, source string) (string, error) {
	out, err := llm.Complete(ctx, t.llm, generateSystemPrompt,
		"Write tests for this Python code:\n\n"+source)
	if err != nil {
		return "", fmt.Errorf("generating tests: %w", err)
	}
	tests := commenter.StripCodeFence(out)
	if tests == "" {
		return "", fmt.Errorf("generating tests: model returned no test code")
	}
	return tests, nil
}

// Run combines source and tests into one module, executes it remotely,
// and parses per-test outcomes from the marker lines.
func (t *Tester) Run(ctx context.Context, sess runner.Session, source, tests string) (*Report, error) {
	combined := source + "\n\n" + tests + harness

	result, err := t.runner.Run(ctx, sess, runner.Artifact{
		Name:   "test_module.py",
		Source: combined,
	})
	if err != nil {
		return nil, err
	}

	return &Report{
		Tests:   tests,
		Results: parseResults(result.Stdout),
		Exec:    result,
	}, nil
}

// GenerateAndRun is the full pipeline: generate tests, run them, report.
func (t *Tester) GenerateAndRun(ctx context.Context, sess runner.Session, source string) (*Report, error) {
	tests, err := t.GenerateTests(ctx, source)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx, sess, source, tests)
}

func parseResults(stdout string) []TestResult {
	var results []TestResult
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "AIRLOCK_PASS "):
			results = append(results, TestResult{
				Name:   strings.TrimPrefix(line, "AIRLOCK_PASS "),
				Passed: true,
			})
		case strings.HasPrefix(line, "AIRLOCK_FAIL "):
			rest := strings.TrimPrefix(line, "AIRLOCK_FAIL ")
			name, detail, _ := strings.Cut(rest, ": ")
			results = append(results, TestResult{
				Name:   name,
				Detail: detail,
			})
		}
	}
	return results
}
