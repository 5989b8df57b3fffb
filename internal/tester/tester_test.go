package tester

import (
	"context"
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

type fakeSession struct {
	uploaded map[string]string
	result   *workspace.ExecResult
}

func (f *fakeSession) UploadFile(ctx context.Context, path string, content []byte) error {
	if f.uploaded == nil {
		f.uploaded = map[string]string{}
	}
	f.uploaded[path] = string(content)
	return nil
}

func (f *fakeSession) Exec(ctx context.Context, command string) (*workspace.ExecResult, error) {
	if strings.HasPrefix(command, "ls -la") || strings.HasPrefix(command, "command -v") {
		return &workspace.ExecResult{Stdout: "/usr/bin/python3\n"}, nil
	}
	return f.result, nil
}

func TestGenerateTests(t *testing.T) {
	client := &scriptedLLM{reply: "```python\ndef test_func():\n    assert func(2) == 4\n```"}

	tests, err := New(client, nil).GenerateTests(context.Background(), "def func(x):\n    return x * x")
	if err != nil {
		t.Fatalf("GenerateTests: %v", err)
	}
	if tests != "def test_func():\n    assert func(2) == 4" {
		t.Errorf("tests = %q", tests)
	}
}

func TestGenerateTestsEmpty(t *testing.T) {
	client := &scriptedLLM{reply: "```\n```"}
	if _, err := New(client, nil).GenerateTests(context.Background(), "x = 1"); err == nil {
		t.Fatal("empty model output should be an error")
	}
}

func TestRunParsesMarkers(t *testing.T) {
	sess := &fakeSession{result: &workspace.ExecResult{
		Stdout: "some program output\n" +
			"AIRLOCK_PASS test_basic\n" +
			"AIRLOCK_FAIL test_edge: AssertionError('expected 4')\n" +
			"AIRLOCK_PASS test_error\n" +
			"AIRLOCK_DONE 2/3\n",
		ExitCode: 1,
	}}

	report, err := New(&scriptedLLM{}, nil).Run(context.Background(), sess,
		"def func(x): return x", "def test_basic(): assert True")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(report.Results))
	}
	if report.Passed() != 2 {
		t.Errorf("Passed() = %d, want 2", report.Passed())
	}
	if report.Results[1].Name != "test_edge" || report.Results[1].Passed {
		t.Errorf("results[1] = %+v", report.Results[1])
	}
	if !strings.Contains(report.Results[1].Detail, "AssertionError") {
		t.Errorf("failure detail = %q", report.Results[1].Detail)
	}
	if report.Exec.ExitCode != 1 {
		t.Errorf("exec exit = %d", report.Exec.ExitCode)
	}

	// Source, tests, and harness travel as one module
	combined := sess.uploaded["/home/daytona/test_module.py"]
	for _, want := range []string{"def func", "def test_basic", "__main__"} {
		if !strings.Contains(combined, want) {
			t.Errorf("combined module missing %q", want)
		}
	}
}

func TestParseResultsEmpty(t *testing.T) {
	if got := parseResults("no markers here\n"); got != nil {
		t.Errorf("parseResults = %v, want nil", got)
	}
}
