package commenter

import (
	"context"
	"testing"

	"github.com/airlockhq/airlock/internal/llm"
)

// scriptedLLM returns canned responses in order.
type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) ChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (*llm.Response, error) {
	reply := s.replies[s.calls]
	s.calls++
	return &llm.Response{Message: llm.AssistantMessage(reply)}, nil
}

func (s *scriptedLLM) ChatCompletionStream(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, handler llm.StreamHandler) (*llm.Response, error) {
	return s.ChatCompletion(ctx, messages, tools)
}

func TestComment(t *testing.T) {
	client := &scriptedLLM{replies: []string{
		"  The function squares a number.  ",
		"```python\ndef func(x):\n    \"\"\"Square x.\"\"\"\n    return x * x\n```",
	}}

	result, err := New(client).Comment(context.Background(), "def func(x):\n    return x * x")
	if err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if result.Analysis != "The function squares a number." {
		t.Errorf("Analysis = %q", result.Analysis)
	}
	if result.Commented != "def func(x):\n    \"\"\"Square x.\"\"\"\n    return x * x" {
		t.Errorf("Commented = %q", result.Commented)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "def f(): pass", "def f(): pass"},
		{"plain fence", "```\ndef f(): pass\n```", "def f(): pass"},
		{"language fence", "```python\ndef f(): pass\n```", "def f(): pass"},
		{"surrounding whitespace", "  \n```python\nx = 1\n```\n  ", "x = 1"},
		{"empty", "", ""},
		{"fence only", "```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
