package commenter

import (
	"context"
	"fmt"
	"strings"

	"github.com/airlockhq/airlock/internal/llm"
)

const analyzeSystemPrompt = `You are a code analysis assistant. Given Python source, describe each function and class, its inputs and outputs, and summarize the overall behavior. Be factual and specific to the code shown.`

const commentSystemPrompt = `You are a code documentation assistant. Given Python source, return the same code with clear docstrings and inline comments added. Do not change any behavior. Return ONLY the commented code, no explanations.`

// Result holds the model's output for one source file.
type Result struct {
	Analysis  string // prose description of the code
	Commented string // the source with comments/docstrings added
}

// Commenter asks the model to analyze and document Python code.
type Commenter struct {
	llm llm.Client
}

func New(client llm.Client) *Commenter {
	return &Commenter{llm: client}
}

// Comment produces an analysis and a commented rendition of the source.
func (c *Commenter) Comment(ctx context.Context, source string) (*Result, error) {
	analysis, err := llm.Complete(ctx, c.llm, analyzeSystemPrompt,
		"Analyze this Python code:\n\n"+source)
	if err != nil {
		return nil, fmt.Errorf("analyzing code: %w", err)
	}

	commented, err := llm.Complete(ctx, c.llm, commentSystemPrompt,
		"Add comments and docstrings to this Python code:\n\n"+source)
	if err != nil {
		return nil, fmt.Errorf("commenting code: %w", err)
	}

	return &Result{
		Analysis:  strings.TrimSpace(analysis),
		Commented: StripCodeFence(commented),
	}, nil
}

// StripCodeFence removes a surrounding markdown code fence, which models
// add regardless of instructions.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
