package workspace

import "time"

// CreateParams describes a workspace creation request.
type CreateParams struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language"`
	Target   string `json:"target,omitempty"`
}

// Sandbox is a handle to a provider-managed workspace. The ID is opaque;
// lifecycle and isolation belong entirely to the provider.
type Sandbox struct {
	ID     string `json:"id"`
	Target string `json:"target,omitempty"`

	client *Client
}

// ExecResult is the captured output of a command run inside a workspace.
// Values are reported exactly as the provider returned them.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Config holds the provider connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Target  string
	Timeout time.Duration
}

// DefaultBaseURL is the hosted provider endpoint used when none is configured.
const DefaultBaseURL = "https://app.daytona.io/api"

// HomeDir is where uploaded artifacts live inside a workspace.
const HomeDir = "/home/daytona"
