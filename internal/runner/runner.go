package runner

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/airlockhq/airlock/internal/workspace"
)

// Session is the slice of the workspace API the runner needs. A
// *workspace.Sandbox satisfies it; tests substitute a fake.
type Session interface {
	Exec(ctx context.Context, command string) (*workspace.ExecResult, error)
	UploadFile(ctx context.Context, path string, content []byte) error
}

// Artifact is a piece of Python source to run remotely.
type Artifact struct {
	Name   string // file name inside the workspace, e.g. "function.py"
	Source string
}

// Runner uploads code artifacts into a workspace and executes them.
// Progress callbacks follow the agent's OnToolCall/OnToolResult pattern so
// the CLI and the websocket layer can display stages as they happen.
type Runner struct {
	// OnStage, if set, is called when a run moves to a new stage
	// (uploading, verifying, running) with a short human-readable detail.
	OnStage func(stage, detail string)
}

func (r *Runner) stage(name, detail string) {
	if r.OnStage != nil {
		r.OnStage(name, detail)
	}
}

// Upload writes the artifact into the workspace home directory, verifies
// it landed, and returns its remote path.
func (r *Runner) Upload(ctx context.Context, sess Session, art Artifact) (string, error) {
	name := art.Name
	if name == "" {
		name = "main.py"
	}
	remotePath := path.Join(workspace.HomeDir, name)

	r.stage("uploading", remotePath)
	if err := sess.UploadFile(ctx, remotePath, []byte(art.Source)); err != nil {
		return "", err
	}

	r.stage("verifying", remotePath)
	check, err := sess.Exec(ctx, "ls -la "+remotePath)
	if err != nil {
		return "", fmt.Errorf("verifying upload: %w", err)
	}
	if check.ExitCode != 0 {
		return "", fmt.Errorf("verifying upload: %s not found after upload: %s",
			remotePath, strings.TrimSpace(check.Stderr))
	}

	return remotePath, nil
}

// Run uploads the artifact and executes it with the workspace's Python
// interpreter. The returned result is exactly what the provider reported;
// a non-zero exit code is data, not an error.
func (r *Runner) Run(ctx context.Context, sess Session, art Artifact) (*workspace.ExecResult, error) {
	remotePath, err := r.Upload(ctx, sess, art)
	if err != nil {
		return nil, err
	}

	python, err := r.findPython(ctx, sess)
	if err != nil {
		return nil, err
	}

	r.stage("running", python+" "+remotePath)
	return sess.Exec(ctx, python+" "+remotePath)
}

// RunFile executes an already-uploaded file.
func (r *Runner) RunFile(ctx context.Context, sess Session, remotePath string) (*workspace.ExecResult, error) {
	python, err := r.findPython(ctx, sess)
	if err != nil {
		return nil, err
	}
	r.stage("running", python+" "+remotePath)
	return sess.Exec(ctx, python+" "+remotePath)
}

// CompileCheck runs a syntax-only compile of the uploaded file so broken
// generated code is reported before a full run.
func (r *Runner) CompileCheck(ctx context.Context, sess Session, remotePath string) error {
	python, err := r.findPython(ctx, sess)
	if err != nil {
		return err
	}
	result, err := sess.Exec(ctx, python+" -m py_compile "+remotePath)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("compile check failed: %s", strings.TrimSpace(result.Stderr))
	}
	return nil
}

// findPython locates the interpreter inside the workspace. Falls back to
// a bare "python3" when the probe itself fails.
func (r *Runner) findPython(ctx context.Context, sess Session) (string, error) {
	probe, err := sess.Exec(ctx, "command -v python3 || command -v python")
	if err != nil {
		return "", fmt.Errorf("locating python: %w", err)
	}
	p := strings.TrimSpace(probe.Stdout)
	if probe.ExitCode != 0 || p == "" {
		return "python3", nil
	}
	// The probe may print both candidates; use the first.
	if i := strings.IndexByte(p, '\n'); i >= 0 {
		p = p[:i]
	}
	return p, nil
}
