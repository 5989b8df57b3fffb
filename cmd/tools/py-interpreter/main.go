// py-interpreter is an MCP stdio server that executes Python in a remote
// workspace. Claude Desktop (or any MCP client) connects to it and gets
// python_run and workspace_download tools.
//
// Stdout belongs to the MCP protocol, so logs go to a file.
package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/airlockhq/airlock/internal/config"
	"github.com/airlockhq/airlock/internal/logger"
	"github.com/airlockhq/airlock/internal/runner"
	"github.com/airlockhq/airlock/internal/workspace"
)

type interpreter struct {
	cfg *config.Config
	log *zap.Logger

	mu     sync.Mutex
	client *workspace.Client
	sb     *workspace.Sandbox
	runs   int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = filepath.Join(os.TempDir(), "airlock-py-interpreter.log")
	}
	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level, logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.ValidateSandbox(); err != nil {
		log.Error("startup", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	in := &interpreter{cfg: cfg, log: log}

	s := server.NewMCPServer("airlock-py-interpreter", "0.1.0")

	s.AddTool(mcp.Tool{
		Name:        "python_run",
		Description: "Execute Python code in a remote isolated workspace and return its stdout, stderr, and exit status. The workspace persists between calls, so files written by one call are visible to the next.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Complete Python source to execute",
				},
			},
			Required: []string{"code"},
		},
	}, in.handlePythonRun)

	s.AddTool(mcp.Tool{
		Name:        "workspace_download",
		Description: "Download a file from the workspace (for example a file a previous python_run created) and return its contents as text.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File path inside the workspace, absolute or relative to the home directory",
				},
			},
			Required: []string{"path"},
		},
	}, in.handleDownload)

	log.Info("py-interpreter starting")
	if err := server.ServeStdio(s); err != nil {
		log.Error("server", zap.Error(err))
	}

	in.close()
}

// session lazily provisions the one workspace this process uses.
func (in *interpreter) session(ctx context.Context) (*workspace.Sandbox, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.sb != nil {
		return in.sb, nil
	}

	client, err := workspace.NewClient(in.cfg.Workspace())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sb, err := client.Create(ctx, workspace.CreateParams{
		Language: "python",
		Target:   in.cfg.Sandbox.Target,
	})
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	in.log.Info("workspace created",
		zap.String("id", sb.ID),
		zap.Duration("took", time.Since(start)))

	in.client = client
	in.sb = sb
	return sb, nil
}

func (in *interpreter) close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.sb != nil {
		if err := in.client.Remove(context.Background(), in.sb); err != nil {
			in.log.Warn("removing workspace", zap.String("id", in.sb.ID), zap.Error(err))
		} else {
			in.log.Info("workspace removed", zap.String("id", in.sb.ID))
		}
		in.sb = nil
	}
}

func (in *interpreter) handlePythonRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}
	code, _ := args["code"].(string)
	if code == "" {
		return errResult("error: 'code' is required"), nil
	}

	sb, err := in.session(ctx)
	if err != nil {
		in.log.Error("session", zap.Error(err))
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	in.mu.Lock()
	in.runs++
	name := fmt.Sprintf("run_%d.py", in.runs)
	in.mu.Unlock()

	start := time.Now()
	result, err := (&runner.Runner{}).Run(ctx, sb, runner.Artifact{Name: name, Source: code})
	if err != nil {
		in.log.Error("run", zap.String("artifact", name), zap.Error(err))
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}
	in.log.Info("run finished",
		zap.String("artifact", name),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("took", time.Since(start)))

	var output strings.Builder
	if result.Stdout != "" {
		output.WriteString(result.Stdout)
	}
	if result.Stderr != "" {
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString("STDERR:\n" + result.Stderr)
	}
	if result.ExitCode != 0 {
		output.WriteString(fmt.Sprintf("\nexit code: %d", result.ExitCode))
	}

	text := output.String()
	if len(text) > 4000 {
		text = text[:4000] + "\n... (output truncated)"
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: result.ExitCode != 0,
	}, nil
}

func (in *interpreter) handleDownload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}
	p, _ := args["path"].(string)
	if p == "" {
		return errResult("error: 'path' is required"), nil
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(workspace.HomeDir, p)
	}

	sb, err := in.session(ctx)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	data, err := sb.DownloadFile(ctx, p)
	if err != nil {
		in.log.Error("download", zap.String("path", p), zap.Error(err))
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}
	in.log.Info("download", zap.String("path", p), zap.Int("bytes", len(data)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(data)}},
	}, nil
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
