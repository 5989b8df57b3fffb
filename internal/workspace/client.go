package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the workspace provider's REST API. The provider ships no
// Go SDK, so this is a thin typed facade over its HTTP surface: create a
// workspace, run commands in it, move files in and out, remove it.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a provider client. The API key must be set; Timeout
// covers individual API calls, not workspace lifetime.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("workspace provider API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Create provisions a new workspace and returns its handle.
func (c *Client) Create(ctx context.Context, params CreateParams) (*Sandbox, error) {
	if params.Language == "" {
		params.Language = "python"
	}
	if params.Target == "" {
		params.Target = c.cfg.Target
	}

	var sb Sandbox
	if err := c.doJSON(ctx, http.MethodPost, "/workspaces", params, &sb); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	if sb.ID == "" {
		return nil, fmt.Errorf("creating workspace: provider returned no workspace ID")
	}
	sb.client = c
	return &sb, nil
}

// Get returns a handle for an existing workspace by ID.
func (c *Client) Get(ctx context.Context, id string) (*Sandbox, error) {
	var sb Sandbox
	if err := c.doJSON(ctx, http.MethodGet, "/workspaces/"+url.PathEscape(id), nil, &sb); err != nil {
		return nil, fmt.Errorf("getting workspace %s: %w", id, err)
	}
	sb.client = c
	return &sb, nil
}

// Remove destroys a workspace. The provider owns the teardown; this only
// reports whether the request was accepted.
func (c *Client) Remove(ctx context.Context, sb *Sandbox) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/workspaces/"+url.PathEscape(sb.ID), nil, nil); err != nil {
		return fmt.Errorf("removing workspace %s: %w", sb.ID, err)
	}
	return nil
}

// Exec runs a shell command inside the workspace and returns its captured
// output unmodified.
func (s *Sandbox) Exec(ctx context.Context, command string) (*ExecResult, error) {
	req := struct {
		Command string `json:"command"`
	}{Command: command}

	var result ExecResult
	err := s.client.doJSON(ctx, http.MethodPost,
		"/workspaces/"+url.PathEscape(s.ID)+"/process/exec", req, &result)
	if err != nil {
		return nil, fmt.Errorf("exec in workspace %s: %w", s.ID, err)
	}
	return &result, nil
}

// UploadFile writes content to a path inside the workspace.
func (s *Sandbox) UploadFile(ctx context.Context, path string, content []byte) error {
	endpoint := s.client.cfg.BaseURL + "/workspaces/" + url.PathEscape(s.ID) + "/files?path=" + url.QueryEscape(path)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.client.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("uploading %s to workspace %s: %w", path, s.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("uploading %s to workspace %s: provider returned %d: %s",
			path, s.ID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// DownloadFile reads a file from the workspace.
func (s *Sandbox) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	endpoint := s.client.cfg.BaseURL + "/workspaces/" + url.PathEscape(s.ID) + "/files?path=" + url.QueryEscape(path)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.client.cfg.APIKey)

	resp, err := s.client.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("downloading %s from workspace %s: %w", path, s.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("downloading %s from workspace %s: provider returned %d: %s",
			path, s.ID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

// Clone clones a git repository into the workspace using the provider's
// git API rather than shelling out.
func (s *Sandbox) Clone(ctx context.Context, repoURL, path string) error {
	req := struct {
		URL  string `json:"url"`
		Path string `json:"path"`
	}{URL: repoURL, Path: path}

	err := s.client.doJSON(ctx, http.MethodPost,
		"/workspaces/"+url.PathEscape(s.ID)+"/git/clone", req, nil)
	if err != nil {
		return fmt.Errorf("cloning %s into workspace %s: %w", repoURL, s.ID, err)
	}
	return nil
}

// doJSON performs an authenticated JSON request against the provider API,
// retrying on 429 the same way the llm client does.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	var lastErr error
	for attempt := range 3 {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < 2 {
			resp.Body.Close()
			wait := time.Duration(2<<attempt) * time.Second // 2s, 4s
			lastErr = fmt.Errorf("provider returned 429")
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if respBody != nil {
			err = json.NewDecoder(resp.Body).Decode(respBody)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
		} else {
			resp.Body.Close()
		}
		return nil
	}
	return lastErr
}
