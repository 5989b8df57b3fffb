package workspace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Target:  "us",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	if err == nil {
		t.Fatal("NewClient with empty API key should fail")
	}
}

func TestCreate(t *testing.T) {
	var gotAuth, gotPath string
	var gotParams CreateParams

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.Method + " " + r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotParams)
		json.NewEncoder(w).Encode(map[string]string{"id": "ws-42", "target": "us"})
	})

	sb, err := c.Create(context.Background(), CreateParams{Language: "python"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sb.ID != "ws-42" {
		t.Errorf("sb.ID = %q, want ws-42", sb.ID)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "POST /workspaces" {
		t.Errorf("request = %q", gotPath)
	}
	// Target defaults from client config
	if gotParams.Target != "us" {
		t.Errorf("params.Target = %q, want us", gotParams.Target)
	}
}

func TestCreateNoID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})
	if _, err := c.Create(context.Background(), CreateParams{}); err == nil {
		t.Fatal("Create with empty provider response should fail")
	}
}

func TestExecPassThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workspaces/ws-1/process/exec" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req struct {
			Command string `json:"command"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Command != "python main.py" {
			t.Errorf("command = %q", req.Command)
		}
		json.NewEncoder(w).Encode(ExecResult{
			Stdout:   "hello\n",
			Stderr:   "warning: deprecation\n",
			ExitCode: 3,
		})
	})

	sb := &Sandbox{ID: "ws-1", client: c}
	res, err := sb.Exec(context.Background(), "python main.py")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	// Output and exit status arrive exactly as reported
	if res.Stdout != "hello\n" || res.Stderr != "warning: deprecation\n" || res.ExitCode != 3 {
		t.Errorf("Exec result = %+v", res)
	}
}

func TestUploadDownloadFile(t *testing.T) {
	files := map[string][]byte{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			files[path] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			data, ok := files[path]
			if !ok {
				http.Error(w, "no such file", http.StatusNotFound)
				return
			}
			w.Write(data)
		}
	})

	sb := &Sandbox{ID: "ws-1", client: c}
	ctx := context.Background()

	if err := sb.UploadFile(ctx, "/home/daytona/main.py", []byte("print(1)")); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	data, err := sb.DownloadFile(ctx, "/home/daytona/main.py")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if string(data) != "print(1)" {
		t.Errorf("DownloadFile = %q", data)
	}

	if _, err := sb.DownloadFile(ctx, "/nope"); err == nil {
		t.Error("DownloadFile of missing file should fail")
	}
}

func TestClone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workspaces/ws-1/git/clone" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req struct {
			URL  string `json:"url"`
			Path string `json:"path"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.URL != "https://github.com/spf13/cobra" || req.Path != "/home/daytona/repo" {
			t.Errorf("clone request = %+v", req)
		}
		w.WriteHeader(http.StatusOK)
	})

	sb := &Sandbox{ID: "ws-1", client: c}
	if err := sb.Clone(context.Background(), "https://github.com/spf13/cobra", "/home/daytona/repo"); err != nil {
		t.Fatalf("Clone: %v", err)
	}
}

func TestRetryOn429(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "ws-9"})
	})

	sb, err := c.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatalf("Create after 429: %v", err)
	}
	if sb.ID != "ws-9" {
		t.Errorf("sb.ID = %q", sb.ID)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestProviderErrorSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})

	_, err := c.Create(context.Background(), CreateParams{})
	if err == nil {
		t.Fatal("Create should fail on 403")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error should carry status and body: %v", err)
	}
}
