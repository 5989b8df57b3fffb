package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/airlockhq/airlock/internal/runner"
	"github.com/airlockhq/airlock/internal/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // deployments front this with their own auth
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Label string `json:"label"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type     string `json:"type"`
	Stage    string `json:"stage,omitempty"`
	Detail   string `json:"detail,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleWebSocket accepts code over the socket, executes it in a pooled
// workspace, and streams stage events followed by the final result.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			s.log.Warn("websocket read", zap.Error(err))
			return
		}

		if msg.Type != "run" || msg.Code == "" {
			s.wsWrite(conn, nil, wsOutgoing{Type: "error", Error: "invalid message: expected {type: run, code: ...}"})
			continue
		}

		s.processRun(r.Context(), conn, msg)
	}
}

func (s *Server) processRun(ctx context.Context, conn *websocket.Conn, msg wsIncoming) {
	// Mutex for thread-safe writes to the WebSocket connection
	var wsMu sync.Mutex

	run := &storage.Run{
		ID:     uuid.New().String(),
		Kind:   storage.KindRun,
		Label:  msg.Label,
		Status: storage.StatusRunning,
		Source: msg.Code,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		s.wsWrite(conn, &wsMu, wsOutgoing{Type: "error", Error: err.Error()})
		return
	}
	s.wsWrite(conn, &wsMu, wsOutgoing{Type: "accepted", RunID: run.ID})

	sb, err := s.pool.Acquire(ctx)
	if err != nil {
		s.failRunWS(ctx, conn, &wsMu, run, err)
		return
	}
	run.SandboxID = sb.ID
	s.wsWrite(conn, &wsMu, wsOutgoing{Type: "stage", Stage: "workspace", Detail: sb.ID})

	// Stream runner stages as they happen
	rn := &runner.Runner{
		OnStage: func(stage, detail string) {
			s.wsWrite(conn, &wsMu, wsOutgoing{Type: "stage", Stage: stage, Detail: detail})
		},
	}

	result, err := rn.Run(ctx, sb, runner.Artifact{Name: "main.py", Source: msg.Code})
	if err != nil {
		s.pool.Discard(ctx, sb)
		s.failRunWS(ctx, conn, &wsMu, run, err)
		return
	}
	s.pool.Release(ctx, sb)

	run.Status = storage.StatusCompleted
	run.ExitCode = result.ExitCode
	run.Stdout = result.Stdout
	run.Stderr = result.Stderr
	if err := s.store.UpdateRun(ctx, run); err != nil {
		s.log.Error("updating run", zap.String("id", run.ID), zap.Error(err))
	}

	s.wsWrite(conn, &wsMu, wsOutgoing{
		Type:     "result",
		RunID:    run.ID,
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	})
}

func (s *Server) failRunWS(ctx context.Context, conn *websocket.Conn, wsMu *sync.Mutex, run *storage.Run, cause error) {
	run.Status = storage.StatusFailed
	run.Stderr = cause.Error()
	if err := s.store.UpdateRun(ctx, run); err != nil {
		s.log.Error("updating failed run", zap.String("id", run.ID), zap.Error(err))
	}
	s.wsWrite(conn, wsMu, wsOutgoing{Type: "error", RunID: run.ID, Error: cause.Error()})
}

func (s *Server) wsWrite(conn *websocket.Conn, mu *sync.Mutex, v wsOutgoing) {
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("websocket marshal", zap.Error(err))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Warn("websocket write", zap.Error(err))
	}
}
