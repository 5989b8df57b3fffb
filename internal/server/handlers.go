package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/airlockhq/airlock/internal/runner"
	"github.com/airlockhq/airlock/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Run handlers ---

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := storage.RunListOptions{}

	if kind := r.URL.Query().Get("kind"); kind != "" {
		opts.Kind = storage.RunKind(kind)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = storage.RunStatus(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	runs, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type createRunRequest struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// handleCreateRun executes the submitted code in a pooled workspace and
// returns the completed run record. Output passes through exactly as the
// provider reported it.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	run := &storage.Run{
		ID:     uuid.New().String(),
		Kind:   storage.KindRun,
		Label:  req.Label,
		Status: storage.StatusRunning,
		Source: req.Code,
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sb, err := s.pool.Acquire(r.Context())
	if err != nil {
		s.failRun(r, run, err)
		writeError(w, http.StatusBadGateway, "acquiring workspace: "+err.Error())
		return
	}
	run.SandboxID = sb.ID

	result, err := (&runner.Runner{}).Run(r.Context(), sb, runner.Artifact{
		Name:   "main.py",
		Source: req.Code,
	})
	if err != nil {
		// The workspace state is unknown after a failed run.
		s.pool.Discard(r.Context(), sb)
		s.failRun(r, run, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.pool.Release(r.Context(), sb)

	run.Status = storage.StatusCompleted
	run.ExitCode = result.ExitCode
	run.Stdout = result.Stdout
	run.Stderr = result.Stderr
	if err := s.store.UpdateRun(r.Context(), run); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) failRun(r *http.Request, run *storage.Run, cause error) {
	run.Status = storage.StatusFailed
	run.Stderr = cause.Error()
	if err := s.store.UpdateRun(r.Context(), run); err != nil {
		s.log.Error("updating failed run", zap.String("id", run.ID), zap.Error(err))
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "run not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		data, err := storage.ExportJSON(run)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(storage.ExportMarkdown(run)))
	default:
		writeError(w, http.StatusBadRequest, "unknown format: use json or markdown")
	}
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteRun(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "run not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
