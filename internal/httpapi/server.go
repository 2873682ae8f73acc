// Package httpapi exposes the question pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jwkim/ragmate/internal/llm"
	"github.com/jwkim/ragmate/internal/logger"
	"github.com/jwkim/ragmate/internal/observability"
)

// Engine is the part of the pipeline the API depends on
type Engine interface {
	Ask(ctx context.Context, sessionID, question string) (string, error)
	ResetSession(ctx context.Context, sessionID string) error
	ResetAllSessions(ctx context.Context) error
}

// Server serves the ask and session management endpoints
type Server struct {
	engine Engine
	router chi.Router
}

// NewServer builds the HTTP routes around engine
func NewServer(engine Engine) *Server {
	s := &Server{engine: engine}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", observability.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/sessions/{sessionID}/reset", s.handleResetSession)
		r.Post("/sessions/reset-all", s.handleResetAll)
	})

	s.router = r
	return s
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "session_id and question are required")
		return
	}

	answer, err := s.engine.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		logger.Error("ask failed for session %s: %v", req.SessionID, err)
		status := http.StatusInternalServerError
		var genErr *llm.GenerationError
		if errors.As(err, &genErr) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, askResponse{SessionID: req.SessionID, Answer: answer})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.engine.ResetSession(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": sessionID})
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ResetAllSessions(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
