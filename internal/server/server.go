package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lectureflow/internal/app"
	"lectureflow/internal/util"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App         *app.App
	TokenSecret string
}

// Server exposes the callable read/re-drive endpoints of the pipeline.
type Server struct {
	app      *app.App
	verifier *TokenVerifier
	mux      *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	verifier, err := NewTokenVerifier(cfg.TokenSecret)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:      cfg.App,
		verifier: verifier,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("pipeline", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.Handle("GET /v1/recordings", s.withUser(s.handleListRecordings))
	s.mux.Handle("GET /v1/recordings/{id}", s.withUser(s.handleGetRecording))
	s.mux.Handle("POST /v1/recordings/{id}/transcribe", s.withUser(s.handleRequestTranscription))
	s.mux.Handle("GET /v1/recordings/{id}/transcript", s.withUser(s.handleGetTranscript))
	s.mux.Handle("POST /v1/recordings/{id}/ai/{type}", s.withUser(s.handleCreateJob))
	s.mux.Handle("GET /v1/recordings/{id}/ai/{type}", s.withUser(s.handleGetArtifact))
	s.mux.Handle("GET /v1/jobs/{id}", s.withUser(s.handleGetJob))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "sign-in required")
			return
		}
		uid, err := s.verifier.VerifySubject(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "sign-in required")
			return
		}
		next(w, r, uid)
	})
}

func (s *Server) handleListRecordings(w http.ResponseWriter, _ *http.Request, uid string) {
	recs, err := s.app.ListRecordings(uid)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request, uid string) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "recordingId is required")
		return
	}
	rec, err := s.app.Recording(uid, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRequestTranscription(w http.ResponseWriter, r *http.Request, uid string) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "recordingId is required")
		return
	}
	rec, err := s.app.RequestTranscription(r.Context(), uid, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request, uid string) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "recordingId is required")
		return
	}
	text, err := s.app.TranscriptText(r.Context(), uid, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request, uid string) {
	id := r.PathValue("id")
	artifactType := r.PathValue("type")
	if id == "" {
		writeError(w, http.StatusBadRequest, "recordingId is required")
		return
	}
	job, err := s.app.CreateJob(r.Context(), uid, id, artifactType)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request, uid string) {
	id := r.PathValue("id")
	artifactType := r.PathValue("type")
	if id == "" {
		writeError(w, http.StatusBadRequest, "recordingId is required")
		return
	}
	out, err := s.app.Artifact(r.Context(), uid, id, artifactType)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, uid string) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "jobId is required")
		return
	}
	job, err := s.app.Job(uid, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidArtifactType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrRecordingNotFound),
		errors.Is(err, app.ErrJobNotFound),
		errors.Is(err, app.ErrTranscriptNotFound),
		errors.Is(err, app.ErrArtifactNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrTranscriptionActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusConflict:
		return "ALREADY_ACTIVE"
	default:
		return "INTERNAL"
	}
}
