package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quizlive/internal/domain"
	"quizlive/internal/game"
)

// APIHandler exposes the non-streaming operations: session creation and the
// maintenance endpoints (rebuild, participant remap).
type APIHandler struct {
	service *game.Service
	log     *slog.Logger
}

func NewAPIHandler(service *game.Service, log *slog.Logger) *APIHandler {
	return &APIHandler{service: service, log: log}
}

type createSessionRequest struct {
	QuizID string          `json:"quizId"`
	HostID string          `json:"hostId"`
	Mode   domain.GameMode `json:"mode"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	JoinCode  string `json:"joinCode"`
}

// CreateSession handles POST /sessions.
func (h *APIHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.QuizID == "" || req.HostID == "" {
		http.Error(w, "missing quizId or hostId", http.StatusBadRequest)
		return
	}
	session, err := h.service.CreateSession(r.Context(), req.QuizID, req.HostID, req.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID,
		JoinCode:  session.JoinCode,
	})
}

type rebuildRequest struct {
	SessionID string `json:"sessionId"`
}

// Rebuild handles POST /sessions/rebuild, the idempotent result-recovery
// path.
func (h *APIHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := h.service.Rebuild(r.Context(), req.SessionID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

type remapRequest struct {
	SessionID        string `json:"sessionId"`
	OldParticipantID string `json:"oldParticipantId"`
	NewParticipantID string `json:"newParticipantId"`
}

// RemapParticipant handles POST /sessions/remap.
func (h *APIHandler) RemapParticipant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req remapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.RemapParticipant(r.Context(), req.SessionID, req.OldParticipantID, req.NewParticipantID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "remapped"})
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrPhaseMismatch),
		errors.Is(err, domain.ErrSessionFinished):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrLockContention):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.log.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
