package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fsgeek/promptguard-sub003/internal/api/middleware"
	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/fsgeek/promptguard-sub003/internal/service"
	"github.com/fsgeek/promptguard-sub003/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type SessionHandler struct {
	sessions  *service.SessionService
	evaluator *service.EvaluatorService
	verdicts  domain.VerdictStore
}

func NewSessionHandler(sessions *service.SessionService, evaluator *service.EvaluatorService, verdicts domain.VerdictStore) *SessionHandler {
	return &SessionHandler{sessions: sessions, evaluator: evaluator, verdicts: verdicts}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	state, err := h.sessions.Start(r.Context(), tenant.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, state)
}

func (h *SessionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	state, err := h.sessions.Get(r.Context(), id, tenant.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

type sessionEvaluateResponse struct {
	Verdict *domain.ReciprocityVerdict `json:"verdict"`
	Session *domain.SessionState       `json:"session"`
}

// Evaluate scores one turn and folds the verdict into the session
// accumulator. The verdict and the post-turn session snapshot come back
// together so the caller sees the stage transition the turn caused.
func (h *SessionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	// The session must exist before any judge tokens are spent on it.
	if _, err := h.sessions.Get(r.Context(), id, tenant.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ex, msg := parseExchange(req.Layers)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	verdict, err := h.evaluator.EvaluateInSession(r.Context(), tenant.ID, id, ex)
	if err != nil {
		writeEvaluationError(w, err)
		return
	}

	state, err := h.sessions.Record(r.Context(), id, tenant.ID, verdict)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record session turn")
		return
	}

	writeJSON(w, http.StatusOK, sessionEvaluateResponse{Verdict: verdict, Session: state})
}

func (h *SessionHandler) ListVerdicts(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	limit := intQuery(r, "limit", 50)
	verdicts, err := h.verdicts.ListBySession(r.Context(), id, tenant.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list verdicts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"verdicts": verdicts})
}
