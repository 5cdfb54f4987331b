package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fsgeek/promptguard-sub003/internal/api/middleware"
	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/fsgeek/promptguard-sub003/internal/service"
)

type FireCircleHandler struct {
	svc          *service.FireCircleService
	patterns     *service.PatternService
	participants []domain.DialogueParticipant
}

func NewFireCircleHandler(svc *service.FireCircleService, patterns *service.PatternService, participants []domain.DialogueParticipant) *FireCircleHandler {
	return &FireCircleHandler{svc: svc, patterns: patterns, participants: participants}
}

// Run convenes the full dialogue circle over an exchange and archives any
// certified patterns into the pattern library.
func (h *FireCircleHandler) Run(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
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

	result, err := h.svc.Run(r.Context(), ex, h.participants)
	if err != nil {
		writeEvaluationError(w, err)
		return
	}

	if h.patterns != nil && len(result.Patterns) > 0 {
		h.patterns.RecordAll(r.Context(), tenant.ID, result.Patterns)
	}

	writeJSON(w, http.StatusOK, result)
}
