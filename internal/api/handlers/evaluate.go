package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fsgeek/promptguard-sub003/internal/api/middleware"
	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/fsgeek/promptguard-sub003/internal/service"
)

type EvaluateHandler struct {
	svc *service.EvaluatorService
}

func NewEvaluateHandler(svc *service.EvaluatorService) *EvaluateHandler {
	return &EvaluateHandler{svc: svc}
}

type layerRequest struct {
	Content    string `json:"content"`
	Provenance string `json:"provenance"`
}

type evaluateRequest struct {
	Layers []layerRequest `json:"layers"`
}

// parseExchange validates the request layers and builds the exchange. It
// is shared with the session and fire-circle handlers.
func parseExchange(layers []layerRequest) (*domain.Exchange, string) {
	if len(layers) == 0 {
		return nil, "at least one layer is required"
	}

	built := make([]domain.Layer, 0, len(layers))
	for _, l := range layers {
		if l.Content == "" {
			return nil, "layer content is required"
		}
		if !domain.ValidProvenance(l.Provenance) {
			return nil, "invalid provenance: " + l.Provenance
		}
		built = append(built, domain.Layer{
			Content:    l.Content,
			Provenance: domain.Provenance(l.Provenance),
		})
	}

	ex, err := domain.NewExchange(built...)
	if err != nil {
		return nil, err.Error()
	}
	return ex, ""
}

// Evaluate scores a single stateless exchange.
func (h *EvaluateHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
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

	verdict, err := h.svc.Evaluate(r.Context(), tenant.ID, ex)
	if err != nil {
		writeEvaluationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}
