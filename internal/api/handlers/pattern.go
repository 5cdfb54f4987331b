package handlers

import (
	"errors"
	"net/http"

	"github.com/fsgeek/promptguard-sub003/internal/api/middleware"
	"github.com/fsgeek/promptguard-sub003/internal/service"
)

type PatternHandler struct {
	svc *service.PatternService
}

func NewPatternHandler(svc *service.PatternService) *PatternHandler {
	return &PatternHandler{svc: svc}
}

// FindSimilar looks up stored manipulation patterns nearest to a query
// description.
func (h *PatternHandler) FindSimilar(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := r.URL.Query().Get("q")
	topK := intQuery(r, "top_k", service.DefaultPatternTopK)

	patterns, err := h.svc.FindSimilar(r.Context(), tenant.ID, query, topK)
	if err != nil {
		if errors.Is(err, service.ErrPatternQueryEmpty) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to search patterns")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns})
}
