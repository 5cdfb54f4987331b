package handlers

import (
	"errors"
	"net/http"

	"github.com/fsgeek/promptguard-sub003/internal/api/middleware"
	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/fsgeek/promptguard-sub003/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type VerdictHandler struct {
	store domain.VerdictStore
}

func NewVerdictHandler(store domain.VerdictStore) *VerdictHandler {
	return &VerdictHandler{store: store}
}

func (h *VerdictHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid verdict id")
		return
	}

	verdict, err := h.store.GetByID(r.Context(), id, tenant.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "verdict not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get verdict")
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}
