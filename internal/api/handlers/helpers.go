package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/fsgeek/promptguard-sub003/internal/service"
	"github.com/fsgeek/promptguard-sub003/internal/store"
)

func intQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeEvaluationError maps the evaluation error taxonomy onto HTTP
// statuses. Judge and ensemble failures surface as 502 with the failing
// model identities intact; a quorum failure is 409 because the configured
// circle, not the request, is what cannot certify a result.
func writeEvaluationError(w http.ResponseWriter, err error) {
	var (
		jerr *domain.JudgeError
		eerr *domain.EnsembleError
		qerr *domain.QuorumError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyExchange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &eerr):
		failures := make([]string, len(eerr.Failures))
		for i, f := range eerr.Failures {
			failures[i] = f.Error()
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    "ensemble evaluation failed",
			"failures": failures,
		})
	case errors.As(err, &jerr):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":       "judge evaluation failed",
			"model_id":    jerr.ModelID,
			"layer_index": jerr.LayerIndex,
			"detail":      jerr.Err.Error(),
		})
	case errors.As(err, &qerr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":         "quorum not met",
			"reason":        qerr.Reason,
			"missing_roles": qerr.MissingRoles,
			"lineages":      qerr.Lineages,
			"min_lineages":  qerr.MinLineages,
		})
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "evaluation failed")
	}
}
