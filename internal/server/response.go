package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Skelmis/Template-Website/crud"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps the failure taxonomy onto wire-level status codes:
// validation failures are 400 with the full batched issue list, missing rows
// are 404, anything else is a 500 surfaced as-is to the caller.
func respondError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	var validationErr *crud.ValidationError
	if errors.As(err, &validationErr) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"detail":      validationErr.Detail,
			"status_code": http.StatusBadRequest,
			"extra":       map[string]any{"errors": validationErr.Issues},
		})
		return
	}

	var notFoundErr *crud.NotFoundError
	if errors.As(err, &notFoundErr) {
		respondJSON(w, http.StatusNotFound, map[string]any{
			"detail":      notFoundErr.Error(),
			"status_code": http.StatusNotFound,
		})
		return
	}

	logger.Errorw("request failed", "err", err)
	respondJSON(w, http.StatusInternalServerError, map[string]any{
		"detail":      "Internal server error",
		"status_code": http.StatusInternalServerError,
	})
}
