package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zivstay/Homis-sub000/internal/core"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps engine errors onto statuses and stable error codes.
// Business-rule failures are part of the API contract; anything unmapped is
// an internal error and logged as such.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal"
	)

	switch {
	case core.IsValidation(err):
		status, code = http.StatusBadRequest, "validation"
	case errors.Is(err, core.ErrScopeMismatch):
		status, code = http.StatusBadRequest, "scope_mismatch"
	case errors.Is(err, core.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrAlreadyPaid):
		status, code = http.StatusConflict, "already_paid"
	case errors.Is(err, core.ErrAmountExceedsDebt):
		status, code = http.StatusConflict, "amount_exceeds_debt"
	case errors.Is(err, core.ErrNoOpenDebt):
		status, code = http.StatusConflict, "no_open_debt"
	case errors.Is(err, core.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: code, Message: "internal error"})
		return
	}

	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}

func errMissingParam(name string) error {
	return fmt.Errorf("missing required parameter %q", name)
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Error:   "method_not_allowed",
		Message: "allowed: " + allowed,
	})
}
