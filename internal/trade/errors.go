package trade

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/footyshares/club-engine/internal/rules"
	"github.com/footyshares/club-engine/internal/settle"
	"github.com/footyshares/club-engine/internal/store"
)

// errorKind classifies an engine error for the API: the kind string lets
// the UI distinguish "fix your input" from "you can't do this" from
// "try again" without parsing messages.
func errorKind(err error) (kind string, status int) {
	switch {
	case errors.Is(err, rules.ErrInvalidSide),
		errors.Is(err, rules.ErrInvalidQuantity),
		errors.Is(err, rules.ErrInvalidPrice):
		return "validation", http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, rules.ErrInsufficientFunds):
		return "insufficient_funds", http.StatusUnprocessableEntity
	case errors.Is(err, rules.ErrInsufficientShares):
		return "insufficient_shares", http.StatusUnprocessableEntity
	case errors.Is(err, rules.ErrNoPosition):
		return "no_position", http.StatusUnprocessableEntity
	case errors.Is(err, rules.ErrInsufficientInventory):
		return "insufficient_inventory", http.StatusUnprocessableEntity
	case errors.Is(err, rules.ErrInsufficientLiquidity):
		return "insufficient_liquidity", http.StatusUnprocessableEntity
	case errors.Is(err, rules.ErrWindowClosed):
		return "window_closed", http.StatusConflict
	case errors.Is(err, ErrConflict), errors.Is(err, settle.ErrConflict):
		return "conflict", http.StatusConflict
	case errors.Is(err, settle.ErrAlreadyApplied):
		return "fixture_already_applied", http.StatusConflict
	case errors.Is(err, settle.ErrNoResult):
		return "no_result", http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrDuplicate):
		return "duplicate", http.StatusConflict
	default:
		return "persistence", http.StatusInternalServerError
	}
}

// writeEngineError maps an engine error onto a JSON error response.
// Persistence failures get a generic message so internals never leak.
func writeEngineError(w http.ResponseWriter, err error) {
	kind, status := errorKind(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, kind, msg, status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, kind, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"kind": kind, "error": message})
}

// writeJSON writes a JSON success response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
