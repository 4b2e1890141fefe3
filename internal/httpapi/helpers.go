package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"pairduel/internal/game"
	"pairduel/internal/matchmaker"
	"pairduel/internal/session"
	"pairduel/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: code})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// errStatus maps service sentinels to a status and wire code. The sentinels
// are named in wire form already, so the code is the error text itself.
func errStatus(err error) (int, string) {
	var status int
	switch {
	case errors.Is(err, matchmaker.ErrUnknownGameType),
		errors.Is(err, matchmaker.ErrInvalidPlayerCount),
		errors.Is(err, matchmaker.ErrInvalidStake),
		errors.Is(err, session.ErrInvalidRequestID),
		errors.Is(err, game.ErrInvalidPosition):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, game.ErrUnknownPlayer):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, matchmaker.ErrInLiveSession),
		errors.Is(err, matchmaker.ErrNotQueued),
		errors.Is(err, store.ErrAlreadyQueued),
		errors.Is(err, session.ErrSessionNotActive),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrCardUnavailable),
		errors.Is(err, game.ErrEvaluationPending),
		errors.Is(err, game.ErrTooManySelections),
		errors.Is(err, game.ErrPlayerEliminated):
		status = http.StatusConflict
	default:
		return http.StatusInternalServerError, "internal_error"
	}
	return status, err.Error()
}

func writeServiceErr(w http.ResponseWriter, err error) {
	status, code := errStatus(err)
	writeErr(w, status, code)
}

func parsePagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
