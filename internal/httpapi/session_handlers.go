package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pairduel/internal/session"
)

// CurrentSessionHandler answers the reconnect question: which live session,
// if any, holds a seat for the caller.
func (a *API) CurrentSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		sessionID, ok := a.Registry.FindByPlayer(player.ID)
		if !ok {
			writeErr(w, http.StatusNotFound, "session_not_found")
			return
		}
		view, err := a.Registry.Snapshot(sessionID)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, view)
	}
}

// SessionSnapshotHandler returns the full session view to a participant.
// Non-participants get the same not-found as a missing session.
func (a *API) SessionSnapshotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		sessionID := chi.URLParam(r, "session_id")
		if !a.Registry.ParticipantIn(sessionID, player.ID) {
			writeErr(w, http.StatusNotFound, "session_not_found")
			return
		}
		view, err := a.Registry.Snapshot(sessionID)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, view)
	}
}

// SelectCardHandler flips one card. The request id makes retries replay the
// original outcome instead of flipping twice.
func (a *API) SelectCardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		sessionID := chi.URLParam(r, "session_id")
		var body struct {
			RequestID string `json:"request_id"`
			Position  int    `json:"position"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid_json")
			return
		}
		res, err := a.Registry.SelectCard(r.Context(), session.SelectRequest{
			SessionID:     sessionID,
			ParticipantID: player.ID,
			RequestID:     body.RequestID,
			Position:      body.Position,
		})
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, res)
	}
}

// QuitHandler forfeits the caller's seat.
func (a *API) QuitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		sessionID := chi.URLParam(r, "session_id")
		if err := a.Registry.Quit(r.Context(), sessionID, player.ID); err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	}
}
