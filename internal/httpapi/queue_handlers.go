package httpapi

import (
	"encoding/json"
	"net/http"

	"pairduel/internal/matchmaker"
)

// JoinQueueHandler escrows the stake and enqueues the caller.
func (a *API) JoinQueueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		var body struct {
			GameType    string `json:"game_type"`
			PlayerCount int    `json:"player_count"`
			StakeCC     int64  `json:"stake_cc"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid_json")
			return
		}
		entry, err := a.Match.JoinQueue(r.Context(), player.ID, body.GameType, body.PlayerCount, body.StakeCC)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"entry_id":     entry.ID,
			"state":        matchmaker.StateWaiting,
			"game_type":    entry.GameType,
			"player_count": entry.PlayerCount,
			"stake_cc":     entry.StakeCC,
		})
	}
}

// LeaveQueueHandler drops the caller's entry and refunds the escrow.
func (a *API) LeaveQueueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		if err := a.Match.LeaveQueue(r.Context(), player.ID); err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	}
}

// QueueStatusHandler reports idle, waiting, or matched.
func (a *API) QueueStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		status, err := a.Match.QueueStatus(r.Context(), player.ID)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, status)
	}
}
