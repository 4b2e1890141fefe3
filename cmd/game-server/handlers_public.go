package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"pairduel/internal/config"
	"pairduel/internal/session"
	"pairduel/internal/store"
	"pairduel/internal/wallet"
)

func healthHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func versionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"version": version})
	}
}

// lobbyHandler reports live counts for anyone deciding whether to queue.
func lobbyHandler(st *store.Store, registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queued, err := st.CountQueueEntries(r.Context())
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		idleBots, err := st.CountIdleBots(r.Context())
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"queued":        queued,
			"live_sessions": registry.Live(),
			"idle_bots":     idleBots,
		})
	}
}

func newAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "pd_" + hex.EncodeToString(buf), nil
}

// registerPlayerHandler creates a player, shows the api key exactly once, and
// grants the starting balance through the ledger.
func registerPlayerHandler(st *store.Store, wal *wallet.Service, cfg config.ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			DisplayName string `json:"display_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		body.DisplayName = strings.TrimSpace(body.DisplayName)
		if body.DisplayName == "" || len(body.DisplayName) > 64 {
			writeHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		apiKey, err := newAPIKey()
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		id, err := st.CreatePlayer(r.Context(), body.DisplayName, apiKey)
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if err := st.EnsureAccount(r.Context(), id, 0); err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		balance, err := wal.Grant(r.Context(), id, cfg.StartingBalanceCC)
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"player_id":  id,
			"api_key":    apiKey,
			"balance_cc": balance,
		})
	}
}
