package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pairduel/internal/matchmaker"
)

func TestQueueJoinLeaveOverHTTP(t *testing.T) {
	ts := setupStack(t)
	createPlayer(t, ts.store, "Ada", "key-ada", 100_000)
	router := ts.router()

	code, body := doJSON(t, router, http.MethodPost, "/api/queue", "key-ada",
		`{"game_type":"memory","player_count":2,"stake_cc":1000}`)
	if code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d %v", code, body)
	}
	if body["state"] != matchmaker.StateWaiting || body["entry_id"] == "" {
		t.Fatalf("unexpected join body: %v", body)
	}

	code, body = doJSON(t, router, http.MethodGet, "/api/balance", "key-ada", "")
	if code != http.StatusOK || body["balance_cc"] != float64(99_000) {
		t.Fatalf("stake should be escrowed on join, got %d %v", code, body)
	}

	code, body = doJSON(t, router, http.MethodPost, "/api/queue", "key-ada",
		`{"game_type":"memory","player_count":2,"stake_cc":1000}`)
	if code != http.StatusConflict || body["error"] != "already_queued" {
		t.Fatalf("double join: expected 409 already_queued, got %d %v", code, body)
	}
	_, body = doJSON(t, router, http.MethodGet, "/api/balance", "key-ada", "")
	if body["balance_cc"] != float64(99_000) {
		t.Fatalf("double join must not leak escrow, got %v", body)
	}

	code, body = doJSON(t, router, http.MethodGet, "/api/queue", "key-ada", "")
	if code != http.StatusOK || body["state"] != matchmaker.StateWaiting {
		t.Fatalf("status: expected waiting, got %d %v", code, body)
	}
	if body["game_type"] != "memory" || body["stake_cc"] != float64(1000) {
		t.Fatalf("unexpected status body: %v", body)
	}

	code, body = doJSON(t, router, http.MethodDelete, "/api/queue", "key-ada", "")
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("leave: expected ok, got %d %v", code, body)
	}
	_, body = doJSON(t, router, http.MethodGet, "/api/balance", "key-ada", "")
	if body["balance_cc"] != float64(100_000) {
		t.Fatalf("leave must refund the escrow, got %v", body)
	}

	code, body = doJSON(t, router, http.MethodDelete, "/api/queue", "key-ada", "")
	if code != http.StatusConflict || body["error"] != "not_queued" {
		t.Fatalf("second leave: expected 409 not_queued, got %d %v", code, body)
	}
	_, body = doJSON(t, router, http.MethodGet, "/api/queue", "key-ada", "")
	if body["state"] != matchmaker.StateIdle {
		t.Fatalf("expected idle after leaving, got %v", body)
	}
}

func TestJoinQueueRejectionsOverHTTP(t *testing.T) {
	ts := setupStack(t)
	createPlayer(t, ts.store, "Bo", "key-bo", 500)
	router := ts.router()

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"game_type":`, http.StatusBadRequest, "invalid_json"},
		{"unknown game", `{"game_type":"roulette","player_count":2,"stake_cc":1000}`, http.StatusBadRequest, "unknown_game_type"},
		{"zero stake", `{"game_type":"memory","player_count":2,"stake_cc":0}`, http.StatusBadRequest, "invalid_stake"},
		{"player count", `{"game_type":"memory","player_count":7,"stake_cc":1000}`, http.StatusBadRequest, "invalid_player_count"},
		{"broke player", `{"game_type":"memory","player_count":2,"stake_cc":1000}`, http.StatusPaymentRequired, "insufficient_balance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := doJSON(t, router, http.MethodPost, "/api/queue", "key-bo", tc.body)
			if code != tc.status || body["error"] != tc.code {
				t.Fatalf("expected %d %s, got %d %v", tc.status, tc.code, code, body)
			}
		})
	}

	// None of the rejections may leave money or an entry behind.
	_, body := doJSON(t, router, http.MethodGet, "/api/balance", "key-bo", "")
	if body["balance_cc"] != float64(500) {
		t.Fatalf("rejected joins must not move money, got %v", body)
	}
	_, body = doJSON(t, router, http.MethodGet, "/api/queue", "key-bo", "")
	if body["state"] != matchmaker.StateIdle {
		t.Fatalf("rejected joins must not enqueue, got %v", body)
	}
}

func TestHistoryShowsEscrowAndRefund(t *testing.T) {
	ts := setupStack(t)
	createPlayer(t, ts.store, "Cyd", "key-cyd", 10_000)
	router := ts.router()

	doJSON(t, router, http.MethodPost, "/api/queue", "key-cyd",
		`{"game_type":"memory","player_count":2,"stake_cc":2500}`)
	doJSON(t, router, http.MethodDelete, "/api/queue", "key-cyd", "")

	req := httptest.NewRequest(http.MethodGet, "/api/balance/history", nil)
	req.Header.Set("Authorization", "Bearer key-cyd")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d %s", w.Code, w.Body.String())
	}
	var out struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d: %v", len(out.Items), out.Items)
	}
	types := map[string]bool{}
	for _, it := range out.Items {
		types[it["type"].(string)] = true
		if it["amount_cc"] != float64(2500) || it["ref_type"] != "queue_entry" {
			t.Fatalf("unexpected ledger entry: %v", it)
		}
	}
	if !types["stake_escrow"] || !types["stake_refund"] {
		t.Fatalf("expected escrow and refund entries, got %v", types)
	}
}
