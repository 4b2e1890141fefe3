package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pairduel/internal/config"
	"pairduel/internal/testutil"
)

func adminGet(router http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminEndpoints(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	router := newTestRouter(t, st, config.ServerConfig{AdminAPIKey: "admin-key"})

	if w := adminGet(router, "/api/admin/sessions", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a key, got %d", w.Code)
	}
	if w := adminGet(router, "/api/admin/sessions", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong key, got %d", w.Code)
	}

	w := adminGet(router, "/api/admin/sessions", "admin-key")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var sessions struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions.Items) != 0 {
		t.Fatalf("expected an empty session list, got %v", sessions.Items)
	}

	if w := adminGet(router, "/api/admin/settlements/nope", "admin-key"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing settlement, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/sessions/nope/cancel", nil)
	req.Header.Set("X-Admin-Key", "admin-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 cancelling a missing session, got %d", rec.Code)
	}

	if w := adminGet(router, "/api/admin/bots", "admin-key"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for bots, got %d", w.Code)
	}

	w = adminGet(router, "/api/admin/metrics", "admin-key")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "match_ticks_total") {
		t.Fatal("expvar output should carry admission counters")
	}
}
