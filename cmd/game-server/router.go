package main

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"pairduel/internal/config"
	"pairduel/internal/httpapi"
	"pairduel/internal/session"
	"pairduel/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func newRouter(st *store.Store, cfg config.ServerConfig, api *httpapi.API, registry *session.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLogMiddleware())
		r.Use(bodyCaptureMiddleware())

		r.Get("/healthz", healthHandler(st))
		r.Get("/version", versionHandler())
		r.Get("/lobby", lobbyHandler(st, registry))
		r.Post("/register", registerPlayerHandler(st, api.Wallet, cfg))

		r.Group(func(r chi.Router) {
			r.Use(api.PlayerAuth())
			r.Post("/queue", api.JoinQueueHandler())
			r.Delete("/queue", api.LeaveQueueHandler())
			r.Get("/queue", api.QueueStatusHandler())
			r.Get("/balance", api.BalanceHandler())
			r.Get("/balance/history", api.HistoryHandler())
			r.Get("/sessions/current", api.CurrentSessionHandler())
			r.Get("/sessions/{session_id}", api.SessionSnapshotHandler())
			r.Post("/sessions/{session_id}/cards", api.SelectCardHandler())
			r.Post("/sessions/{session_id}/quit", api.QuitHandler())
			r.Get("/sessions/{session_id}/events", api.SessionEventsHandler())
			r.Get("/lobby/events", api.LobbyEventsHandler())
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(httpapi.AdminAuth(cfg.AdminAPIKey))
			r.Get("/queue", adminQueueHandler(st))
			r.Get("/sessions", adminSessionsHandler(st))
			r.Get("/sessions/{session_id}", adminSessionDetailHandler(st))
			r.Post("/sessions/{session_id}/cancel", adminCancelSessionHandler(registry))
			r.Get("/bots", adminBotsHandler(st))
			r.Get("/settlements/{session_id}", adminSettlementHandler(st))
			r.Get("/metrics", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func logRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
