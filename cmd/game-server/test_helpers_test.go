package main

import (
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"pairduel/internal/botpool"
	"pairduel/internal/config"
	"pairduel/internal/httpapi"
	"pairduel/internal/matchmaker"
	"pairduel/internal/session"
	"pairduel/internal/settlement"
	"pairduel/internal/store"
	"pairduel/internal/wallet"
)

func newTestRouter(t *testing.T, st *store.Store, cfg config.ServerConfig) *chi.Mux {
	t.Helper()
	w := wallet.New(st)
	sessCfg := config.SessionConfig{
		Pairs:          2,
		MatchPoints:    10,
		Lifelines:      2,
		TurnTimeout:    5 * time.Second,
		RevealDelay:    50 * time.Millisecond,
		ReconnectGrace: 2 * time.Second,
		FeePercent:     10,
	}
	settler := settlement.New(st, sessCfg.FeePercent)
	registry := session.NewRegistry(st, settler, sessCfg)
	pool := botpool.New(st, w, config.PoolConfig{
		Cooldown:     time.Minute,
		MinIdle:      2,
		SharkPercent: 70,
		RecentWindow: time.Hour,
	})
	match := matchmaker.New(st, w, pool, registry, config.MatchConfig{
		TickInterval:    time.Second,
		HumanWindow:     10 * time.Second,
		GuaranteeWindow: 30 * time.Second,
		QueueTTL:        2 * time.Minute,
	}, sessCfg)
	t.Cleanup(match.Lobby().Close)
	api := httpapi.New(st, w, registry, match)
	return newRouter(st, cfg, api, registry)
}
