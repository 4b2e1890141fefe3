package main

import (
	"context"
	"net/http"
	"time"

	"pairduel/internal/bot"
	"pairduel/internal/botpool"
	"pairduel/internal/config"
	"pairduel/internal/httpapi"
	"pairduel/internal/logging"
	"pairduel/internal/matchmaker"
	"pairduel/internal/session"
	"pairduel/internal/settlement"
	"pairduel/internal/store"
	"pairduel/internal/wallet"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadApp()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	w := wallet.New(st)
	settler := settlement.New(st, cfg.Session.FeePercent)
	registry := session.NewRegistry(st, settler, cfg.Session)
	pool := botpool.New(st, w, cfg.Pool)
	registry.SetReleaseHook(pool.ReleaseAll)
	registry.SetLifecycleObserver(bot.NewDriver(registry))
	match := matchmaker.New(st, w, pool, registry, cfg.Match, cfg.Session)

	ctx := context.Background()
	recoverInterruptedSessions(ctx, st)
	if err := pool.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("seeding synthetic identities failed")
	}
	if cfg.Server.SeedDemoPlayers {
		seedPlayer(st, "demo_alice", "demo-alice-key", cfg.Server.StartingBalanceCC)
		seedPlayer(st, "demo_bob", "demo-bob-key", cfg.Server.StartingBalanceCC)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler init failed")
	}
	if err := match.RegisterTick(sched); err != nil {
		log.Fatal().Err(err).Msg("registering admission tick failed")
	}
	if err := settler.RegisterSweep(sched, cfg.Match.SettleSweepInterval, cfg.Match.SettleSweepGrace); err != nil {
		log.Fatal().Err(err).Msg("registering settlement sweep failed")
	}
	sched.Start()

	api := httpapi.New(st, w, registry, match)
	r := newRouter(st, cfg.Server, api, registry)
	logRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Server.HTTPAddr).Str("version", version).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

// recoverInterruptedSessions closes out sessions a previous process left in
// waiting or playing. Their runtimes are gone, so the games cannot resume; the
// rows are cancelled with a server_error reason and the settlement sweep
// refunds every share. Deployed synthetic identities go back on the bench.
func recoverInterruptedSessions(ctx context.Context, st *store.Store) {
	for _, status := range []string{session.StatusPlaying, session.StatusWaiting} {
		sessions, err := st.ListSessionsByStatus(ctx, status, 200, 0)
		if err != nil {
			log.Error().Err(err).Str("status", status).Msg("listing interrupted sessions failed")
			continue
		}
		for _, sess := range sessions {
			if err := st.FinishGameSession(ctx, sess.ID, session.StatusCancelled, settlement.ReasonServerError, "", nil); err != nil {
				log.Error().Err(err).Str("session_id", sess.ID).Msg("cancelling interrupted session failed")
				continue
			}
			parts, err := st.SessionParticipants(ctx, sess.ID)
			if err != nil {
				log.Error().Err(err).Str("session_id", sess.ID).Msg("loading interrupted participants failed")
				continue
			}
			for _, p := range parts {
				if !p.IsSynthetic {
					continue
				}
				if err := st.ReleaseBot(ctx, p.ParticipantID, time.Now()); err != nil {
					log.Error().Err(err).Str("bot_id", p.ParticipantID).Msg("releasing interrupted bot failed")
				}
			}
			log.Info().Str("session_id", sess.ID).Str("was", status).Msg("interrupted session cancelled for refund")
		}
	}
}

func seedPlayer(st *store.Store, name, key string, initial int64) {
	ctx := context.Background()
	if p, err := st.GetPlayerByAPIKey(ctx, key); err == nil && p != nil {
		return
	}
	id, err := st.CreatePlayer(ctx, name, key)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("seed player error")
		return
	}
	_ = st.EnsureAccount(ctx, id, initial)
}
