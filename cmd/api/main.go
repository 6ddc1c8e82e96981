package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"gbp_responder/internal/adapters/google"
	server "gbp_responder/internal/adapters/http_server"
	"gbp_responder/internal/adapters/notify"
	"gbp_responder/internal/adapters/observability"
	"gbp_responder/internal/adapters/openai"
	redisad "gbp_responder/internal/adapters/redis"
	"gbp_responder/internal/app"
	"gbp_responder/internal/domain"
	"gbp_responder/internal/shared"
	mysqlrepo "gbp_responder/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	observability.Serve()

	// activity store is optional; without a DSN events are broadcast only
	var activity domain.ActivityLog
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		store := mysqlrepo.New(db)
		if err := store.EnsureSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("activity schema setup failed")
		}
		activity = store
		log.Info().Msg("activity store ready")
	}

	var ledger domain.Ledger
	switch cfg.LedgerBackend {
	case "redis":
		ledger = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis dedupe ledger")
	default:
		ledger = app.NewMemoryLedger()
	}

	var gateway domain.ReviewGateway
	switch cfg.GatewayMode {
	case "live":
		var ts oauth2.TokenSource
		if cfg.GoogleToken != "" {
			ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GoogleToken})
		}
		gateway = google.New(cfg.GoogleBase, ts, 5)
		log.Info().Str("base", cfg.GoogleBase).Msg("using live review gateway")
	default:
		gateway = google.NewMock()
		log.Info().Msg("using mock review gateway")
	}

	var completer domain.Completer
	if cfg.OpenAIKey != "" {
		c, err := openai.New(cfg.OpenAIBase, cfg.OpenAIKey, cfg.OpenAIModel, 2)
		if err != nil {
			log.Fatal().Err(err).Msg("openai client init failed")
		}
		completer = c
	}

	hub := notify.NewHub()
	gen := app.NewGenerator(completer, cfg.GenTimeout)
	coord := app.NewCoordinator(gateway, gen, ledger, hub, activity, app.Options{
		Deadline:     cfg.ResponseDeadline,
		UrgentWindow: cfg.UrgentWindow,
		DelayMin:     cfg.DelayMin,
		DelayMax:     cfg.DelayMax,
	})
	sched := app.NewScheduler(coord, gateway, cfg.PollInterval, cfg.Workers)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Sched:         sched,
		Coord:         coord,
		Hub:           hub,
		Activity:      activity,
		WebhookSecret: cfg.WebhookSecret,
		Deadline:      cfg.ResponseDeadline,
		UrgentWindow:  cfg.UrgentWindow,
	})

	if cfg.AutoRespond {
		if err := sched.Start(settingsFromConfig(cfg)); err != nil {
			log.Error().Err(err).Msg("automation auto-start failed")
		}
	}

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func settingsFromConfig(cfg shared.Config) domain.SettingsPatch {
	return domain.SettingsPatch{
		AutoRespond:         &cfg.AutoRespond,
		Tone:                &cfg.Tone,
		Language:            &cfg.Language,
		ResponseTemplate:    &cfg.ResponseTemplate,
		RespondToFourStar:   &cfg.RespondToFourStar,
		RespondToLowRatings: &cfg.RespondToLowRatings,
		Business: &domain.BusinessInfo{
			Name:   cfg.BusinessName,
			Type:   cfg.BusinessType,
			Values: cfg.BusinessValues,
		},
	}
}
