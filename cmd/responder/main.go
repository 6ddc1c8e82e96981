// Headless automation worker: polls for reviews and posts responses without
// exposing the HTTP surface. Useful for running alongside a separate API
// deployment that shares the redis ledger.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"gbp_responder/internal/adapters/google"
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

	log.Logger = observability.NewLogger(cfg.AppEnv, "responder")

	observability.Serve()

	log.Info().
		Str("gateway", cfg.GatewayMode).
		Str("ledger", cfg.LedgerBackend).
		Dur("interval", cfg.PollInterval).
		Int("workers", cfg.Workers).
		Msg("responder starting")

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
	}

	var ledger domain.Ledger
	switch cfg.LedgerBackend {
	case "redis":
		ledger = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
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
	default:
		gateway = google.NewMock()
	}

	var completer domain.Completer
	if cfg.OpenAIKey != "" {
		c, err := openai.New(cfg.OpenAIBase, cfg.OpenAIKey, cfg.OpenAIModel, 2)
		if err != nil {
			log.Fatal().Err(err).Msg("openai client init failed")
		}
		completer = c
	}

	gen := app.NewGenerator(completer, cfg.GenTimeout)
	coord := app.NewCoordinator(gateway, gen, ledger, notify.NewHub(), activity, app.Options{
		Deadline:     cfg.ResponseDeadline,
		UrgentWindow: cfg.UrgentWindow,
		DelayMin:     cfg.DelayMin,
		DelayMax:     cfg.DelayMax,
	})
	sched := app.NewScheduler(coord, gateway, cfg.PollInterval, cfg.Workers)

	enabled := true
	patch := domain.SettingsPatch{
		AutoRespond:         &enabled,
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
	if err := sched.Start(patch); err != nil {
		log.Fatal().Err(err).Msg("automation start failed")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	sched.Stop()
	log.Info().Msg("responder stopped")
}
