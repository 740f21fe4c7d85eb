package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/salesrouter/backend/internal/config"
	"github.com/salesrouter/backend/internal/db"
	"github.com/salesrouter/backend/internal/engine"
	httpapi "github.com/salesrouter/backend/internal/http"
	"github.com/salesrouter/backend/internal/http/handlers"
	"github.com/salesrouter/backend/internal/memstore"
	"github.com/salesrouter/backend/internal/scoring"
	"github.com/salesrouter/backend/internal/strategy"
)

// engineStore is the storage surface the routing engine and HTTP layer share.
type engineStore interface {
	handlers.Store
	engine.RepDirectory
	engine.RuleSource
	engine.AssignmentLog
	engine.LeadSource
	strategy.CursorStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "lead-router").Logger()

	ctx := context.Background()

	var store engineStore
	var closeStore func()
	if cfg.DatabaseURL == "" {
		store = memstore.New()
		closeStore = func() {}
		logger.Info().Msg("using in-memory store")
	} else {
		pg, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		store = pg
		closeStore = pg.Close
	}
	defer closeStore()

	var scorer scoring.Scorer
	if cfg.ScoringURL == "" {
		scorer = scoring.MockScorer{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock scorer")
	} else {
		scorer = scoring.HTTPScorer{BaseURL: cfg.ScoringURL}
	}

	eng := &engine.Engine{
		Reps:        store,
		Rules:       store,
		Assignments: store,
		Leads:       store,
		Selectors:   strategy.Selectors(store, scorer, cfg.ScoringTimeout, nil),
		Logger:      logger,
	}

	monitor := &engine.Monitor{
		Engine: eng,
		SLA:    cfg.SLAFor,
		Logger: logger,
	}
	if err := monitor.Start(cfg.SweepSchedule); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule escalation sweep")
	}
	defer monitor.Stop()

	router := httpapi.Router(cfg, store, eng, monitor, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
