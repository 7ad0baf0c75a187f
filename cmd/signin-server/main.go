package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BikerAndy/site-signin/internal/config"
	"github.com/BikerAndy/site-signin/internal/db"
	"github.com/BikerAndy/site-signin/internal/httpapi"
	"github.com/BikerAndy/site-signin/internal/signin/service"
	"github.com/BikerAndy/site-signin/internal/signin/store"
	"github.com/BikerAndy/site-signin/internal/signin/store/memory"
	"github.com/BikerAndy/site-signin/internal/signin/store/sqlite"
)

func main() {
	logger := log.New(os.Stdout, "signin-server ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Printf("config error: %v (falling back to environment)", err)
		cfg = config.FromEnv()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	var (
		kv     store.KVStore
		pruner *service.HistoryPruner
	)
	switch cfg.Store {
	case "memory":
		logger.Printf("store: memory (state is lost on exit)")
		kv = memory.New()
	default:
		sqlDB, err := db.Open(ctx, db.Config{
			Path:     cfg.DBPath,
			Env:      cfg.Env,
			SiteName: cfg.SiteName,
		})
		if err != nil {
			logger.Fatalf("db open: %v", err)
		}
		defer sqlDB.Close()

		writer := db.NewWorker(sqlDB)
		defer writer.Close()

		kvStore := sqlite.NewKVStore(sqlDB, writer)
		kv = kvStore
		pruner = service.NewHistoryPruner(kvStore, service.PrunerConfig{
			Keep:          cfg.HistoryKeep,
			IntervalHours: cfg.PruneIntervalHours,
		}, logger)
		logger.Printf("store: sqlite (%s, env=%s)", cfg.DBPath, cfg.Env)
	}

	// Services
	kiosk := service.NewKioskService(kv, logger, service.Options{})
	kiosk.Load(ctx)

	if pruner != nil {
		pruner.Start(ctx)
		defer pruner.Stop()
	}

	// HTTP
	deps := httpapi.Dependencies{
		Logger:       logger,
		Addr:         cfg.HTTPAddr,
		KioskService: kiosk,
	}
	if cfg.MetricsEnabled {
		deps.MetricsHandle = promhttp.Handler()
	}
	srv := httpapi.NewServer(deps)

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
