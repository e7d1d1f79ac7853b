package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cehupo-sync/internal/config"
	"cehupo-sync/internal/database"
	"cehupo-sync/internal/export"
	"cehupo-sync/internal/logger"
	"cehupo-sync/internal/merge"
	"cehupo-sync/internal/mqtt"
	"cehupo-sync/internal/portal"
	"cehupo-sync/internal/repository"
	syncengine "cehupo-sync/internal/sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "cehupo-sync")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	var cache *portal.PageCache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		cache = portal.NewPageCache(redisClient, cfg.Redis.PageTTL, log)
		log.Info("page cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	clientsRepo := repository.NewClientsRepo(db)
	visitsRepo := repository.NewVisitsRepo(db)
	merger := merge.NewMerger(db, clientsRepo, visitsRepo, log)

	opts := syncengine.Options{
		MaxConcurrent: cfg.Sync.MaxConcurrent,
		RequestDelay:  cfg.Sync.RequestDelay,
		ClientLimit:   cfg.Sync.ClientLimit,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var trigger *mqtt.Trigger
	if cfg.MQTT.Enabled {
		trigger, err = mqtt.NewTrigger(cfg.MQTT, log)
		if err != nil {
			log.Fatal("failed to connect MQTT trigger", zap.Error(err))
		}
		defer trigger.Close()
	}

	runOnce := func() {
		// Each run gets a fresh portal session so a terminal auth failure
		// in one run never poisons the next.
		session := portal.NewSession(cfg.Portal, portal.DefaultSigninDetector, cache, log)
		defer session.Close()

		orch := syncengine.NewOrchestrator(session, clientsRepo, merger, opts, log)
		report, err := orch.Run(ctx)
		if err != nil {
			log.Error("sync run failed", zap.Error(err))
		}
		if report == nil {
			return
		}
		if cfg.ExportPath != "" {
			if err := export.WriteReport(report, cfg.ExportPath); err != nil {
				log.Error("failed to export report", zap.Error(err))
			} else {
				log.Info("report exported", zap.String("path", cfg.ExportPath))
			}
		}
	}

	runOnce()
	if cfg.Sync.RunInterval <= 0 && trigger == nil {
		return
	}

	var tick <-chan time.Time
	if cfg.Sync.RunInterval > 0 {
		ticker := time.NewTicker(cfg.Sync.RunInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	var triggerCh <-chan struct{}
	if trigger != nil {
		triggerCh = trigger.Requests()
	}

	for {
		select {
		case <-sigCh:
			log.Info("shutting down")
			cancel()
			return
		case <-tick:
			runOnce()
		case <-triggerCh:
			log.Info("sync run requested over MQTT")
			runOnce()
		}
	}
}
