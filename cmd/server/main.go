package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/welldanyogia/webrana-mailcore/internal/api"
	"github.com/welldanyogia/webrana-mailcore/internal/api/handlers"
	"github.com/welldanyogia/webrana-mailcore/internal/config"
	"github.com/welldanyogia/webrana-mailcore/internal/database"
	"github.com/welldanyogia/webrana-mailcore/internal/events"
	"github.com/welldanyogia/webrana-mailcore/internal/filter"
	"github.com/welldanyogia/webrana-mailcore/internal/jobs"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
	"github.com/welldanyogia/webrana-mailcore/internal/smtp"
	"github.com/welldanyogia/webrana-mailcore/internal/storage"
	"github.com/welldanyogia/webrana-mailcore/internal/websocket"
	gormlogger "gorm.io/gorm/logger"
)

// shutdownTimeout bounds the graceful stop of every server
const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Setup logger
	log := logger.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(log)
	audit := logger.NewAuditLogger(log)
	cfg.LogConfig(log)

	log.Info("Starting mailcore server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.ConnectWithConfig(cfg.DatabaseURL, database.DefaultPoolConfig(), gormlogger.Warn)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	txCfg := database.DefaultTxConfig(db)
	txCfg.MaxRetries = cfg.TxMaxRetries
	txCfg.Backoff = cfg.TxBackoff
	tx := database.NewTransactor(db, txCfg, log)

	// File storage
	files, err := storage.NewLocalStorage(cfg.AttachmentStoragePath)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Event queue feeding the search index and websocket clients
	queue := events.NewQueue(cfg.EventQueueSize, log)
	queue.Subscribe(events.NewIndexSubscriber(events.NewLogIndexer(log), log))

	deps := services.Deps{
		Tx:        tx,
		Storage:   files,
		Publisher: queue,
		Logger:    log,
		Audit:     audit,
	}
	pool := jobs.NewPool(cfg.WorkerPoolSize, log)

	mail := services.NewMailService(deps)
	filters := services.NewFilterService(deps, mail, pool, filter.NewRuleCache(cfg.RuleCacheTTL, 0))
	delivery := services.NewDeliveryService(deps, filters)
	mailboxes := services.NewMailboxService(deps)
	maintenance := services.NewMaintenanceService(deps, pool, cfg.JobTimeout)

	hub := websocket.NewHub(mailboxes, log)
	queue.Subscribe(hub)

	// Background workers
	scheduler := jobs.NewScheduler(log)
	if err := maintenance.Register(scheduler, cfg.GCSchedule, cfg.RecalcSchedule, cfg.GCRetention); err != nil {
		return fmt.Errorf("register maintenance: %w", err)
	}

	// The queue outlives ctx so events of in-flight requests are drained after Close
	queueCtx, cancelQueue := context.WithCancel(context.Background())
	defer cancelQueue()
	workersDone := make(chan struct{}, 2)
	go func() { queue.Run(queueCtx); workersDone <- struct{}{} }()
	go func() { hub.Run(ctx); workersDone <- struct{}{} }()
	scheduler.Start()

	// HTTP server
	e := api.NewRouter(ctx, &api.RouterConfig{
		DB:          db,
		Mail:        mail,
		Mailboxes:   mailboxes,
		Organizer:   services.NewOrganizerService(deps),
		Filters:     filters,
		Delivery:    delivery,
		Maintenance: maintenance,
		Counters:    services.NewFolderCounterService(deps),
		Hub:         hub,
		Logger:      log,
		Audit:       audit,
		HealthChecks: []handlers.Check{{
			Name: "storage",
			Probe: func(context.Context) error {
				_, err := os.Stat(cfg.AttachmentStoragePath)
				return err
			},
		}},
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.Origins(),
		Production:     cfg.IsProduction(),
		RateLimit:      cfg.RateLimitRequests,
		RateBurst:      cfg.RateLimitBurst,
		Hostname:       cfg.SMTPDomain,
	})

	// SMTP server
	smtpCfg, err := smtp.ServerConfigFrom(cfg)
	if err != nil {
		return fmt.Errorf("smtp config: %w", err)
	}
	smtpServer := smtp.NewSecureServer(smtp.NewBackend(&smtp.BackendConfig{
		Delivery:    delivery,
		Mailboxes:   mailboxes,
		FileStorage: files,
		Logger:      log,
	}), smtpCfg)

	errc := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", slog.Int("port", cfg.APIPort))
		if err := e.Start(fmt.Sprintf(":%d", cfg.APIPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info("SMTP server listening", slog.String("addr", smtpCfg.Addr))
		if err := smtpServer.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
			errc <- fmt.Errorf("smtp server: %w", err)
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err = <-errc:
		log.Error("server error, shutting down", slog.String("error", err.Error()))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serr := e.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", slog.String("error", serr.Error()))
	}
	if serr := smtpServer.Shutdown(shutdownCtx); serr != nil {
		log.Warn("smtp shutdown", slog.String("error", serr.Error()))
	}
	if serr := scheduler.Stop(shutdownCtx); serr != nil {
		log.Warn("scheduler shutdown", slog.String("error", serr.Error()))
	}
	queue.Close()
	for i := 0; i < cap(workersDone); i++ {
		select {
		case <-workersDone:
		case <-shutdownCtx.Done():
			cancelQueue()
		}
	}

	if sqlDB, derr := db.DB(); derr == nil {
		_ = sqlDB.Close()
	}

	log.Info("Server stopped")
	return err
}
