package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetcare-backend/config"
	"fleetcare-backend/internal/api"
	"fleetcare-backend/internal/db"
	"fleetcare-backend/internal/importer"
	"fleetcare-backend/internal/notification"
	"fleetcare-backend/internal/source"
	"fleetcare-backend/internal/store"
	"fleetcare-backend/internal/vault"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	logger := log.New(os.Stdout, "fleetcare-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ledger := store.NewGormLedger(gormDB)

	v, err := vault.New(cfg.Importer.VaultKeyPath)
	if err != nil {
		logger.Fatalf("failed to initialize credential vault: %v", err)
	}
	manager := source.NewManager(cfg.Importer.SourceConfigPath, v)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Push delivery is optional: without VAPID keys the importer still
	// runs, it just has nowhere to send critical alerts.
	var webpushOptions *webpush.Options
	var dispatcher importer.AlertDispatcher
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, ledger, webpushOptions)
		pool.Start(ctx)
		dispatcher = pool
		logger.Println("notification worker pool started")
	} else {
		logger.Println("VAPID keys not configured; push alerts disabled")
	}

	importSvc := importer.NewService(cfg, manager, ledger, dispatcher)
	go importSvc.Run(ctx)

	router := api.NewRouter(ledger, importSvc, manager, webpushOptions, api.RouterOptions{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		SourceTimeout:   time.Duration(cfg.Importer.TimeoutSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
