package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/api"
	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/database"
	"github.com/tradescan/perpsignal/internal/fetcher"
	"github.com/tradescan/perpsignal/internal/notifier"
	"github.com/tradescan/perpsignal/internal/repository"
	"github.com/tradescan/perpsignal/internal/services"
	"github.com/tradescan/perpsignal/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	signals := repository.NewSignalRepository(db.Pool)
	if err := signals.EnsureSchema(context.Background()); err != nil {
		logger.Fatalf("Failed to prepare database schema: %v", err)
	}

	ranks := store.NewRankListStore(redis.Client, 0)
	client := fetcher.NewClient(cfg.Exchange, logger)

	sink, err := notifier.NewTelegramNotifier(cfg.Telegram, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize telegram notifier: %v", err)
	}

	scanner := services.NewScanner(cfg, client, sink, signals, ranks, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, db, redis, ranks, signals, scanner.State())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		logger.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go runScanLoop(runCtx, cfg, scanner, client, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	// Let the scan loop finish the symbol it is on before stopping.
	scanner.State().RequestShutdown()
	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}
	logger.Info("Screener exited")
}

// runScanLoop drives the periodic scans: a watchlist refresh on its own
// slower cadence, then signal scans and screener rankings on the main
// interval. The first cycle runs immediately on startup.
func runScanLoop(ctx context.Context, cfg *config.Config, scanner *services.Scanner, client *fetcher.Client, logger *logrus.Logger) {
	refresh := func() {
		universe, err := client.FetchMarkets(ctx)
		if err != nil {
			logger.WithError(err).Warn("failed to fetch market universe")
			return
		}
		scanner.RefreshWatchlist(ctx, universe)
	}

	cycle := func() {
		scanner.Scan(ctx)
		scanner.RunScreeners(ctx, scanner.State().Watchlist())
	}

	refresh()
	cycle()

	scanTicker := time.NewTicker(cfg.Scan.ScanInterval())
	refreshTicker := time.NewTicker(cfg.Scan.RefreshInterval())
	defer scanTicker.Stop()
	defer refreshTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refreshTicker.C:
			refresh()
		case <-scanTicker.C:
			cycle()
		}
	}
}
