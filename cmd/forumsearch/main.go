package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forumsearch/internal/config"
	"forumsearch/internal/logging"
	"forumsearch/internal/services"
)

func main() {
	runAPI := flag.Bool("api", false, "run the search and admin API")
	runIndexer := flag.Bool("indexer", false, "run the real-time indexer")
	runAll := flag.Bool("all", false, "run all roles")
	configDir := flag.String("config", ".", "directory holding config.yml")
	flag.Parse()

	if *runAll || (!*runAPI && !*runIndexer) {
		*runAPI = true
		*runIndexer = true
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Shutdown()
	logger := slog.Default()

	logger.Info("starting forumsearch", "api", *runAPI, "indexer", *runIndexer)

	mgr := services.NewManager(cfg, services.Options{
		RunAPI:     *runAPI,
		RunIndexer: *runIndexer,
	}, logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	if err := mgr.Init(initCtx); err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	mgr.Start(bgCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	bgCancel()
	mgr.Shutdown(shutdownCtx)

	logger.Info("stopped")
}
