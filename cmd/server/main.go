package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/leukemia-survival-server/internal/api"
	"github.com/leukemia-survival-server/internal/artifacts"
	"github.com/leukemia-survival-server/internal/config"
	"github.com/leukemia-survival-server/internal/service"
	"github.com/leukemia-survival-server/internal/trials"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(&cfg.Logging)

	// Load preprocessing artifacts and networks. The process must not
	// serve predictions with partially loaded artifacts.
	store, err := artifacts.Load(cfg.Models.Dir, logger)
	if err != nil {
		logger.Fatalf("Failed to load model artifacts: %v", err)
	}

	// Open the clinical trial registry
	trialStore, err := trials.NewStore(cfg.Trials.DatabasePath, cfg.Trials.CacheSize, logger)
	if err != nil {
		logger.Fatalf("Failed to open trial store: %v", err)
	}
	defer trialStore.Close()

	// Wire the prediction pipeline
	recon := service.NewReconstructor(store, logger)
	predictor := service.NewPredictor(store, recon, logger)
	cohort := service.NewCohortProcessor(predictor, logger)
	simulator := service.NewTreatmentSimulator(predictor, logger)

	logger.Infof("Starting leukemia survival server on %s:%d", cfg.Server.Host, cfg.Server.Port)

	server := api.NewServer(cfg, logger, predictor, cohort, simulator, trialStore)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}
