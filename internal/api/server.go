// Package api is the thin HTTP boundary around the prediction pipeline.
// It owns request validation and error mapping only; all algorithmic
// content lives in the service packages.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/leukemia-survival-server/internal/domain"
	"github.com/leukemia-survival-server/internal/middleware"
	"github.com/leukemia-survival-server/internal/service"
	"github.com/leukemia-survival-server/internal/trials"
)

// Server represents the HTTP server
type Server struct {
	cfg       *domain.Config
	logger    *logrus.Logger
	predictor *service.Predictor
	cohort    *service.CohortProcessor
	simulator *service.TreatmentSimulator
	trials    *trials.Store
	router    *gin.Engine
	server    *http.Server
}

// NewServer creates a new HTTP server instance over the wired services.
func NewServer(
	cfg *domain.Config,
	logger *logrus.Logger,
	predictor *service.Predictor,
	cohort *service.CohortProcessor,
	simulator *service.TreatmentSimulator,
	trialStore *trials.Store,
) *Server {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.NewRateLimiter(&cfg.RateLimit).Middleware())
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		predictor: predictor,
		cohort:    cohort,
		simulator: simulator,
		trials:    trialStore,
		router:    router,
	}

	s.setupRoutes()
	return s
}

// Router exposes the gin engine, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/predict", s.handlePredict)
		api.POST("/treatment-simulation", s.handleTreatmentSimulation)
		api.POST("/cohort-upload", s.handleCohortUpload)
		api.POST("/trials/match", s.handleTrialMatch)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}
