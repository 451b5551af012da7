package api

import (
	"context"
	"net/http"
	"time"

	"example.com/granary/config"
	"example.com/granary/internal/api/handlers"
	"example.com/granary/internal/api/middleware"
	"example.com/granary/internal/metrics"
	"example.com/granary/internal/services"
	"example.com/granary/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	config           config.Config
	router           *gin.Engine
	httpServer       *http.Server
	warehouseService *services.WarehouseService
	shipmentService  *services.ShipmentService
	analyticsService *services.AnalyticsService
	alertService     *services.AlertService
	metrics          *metrics.Metrics
	tracer           tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	warehouseService *services.WarehouseService,
	shipmentService *services.ShipmentService,
	analyticsService *services.AnalyticsService,
	alertService *services.AlertService,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *Server {
	server := &Server{
		config:           cfg,
		warehouseService: warehouseService,
		shipmentService:  shipmentService,
		analyticsService: analyticsService,
		alertService:     alertService,
		metrics:          metricsCollector,
		tracer:           tracer,
	}

	router := server.setupRouter()
	server.router = router

	httpServer := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router,
	}
	server.httpServer = httpServer

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Recovery and request logging middleware
	router.Use(gin.Recovery())

	requestLogger := logrus.New()
	requestLogger.SetFormatter(&logrus.JSONFormatter{})
	router.Use(middleware.RequestLogger(requestLogger))

	// Register handlers
	warehouseHandler := handlers.NewWarehouseHandler(s.warehouseService, s.tracer)
	warehouseHandler.RegisterRoutes(router)

	shipmentHandler := handlers.NewShipmentHandler(s.shipmentService, s.tracer)
	shipmentHandler.RegisterRoutes(router)

	analyticsHandler := handlers.NewAnalyticsHandler(s.analyticsService, s.warehouseService, s.tracer)
	analyticsHandler.RegisterRoutes(router)

	monitoringHandler := handlers.NewMonitoringHandler(s.alertService, s.tracer)
	monitoringHandler.RegisterRoutes(router)

	metricsHandler := handlers.NewMetricsHandler(s.metrics, s.tracer)
	metricsHandler.RegisterRoutes(router)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	// Create a timeout context for shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
