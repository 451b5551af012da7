package handlers

import (
	"net/http"

	"example.com/granary/internal/services"
	"example.com/granary/internal/tracing"

	"github.com/gin-gonic/gin"
)

// AnalyticsHandler handles analytics and dashboard requests
type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
	warehouseService *services.WarehouseService
	tracer           tracing.Tracer
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(
	analyticsService *services.AnalyticsService,
	warehouseService *services.WarehouseService,
	tracer tracing.Tracer,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		warehouseService: warehouseService,
		tracer:           tracer,
	}
}

// HandleDashboard returns the dashboard summary
func (h *AnalyticsHandler) HandleDashboard(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-dashboard")
	defer h.tracer.EndTransaction(txn)

	summary, err := h.analyticsService.DashboardSummary(c)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "dashboard summary retrieved", summary)
}

// HandleFillLevels returns the fill level of every silo
func (h *AnalyticsHandler) HandleFillLevels(c *gin.Context) {
	levels, err := h.analyticsService.SiloFillLevels(c)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "fill levels retrieved", levels)
}

// HandleCapacityPrediction projects a silo's consumption trend
func (h *AnalyticsHandler) HandleCapacityPrediction(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	prediction, err := h.analyticsService.PredictCapacity(c, id, queryInt(c, "window_days", 30))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "capacity prediction retrieved", prediction)
}

// HandleShipmentAnalytics summarizes shipment activity
func (h *AnalyticsHandler) HandleShipmentAnalytics(c *gin.Context) {
	analytics, err := h.analyticsService.ShipmentAnalytics(c, queryTime(c, "date_from"), queryTime(c, "date_to"))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "shipment analytics retrieved", analytics)
}

// HandleInventorySummary aggregates current stock per material
func (h *AnalyticsHandler) HandleInventorySummary(c *gin.Context) {
	summary, err := h.warehouseService.InventorySummary(c)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "inventory summary retrieved", summary)
}

// RegisterRoutes registers the handler's routes
func (h *AnalyticsHandler) RegisterRoutes(router *gin.Engine) {
	analytics := router.Group("/api/analytics")
	analytics.GET("/dashboard", h.HandleDashboard)
	analytics.GET("/fill-levels", h.HandleFillLevels)
	analytics.GET("/shipments", h.HandleShipmentAnalytics)
	analytics.GET("/inventory", h.HandleInventorySummary)
	analytics.GET("/silos/:id/prediction", h.HandleCapacityPrediction)
}
