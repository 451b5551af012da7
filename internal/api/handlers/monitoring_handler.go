package handlers

import (
	"net/http"
	"time"

	"example.com/granary/internal/services"
	"example.com/granary/internal/tracing"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler handles temperature and alert requests
type MonitoringHandler struct {
	alertService *services.AlertService
	tracer       tracing.Tracer
}

// NewMonitoringHandler creates a new monitoring handler
func NewMonitoringHandler(alertService *services.AlertService, tracer tracing.Tracer) *MonitoringHandler {
	return &MonitoringHandler{
		alertService: alertService,
		tracer:       tracer,
	}
}

// HandleListAlerts lists active alerts, optionally filtered by silo
func (h *MonitoringHandler) HandleListAlerts(c *gin.Context) {
	alerts, err := h.alertService.ListActiveAlerts(c, queryUint(c, "silo_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "alerts retrieved", alerts)
}

// HandleSiloTemperatures returns the latest classified readings of a silo
func (h *MonitoringHandler) HandleSiloTemperatures(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	readings, err := h.alertService.SiloTemperatures(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "silo temperatures retrieved", readings)
}

// HandleSensorHistory returns readings of one sensor in a time range
func (h *MonitoringHandler) HandleSensorHistory(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var from, to time.Time
	if t := queryTime(c, "from"); t != nil {
		from = *t
	}
	if t := queryTime(c, "to"); t != nil {
		to = *t
	}

	readings, err := h.alertService.SensorHistory(c, id, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "sensor history retrieved", readings)
}

// RegisterRoutes registers the handler's routes
func (h *MonitoringHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/alerts", h.HandleListAlerts)
	api.GET("/silos/:id/temperatures", h.HandleSiloTemperatures)
	api.GET("/sensors/:id/readings", h.HandleSensorHistory)
}
