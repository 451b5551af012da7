package handlers

import (
	"net/http"

	"example.com/granary/internal/repositories"
	"example.com/granary/internal/services"
	"example.com/granary/internal/tracing"

	"github.com/gin-gonic/gin"
)

// ShipmentHandler handles shipment workflow requests
type ShipmentHandler struct {
	shipmentService *services.ShipmentService
	tracer          tracing.Tracer
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(shipmentService *services.ShipmentService, tracer tracing.Tracer) *ShipmentHandler {
	return &ShipmentHandler{
		shipmentService: shipmentService,
		tracer:          tracer,
	}
}

// HandleListShipments lists shipments with filters and pagination
func (h *ShipmentHandler) HandleListShipments(c *gin.Context) {
	filter := repositories.ShipmentFilter{
		ShipmentType:   c.Query("type"),
		Status:         c.Query("status"),
		SiloID:         queryUint(c, "silo_id"),
		MaterialTypeID: queryUint(c, "material_type_id"),
		Search:         c.Query("search"),
		DateFrom:       queryTime(c, "date_from"),
		DateTo:         queryTime(c, "date_to"),
		Page:           queryInt(c, "page", 1),
		PerPage:        queryInt(c, "per_page", 20),
	}

	shipments, pagination, err := h.shipmentService.ListShipments(c, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, "shipments retrieved", shipments, pagination)
}

// HandleGetShipment gets one shipment
func (h *ShipmentHandler) HandleGetShipment(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	shipment, err := h.shipmentService.GetShipment(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "shipment retrieved", shipment)
}

// HandleCreateShipment schedules a new shipment
func (h *ShipmentHandler) HandleCreateShipment(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-shipment")
	defer h.tracer.EndTransaction(txn)

	var input services.ShipmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	h.tracer.AddAttribute(txn, "shipment_type", input.ShipmentType)
	h.tracer.AddAttribute(txn, "silo_id", input.SiloID)

	shipment, err := h.shipmentService.CreateShipment(c, &input)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, "shipment created", shipment)
}

// HandleUpdateShipment updates logistics details of a scheduled shipment
func (h *ShipmentHandler) HandleUpdateShipment(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var input services.ShipmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	shipment, err := h.shipmentService.UpdateShipment(c, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "shipment updated", shipment)
}

// HandleStartShipment begins handling a shipment
func (h *ShipmentHandler) HandleStartShipment(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	shipment, err := h.shipmentService.StartShipment(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "shipment started", shipment)
}

// CompleteShipmentRequest carries the operator's confirmation code
type CompleteShipmentRequest struct {
	ConfirmationCode string `json:"confirmation_code" binding:"required"`
}

// HandleCompleteShipment confirms and completes a shipment
func (h *ShipmentHandler) HandleCompleteShipment(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-complete-shipment")
	defer h.tracer.EndTransaction(txn)

	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var req CompleteShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	shipment, err := h.shipmentService.CompleteShipment(c, id, req.ConfirmationCode)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "shipment completed", shipment)
}

// CancelShipmentRequest carries the cancellation reason
type CancelShipmentRequest struct {
	Reason string `json:"reason"`
}

// HandleCancelShipment cancels a shipment
func (h *ShipmentHandler) HandleCancelShipment(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var req CancelShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondBadRequest(c, err)
		return
	}

	shipment, err := h.shipmentService.CancelShipment(c, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "shipment cancelled", shipment)
}

// HandleSearchShipments runs a full-text search over indexed shipments
func (h *ShipmentHandler) HandleSearchShipments(c *gin.Context) {
	docs, err := h.shipmentService.SearchShipments(c, c.Query("q"), queryInt(c, "size", 20))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "shipments found", docs)
}

// RegisterRoutes registers the handler's routes
func (h *ShipmentHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")

	shipments := api.Group("/shipments")
	shipments.GET("", h.HandleListShipments)
	shipments.POST("", h.HandleCreateShipment)
	shipments.GET("/:id", h.HandleGetShipment)
	shipments.PUT("/:id", h.HandleUpdateShipment)
	shipments.POST("/:id/start", h.HandleStartShipment)
	shipments.POST("/:id/complete", h.HandleCompleteShipment)
	shipments.POST("/:id/cancel", h.HandleCancelShipment)

	api.GET("/search/shipments", h.HandleSearchShipments)
}
