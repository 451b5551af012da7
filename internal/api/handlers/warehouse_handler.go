package handlers

import (
	"net/http"

	"example.com/granary/internal/repositories"
	"example.com/granary/internal/services"
	"example.com/granary/internal/tracing"

	"github.com/gin-gonic/gin"
)

// WarehouseHandler handles material type, silo and inventory requests
type WarehouseHandler struct {
	warehouseService *services.WarehouseService
	tracer           tracing.Tracer
}

// NewWarehouseHandler creates a new warehouse handler
func NewWarehouseHandler(warehouseService *services.WarehouseService, tracer tracing.Tracer) *WarehouseHandler {
	return &WarehouseHandler{
		warehouseService: warehouseService,
		tracer:           tracer,
	}
}

// HandleListMaterialTypes lists material types, optionally annotated
// with silo counts
func (h *WarehouseHandler) HandleListMaterialTypes(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"

	if c.Query("with_counts") == "true" {
		types, err := h.warehouseService.ListMaterialTypesWithCounts(c, includeInactive)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, "material types retrieved", types)
		return
	}

	types, err := h.warehouseService.ListMaterialTypes(c, includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "material types retrieved", types)
}

// HandleGetMaterialType gets one material type
func (h *WarehouseHandler) HandleGetMaterialType(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	materialType, err := h.warehouseService.GetMaterialType(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "material type retrieved", materialType)
}

// HandleCreateMaterialType creates a material type
func (h *WarehouseHandler) HandleCreateMaterialType(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-material-type")
	defer h.tracer.EndTransaction(txn)

	var input services.MaterialTypeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	materialType, err := h.warehouseService.CreateMaterialType(c, &input)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, "material type created", materialType)
}

// HandleUpdateMaterialType updates a material type
func (h *WarehouseHandler) HandleUpdateMaterialType(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var input services.MaterialTypeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	materialType, err := h.warehouseService.UpdateMaterialType(c, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "material type updated", materialType)
}

// HandleDeleteMaterialType soft-deletes a material type
func (h *WarehouseHandler) HandleDeleteMaterialType(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.warehouseService.DeleteMaterialType(c, id); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "material type deleted", nil)
}

// HandleListSilos lists all silos
func (h *WarehouseHandler) HandleListSilos(c *gin.Context) {
	silos, err := h.warehouseService.ListSilos(c)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "silos retrieved", silos)
}

// HandleGetSilo gets one silo
func (h *WarehouseHandler) HandleGetSilo(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	silo, err := h.warehouseService.GetSilo(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "silo retrieved", silo)
}

// SiloNotesRequest carries the new notes for a silo. A null value
// clears them.
type SiloNotesRequest struct {
	Notes *string `json:"notes"`
}

// HandleUpdateSiloNotes updates the operator notes of a silo
func (h *WarehouseHandler) HandleUpdateSiloNotes(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var req SiloNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	silo, err := h.warehouseService.UpdateSiloNotes(c, id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "silo notes updated", silo)
}

// HandleSearchSilos finds silos by the material they hold
func (h *WarehouseHandler) HandleSearchSilos(c *gin.Context) {
	silos, err := h.warehouseService.SearchSilosByMaterial(c, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "silos retrieved", silos)
}

// HandleListSiloInventory lists the inventory of one silo
func (h *WarehouseHandler) HandleListSiloInventory(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	rows, err := h.warehouseService.ListSiloInventory(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "silo inventory retrieved", rows)
}

// HandleListInventory lists inventory with filters and pagination
func (h *WarehouseHandler) HandleListInventory(c *gin.Context) {
	filter := repositories.InventoryFilter{
		SiloID:             queryUint(c, "silo_id"),
		MaterialTypeID:     queryUint(c, "material_type_id"),
		MinQuantity:        queryFloat(c, "min_quantity"),
		ExpiringWithinDays: queryInt(c, "expiring_within_days", 0),
		Page:               queryInt(c, "page", 1),
		PerPage:            queryInt(c, "per_page", 20),
	}

	rows, pagination, err := h.warehouseService.ListInventory(c, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, "inventory retrieved", rows, pagination)
}

// HandleGetInventory gets one inventory row
func (h *WarehouseHandler) HandleGetInventory(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	row, err := h.warehouseService.GetInventory(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "inventory retrieved", row)
}

// HandleCreateInventory creates an inventory row
func (h *WarehouseHandler) HandleCreateInventory(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-inventory")
	defer h.tracer.EndTransaction(txn)

	var input services.InventoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	row, err := h.warehouseService.CreateInventory(c, &input)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, "inventory created", row)
}

// HandleDeleteInventory deletes an inventory row
func (h *WarehouseHandler) HandleDeleteInventory(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.warehouseService.DeleteInventory(c, id); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "inventory deleted", nil)
}

// StockAdjustmentRequest moves quantity in or out of an inventory row
type StockAdjustmentRequest struct {
	SiloID         uint    `json:"silo_id" binding:"required"`
	MaterialTypeID uint    `json:"material_type_id" binding:"required"`
	Quantity       float64 `json:"quantity" binding:"required,gt=0"`
}

// HandleAddStock adds quantity to an inventory row
func (h *WarehouseHandler) HandleAddStock(c *gin.Context) {
	var req StockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	row, err := h.warehouseService.AddStock(c, req.SiloID, req.MaterialTypeID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "stock added", row)
}

// HandleRemoveStock removes unreserved quantity from an inventory row
func (h *WarehouseHandler) HandleRemoveStock(c *gin.Context) {
	var req StockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	row, err := h.warehouseService.RemoveStock(c, req.SiloID, req.MaterialTypeID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "stock removed", row)
}

// RegisterRoutes registers the handler's routes
func (h *WarehouseHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")

	materials := api.Group("/materials")
	materials.GET("", h.HandleListMaterialTypes)
	materials.POST("", h.HandleCreateMaterialType)
	materials.GET("/:id", h.HandleGetMaterialType)
	materials.PUT("/:id", h.HandleUpdateMaterialType)
	materials.DELETE("/:id", h.HandleDeleteMaterialType)

	silos := api.Group("/silos")
	silos.GET("", h.HandleListSilos)
	silos.GET("/:id", h.HandleGetSilo)
	silos.PATCH("/:id", h.HandleUpdateSiloNotes)
	silos.GET("/:id/inventory", h.HandleListSiloInventory)

	api.GET("/search/silos", h.HandleSearchSilos)

	inventory := api.Group("/inventory")
	inventory.GET("", h.HandleListInventory)
	inventory.POST("", h.HandleCreateInventory)
	inventory.GET("/:id", h.HandleGetInventory)
	inventory.DELETE("/:id", h.HandleDeleteInventory)

	stock := api.Group("/stock")
	stock.POST("/add", h.HandleAddStock)
	stock.POST("/remove", h.HandleRemoveStock)
}
