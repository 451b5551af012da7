package repositories

import (
	"context"
	"time"

	"example.com/granary/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaterialTypeRepository provides access to material type data
type MaterialTypeRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewMaterialTypeRepository creates a new material type repository
func NewMaterialTypeRepository(db *gorm.DB, readOnlyDB *gorm.DB) *MaterialTypeRepository {
	return &MaterialTypeRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// List gets material types, active ones only unless includeInactive is set
func (r *MaterialTypeRepository) List(ctx context.Context, includeInactive bool) ([]models.MaterialType, error) {
	var types []models.MaterialType
	// Use read-only DB for reads
	query := r.readOnlyDB.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&types).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list material types")
	}
	return types, nil
}

// MaterialTypeWithCount pairs a material type with how many silos hold it
type MaterialTypeWithCount struct {
	models.MaterialType
	SiloCount int64 `json:"silo_count"`
}

// ListWithInventoryCount gets material types together with the number
// of silos currently holding each one.
func (r *MaterialTypeRepository) ListWithInventoryCount(ctx context.Context, includeInactive bool) ([]MaterialTypeWithCount, error) {
	query := r.readOnlyDB.WithContext(ctx).
		Model(&models.MaterialType{}).
		Select(`material_types.*,
			COUNT(DISTINCT warehouse_inventory.silo_id) AS silo_count`).
		Joins(`LEFT JOIN warehouse_inventory
			ON warehouse_inventory.material_type_id = material_types.id
			AND warehouse_inventory.quantity > 0`).
		Group("material_types.id").
		Order("material_types.name ASC")
	if !includeInactive {
		query = query.Where("material_types.is_active = ?", true)
	}

	var types []MaterialTypeWithCount
	if err := query.Scan(&types).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list material types with counts")
	}
	return types, nil
}

// GetByID gets a material type by ID
func (r *MaterialTypeRepository) GetByID(ctx context.Context, id uint) (*models.MaterialType, error) {
	var materialType models.MaterialType
	// Use read-only DB for reads
	err := r.readOnlyDB.WithContext(ctx).First(&materialType, id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get material type by ID")
	}
	return &materialType, nil
}

// Create creates a new material type
func (r *MaterialTypeRepository) Create(ctx context.Context, materialType *models.MaterialType) error {
	// Use write DB for writes
	return r.db.WithContext(ctx).Create(materialType).Error
}

// Save persists changes to a material type
func (r *MaterialTypeRepository) Save(ctx context.Context, materialType *models.MaterialType) error {
	// Use write DB for writes
	return r.db.WithContext(ctx).Save(materialType).Error
}

// Deactivate soft-deletes a material type by clearing its active flag
func (r *MaterialTypeRepository) Deactivate(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.MaterialType{}).
		Where("id = ?", id).
		Update("is_active", false)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to deactivate material type")
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// InUse reports whether any inventory rows or unfinished shipments
// still reference the material type.
func (r *MaterialTypeRepository) InUse(ctx context.Context, id uint) (bool, error) {
	var inventoryCount int64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.WarehouseInventory{}).
		Where("material_type_id = ? AND quantity > 0", id).
		Count(&inventoryCount).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to count inventory for material type")
	}
	if inventoryCount > 0 {
		return true, nil
	}

	var shipmentCount int64
	err = r.readOnlyDB.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("material_type_id = ? AND status NOT IN ?", id,
			[]string{models.StatusCompleted, models.StatusCancelled}).
		Count(&shipmentCount).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to count shipments for material type")
	}

	return shipmentCount > 0, nil
}

// SiloRepository provides access to silo data
type SiloRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewSiloRepository creates a new silo repository
func NewSiloRepository(db *gorm.DB, readOnlyDB *gorm.DB) *SiloRepository {
	return &SiloRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// List gets all silos with their groups and products preloaded
func (r *SiloRepository) List(ctx context.Context) ([]models.Silo, error) {
	var silos []models.Silo
	err := r.readOnlyDB.WithContext(ctx).
		Preload("SiloGroup").
		Preload("Product").
		Order("group_index ASC, silo_number ASC").
		Find(&silos).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list silos")
	}
	return silos, nil
}

// GetByID gets a silo by ID
func (r *SiloRepository) GetByID(ctx context.Context, id uint) (*models.Silo, error) {
	var silo models.Silo
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Product").
		First(&silo, id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get silo by ID")
	}
	return &silo, nil
}

// SearchByMaterial gets silos currently holding a material whose name
// matches the term in either language.
func (r *SiloRepository) SearchByMaterial(ctx context.Context, term string) ([]models.Silo, error) {
	like := "%" + term + "%"

	var silos []models.Silo
	err := r.readOnlyDB.WithContext(ctx).
		Distinct("silos.*").
		Joins("JOIN warehouse_inventory ON warehouse_inventory.silo_id = silos.id AND warehouse_inventory.quantity > 0").
		Joins("JOIN material_types ON material_types.id = warehouse_inventory.material_type_id").
		Where("material_types.name LIKE ? OR material_types.name_ar LIKE ?", like, like).
		Order("silos.silo_number ASC").
		Find(&silos).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to search silos by material")
	}
	return silos, nil
}

// UpdateNotes updates the operator notes of a silo
func (r *SiloRepository) UpdateNotes(ctx context.Context, id uint, notes *string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Silo{}).
		Where("id = ?", id).
		Update("notes", notes)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update silo notes")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetWithCables gets a silo with its full cable and sensor layout
func (r *SiloRepository) GetWithCables(ctx context.Context, id uint) (*models.Silo, error) {
	var silo models.Silo
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Product").
		Preload("Cables", func(db *gorm.DB) *gorm.DB {
			return db.Order("cable_index ASC")
		}).
		Preload("Cables.Sensors", func(db *gorm.DB) *gorm.DB {
			return db.Order("sensor_index ASC")
		}).
		First(&silo, id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get silo with cables")
	}
	return &silo, nil
}

// InventoryFilter narrows inventory listings
type InventoryFilter struct {
	SiloID             uint
	MaterialTypeID     uint
	MinQuantity        float64
	ExpiringWithinDays int
	Page               int
	PerPage            int
}

// InventoryRepository provides access to warehouse inventory data
type InventoryRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *gorm.DB, readOnlyDB *gorm.DB) *InventoryRepository {
	return &InventoryRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// List gets inventory rows matching the filter, with the total count
func (r *InventoryRepository) List(ctx context.Context, filter InventoryFilter) ([]models.WarehouseInventory, int64, error) {
	query := r.readOnlyDB.WithContext(ctx).Model(&models.WarehouseInventory{})

	if filter.SiloID != 0 {
		query = query.Where("silo_id = ?", filter.SiloID)
	}
	if filter.MaterialTypeID != 0 {
		query = query.Where("material_type_id = ?", filter.MaterialTypeID)
	}
	if filter.MinQuantity > 0 {
		query = query.Where("quantity >= ?", filter.MinQuantity)
	}
	if filter.ExpiringWithinDays > 0 {
		deadline := time.Now().AddDate(0, 0, filter.ExpiringWithinDays)
		query = query.Where("expiry_date IS NOT NULL AND expiry_date <= ?", deadline)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count inventory")
	}

	var rows []models.WarehouseInventory
	err := query.
		Preload("Silo").
		Preload("MaterialType").
		Order("last_updated DESC").
		Offset((filter.Page - 1) * filter.PerPage).
		Limit(filter.PerPage).
		Find(&rows).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list inventory")
	}

	return rows, total, nil
}

// ListBySilo gets all inventory rows for one silo
func (r *InventoryRepository) ListBySilo(ctx context.Context, siloID uint) ([]models.WarehouseInventory, error) {
	var rows []models.WarehouseInventory
	err := r.readOnlyDB.WithContext(ctx).
		Preload("MaterialType").
		Where("silo_id = ?", siloID).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list inventory by silo")
	}
	return rows, nil
}

// GetByID gets an inventory row by ID
func (r *InventoryRepository) GetByID(ctx context.Context, id uint) (*models.WarehouseInventory, error) {
	var row models.WarehouseInventory
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Silo").
		Preload("MaterialType").
		First(&row, id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get inventory by ID")
	}
	return &row, nil
}

// GetBySiloAndMaterial gets the inventory row for one material in one silo
func (r *InventoryRepository) GetBySiloAndMaterial(ctx context.Context, siloID, materialTypeID uint) (*models.WarehouseInventory, error) {
	var row models.WarehouseInventory
	err := r.readOnlyDB.WithContext(ctx).
		Where("silo_id = ? AND material_type_id = ?", siloID, materialTypeID).
		First(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get inventory by silo and material")
	}
	return &row, nil
}

// GetForUpdateTx locks and returns the inventory row inside a transaction
func (r *InventoryRepository) GetForUpdateTx(ctx context.Context, tx *gorm.DB, siloID, materialTypeID uint) (*models.WarehouseInventory, error) {
	var row models.WarehouseInventory
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("silo_id = ? AND material_type_id = ?", siloID, materialTypeID).
		First(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock inventory row")
	}
	return &row, nil
}

// Create creates a new inventory row
func (r *InventoryRepository) Create(ctx context.Context, row *models.WarehouseInventory) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// Save persists changes to an inventory row
func (r *InventoryRepository) Save(ctx context.Context, row *models.WarehouseInventory) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// SaveTx persists changes to an inventory row inside a transaction
func (r *InventoryRepository) SaveTx(ctx context.Context, tx *gorm.DB, row *models.WarehouseInventory) error {
	return tx.WithContext(ctx).Save(row).Error
}

// Delete removes an inventory row
func (r *InventoryRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.WarehouseInventory{}, id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete inventory")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MaterialSummary aggregates inventory per material type
type MaterialSummary struct {
	MaterialTypeID uint    `json:"material_type_id"`
	MaterialName   string  `json:"material_name"`
	TotalQuantity  float64 `json:"total_quantity"`
	TotalReserved  float64 `json:"total_reserved"`
	TotalAvailable float64 `json:"total_available"`
	SiloCount      int64   `json:"silo_count"`
}

// Summary aggregates current stock per material type
func (r *InventoryRepository) Summary(ctx context.Context) ([]MaterialSummary, error) {
	var summaries []MaterialSummary
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.WarehouseInventory{}).
		Select(`warehouse_inventory.material_type_id,
			material_types.name AS material_name,
			SUM(warehouse_inventory.quantity) AS total_quantity,
			SUM(warehouse_inventory.reserved_quantity) AS total_reserved,
			SUM(warehouse_inventory.available_quantity) AS total_available,
			COUNT(DISTINCT warehouse_inventory.silo_id) AS silo_count`).
		Joins("JOIN material_types ON material_types.id = warehouse_inventory.material_type_id").
		Group("warehouse_inventory.material_type_id, material_types.name").
		Scan(&summaries).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize inventory")
	}
	return summaries, nil
}

// ShipmentFilter narrows shipment listings. Search matches reference,
// truck plate, driver and counterparty with LIKE.
type ShipmentFilter struct {
	ShipmentType   string
	Status         string
	SiloID         uint
	MaterialTypeID uint
	Search         string
	DateFrom       *time.Time
	DateTo         *time.Time
	Page           int
	PerPage        int
}

// ShipmentRepository provides access to shipment data
type ShipmentRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// List gets shipments matching the filter, with the total count
func (r *ShipmentRepository) List(ctx context.Context, filter ShipmentFilter) ([]models.Shipment, int64, error) {
	query := r.readOnlyDB.WithContext(ctx).Model(&models.Shipment{})

	if filter.ShipmentType != "" {
		query = query.Where("shipment_type = ?", filter.ShipmentType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SiloID != 0 {
		query = query.Where("silo_id = ?", filter.SiloID)
	}
	if filter.MaterialTypeID != 0 {
		query = query.Where("material_type_id = ?", filter.MaterialTypeID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where(
			"reference_number LIKE ? OR truck_plate LIKE ? OR driver_name LIKE ? OR supplier_customer LIKE ?",
			like, like, like, like)
	}
	if filter.DateFrom != nil {
		query = query.Where("scheduled_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("scheduled_date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count shipments")
	}

	var shipments []models.Shipment
	err := query.
		Preload("Silo").
		Preload("MaterialType").
		Order("scheduled_date DESC").
		Offset((filter.Page - 1) * filter.PerPage).
		Limit(filter.PerPage).
		Find(&shipments).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list shipments")
	}

	return shipments, total, nil
}

// GetByID gets a shipment by ID
func (r *ShipmentRepository) GetByID(ctx context.Context, id uint) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Silo").
		Preload("MaterialType").
		First(&shipment, id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get shipment by ID")
	}
	return &shipment, nil
}

// GetByReference gets a shipment by its reference number
func (r *ShipmentRepository) GetByReference(ctx context.Context, reference string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.readOnlyDB.WithContext(ctx).
		Where("reference_number = ?", reference).
		First(&shipment).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get shipment by reference")
	}
	return &shipment, nil
}

// Create creates a new shipment
func (r *ShipmentRepository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

// CreateTx creates a new shipment inside a transaction
func (r *ShipmentRepository) CreateTx(ctx context.Context, tx *gorm.DB, shipment *models.Shipment) error {
	return tx.WithContext(ctx).Create(shipment).Error
}

// Save persists changes to a shipment
func (r *ShipmentRepository) Save(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Save(shipment).Error
}

// SaveTx persists changes to a shipment inside a transaction
func (r *ShipmentRepository) SaveTx(ctx context.Context, tx *gorm.DB, shipment *models.Shipment) error {
	return tx.WithContext(ctx).Save(shipment).Error
}

// GetForUpdateTx locks and returns a shipment inside a transaction
func (r *ShipmentRepository) GetForUpdateTx(ctx context.Context, tx *gorm.DB, id uint) (*models.Shipment, error) {
	var shipment models.Shipment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shipment, id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock shipment")
	}
	return &shipment, nil
}

// StatusCount is a count of shipments in one status
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Stats aggregates shipment counts by status within a date range
func (r *ShipmentRepository) Stats(ctx context.Context, dateFrom, dateTo *time.Time) ([]StatusCount, error) {
	query := r.readOnlyDB.WithContext(ctx).Model(&models.Shipment{})
	if dateFrom != nil {
		query = query.Where("scheduled_date >= ?", *dateFrom)
	}
	if dateTo != nil {
		query = query.Where("scheduled_date <= ?", *dateTo)
	}

	var counts []StatusCount
	err := query.
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate shipment stats")
	}
	return counts, nil
}

// AlertRepository provides access to alert data
type AlertRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB, readOnlyDB *gorm.DB) *AlertRepository {
	return &AlertRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// ListActive gets active alerts, optionally restricted to one silo
func (r *AlertRepository) ListActive(ctx context.Context, siloID uint) ([]models.Alert, error) {
	query := r.readOnlyDB.WithContext(ctx).
		Where("status = ?", models.AlertStatusActive)
	if siloID != 0 {
		query = query.Where("silo_id = ?", siloID)
	}

	var alerts []models.Alert
	err := query.Order("last_seen_at DESC").Find(&alerts).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active alerts")
	}
	return alerts, nil
}

// FindOpen gets the active alert for a silo level and limit type, if any
func (r *AlertRepository) FindOpen(ctx context.Context, siloID uint, levelIndex int, limitType string) (*models.Alert, error) {
	var alert models.Alert
	err := r.readOnlyDB.WithContext(ctx).
		Where("silo_id = ? AND level_index = ? AND limit_type = ? AND status = ?",
			siloID, levelIndex, limitType, models.AlertStatusActive).
		First(&alert).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find open alert")
	}
	return &alert, nil
}

// Create creates a new alert
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// Save persists changes to an alert
func (r *AlertRepository) Save(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

// Resolve marks all active alerts for a silo level and limit type resolved
func (r *AlertRepository) Resolve(ctx context.Context, siloID uint, levelIndex int, limitType string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("silo_id = ? AND level_index = ? AND limit_type = ? AND status = ?",
			siloID, levelIndex, limitType, models.AlertStatusActive).
		Update("status", models.AlertStatusResolved)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to resolve alerts")
	}
	return nil
}

// ReadingRepository provides access to raw temperature readings
type ReadingRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ReadingRepository {
	return &ReadingRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Insert stores a reading, ignoring duplicates on the idempotency key
func (r *ReadingRepository) Insert(ctx context.Context, reading *models.TemperatureReading) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reading).Error
}

// SensorReading pairs a sensor with its most recent value
type SensorReading struct {
	SensorID    uint      `json:"sensor_id"`
	CableIndex  int       `json:"cable_index"`
	SensorIndex int       `json:"sensor_index"`
	ValueC      float64   `json:"value_c"`
	ReadAt      time.Time `json:"read_at"`
}

// LatestBySilo gets the most recent reading of every sensor in a silo
func (r *ReadingRepository) LatestBySilo(ctx context.Context, siloID uint) ([]SensorReading, error) {
	var readings []SensorReading
	err := r.readOnlyDB.WithContext(ctx).
		Table("readings_raw").
		Select(`readings_raw.sensor_id,
			cables.cable_index,
			sensors.sensor_index,
			readings_raw.value_c,
			readings_raw.read_at`).
		Joins("JOIN sensors ON sensors.id = readings_raw.sensor_id").
		Joins("JOIN cables ON cables.id = sensors.cable_id").
		Where("cables.silo_id = ?", siloID).
		Where(`readings_raw.id IN (
			SELECT MAX(rr.id) FROM readings_raw rr GROUP BY rr.sensor_id)`).
		Order("cables.cable_index ASC, sensors.sensor_index ASC").
		Scan(&readings).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest readings by silo")
	}
	return readings, nil
}

// HistoryBySensor gets readings for one sensor within a time range
func (r *ReadingRepository) HistoryBySensor(ctx context.Context, sensorID uint, from, to time.Time) ([]models.TemperatureReading, error) {
	var readings []models.TemperatureReading
	err := r.readOnlyDB.WithContext(ctx).
		Where("sensor_id = ? AND read_at BETWEEN ? AND ?", sensorID, from, to).
		Order("read_at ASC").
		Find(&readings).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reading history")
	}
	return readings, nil
}
