package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// MaterialType represents a kind of bulk material stored in silos
type MaterialType struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Name        string    `gorm:"not null;uniqueIndex" json:"name"`
	NameAr      string    `gorm:"column:name_ar;not null" json:"name_ar"`
	Description *string   `json:"description"`
	IconPath    *string   `json:"icon_path"`
	ColorCode   string    `gorm:"not null;default:'#4ECDC4'" json:"color_code"`
	Density     float64   `gorm:"not null;default:1" json:"density"`
	Unit        string    `gorm:"not null;default:'tons'" json:"unit"`
	Notes       *string   `json:"notes"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
}

// SiloGroup groups silos by physical section
type SiloGroup struct {
	ID   uint    `gorm:"primaryKey" json:"id"`
	Name string  `gorm:"not null" json:"name"`
	Type *string `json:"type"`
}

// Silo represents a physical storage structure monitored by sensor cables
type Silo struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	SiloNumber  string   `gorm:"not null;uniqueIndex" json:"silo_number"`
	SiloGroupID *uint    `json:"silo_group_id"`
	GroupIndex  int      `gorm:"not null;default:0" json:"group_index"`
	CableCount  int      `gorm:"not null;default:0" json:"cable_count"`
	MaxCapacity float64  `gorm:"not null;default:100" json:"max_capacity"`
	ProductID   *uint    `json:"product_id"`
	Notes       *string  `json:"notes"`
	SiloGroup   *SiloGroup `gorm:"foreignKey:SiloGroupID" json:"-"`
	Product     *Product   `gorm:"foreignKey:ProductID" json:"-"`
	Cables      []Cable    `gorm:"foreignKey:SiloID" json:"-"`
}

// HasCables reports whether the silo has any sensor cables attached
func (s *Silo) HasCables() bool {
	return s.CableCount > 0
}

// Cable is a vertical string of temperature sensors inside a silo
type Cable struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	SiloID     uint `gorm:"not null;index" json:"silo_id"`
	CableIndex int  `gorm:"not null" json:"cable_index"`
	SlaveID    int  `gorm:"not null" json:"slave_id"`
	Channel    int  `gorm:"not null" json:"channel"`
	Sensors    []Sensor `gorm:"foreignKey:CableID" json:"-"`
}

// Sensor is a single temperature probe on a cable. Index 0 is the
// bottom of the silo.
type Sensor struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	CableID     uint `gorm:"not null;index" json:"cable_id"`
	SensorIndex int  `gorm:"not null" json:"sensor_index"`
}

// Product describes the stored product's temperature thresholds
type Product struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Name         string  `gorm:"not null" json:"name"`
	TempNormal   float64 `gorm:"not null" json:"temp_normal"`
	TempWarn     float64 `gorm:"not null" json:"temp_warn"`
	TempCritical float64 `gorm:"not null" json:"temp_critical"`
}

// TemperatureReading is a raw sensor reading ingested by the worker
type TemperatureReading struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	SensorID       uint      `gorm:"not null;index" json:"sensor_id"`
	ValueC         float64   `gorm:"column:value_c;not null" json:"value_c"`
	ReadAt         time.Time `gorm:"not null;index" json:"read_at"`
	IdempotencyKey uuid.UUID `gorm:"type:char(36);not null;uniqueIndex" json:"idempotency_key"`
}

// TableName keeps the original ingestion table name
func (TemperatureReading) TableName() string {
	return "readings_raw"
}

// Alert records a threshold breach for a silo level
type Alert struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SiloID      uint      `gorm:"not null;index" json:"silo_id"`
	LevelIndex  int       `gorm:"not null" json:"level_index"`
	LimitType   string    `gorm:"not null" json:"limit_type"`
	ThresholdC  float64   `gorm:"column:threshold_c;not null" json:"threshold_c"`
	Level       string    `gorm:"not null" json:"level"`
	FirstSeenAt time.Time `gorm:"not null" json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null" json:"last_seen_at"`
	Status      string    `gorm:"not null;default:'active'" json:"status"`
}

// IsActive reports whether the alert has not been resolved yet
func (a *Alert) IsActive() bool {
	return a.Status == "active"
}

// WarehouseInventory is the stock of one material in one silo
type WarehouseInventory struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	SiloID            uint       `gorm:"not null;index:idx_inventory_silo_material,unique" json:"silo_id"`
	MaterialTypeID    uint       `gorm:"not null;index:idx_inventory_silo_material,unique" json:"material_type_id"`
	Quantity          float64    `gorm:"not null;default:0" json:"quantity"`
	ReservedQuantity  float64    `gorm:"not null;default:0" json:"reserved_quantity"`
	AvailableQuantity float64    `gorm:"not null;default:0" json:"available_quantity"`
	EntryDate         time.Time  `gorm:"not null" json:"entry_date"`
	ExpiryDate        *time.Time `json:"expiry_date"`
	BatchNumber       *string    `json:"batch_number"`
	Supplier          *string    `json:"supplier"`
	QualityGrade      string     `gorm:"not null;default:'A'" json:"quality_grade"`
	PurchasePrice     *float64   `json:"purchase_price"`
	Notes             *string    `json:"notes"`
	LastUpdated       time.Time  `gorm:"autoUpdateTime" json:"last_updated"`
	Silo              Silo         `gorm:"foreignKey:SiloID" json:"-"`
	MaterialType      MaterialType `gorm:"foreignKey:MaterialTypeID" json:"-"`
}

// TableName keeps the singular table name of the original schema
func (WarehouseInventory) TableName() string {
	return "warehouse_inventory"
}

// Shipment represents a scheduled movement of material into or out of a silo
type Shipment struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ShipmentType     string     `gorm:"not null" json:"shipment_type"`
	ReferenceNumber  string     `gorm:"not null;uniqueIndex" json:"reference_number"`
	SiloID           uint       `gorm:"not null;index" json:"silo_id"`
	MaterialTypeID   uint       `gorm:"not null;index" json:"material_type_id"`
	Quantity         float64    `gorm:"not null" json:"quantity"`
	ScheduledDate    time.Time  `gorm:"not null;index" json:"scheduled_date"`
	ActualDate       *time.Time `json:"actual_date"`
	TruckPlate       *string    `json:"truck_plate"`
	DriverName       *string    `json:"driver_name"`
	DriverPhone      *string    `json:"driver_phone"`
	SupplierCustomer *string    `json:"supplier_customer"`
	Status           string     `gorm:"not null;default:'SCHEDULED'" json:"status"`
	ConfirmationCode *string    `json:"confirmation_code"`
	Notes            *string    `json:"notes"`
	CreatedBy        *uint      `json:"created_by"`
	Silo             Silo         `gorm:"foreignKey:SiloID" json:"-"`
	MaterialType     MaterialType `gorm:"foreignKey:MaterialTypeID" json:"-"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&MaterialType{},
		&SiloGroup{},
		&Silo{},
		&Cable{},
		&Sensor{},
		&Product{},
		&TemperatureReading{},
		&Alert{},
		&WarehouseInventory{},
		&Shipment{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
