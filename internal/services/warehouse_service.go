package services

import (
	"context"
	"time"

	"example.com/granary/internal/cache"
	"example.com/granary/internal/metrics"
	"example.com/granary/internal/models"
	"example.com/granary/internal/repositories"
	"example.com/granary/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const materialTypeCacheTTL = 5 * time.Minute

// WarehouseService handles material types, silos and inventory
type WarehouseService struct {
	db            *gorm.DB // Write database
	readOnlyDB    *gorm.DB // Read-only database
	materialRepo  *repositories.MaterialTypeRepository
	siloRepo      *repositories.SiloRepository
	inventoryRepo *repositories.InventoryRepository
	cache         *cache.RedisCache
	metrics       *metrics.Metrics
	tracer        tracing.Tracer
}

// NewWarehouseService creates a new warehouse service
func NewWarehouseService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	cache *cache.RedisCache,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *WarehouseService {
	return &WarehouseService{
		db:            db,
		readOnlyDB:    readOnlyDB,
		materialRepo:  repositories.NewMaterialTypeRepository(db, readOnlyDB),
		siloRepo:      repositories.NewSiloRepository(db, readOnlyDB),
		inventoryRepo: repositories.NewInventoryRepository(db, readOnlyDB),
		cache:         cache,
		metrics:       metricsCollector,
		tracer:        tracer,
	}
}

// MaterialTypeInput carries the writable fields of a material type
type MaterialTypeInput struct {
	Name        string   `json:"name"`
	NameAr      string   `json:"name_ar"`
	Description *string  `json:"description"`
	IconPath    *string  `json:"icon_path"`
	ColorCode   string   `json:"color_code"`
	Density     float64  `json:"density"`
	Unit        string   `json:"unit"`
	Notes       *string  `json:"notes"`
}

func (in *MaterialTypeInput) validate() error {
	if in.Name == "" {
		return errors.Wrap(ErrValidation, "name is required")
	}
	if err := models.ValidateDensity(in.Density); err != nil {
		return errors.Wrap(ErrValidation, err.Error())
	}
	return nil
}

// ListMaterialTypes gets material types, serving from cache when possible
func (s *WarehouseService) ListMaterialTypes(ctx context.Context, includeInactive bool) ([]models.MaterialType, error) {
	cacheKey := cache.MaterialTypesCacheKey(includeInactive)

	var cached []models.MaterialType
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		s.metrics.IncrementCounter("material_types.cache_hit")
		return cached, nil
	}

	types, err := s.materialRepo.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, types, materialTypeCacheTTL); err != nil {
		log.Debug().Err(err).Msg("Failed to cache material types")
	}

	return types, nil
}

// ListMaterialTypesWithCounts gets material types annotated with how
// many silos currently hold each one. Not cached, the join is cheap
// and the counts go stale with every shipment.
func (s *WarehouseService) ListMaterialTypesWithCounts(ctx context.Context, includeInactive bool) ([]repositories.MaterialTypeWithCount, error) {
	return s.materialRepo.ListWithInventoryCount(ctx, includeInactive)
}

// GetMaterialType gets one material type by ID
func (s *WarehouseService) GetMaterialType(ctx context.Context, id uint) (*models.MaterialType, error) {
	materialType, err := s.materialRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "material type not found")
		}
		return nil, err
	}
	return materialType, nil
}

// CreateMaterialType creates a new material type
func (s *WarehouseService) CreateMaterialType(ctx context.Context, input *MaterialTypeInput) (*models.MaterialType, error) {
	txn := s.tracer.StartTransaction("create-material-type")
	defer s.tracer.EndTransaction(txn)

	if err := input.validate(); err != nil {
		return nil, err
	}

	materialType := &models.MaterialType{
		Name:        input.Name,
		NameAr:      input.NameAr,
		Description: input.Description,
		IconPath:    input.IconPath,
		Density:     input.Density,
		Notes:       input.Notes,
		IsActive:    true,
	}
	if input.ColorCode != "" {
		materialType.ColorCode = input.ColorCode
	}
	if input.Unit != "" {
		materialType.Unit = input.Unit
	}

	if err := s.materialRepo.Create(ctx, materialType); err != nil {
		s.tracer.RecordError(txn, err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Wrap(ErrConflict, "material type already exists")
		}
		return nil, errors.Wrap(err, "failed to create material type")
	}

	s.invalidateMaterialTypeCache(ctx)
	s.metrics.IncrementCounter("material_types.created")

	log.Info().Uint("id", materialType.ID).Str("name", materialType.Name).Msg("Material type created")
	return materialType, nil
}

// UpdateMaterialType updates an existing material type
func (s *WarehouseService) UpdateMaterialType(ctx context.Context, id uint, input *MaterialTypeInput) (*models.MaterialType, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	materialType, err := s.GetMaterialType(ctx, id)
	if err != nil {
		return nil, err
	}

	materialType.Name = input.Name
	materialType.NameAr = input.NameAr
	materialType.Description = input.Description
	materialType.IconPath = input.IconPath
	materialType.Density = input.Density
	materialType.Notes = input.Notes
	if input.ColorCode != "" {
		materialType.ColorCode = input.ColorCode
	}
	if input.Unit != "" {
		materialType.Unit = input.Unit
	}

	if err := s.materialRepo.Save(ctx, materialType); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Wrap(ErrConflict, "material type already exists")
		}
		return nil, errors.Wrap(err, "failed to update material type")
	}

	s.invalidateMaterialTypeCache(ctx)
	return materialType, nil
}

// DeleteMaterialType soft-deletes a material type unless it is still in use
func (s *WarehouseService) DeleteMaterialType(ctx context.Context, id uint) error {
	inUse, err := s.materialRepo.InUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return errors.Wrap(ErrConflict, "material type is in use by inventory or shipments")
	}

	if err := s.materialRepo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(ErrNotFound, "material type not found")
		}
		return err
	}

	s.invalidateMaterialTypeCache(ctx)
	s.metrics.IncrementCounter("material_types.deleted")
	return nil
}

func (s *WarehouseService) invalidateMaterialTypeCache(ctx context.Context) {
	err := s.cache.Delete(ctx,
		cache.MaterialTypesCacheKey(true),
		cache.MaterialTypesCacheKey(false))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to invalidate material type cache")
	}
}

// ListSilos gets all silos
func (s *WarehouseService) ListSilos(ctx context.Context) ([]models.Silo, error) {
	return s.siloRepo.List(ctx)
}

// GetSilo gets one silo by ID
func (s *WarehouseService) GetSilo(ctx context.Context, id uint) (*models.Silo, error) {
	silo, err := s.siloRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "silo not found")
		}
		return nil, err
	}
	return silo, nil
}

// SearchSilosByMaterial finds silos holding a material matching the
// term, in English or Arabic.
func (s *WarehouseService) SearchSilosByMaterial(ctx context.Context, term string) ([]models.Silo, error) {
	if term == "" {
		return nil, errors.Wrap(ErrValidation, "search term is required")
	}
	return s.siloRepo.SearchByMaterial(ctx, term)
}

// UpdateSiloNotes updates the operator notes of a silo
func (s *WarehouseService) UpdateSiloNotes(ctx context.Context, id uint, notes *string) (*models.Silo, error) {
	if err := s.siloRepo.UpdateNotes(ctx, id, notes); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "silo not found")
		}
		return nil, err
	}
	return s.GetSilo(ctx, id)
}

// InventoryInput carries the writable fields of an inventory row
type InventoryInput struct {
	SiloID         uint       `json:"silo_id"`
	MaterialTypeID uint       `json:"material_type_id"`
	Quantity       float64    `json:"quantity"`
	EntryDate      time.Time  `json:"entry_date"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	BatchNumber    *string    `json:"batch_number"`
	Supplier       *string    `json:"supplier"`
	QualityGrade   string     `json:"quality_grade"`
	PurchasePrice  *float64   `json:"purchase_price"`
	Notes          *string    `json:"notes"`
}

// ListInventory gets inventory rows matching the filter
func (s *WarehouseService) ListInventory(ctx context.Context, filter repositories.InventoryFilter) ([]models.WarehouseInventory, Pagination, error) {
	filter.Page, filter.PerPage = NormalizePage(filter.Page, filter.PerPage)

	rows, total, err := s.inventoryRepo.List(ctx, filter)
	if err != nil {
		return nil, Pagination{}, err
	}

	return rows, NewPagination(filter.Page, filter.PerPage, total), nil
}

// GetInventory gets one inventory row by ID
func (s *WarehouseService) GetInventory(ctx context.Context, id uint) (*models.WarehouseInventory, error) {
	row, err := s.inventoryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "inventory not found")
		}
		return nil, err
	}
	return row, nil
}

// ListSiloInventory gets all inventory rows for one silo
func (s *WarehouseService) ListSiloInventory(ctx context.Context, siloID uint) ([]models.WarehouseInventory, error) {
	if _, err := s.GetSilo(ctx, siloID); err != nil {
		return nil, err
	}
	return s.inventoryRepo.ListBySilo(ctx, siloID)
}

// CreateInventory creates the inventory row for a material in a silo
func (s *WarehouseService) CreateInventory(ctx context.Context, input *InventoryInput) (*models.WarehouseInventory, error) {
	txn := s.tracer.StartTransaction("create-inventory")
	defer s.tracer.EndTransaction(txn)

	if input.Quantity < 0 {
		return nil, errors.Wrap(ErrValidation, "quantity cannot be negative")
	}

	silo, err := s.GetSilo(ctx, input.SiloID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetMaterialType(ctx, input.MaterialTypeID); err != nil {
		return nil, err
	}

	if err := s.checkCapacity(ctx, silo, input.Quantity); err != nil {
		return nil, err
	}

	entryDate := input.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now()
	}

	row := &models.WarehouseInventory{
		SiloID:            input.SiloID,
		MaterialTypeID:    input.MaterialTypeID,
		Quantity:          input.Quantity,
		AvailableQuantity: input.Quantity,
		EntryDate:         entryDate,
		ExpiryDate:        input.ExpiryDate,
		BatchNumber:       input.BatchNumber,
		Supplier:          input.Supplier,
		PurchasePrice:     input.PurchasePrice,
		Notes:             input.Notes,
	}
	if input.QualityGrade != "" {
		row.QualityGrade = input.QualityGrade
	}

	if err := s.inventoryRepo.Create(ctx, row); err != nil {
		s.tracer.RecordError(txn, err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Wrap(ErrConflict, "inventory for this silo and material already exists")
		}
		return nil, errors.Wrap(err, "failed to create inventory")
	}

	s.metrics.IncrementCounter("inventory.created")
	log.Info().
		Uint("silo_id", row.SiloID).
		Uint("material_type_id", row.MaterialTypeID).
		Float64("quantity", row.Quantity).
		Msg("Inventory created")

	return row, nil
}

// AddStock adds quantity to the inventory row under a row lock
func (s *WarehouseService) AddStock(ctx context.Context, siloID, materialTypeID uint, quantity float64) (*models.WarehouseInventory, error) {
	silo, err := s.GetSilo(ctx, siloID)
	if err != nil {
		return nil, err
	}

	if err := s.checkCapacity(ctx, silo, quantity); err != nil {
		return nil, err
	}

	var row *models.WarehouseInventory
	err = s.db.Transaction(func(tx *gorm.DB) error {
		row, err = s.inventoryRepo.GetForUpdateTx(ctx, tx, siloID, materialTypeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrap(ErrNotFound, "inventory not found")
			}
			return err
		}

		if err := row.AddQuantity(quantity, time.Now()); err != nil {
			return errors.Wrap(ErrValidation, err.Error())
		}

		return s.inventoryRepo.SaveTx(ctx, tx, row)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCounter("inventory.stock_added")
	return row, nil
}

// RemoveStock removes unreserved quantity from the inventory row
func (s *WarehouseService) RemoveStock(ctx context.Context, siloID, materialTypeID uint, quantity float64) (*models.WarehouseInventory, error) {
	var row *models.WarehouseInventory
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = s.inventoryRepo.GetForUpdateTx(ctx, tx, siloID, materialTypeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrap(ErrNotFound, "inventory not found")
			}
			return err
		}

		if quantity > row.AvailableQuantity {
			return errors.Wrap(ErrConflict, "cannot remove more than the available quantity")
		}

		if err := row.RemoveQuantity(quantity, time.Now()); err != nil {
			return errors.Wrap(ErrValidation, err.Error())
		}

		return s.inventoryRepo.SaveTx(ctx, tx, row)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCounter("inventory.stock_removed")
	return row, nil
}

// DeleteInventory removes an inventory row with no active reservations
func (s *WarehouseService) DeleteInventory(ctx context.Context, id uint) error {
	row, err := s.GetInventory(ctx, id)
	if err != nil {
		return err
	}
	if row.ReservedQuantity > 0 {
		return errors.Wrap(ErrConflict, "inventory has active reservations")
	}

	if err := s.inventoryRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(ErrNotFound, "inventory not found")
		}
		return err
	}

	s.metrics.IncrementCounter("inventory.deleted")
	return nil
}

// InventorySummary aggregates current stock per material type
func (s *WarehouseService) InventorySummary(ctx context.Context) ([]repositories.MaterialSummary, error) {
	cacheKey := cache.InventorySummaryCacheKey()

	var cached []repositories.MaterialSummary
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	}

	summary, err := s.inventoryRepo.Summary(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, summary, time.Minute); err != nil {
		log.Debug().Err(err).Msg("Failed to cache inventory summary")
	}

	return summary, nil
}

// checkCapacity verifies the silo can hold the additional quantity
func (s *WarehouseService) checkCapacity(ctx context.Context, silo *models.Silo, addition float64) error {
	rows, err := s.inventoryRepo.ListBySilo(ctx, silo.ID)
	if err != nil {
		return err
	}

	var stored float64
	for _, row := range rows {
		stored += row.Quantity
	}

	if stored+addition > silo.MaxCapacity {
		return errors.Wrapf(ErrConflict,
			"silo %s capacity exceeded: %.3f stored, %.3f incoming, %.3f max",
			silo.SiloNumber, stored, addition, silo.MaxCapacity)
	}

	return nil
}
