package services

import (
	"context"
	"time"

	"example.com/granary/internal/metrics"
	"example.com/granary/internal/models"
	"example.com/granary/internal/repositories"
	"example.com/granary/internal/search"
	"example.com/granary/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ShipmentService handles the shipment workflow and its inventory effects
type ShipmentService struct {
	db            *gorm.DB // Write database
	readOnlyDB    *gorm.DB // Read-only database
	shipmentRepo  *repositories.ShipmentRepository
	inventoryRepo *repositories.InventoryRepository
	siloRepo      *repositories.SiloRepository
	materialRepo  *repositories.MaterialTypeRepository
	elasticClient *search.ElasticClient
	metrics       *metrics.Metrics
	tracer        tracing.Tracer
}

// NewShipmentService creates a new shipment service
func NewShipmentService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	elasticClient *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *ShipmentService {
	return &ShipmentService{
		db:            db,
		readOnlyDB:    readOnlyDB,
		shipmentRepo:  repositories.NewShipmentRepository(db, readOnlyDB),
		inventoryRepo: repositories.NewInventoryRepository(db, readOnlyDB),
		siloRepo:      repositories.NewSiloRepository(db, readOnlyDB),
		materialRepo:  repositories.NewMaterialTypeRepository(db, readOnlyDB),
		elasticClient: elasticClient,
		metrics:       metricsCollector,
		tracer:        tracer,
	}
}

// ShipmentInput carries the writable fields of a shipment
type ShipmentInput struct {
	ShipmentType     string    `json:"shipment_type"`
	SiloID           uint      `json:"silo_id"`
	MaterialTypeID   uint      `json:"material_type_id"`
	Quantity         float64   `json:"quantity"`
	ScheduledDate    time.Time `json:"scheduled_date"`
	TruckPlate       *string   `json:"truck_plate"`
	DriverName       *string   `json:"driver_name"`
	DriverPhone      *string   `json:"driver_phone"`
	SupplierCustomer *string   `json:"supplier_customer"`
	Notes            *string   `json:"notes"`
	CreatedBy        *uint     `json:"created_by"`
}

func (in *ShipmentInput) validate() error {
	if in.ShipmentType != models.ShipmentIncoming && in.ShipmentType != models.ShipmentOutgoing {
		return errors.Wrap(ErrValidation, "shipment_type must be INCOMING or OUTGOING")
	}
	if in.Quantity <= 0 {
		return errors.Wrap(ErrValidation, "quantity must be positive")
	}
	if in.ScheduledDate.IsZero() {
		return errors.Wrap(ErrValidation, "scheduled_date is required")
	}
	return nil
}

// ListShipments gets shipments matching the filter
func (s *ShipmentService) ListShipments(ctx context.Context, filter repositories.ShipmentFilter) ([]models.Shipment, Pagination, error) {
	filter.Page, filter.PerPage = NormalizePage(filter.Page, filter.PerPage)

	shipments, total, err := s.shipmentRepo.List(ctx, filter)
	if err != nil {
		return nil, Pagination{}, err
	}

	return shipments, NewPagination(filter.Page, filter.PerPage, total), nil
}

// GetShipment gets one shipment by ID
func (s *ShipmentService) GetShipment(ctx context.Context, id uint) (*models.Shipment, error) {
	shipment, err := s.shipmentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "shipment not found")
		}
		return nil, err
	}
	return shipment, nil
}

// CreateShipment schedules a new shipment. An outgoing shipment
// reserves its quantity in the same transaction, so stock can never be
// promised twice.
func (s *ShipmentService) CreateShipment(ctx context.Context, input *ShipmentInput) (*models.Shipment, error) {
	txn := s.tracer.StartTransaction("create-shipment")
	defer s.tracer.EndTransaction(txn)

	if err := input.validate(); err != nil {
		return nil, err
	}

	silo, err := s.siloRepo.GetByID(ctx, input.SiloID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "silo not found")
		}
		return nil, err
	}

	if _, err := s.materialRepo.GetByID(ctx, input.MaterialTypeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "material type not found")
		}
		return nil, err
	}

	shipment := &models.Shipment{
		ShipmentType:     input.ShipmentType,
		SiloID:           input.SiloID,
		MaterialTypeID:   input.MaterialTypeID,
		Quantity:         input.Quantity,
		ScheduledDate:    input.ScheduledDate,
		TruckPlate:       input.TruckPlate,
		DriverName:       input.DriverName,
		DriverPhone:      input.DriverPhone,
		SupplierCustomer: input.SupplierCustomer,
		Status:           models.StatusScheduled,
		Notes:            input.Notes,
		CreatedBy:        input.CreatedBy,
	}

	shipment.ReferenceNumber = models.GenerateReferenceNumber(input.ShipmentType, time.Now())

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if shipment.IsOutgoing() {
			row, lockErr := s.inventoryRepo.GetForUpdateTx(ctx, tx, input.SiloID, input.MaterialTypeID)
			if lockErr != nil {
				if errors.Is(lockErr, gorm.ErrRecordNotFound) {
					return errors.Wrap(ErrConflict, "no inventory for this material in the silo")
				}
				return lockErr
			}

			if reserveErr := row.Reserve(input.Quantity); reserveErr != nil {
				return errors.Wrap(ErrConflict, reserveErr.Error())
			}

			if saveErr := s.inventoryRepo.SaveTx(ctx, tx, row); saveErr != nil {
				return saveErr
			}
		}

		return s.shipmentRepo.CreateTx(ctx, tx, shipment)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Wrap(ErrConflict, "shipment reference already exists")
		}
		return nil, err
	}

	s.metrics.IncrementCounter("shipments.created")
	log.Info().
		Str("reference", shipment.ReferenceNumber).
		Str("type", shipment.ShipmentType).
		Str("silo", silo.SiloNumber).
		Float64("quantity", shipment.Quantity).
		Msg("Shipment created")

	return shipment, nil
}

// UpdateShipment updates logistics details of a scheduled shipment.
// Quantity and direction are fixed once the reservation exists, so a
// wrong shipment is cancelled and recreated instead.
func (s *ShipmentService) UpdateShipment(ctx context.Context, id uint, input *ShipmentInput) (*models.Shipment, error) {
	shipment, err := s.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}

	if shipment.Status != models.StatusScheduled {
		return nil, errors.Wrapf(ErrConflict, "cannot update shipment with status %s", shipment.Status)
	}
	if input.Quantity != 0 && input.Quantity != shipment.Quantity {
		return nil, errors.Wrap(ErrValidation, "quantity cannot be changed, cancel and recreate the shipment")
	}

	if !input.ScheduledDate.IsZero() {
		shipment.ScheduledDate = input.ScheduledDate
	}
	if input.TruckPlate != nil {
		shipment.TruckPlate = input.TruckPlate
	}
	if input.DriverName != nil {
		shipment.DriverName = input.DriverName
	}
	if input.DriverPhone != nil {
		shipment.DriverPhone = input.DriverPhone
	}
	if input.SupplierCustomer != nil {
		shipment.SupplierCustomer = input.SupplierCustomer
	}
	if input.Notes != nil {
		shipment.Notes = input.Notes
	}

	if err := s.shipmentRepo.Save(ctx, shipment); err != nil {
		return nil, errors.Wrap(err, "failed to update shipment")
	}

	return shipment, nil
}

// StartShipment begins handling a shipment and issues its confirmation code
func (s *ShipmentService) StartShipment(ctx context.Context, id uint) (*models.Shipment, error) {
	txn := s.tracer.StartTransaction("start-shipment")
	defer s.tracer.EndTransaction(txn)

	var shipment *models.Shipment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		shipment, err = s.shipmentRepo.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrap(ErrNotFound, "shipment not found")
			}
			return err
		}

		if err := shipment.Start(time.Now()); err != nil {
			return errors.Wrap(ErrConflict, err.Error())
		}

		return s.shipmentRepo.SaveTx(ctx, tx, shipment)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.metrics.IncrementCounter("shipments.started")
	log.Info().Str("reference", shipment.ReferenceNumber).Msg("Shipment started")
	return shipment, nil
}

// CompleteShipment verifies the confirmation code, applies the
// shipment's inventory effect and marks it completed, all in one
// transaction. Incoming stock is added, outgoing stock consumes its
// reservation.
func (s *ShipmentService) CompleteShipment(ctx context.Context, id uint, confirmationCode string) (*models.Shipment, error) {
	txn := s.tracer.StartTransaction("complete-shipment")
	defer s.tracer.EndTransaction(txn)

	now := time.Now()

	var shipment *models.Shipment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		shipment, err = s.shipmentRepo.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrap(ErrNotFound, "shipment not found")
			}
			return err
		}

		if shipment.ConfirmationCode == nil || *shipment.ConfirmationCode != confirmationCode {
			return errors.Wrap(ErrValidation, "invalid confirmation code")
		}

		if err := shipment.Complete(now); err != nil {
			return errors.Wrap(ErrConflict, err.Error())
		}

		if err := s.applyInventoryEffect(ctx, tx, shipment, now); err != nil {
			return err
		}

		return s.shipmentRepo.SaveTx(ctx, tx, shipment)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.metrics.IncrementCounter("shipments.completed")
	log.Info().Str("reference", shipment.ReferenceNumber).Msg("Shipment completed")

	// Indexing happens after the commit. A search that lags behind is
	// recoverable, a rolled back completion is not.
	s.indexShipment(ctx, shipment)

	return shipment, nil
}

// applyInventoryEffect moves the completed shipment's quantity through
// the locked inventory row.
func (s *ShipmentService) applyInventoryEffect(ctx context.Context, tx *gorm.DB, shipment *models.Shipment, now time.Time) error {
	row, err := s.inventoryRepo.GetForUpdateTx(ctx, tx, shipment.SiloID, shipment.MaterialTypeID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if shipment.IsOutgoing() {
			return errors.Wrap(ErrConflict, "no inventory for this material in the silo")
		}

		// First delivery of this material creates the row
		row = &models.WarehouseInventory{
			SiloID:         shipment.SiloID,
			MaterialTypeID: shipment.MaterialTypeID,
			EntryDate:      now,
			Supplier:       shipment.SupplierCustomer,
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return errors.Wrap(err, "failed to create inventory for delivery")
		}
	}

	if shipment.IsIncoming() {
		if err := s.checkCapacityTx(ctx, tx, shipment); err != nil {
			return err
		}
		if err := row.AddQuantity(shipment.Quantity, now); err != nil {
			return errors.Wrap(ErrValidation, err.Error())
		}
	} else {
		if err := row.RemoveQuantity(shipment.Quantity, now); err != nil {
			return errors.Wrap(ErrConflict, err.Error())
		}
	}

	return s.inventoryRepo.SaveTx(ctx, tx, row)
}

// checkCapacityTx verifies the silo can absorb a confirmed delivery,
// counting stock already stored inside the same transaction.
func (s *ShipmentService) checkCapacityTx(ctx context.Context, tx *gorm.DB, shipment *models.Shipment) error {
	var silo models.Silo
	if err := tx.WithContext(ctx).First(&silo, shipment.SiloID).Error; err != nil {
		return errors.Wrap(err, "failed to load silo for capacity check")
	}

	var stored float64
	err := tx.WithContext(ctx).
		Model(&models.WarehouseInventory{}).
		Where("silo_id = ?", shipment.SiloID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&stored).Error
	if err != nil {
		return errors.Wrap(err, "failed to sum silo stock")
	}

	if stored+shipment.Quantity > silo.MaxCapacity {
		return errors.Wrapf(ErrConflict,
			"silo %s capacity exceeded: %.3f stored, %.3f incoming, %.3f max",
			silo.SiloNumber, stored, shipment.Quantity, silo.MaxCapacity)
	}

	return nil
}

// CancelShipment cancels a shipment and releases any reservation it holds
func (s *ShipmentService) CancelShipment(ctx context.Context, id uint, reason string) (*models.Shipment, error) {
	txn := s.tracer.StartTransaction("cancel-shipment")
	defer s.tracer.EndTransaction(txn)

	var shipment *models.Shipment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		shipment, err = s.shipmentRepo.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrap(ErrNotFound, "shipment not found")
			}
			return err
		}

		if err := shipment.Cancel(reason); err != nil {
			return errors.Wrap(ErrConflict, err.Error())
		}

		if shipment.IsOutgoing() {
			row, err := s.inventoryRepo.GetForUpdateTx(ctx, tx, shipment.SiloID, shipment.MaterialTypeID)
			if err != nil {
				return errors.Wrap(err, "failed to lock inventory for release")
			}
			if err := row.Release(shipment.Quantity); err != nil {
				return errors.Wrap(err, "failed to release reservation")
			}
			if err := s.inventoryRepo.SaveTx(ctx, tx, row); err != nil {
				return err
			}
		}

		return s.shipmentRepo.SaveTx(ctx, tx, shipment)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.metrics.IncrementCounter("shipments.cancelled")
	log.Info().Str("reference", shipment.ReferenceNumber).Str("reason", reason).Msg("Shipment cancelled")
	return shipment, nil
}

// SearchShipments runs a full-text search over indexed shipments.
// Without a search cluster it degrades to a SQL LIKE query.
func (s *ShipmentService) SearchShipments(ctx context.Context, term string, size int) ([]map[string]interface{}, error) {
	if term == "" {
		return nil, errors.Wrap(ErrValidation, "search term is required")
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	if s.elasticClient != nil {
		return s.elasticClient.SearchShipments(ctx, term, size)
	}

	shipments, _, err := s.shipmentRepo.List(ctx, repositories.ShipmentFilter{
		Search:  term,
		Page:    1,
		PerPage: size,
	})
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0, len(shipments))
	for _, sh := range shipments {
		results = append(results, map[string]interface{}{
			"id":                sh.ID,
			"reference_number":  sh.ReferenceNumber,
			"shipment_type":     sh.ShipmentType,
			"status":            sh.Status,
			"quantity":          sh.Quantity,
			"scheduled_date":    sh.ScheduledDate,
			"truck_plate":       sh.TruckPlate,
			"driver_name":       sh.DriverName,
			"supplier_customer": sh.SupplierCustomer,
			"silo_number":       sh.Silo.SiloNumber,
			"material_name":     sh.MaterialType.Name,
		})
	}
	return results, nil
}

func (s *ShipmentService) indexShipment(ctx context.Context, shipment *models.Shipment) {
	if s.elasticClient == nil {
		return
	}

	full, err := s.shipmentRepo.GetByID(ctx, shipment.ID)
	if err != nil {
		log.Warn().Err(err).Uint("shipment_id", shipment.ID).Msg("Failed to reload shipment for indexing")
		return
	}

	err = s.elasticClient.IndexShipment(ctx, full, full.Silo.SiloNumber, full.MaterialType.Name)
	if err != nil {
		log.Warn().Err(err).Str("reference", shipment.ReferenceNumber).Msg("Failed to index shipment")
	}
}
