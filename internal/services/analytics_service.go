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

// Fill level statuses
const (
	FillEmpty  = "empty"
	FillLow    = "low"
	FillMedium = "medium"
	FillHigh   = "high"
	FillFull   = "full"
)

// FillStatusForPercentage maps a utilization percentage to a fill status
func FillStatusForPercentage(pct float64) string {
	switch {
	case pct <= 0:
		return FillEmpty
	case pct < 25:
		return FillLow
	case pct < 75:
		return FillMedium
	case pct < 95:
		return FillHigh
	default:
		return FillFull
	}
}

// AnalyticsService computes fill levels, capacity predictions and
// shipment analytics over the read-only database.
type AnalyticsService struct {
	db            *gorm.DB // Write database
	readOnlyDB    *gorm.DB // Read-only database
	siloRepo      *repositories.SiloRepository
	inventoryRepo *repositories.InventoryRepository
	shipmentRepo  *repositories.ShipmentRepository
	alertRepo     *repositories.AlertRepository
	cache         *cache.RedisCache
	metrics       *metrics.Metrics
	tracer        tracing.Tracer
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	cache *cache.RedisCache,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *AnalyticsService {
	return &AnalyticsService{
		db:            db,
		readOnlyDB:    readOnlyDB,
		siloRepo:      repositories.NewSiloRepository(db, readOnlyDB),
		inventoryRepo: repositories.NewInventoryRepository(db, readOnlyDB),
		shipmentRepo:  repositories.NewShipmentRepository(db, readOnlyDB),
		alertRepo:     repositories.NewAlertRepository(db, readOnlyDB),
		cache:         cache,
		metrics:       metricsCollector,
		tracer:        tracer,
	}
}

// SiloFillLevel describes how full one silo is
type SiloFillLevel struct {
	SiloID      uint    `json:"silo_id"`
	SiloNumber  string  `json:"silo_number"`
	MaxCapacity float64 `json:"max_capacity"`
	Stored      float64 `json:"stored"`
	Percentage  float64 `json:"percentage"`
	Status      string  `json:"status"`
}

// SiloFillLevels computes the fill level of every silo
func (s *AnalyticsService) SiloFillLevels(ctx context.Context) ([]SiloFillLevel, error) {
	cacheKey := "analytics:fill_levels"

	var cached []SiloFillLevel
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	}

	silos, err := s.siloRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	levels := make([]SiloFillLevel, 0, len(silos))
	for _, silo := range silos {
		rows, err := s.inventoryRepo.ListBySilo(ctx, silo.ID)
		if err != nil {
			return nil, err
		}

		var stored float64
		for _, row := range rows {
			stored += row.Quantity
		}

		var pct float64
		if silo.MaxCapacity > 0 {
			pct = stored / silo.MaxCapacity * 100
		}

		levels = append(levels, SiloFillLevel{
			SiloID:      silo.ID,
			SiloNumber:  silo.SiloNumber,
			MaxCapacity: silo.MaxCapacity,
			Stored:      stored,
			Percentage:  pct,
			Status:      FillStatusForPercentage(pct),
		})
	}

	if err := s.cache.Set(ctx, cacheKey, levels, 30*time.Second); err != nil {
		log.Debug().Err(err).Msg("Failed to cache fill levels")
	}

	return levels, nil
}

// CapacityPrediction estimates when a silo runs full or empty. The
// trend comes from completed shipments in the trailing window, the
// projection additionally counts shipments already on the schedule.
type CapacityPrediction struct {
	SiloID             uint     `json:"silo_id"`
	Stored             float64  `json:"stored"`
	MaxCapacity        float64  `json:"max_capacity"`
	DailyNetChange     float64  `json:"daily_net_change"`
	ScheduledNetChange float64  `json:"scheduled_net_change"`
	ProjectedStored    float64  `json:"projected_stored"`
	DaysUntilFull      *float64 `json:"days_until_full"`
	DaysUntilEmpty     *float64 `json:"days_until_empty"`
}

// PredictCapacity projects the current consumption trend forward
func (s *AnalyticsService) PredictCapacity(ctx context.Context, siloID uint, windowDays int) (*CapacityPrediction, error) {
	if windowDays <= 0 {
		windowDays = 30
	}

	silo, err := s.siloRepo.GetByID(ctx, siloID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "silo not found")
		}
		return nil, err
	}

	rows, err := s.inventoryRepo.ListBySilo(ctx, siloID)
	if err != nil {
		return nil, err
	}

	var stored float64
	for _, row := range rows {
		stored += row.Quantity
	}

	from := time.Now().AddDate(0, 0, -windowDays)
	filter := repositories.ShipmentFilter{
		SiloID:   siloID,
		Status:   models.StatusCompleted,
		DateFrom: &from,
		Page:     1,
		PerPage:  100,
	}

	shipments, _, err := s.shipmentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	var net float64
	for _, shipment := range shipments {
		if shipment.IsIncoming() {
			net += shipment.Quantity
		} else {
			net -= shipment.Quantity
		}
	}
	dailyNet := net / float64(windowDays)

	scheduledNet, err := s.scheduledNetChange(ctx, siloID, windowDays)
	if err != nil {
		return nil, err
	}

	projected := stored + scheduledNet
	if projected < 0 {
		projected = 0
	}

	prediction := &CapacityPrediction{
		SiloID:             siloID,
		Stored:             stored,
		MaxCapacity:        silo.MaxCapacity,
		DailyNetChange:     dailyNet,
		ScheduledNetChange: scheduledNet,
		ProjectedStored:    projected,
	}

	if dailyNet > 0 {
		days := (silo.MaxCapacity - projected) / dailyNet
		if days < 0 {
			days = 0
		}
		prediction.DaysUntilFull = &days
	} else if dailyNet < 0 {
		days := projected / -dailyNet
		prediction.DaysUntilEmpty = &days
	}

	return prediction, nil
}

// scheduledNetChange sums the quantity of not yet completed, not
// cancelled shipments due within the coming window.
func (s *AnalyticsService) scheduledNetChange(ctx context.Context, siloID uint, windowDays int) (float64, error) {
	now := time.Now()
	until := now.AddDate(0, 0, windowDays)

	var scheduled []models.Shipment
	err := s.readOnlyDB.WithContext(ctx).
		Where("silo_id = ? AND status NOT IN ? AND scheduled_date <= ?",
			siloID, []string{models.StatusCompleted, models.StatusCancelled}, until).
		Find(&scheduled).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to load scheduled shipments")
	}

	var net float64
	for _, shipment := range scheduled {
		if shipment.IsIncoming() {
			net += shipment.Quantity
		} else {
			net -= shipment.Quantity
		}
	}
	return net, nil
}

// ShipmentAnalytics summarizes shipment activity in a date range
func (s *AnalyticsService) ShipmentAnalytics(ctx context.Context, dateFrom, dateTo *time.Time) (map[string]interface{}, error) {
	txn := s.tracer.StartTransaction("shipment-analytics")
	defer s.tracer.EndTransaction(txn)

	counts, err := s.shipmentRepo.Stats(ctx, dateFrom, dateTo)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	byStatus := make([]map[string]interface{}, 0, len(counts))
	var total, completed int64
	for _, c := range counts {
		total += c.Count
		if c.Status == models.StatusCompleted {
			completed = c.Count
		}
		byStatus = append(byStatus, map[string]interface{}{
			"status": c.Status,
			"count":  c.Count,
			"color":  models.StatusColor(c.Status),
		})
	}

	var completionRate float64
	if total > 0 {
		completionRate = float64(completed) / float64(total)
	}

	overdueQuery := s.readOnlyDB.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("status NOT IN ? AND scheduled_date < ?",
			[]string{models.StatusCompleted, models.StatusCancelled}, time.Now())
	if dateFrom != nil {
		overdueQuery = overdueQuery.Where("scheduled_date >= ?", *dateFrom)
	}
	if dateTo != nil {
		overdueQuery = overdueQuery.Where("scheduled_date <= ?", *dateTo)
	}

	var overdue int64
	err = overdueQuery.Count(&overdue).Error
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, errors.Wrap(err, "failed to count overdue shipments")
	}

	return map[string]interface{}{
		"total":           total,
		"by_status":       byStatus,
		"overdue":         overdue,
		"completion_rate": completionRate,
	}, nil
}

// DashboardSummary aggregates the headline numbers for the dashboard
func (s *AnalyticsService) DashboardSummary(ctx context.Context) (map[string]interface{}, error) {
	cacheKey := "analytics:dashboard"

	var cached map[string]interface{}
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	}

	silos, err := s.siloRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.inventoryRepo.Summary(ctx)
	if err != nil {
		return nil, err
	}

	var totalStock float64
	for _, m := range summary {
		totalStock += m.TotalQuantity
	}

	alerts, err := s.alertRepo.ListActive(ctx, 0)
	if err != nil {
		return nil, err
	}

	var pending int64
	err = s.readOnlyDB.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("status NOT IN ?", []string{models.StatusCompleted, models.StatusCancelled}).
		Count(&pending).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to count pending shipments")
	}

	result := map[string]interface{}{
		"silo_count":        len(silos),
		"total_stock":       totalStock,
		"materials":         summary,
		"active_alerts":     len(alerts),
		"pending_shipments": pending,
	}

	if err := s.cache.Set(ctx, cacheKey, result, time.Minute); err != nil {
		log.Debug().Err(err).Msg("Failed to cache dashboard summary")
	}

	return result, nil
}
