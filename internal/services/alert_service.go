package services

import (
	"context"
	"encoding/json"
	"time"

	"example.com/granary/internal/metrics"
	"example.com/granary/internal/models"
	"example.com/granary/internal/repositories"
	"example.com/granary/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Alert limit types
const (
	LimitTemperature  = "temperature"
	LimitConnectivity = "connectivity"
)

// AlertService evaluates temperature readings against product
// thresholds and maintains the active alert set.
type AlertService struct {
	db          *gorm.DB // Write database
	readOnlyDB  *gorm.DB // Read-only database
	readingRepo *repositories.ReadingRepository
	alertRepo   *repositories.AlertRepository
	siloRepo    *repositories.SiloRepository
	metrics     *metrics.Metrics
	tracer      tracing.Tracer
}

// NewAlertService creates a new alert service
func NewAlertService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *AlertService {
	return &AlertService{
		db:          db,
		readOnlyDB:  readOnlyDB,
		readingRepo: repositories.NewReadingRepository(db, readOnlyDB),
		alertRepo:   repositories.NewAlertRepository(db, readOnlyDB),
		siloRepo:    repositories.NewSiloRepository(db, readOnlyDB),
		metrics:     metricsCollector,
		tracer:      tracer,
	}
}

// ReadingPayload is the wire format of a temperature reading message
type ReadingPayload struct {
	SensorID       uint      `json:"sensor_id"`
	SiloID         uint      `json:"silo_id"`
	ValueC         float64   `json:"value_c"`
	ReadAt         time.Time `json:"read_at"`
	IdempotencyKey uuid.UUID `json:"idempotency_key"`
}

// ExtractReadingPayload extracts a reading payload from a message
func ExtractReadingPayload(message *azservicebus.ReceivedMessage) (*ReadingPayload, error) {
	var payload ReadingPayload
	if err := json.Unmarshal(message.Body, &payload); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal reading message")
	}

	if payload.SensorID == 0 {
		return nil, errors.New("reading message has no sensor_id")
	}
	if payload.ReadAt.IsZero() {
		payload.ReadAt = time.Now()
	}
	if payload.IdempotencyKey == uuid.Nil {
		payload.IdempotencyKey = uuid.New()
	}

	return &payload, nil
}

// ProcessReadingMessage stores one reading and re-evaluates the silo it
// belongs to. Duplicate deliveries are absorbed by the idempotency key.
func (s *AlertService) ProcessReadingMessage(ctx context.Context, message *azservicebus.ReceivedMessage, txn *newrelic.Transaction) error {
	payload, err := ExtractReadingPayload(message)
	if err != nil {
		return err
	}

	span := s.tracer.StartSpan("store-reading", txn)
	reading := &models.TemperatureReading{
		SensorID:       payload.SensorID,
		ValueC:         payload.ValueC,
		ReadAt:         payload.ReadAt,
		IdempotencyKey: payload.IdempotencyKey,
	}
	err = s.readingRepo.Insert(ctx, reading)
	span.End()

	if err != nil {
		s.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to store reading")
	}

	s.metrics.IncrementCounter("readings.ingested")

	if payload.SiloID == 0 {
		log.Debug().Uint("sensor_id", payload.SensorID).Msg("Reading without silo, skipping evaluation")
		return nil
	}

	evalSpan := s.tracer.StartSpan("evaluate-silo", txn)
	err = s.EvaluateSilo(ctx, payload.SiloID)
	evalSpan.End()

	if err != nil {
		s.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to evaluate silo alerts")
	}

	return nil
}

// EvaluateSilo compares every sensor's latest reading against the
// silo's product thresholds, opening, refreshing or resolving alerts.
func (s *AlertService) EvaluateSilo(ctx context.Context, siloID uint) error {
	silo, err := s.siloRepo.GetByID(ctx, siloID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(ErrNotFound, "silo not found")
		}
		return err
	}

	if silo.Product == nil || !silo.HasCables() {
		return nil
	}

	readings, err := s.readingRepo.LatestBySilo(ctx, siloID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, reading := range readings {
		value := reading.ValueC
		level := models.AlertLevelForTemperature(&value, *silo.Product)

		for _, limitType := range resolvedLimitTypes(level) {
			if err := s.alertRepo.Resolve(ctx, siloID, reading.SensorIndex, limitType); err != nil {
				return err
			}
		}

		if level == models.AlertNormal {
			continue
		}

		limitType := LimitTemperature
		if level == models.AlertDisconnect {
			limitType = LimitConnectivity
		}

		if err := s.upsertAlert(ctx, silo, reading, level, limitType, now); err != nil {
			return err
		}
	}

	return nil
}

// resolvedLimitTypes returns the alert limit types a reading of the
// given level clears. Any non-sentinel reading proves the sensor is
// connected, so it clears an open connectivity alert even when the
// temperature itself still alerts.
func resolvedLimitTypes(level string) []string {
	switch level {
	case models.AlertNormal:
		return []string{LimitTemperature, LimitConnectivity}
	case models.AlertDisconnect:
		return nil
	default:
		return []string{LimitConnectivity}
	}
}

func (s *AlertService) upsertAlert(ctx context.Context, silo *models.Silo, reading repositories.SensorReading, level, limitType string, now time.Time) error {
	threshold := silo.Product.TempWarn
	if level == models.AlertCritical {
		threshold = silo.Product.TempCritical
	}
	if level == models.AlertDisconnect {
		threshold = models.DisconnectedValue
	}

	existing, err := s.alertRepo.FindOpen(ctx, silo.ID, reading.SensorIndex, limitType)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		alert := &models.Alert{
			SiloID:      silo.ID,
			LevelIndex:  reading.SensorIndex,
			LimitType:   limitType,
			ThresholdC:  threshold,
			Level:       level,
			FirstSeenAt: now,
			LastSeenAt:  now,
			Status:      models.AlertStatusActive,
		}
		if err := s.alertRepo.Create(ctx, alert); err != nil {
			return errors.Wrap(err, "failed to create alert")
		}

		s.metrics.IncrementCounter("alerts.opened")
		log.Warn().
			Str("silo", silo.SiloNumber).
			Int("level_index", reading.SensorIndex).
			Str("level", level).
			Float64("value_c", reading.ValueC).
			Msg("Alert opened")
		return nil
	}

	existing.Level = level
	existing.ThresholdC = threshold
	existing.LastSeenAt = now
	return s.alertRepo.Save(ctx, existing)
}

// ReevaluateAlerts re-runs alert evaluation over every silo. The worker
// schedules this as a fallback so missed messages cannot leave alerts
// stale forever.
func (s *AlertService) ReevaluateAlerts(ctx context.Context) error {
	txn := s.tracer.StartTransaction("reevaluate-alerts")
	defer s.tracer.EndTransaction(txn)

	silos, err := s.siloRepo.List(ctx)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to list silos for re-evaluation")
	}

	for _, silo := range silos {
		if silo.Product == nil || !silo.HasCables() {
			continue
		}

		if err := s.EvaluateSilo(ctx, silo.ID); err != nil {
			log.Error().Err(err).Str("silo", silo.SiloNumber).Msg("Failed to re-evaluate silo")
			s.tracer.RecordError(txn, err)
			// Continue to next silo
		}
	}

	return nil
}

// ListActiveAlerts gets active alerts with display colors attached
func (s *AlertService) ListActiveAlerts(ctx context.Context, siloID uint) ([]map[string]interface{}, error) {
	alerts, err := s.alertRepo.ListActive(ctx, siloID)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]interface{}, 0, len(alerts))
	for _, alert := range alerts {
		result = append(result, map[string]interface{}{
			"id":            alert.ID,
			"silo_id":       alert.SiloID,
			"level_index":   alert.LevelIndex,
			"limit_type":    alert.LimitType,
			"threshold_c":   alert.ThresholdC,
			"level":         alert.Level,
			"color":         models.AlertLevelColor(alert.Level),
			"first_seen_at": alert.FirstSeenAt,
			"last_seen_at":  alert.LastSeenAt,
		})
	}
	return result, nil
}

// SiloTemperatures returns the latest reading of every sensor in a
// silo, classified against the product thresholds.
func (s *AlertService) SiloTemperatures(ctx context.Context, siloID uint) ([]map[string]interface{}, error) {
	silo, err := s.siloRepo.GetByID(ctx, siloID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "silo not found")
		}
		return nil, err
	}

	readings, err := s.readingRepo.LatestBySilo(ctx, siloID)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]interface{}, 0, len(readings))
	for _, reading := range readings {
		level := models.AlertDisconnect
		if silo.Product != nil {
			value := reading.ValueC
			level = models.AlertLevelForTemperature(&value, *silo.Product)
		}

		result = append(result, map[string]interface{}{
			"sensor_id":    reading.SensorID,
			"cable_index":  reading.CableIndex,
			"sensor_index": reading.SensorIndex,
			"value_c":      reading.ValueC,
			"read_at":      reading.ReadAt,
			"level":        level,
			"color":        models.AlertLevelColor(level),
		})
	}
	return result, nil
}

// SensorHistory gets readings for one sensor within a time range
func (s *AlertService) SensorHistory(ctx context.Context, sensorID uint, from, to time.Time) ([]models.TemperatureReading, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if from.After(to) {
		return nil, errors.Wrap(ErrValidation, "invalid time range")
	}

	return s.readingRepo.HistoryBySensor(ctx, sensorID, from, to)
}
