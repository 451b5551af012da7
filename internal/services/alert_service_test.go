package services

import (
	"context"
	"testing"
	"time"

	"example.com/granary/config"
	"example.com/granary/internal/metrics"
	"example.com/granary/internal/models"
	"example.com/granary/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readingMessage(body string) *azservicebus.ReceivedMessage {
	return &azservicebus.ReceivedMessage{Body: []byte(body)}
}

func TestExtractReadingPayload(t *testing.T) {
	key := uuid.New()
	msg := readingMessage(`{
		"sensor_id": 12,
		"silo_id": 3,
		"value_c": 25.5,
		"read_at": "2026-08-29T10:00:00Z",
		"idempotency_key": "` + key.String() + `"
	}`)

	payload, err := ExtractReadingPayload(msg)
	require.NoError(t, err)

	assert.Equal(t, uint(12), payload.SensorID)
	assert.Equal(t, uint(3), payload.SiloID)
	assert.Equal(t, 25.5, payload.ValueC)
	assert.Equal(t, key, payload.IdempotencyKey)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), payload.ReadAt.UTC())
}

func TestExtractReadingPayloadDefaults(t *testing.T) {
	payload, err := ExtractReadingPayload(readingMessage(`{"sensor_id": 7, "value_c": -127}`))
	require.NoError(t, err)

	assert.False(t, payload.ReadAt.IsZero())
	assert.NotEqual(t, uuid.Nil, payload.IdempotencyKey)
}

func TestExtractReadingPayloadMissingSensor(t *testing.T) {
	_, err := ExtractReadingPayload(readingMessage(`{"value_c": 20}`))
	require.Error(t, err)
}

func TestExtractReadingPayloadBadJSON(t *testing.T) {
	_, err := ExtractReadingPayload(readingMessage(`not-json`))
	require.Error(t, err)
}

func TestResolvedLimitTypes(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{LimitTemperature, LimitConnectivity},
		resolvedLimitTypes(models.AlertNormal))

	// Any readable value clears connectivity, whatever the temperature says
	assert.Equal(t, []string{LimitConnectivity}, resolvedLimitTypes(models.AlertWarn))
	assert.Equal(t, []string{LimitConnectivity}, resolvedLimitTypes(models.AlertCritical))

	assert.Empty(t, resolvedLimitTypes(models.AlertDisconnect))
}

func TestEvaluateSiloWarmReadingClearsConnectivity(t *testing.T) {
	gdb, mock := newMockDB(t)
	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	svc := NewAlertService(gdb, gdb, metrics.NewMetrics(), tracer)

	mock.ExpectQuery("SELECT \\* FROM `silos`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "silo_number", "cable_count", "product_id", "max_capacity"}).
			AddRow(1, "S-01", 2, 4, 100.0))
	mock.ExpectQuery("SELECT \\* FROM `products`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "temp_normal", "temp_warn", "temp_critical"}).
			AddRow(4, "Wheat", 20.0, 25.0, 40.0))
	mock.ExpectQuery("FROM `readings_raw`").
		WillReturnRows(sqlmock.NewRows([]string{"sensor_id", "cable_index", "sensor_index", "value_c", "read_at"}).
			AddRow(12, 0, 3, 30.0, time.Now()))

	// A sensor that reported -127 and now reads 30 degrees has its
	// connectivity alert resolved while the temperature alert opens
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `alerts` SET").
		WithArgs(models.AlertStatusResolved, 1, 3, LimitConnectivity, models.AlertStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT \\* FROM `alerts`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `alerts`").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.EvaluateSilo(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}
