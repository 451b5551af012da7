package services

import (
	"context"
	"testing"
	"time"

	"example.com/granary/config"
	"example.com/granary/internal/cache"
	"example.com/granary/internal/metrics"
	"example.com/granary/internal/models"
	"example.com/granary/internal/tracing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillStatusForPercentage(t *testing.T) {
	assert.Equal(t, FillEmpty, FillStatusForPercentage(0))
	assert.Equal(t, FillLow, FillStatusForPercentage(0.1))
	assert.Equal(t, FillLow, FillStatusForPercentage(24.9))
	assert.Equal(t, FillMedium, FillStatusForPercentage(25))
	assert.Equal(t, FillMedium, FillStatusForPercentage(74.9))
	assert.Equal(t, FillHigh, FillStatusForPercentage(75))
	assert.Equal(t, FillHigh, FillStatusForPercentage(94.9))
	assert.Equal(t, FillFull, FillStatusForPercentage(95))
	assert.Equal(t, FillFull, FillStatusForPercentage(120))
}

func TestShipmentAnalyticsAppliesDateRange(t *testing.T) {
	gdb, mock := newMockDB(t)

	redisCache, err := cache.NewRedisCache(config.RedisConfig{})
	require.NoError(t, err)
	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	svc := NewAnalyticsService(gdb, gdb, redisCache, metrics.NewMetrics(), tracer)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) AS count FROM `shipments` WHERE scheduled_date >= \\? AND scheduled_date <= \\?").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(models.StatusCompleted, 3).
			AddRow(models.StatusScheduled, 1))

	// The overdue count is bounded by the same date range as the rest
	// of the aggregation
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `shipments` WHERE \\(status NOT IN \\(\\?,\\?\\) AND scheduled_date < \\?\\) AND scheduled_date >= \\? AND scheduled_date <= \\?").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	result, err := svc.ShipmentAnalytics(context.Background(), &from, &to)
	require.NoError(t, err)

	assert.Equal(t, int64(4), result["total"])
	assert.Equal(t, int64(1), result["overdue"])
	assert.Equal(t, 0.75, result["completion_rate"])
	require.NoError(t, mock.ExpectationsWereMet())
}
