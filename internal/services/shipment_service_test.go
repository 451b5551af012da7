package services

import (
	"context"
	"testing"
	"time"

	"example.com/granary/config"
	"example.com/granary/internal/metrics"
	"example.com/granary/internal/models"
	"example.com/granary/internal/tracing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDB opens a gorm handle over a sqlmock connection so service
// transactions can be exercised without a database.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)

	return gdb, mock
}

func newShipmentTestService(t *testing.T) (*ShipmentService, sqlmock.Sqlmock) {
	t.Helper()

	gdb, mock := newMockDB(t)
	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	return NewShipmentService(gdb, gdb, nil, metrics.NewMetrics(), tracer), mock
}

func inventoryRows(id uint, quantity, reserved float64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "silo_id", "material_type_id", "quantity", "reserved_quantity", "available_quantity",
	}).AddRow(id, 1, 2, quantity, reserved, quantity-reserved)
}

func shipmentRows(shipmentType, status string, quantity float64, code string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "shipment_type", "reference_number", "silo_id", "material_type_id",
		"quantity", "scheduled_date", "status", "confirmation_code",
	}).AddRow(9, shipmentType, "OUT-123456-789", 1, 2, quantity, time.Now(), status, code)
}

func validShipmentInput() *ShipmentInput {
	return &ShipmentInput{
		ShipmentType:   models.ShipmentIncoming,
		SiloID:         1,
		MaterialTypeID: 2,
		Quantity:       30,
		ScheduledDate:  time.Now().Add(48 * time.Hour),
	}
}

func TestShipmentInputValidate(t *testing.T) {
	require.NoError(t, validShipmentInput().validate())
}

func TestShipmentInputValidateBadType(t *testing.T) {
	input := validShipmentInput()
	input.ShipmentType = "SIDEWAYS"

	err := input.validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestShipmentInputValidateNonPositiveQuantity(t *testing.T) {
	for _, q := range []float64{0, -10} {
		input := validShipmentInput()
		input.Quantity = q

		err := input.validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
	}
}

func TestShipmentInputValidateMissingDate(t *testing.T) {
	input := validShipmentInput()
	input.ScheduledDate = time.Time{}

	err := input.validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestMaterialTypeInputValidate(t *testing.T) {
	input := &MaterialTypeInput{Name: "Wheat", Density: 0.78}
	require.NoError(t, input.validate())

	noName := &MaterialTypeInput{Density: 0.78}
	assert.True(t, errors.Is(noName.validate(), ErrValidation))

	badDensity := &MaterialTypeInput{Name: "Osmium", Density: 22.6}
	assert.True(t, errors.Is(badDensity.validate(), ErrValidation))
}

func TestCreateShipmentOutgoingReservesInventory(t *testing.T) {
	svc, mock := newShipmentTestService(t)

	mock.ExpectQuery("SELECT \\* FROM `silos`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "silo_number", "max_capacity"}).AddRow(1, "S-01", 100.0))
	mock.ExpectQuery("SELECT \\* FROM `material_types`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "density"}).AddRow(2, "Wheat", 0.78))

	// The reservation and the insert share one transaction, with the
	// inventory row locked for the duration
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `warehouse_inventory` .* FOR UPDATE").
		WillReturnRows(inventoryRows(5, 45.5, 0))
	mock.ExpectExec("UPDATE `warehouse_inventory` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `shipments`").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	input := validShipmentInput()
	input.ShipmentType = models.ShipmentOutgoing
	input.Quantity = 10

	shipment, err := svc.CreateShipment(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.StatusScheduled, shipment.Status)
	assert.Regexp(t, `^OUT-\d{6}-\d{3}$`, shipment.ReferenceNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateShipmentOutgoingInsufficientStock(t *testing.T) {
	svc, mock := newShipmentTestService(t)

	mock.ExpectQuery("SELECT \\* FROM `silos`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "silo_number", "max_capacity"}).AddRow(1, "S-01", 100.0))
	mock.ExpectQuery("SELECT \\* FROM `material_types`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(2, "Wheat"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `warehouse_inventory` .* FOR UPDATE").
		WillReturnRows(inventoryRows(5, 5.5, 0))
	mock.ExpectRollback()

	input := validShipmentInput()
	input.ShipmentType = models.ShipmentOutgoing
	input.Quantity = 10

	_, err := svc.CreateShipment(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteShipmentConsumesReservation(t *testing.T) {
	svc, mock := newShipmentTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `shipments` .* FOR UPDATE").
		WillReturnRows(shipmentRows(models.ShipmentOutgoing, models.StatusInProgress, 10, "654321"))
	mock.ExpectQuery("SELECT \\* FROM `warehouse_inventory` .* FOR UPDATE").
		WillReturnRows(inventoryRows(5, 45.5, 10))
	mock.ExpectExec("UPDATE `warehouse_inventory` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `shipments` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	shipment, err := svc.CompleteShipment(context.Background(), 9, "654321")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, shipment.Status)
	assert.NotNil(t, shipment.ActualDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteShipmentRejectsWrongCode(t *testing.T) {
	svc, mock := newShipmentTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `shipments` .* FOR UPDATE").
		WillReturnRows(shipmentRows(models.ShipmentOutgoing, models.StatusInProgress, 10, "654321"))
	mock.ExpectRollback()

	_, err := svc.CompleteShipment(context.Background(), 9, "111111")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteShipmentIncomingOverCapacity(t *testing.T) {
	svc, mock := newShipmentTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `shipments` .* FOR UPDATE").
		WillReturnRows(shipmentRows(models.ShipmentIncoming, models.StatusInProgress, 60, "654321"))
	mock.ExpectQuery("SELECT \\* FROM `warehouse_inventory` .* FOR UPDATE").
		WillReturnRows(inventoryRows(5, 50, 0))
	mock.ExpectQuery("SELECT \\* FROM `silos`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "silo_number", "max_capacity"}).AddRow(1, "S-01", 100.0))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(quantity\\), 0\\) FROM `warehouse_inventory`").
		WillReturnRows(sqlmock.NewRows([]string{"stored"}).AddRow(50.0))
	mock.ExpectRollback()

	_, err := svc.CompleteShipment(context.Background(), 9, "654321")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelShipmentReleasesReservation(t *testing.T) {
	svc, mock := newShipmentTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `shipments` .* FOR UPDATE").
		WillReturnRows(shipmentRows(models.ShipmentOutgoing, models.StatusScheduled, 10, ""))
	mock.ExpectQuery("SELECT \\* FROM `warehouse_inventory` .* FOR UPDATE").
		WillReturnRows(inventoryRows(5, 45.5, 10))
	mock.ExpectExec("UPDATE `warehouse_inventory` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `shipments` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	shipment, err := svc.CancelShipment(context.Background(), 9, "truck broke down")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCancelled, shipment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
