package models

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserve(t *testing.T) {
	inv := &WarehouseInventory{Quantity: 45.5, ReservedQuantity: 0, AvailableQuantity: 45.5}

	require.NoError(t, inv.Reserve(10))

	assert.Equal(t, 45.5, inv.Quantity)
	assert.Equal(t, 10.0, inv.ReservedQuantity)
	assert.Equal(t, 35.5, inv.AvailableQuantity)
}

func TestReserveMoreThanAvailable(t *testing.T) {
	inv := &WarehouseInventory{Quantity: 45.5, ReservedQuantity: 40, AvailableQuantity: 5.5}

	err := inv.Reserve(10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientAvailable))

	// Row must be unchanged after a failed reservation
	assert.Equal(t, 40.0, inv.ReservedQuantity)
	assert.Equal(t, 5.5, inv.AvailableQuantity)
}

func TestReserveNonPositive(t *testing.T) {
	inv := &WarehouseInventory{Quantity: 45.5}

	for _, q := range []float64{0, -3} {
		err := inv.Reserve(q)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrQuantityNotPositive))
	}
}

func TestRelease(t *testing.T) {
	inv := &WarehouseInventory{Quantity: 45.5, ReservedQuantity: 10, AvailableQuantity: 35.5}

	require.NoError(t, inv.Release(5))

	assert.Equal(t, 45.5, inv.Quantity)
	assert.Equal(t, 5.0, inv.ReservedQuantity)
	assert.Equal(t, 40.5, inv.AvailableQuantity)
}

func TestReleaseMoreThanReserved(t *testing.T) {
	inv := &WarehouseInventory{Quantity: 45.5, ReservedQuantity: 5, AvailableQuantity: 40.5}

	err := inv.Release(10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReleaseExceedsReserved))
	assert.Equal(t, 5.0, inv.ReservedQuantity)
}

func TestAddQuantity(t *testing.T) {
	now := time.Now()
	inv := &WarehouseInventory{Quantity: 20, ReservedQuantity: 5, AvailableQuantity: 15}

	require.NoError(t, inv.AddQuantity(30, now))

	assert.Equal(t, 50.0, inv.Quantity)
	assert.Equal(t, 5.0, inv.ReservedQuantity)
	assert.Equal(t, 45.0, inv.AvailableQuantity)
	assert.Equal(t, now, inv.LastUpdated)
}

func TestRemoveQuantityConsumesReservation(t *testing.T) {
	now := time.Now()
	inv := &WarehouseInventory{Quantity: 50, ReservedQuantity: 10, AvailableQuantity: 40}

	require.NoError(t, inv.RemoveQuantity(10, now))

	assert.Equal(t, 40.0, inv.Quantity)
	assert.Equal(t, 0.0, inv.ReservedQuantity)
	assert.Equal(t, 40.0, inv.AvailableQuantity)
}

func TestRemoveQuantityMoreThanStored(t *testing.T) {
	inv := &WarehouseInventory{Quantity: 5, ReservedQuantity: 5}

	err := inv.RemoveQuantity(10, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoveExceedsQuantity))
	assert.Equal(t, 5.0, inv.Quantity)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	soon := now.Add(3 * 24 * time.Hour)
	far := now.Add(60 * 24 * time.Hour)

	assert.False(t, (&WarehouseInventory{}).IsExpired(now))
	assert.True(t, (&WarehouseInventory{ExpiryDate: &past}).IsExpired(now))

	window := 7 * 24 * time.Hour
	assert.True(t, (&WarehouseInventory{ExpiryDate: &soon}).IsExpiringSoon(now, window))
	assert.False(t, (&WarehouseInventory{ExpiryDate: &far}).IsExpiringSoon(now, window))
	assert.False(t, (&WarehouseInventory{ExpiryDate: &past}).IsExpiringSoon(now, window))
}

func TestUtilizationPercentage(t *testing.T) {
	inv := &WarehouseInventory{Quantity: 25}

	assert.Equal(t, 25.0, inv.UtilizationPercentage(100))
	assert.Equal(t, 50.0, inv.UtilizationPercentage(50))
	assert.Equal(t, 0.0, inv.UtilizationPercentage(0))
}
