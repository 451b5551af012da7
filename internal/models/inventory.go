package models

import (
	"time"

	"github.com/pkg/errors"
)

// Inventory arithmetic errors
var (
	ErrQuantityNotPositive    = errors.New("quantity must be positive")
	ErrInsufficientAvailable  = errors.New("insufficient available quantity")
	ErrReleaseExceedsReserved = errors.New("release exceeds reserved quantity")
	ErrRemoveExceedsQuantity  = errors.New("removal exceeds total quantity")
)

// recompute keeps the stored available quantity in sync with the
// invariant available = quantity - reserved.
func (w *WarehouseInventory) recompute() {
	w.AvailableQuantity = w.Quantity - w.ReservedQuantity
}

// CanReserve reports whether the given quantity can be reserved
func (w *WarehouseInventory) CanReserve(quantity float64) bool {
	return quantity > 0 && quantity <= w.Quantity-w.ReservedQuantity
}

// Reserve sets aside part of the available quantity for an outgoing
// shipment. The row is left unchanged when the reservation fails.
func (w *WarehouseInventory) Reserve(quantity float64) error {
	if quantity <= 0 {
		return errors.Wrapf(ErrQuantityNotPositive, "cannot reserve %.3f", quantity)
	}
	if !w.CanReserve(quantity) {
		return errors.Wrapf(ErrInsufficientAvailable,
			"cannot reserve %.3f, only %.3f available", quantity, w.Quantity-w.ReservedQuantity)
	}

	w.ReservedQuantity += quantity
	w.recompute()
	return nil
}

// Release returns a previously reserved quantity to the available pool
func (w *WarehouseInventory) Release(quantity float64) error {
	if quantity <= 0 {
		return errors.Wrapf(ErrQuantityNotPositive, "cannot release %.3f", quantity)
	}
	if quantity > w.ReservedQuantity {
		return errors.Wrapf(ErrReleaseExceedsReserved,
			"cannot release %.3f, only %.3f reserved", quantity, w.ReservedQuantity)
	}

	w.ReservedQuantity -= quantity
	w.recompute()
	return nil
}

// AddQuantity records a confirmed incoming delivery
func (w *WarehouseInventory) AddQuantity(quantity float64, now time.Time) error {
	if quantity <= 0 {
		return errors.Wrapf(ErrQuantityNotPositive, "cannot add %.3f", quantity)
	}

	w.Quantity += quantity
	w.LastUpdated = now
	w.recompute()
	return nil
}

// RemoveQuantity consumes a reserved quantity once an outgoing shipment
// has been confirmed. Both the total and the reservation shrink, so the
// guard is against the total, not the available quantity. Callers that
// take stock without holding a reservation must check
// AvailableQuantity themselves before calling.
func (w *WarehouseInventory) RemoveQuantity(quantity float64, now time.Time) error {
	if quantity <= 0 {
		return errors.Wrapf(ErrQuantityNotPositive, "cannot remove %.3f", quantity)
	}
	if quantity > w.Quantity {
		return errors.Wrapf(ErrRemoveExceedsQuantity,
			"cannot remove %.3f, only %.3f stored", quantity, w.Quantity)
	}

	w.Quantity -= quantity
	if quantity > w.ReservedQuantity {
		w.ReservedQuantity = 0
	} else {
		w.ReservedQuantity -= quantity
	}
	w.LastUpdated = now
	w.recompute()
	return nil
}

// IsExpired reports whether the stored batch is past its expiry date
func (w *WarehouseInventory) IsExpired(now time.Time) bool {
	return w.ExpiryDate != nil && w.ExpiryDate.Before(now)
}

// IsExpiringSoon reports whether the batch expires within the given window
func (w *WarehouseInventory) IsExpiringSoon(now time.Time, window time.Duration) bool {
	if w.ExpiryDate == nil || w.IsExpired(now) {
		return false
	}
	return w.ExpiryDate.Before(now.Add(window))
}

// UtilizationPercentage returns how full the silo is relative to capacity
func (w *WarehouseInventory) UtilizationPercentage(maxCapacity float64) float64 {
	if maxCapacity <= 0 {
		return 0
	}
	return w.Quantity / maxCapacity * 100
}
