package models

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// Shipment types
const (
	ShipmentIncoming = "INCOMING"
	ShipmentOutgoing = "OUTGOING"
)

// Shipment statuses
const (
	StatusScheduled  = "SCHEDULED"
	StatusInTransit  = "IN_TRANSIT"
	StatusArrived    = "ARRIVED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// ErrInvalidStatusTransition is returned when a shipment operation is
// not allowed from the shipment's current status.
var ErrInvalidStatusTransition = errors.New("invalid shipment status transition")

var shipmentStatusColors = map[string]string{
	StatusScheduled:  "#ffa500",
	StatusInTransit:  "#2196f3",
	StatusArrived:    "#9c27b0",
	StatusInProgress: "#ff9800",
	StatusCompleted:  "#4caf50",
	StatusCancelled:  "#f44336",
}

// GenerateReferenceNumber builds a human-readable shipment reference.
// The format is {IN|OUT}-{last 6 digits of unix ms}-{3-digit random}.
func GenerateReferenceNumber(shipmentType string, now time.Time) string {
	prefix := "IN"
	if shipmentType == ShipmentOutgoing {
		prefix = "OUT"
	}

	millis := now.UnixMilli() % 1000000
	random := rand.Intn(900) + 100

	return fmt.Sprintf("%s-%06d-%d", prefix, millis, random)
}

// GenerateConfirmationCode returns a 6-digit numeric confirmation code
func GenerateConfirmationCode() string {
	return fmt.Sprintf("%d", rand.Intn(900000)+100000)
}

// IsIncoming reports whether the shipment delivers material into a silo
func (s *Shipment) IsIncoming() bool {
	return s.ShipmentType == ShipmentIncoming
}

// IsOutgoing reports whether the shipment takes material out of a silo
func (s *Shipment) IsOutgoing() bool {
	return s.ShipmentType == ShipmentOutgoing
}

// CanStart reports whether handling of the shipment may begin
func (s *Shipment) CanStart() bool {
	return s.Status == StatusScheduled || s.Status == StatusArrived
}

// CanComplete reports whether the shipment may be confirmed as done
func (s *Shipment) CanComplete() bool {
	return s.Status == StatusInProgress
}

// CanCancel reports whether the shipment may still be cancelled
func (s *Shipment) CanCancel() bool {
	switch s.Status {
	case StatusScheduled, StatusInTransit, StatusArrived:
		return true
	}
	return false
}

// Start moves the shipment to IN_PROGRESS and stamps a confirmation code
func (s *Shipment) Start(now time.Time) error {
	if !s.CanStart() {
		return errors.Wrapf(ErrInvalidStatusTransition,
			"cannot start shipment with status %s", s.Status)
	}

	code := GenerateConfirmationCode()
	s.Status = StatusInProgress
	s.ConfirmationCode = &code
	if s.ActualDate == nil {
		s.ActualDate = &now
	}

	return nil
}

// Complete moves the shipment to COMPLETED after its confirmation code
// has been verified by the caller.
func (s *Shipment) Complete(now time.Time) error {
	if !s.CanComplete() {
		return errors.Wrapf(ErrInvalidStatusTransition,
			"cannot complete shipment with status %s", s.Status)
	}

	s.Status = StatusCompleted
	if s.ConfirmationCode == nil {
		code := GenerateConfirmationCode()
		s.ConfirmationCode = &code
	}
	if s.ActualDate == nil {
		s.ActualDate = &now
	}

	return nil
}

// Cancel moves the shipment to CANCELLED, recording the reason in the notes
func (s *Shipment) Cancel(reason string) error {
	if !s.CanCancel() {
		return errors.Wrapf(ErrInvalidStatusTransition,
			"cannot cancel shipment with status %s", s.Status)
	}

	s.Status = StatusCancelled
	if reason != "" {
		note := "Cancelled: " + reason
		if s.Notes != nil && *s.Notes != "" {
			note = *s.Notes + "\n" + note
		}
		s.Notes = &note
	}

	return nil
}

// IsOverdue reports whether an unfinished shipment is past its scheduled date
func (s *Shipment) IsOverdue(now time.Time) bool {
	if s.Status == StatusCompleted || s.Status == StatusCancelled {
		return false
	}
	return s.ScheduledDate.Before(now)
}

// DaysUntilScheduled returns whole days until the scheduled date,
// negative when the date is in the past.
func (s *Shipment) DaysUntilScheduled(now time.Time) int {
	return int(s.ScheduledDate.Sub(now).Hours() / 24)
}

// StatusColor returns the display color for a shipment status
func StatusColor(status string) string {
	if color, ok := shipmentStatusColors[status]; ok {
		return color
	}
	return "#808080"
}
