package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferenceNumber(t *testing.T) {
	now := time.Now()

	in := GenerateReferenceNumber(ShipmentIncoming, now)
	out := GenerateReferenceNumber(ShipmentOutgoing, now)

	assert.Regexp(t, regexp.MustCompile(`^IN-\d{6}-\d{3}$`), in)
	assert.Regexp(t, regexp.MustCompile(`^OUT-\d{6}-\d{3}$`), out)
}

func TestGenerateConfirmationCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := GenerateConfirmationCode()
		require.Len(t, code, 6)
		assert.Regexp(t, regexp.MustCompile(`^[1-9]\d{5}$`), code)
	}
}

func TestStartFromScheduled(t *testing.T) {
	now := time.Now()
	s := &Shipment{Status: StatusScheduled}

	require.NoError(t, s.Start(now))

	assert.Equal(t, StatusInProgress, s.Status)
	require.NotNil(t, s.ConfirmationCode)
	assert.Len(t, *s.ConfirmationCode, 6)
	require.NotNil(t, s.ActualDate)
	assert.Equal(t, now, *s.ActualDate)
}

func TestStartFromArrived(t *testing.T) {
	s := &Shipment{Status: StatusArrived}
	require.NoError(t, s.Start(time.Now()))
	assert.Equal(t, StatusInProgress, s.Status)
}

func TestStartKeepsExistingActualDate(t *testing.T) {
	arrived := time.Now().Add(-2 * time.Hour)
	s := &Shipment{Status: StatusArrived, ActualDate: &arrived}

	require.NoError(t, s.Start(time.Now()))

	assert.Equal(t, arrived, *s.ActualDate)
}

func TestStartFromInvalidStatuses(t *testing.T) {
	for _, status := range []string{StatusInTransit, StatusInProgress, StatusCompleted, StatusCancelled} {
		s := &Shipment{Status: status}
		err := s.Start(time.Now())
		require.Error(t, err, status)
		assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
		assert.Equal(t, status, s.Status)
	}
}

func TestComplete(t *testing.T) {
	s := &Shipment{Status: StatusInProgress}

	require.NoError(t, s.Complete(time.Now()))
	assert.Equal(t, StatusCompleted, s.Status)
	assert.NotNil(t, s.ActualDate)
}

func TestCompleteGeneratesCodeWhenAbsent(t *testing.T) {
	s := &Shipment{Status: StatusInProgress}

	require.NoError(t, s.Complete(time.Now()))

	require.NotNil(t, s.ConfirmationCode)
	assert.Regexp(t, regexp.MustCompile(`^[1-9]\d{5}$`), *s.ConfirmationCode)
}

func TestCompleteKeepsIssuedCode(t *testing.T) {
	code := "654321"
	s := &Shipment{Status: StatusInProgress, ConfirmationCode: &code}

	require.NoError(t, s.Complete(time.Now()))
	assert.Equal(t, "654321", *s.ConfirmationCode)
}

func TestCompleteOnlyFromInProgress(t *testing.T) {
	for _, status := range []string{StatusScheduled, StatusInTransit, StatusArrived, StatusCompleted, StatusCancelled} {
		s := &Shipment{Status: status}
		err := s.Complete(time.Now())
		require.Error(t, err, status)
		assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
	}
}

func TestCancel(t *testing.T) {
	for _, status := range []string{StatusScheduled, StatusInTransit, StatusArrived} {
		s := &Shipment{Status: status}
		require.NoError(t, s.Cancel("truck broke down"), status)
		assert.Equal(t, StatusCancelled, s.Status)
		require.NotNil(t, s.Notes)
		assert.Contains(t, *s.Notes, "truck broke down")
	}
}

func TestCancelTwiceRejected(t *testing.T) {
	s := &Shipment{Status: StatusScheduled}
	require.NoError(t, s.Cancel("first"))

	err := s.Cancel("second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
}

func TestCancelAppendsToNotes(t *testing.T) {
	existing := "handle with care"
	s := &Shipment{Status: StatusScheduled, Notes: &existing}

	require.NoError(t, s.Cancel("customer withdrew"))

	assert.Contains(t, *s.Notes, "handle with care")
	assert.Contains(t, *s.Notes, "Cancelled: customer withdrew")
}

func TestIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	assert.True(t, (&Shipment{Status: StatusScheduled, ScheduledDate: past}).IsOverdue(now))
	assert.False(t, (&Shipment{Status: StatusScheduled, ScheduledDate: future}).IsOverdue(now))
	assert.False(t, (&Shipment{Status: StatusCompleted, ScheduledDate: past}).IsOverdue(now))
	assert.False(t, (&Shipment{Status: StatusCancelled, ScheduledDate: past}).IsOverdue(now))
}

func TestDaysUntilScheduled(t *testing.T) {
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	s := &Shipment{ScheduledDate: now.Add(72 * time.Hour)}
	assert.Equal(t, 3, s.DaysUntilScheduled(now))

	overdue := &Shipment{ScheduledDate: now.Add(-48 * time.Hour)}
	assert.Equal(t, -2, overdue.DaysUntilScheduled(now))
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, "#4caf50", StatusColor(StatusCompleted))
	assert.Equal(t, "#f44336", StatusColor(StatusCancelled))
	assert.Equal(t, "#808080", StatusColor("UNKNOWN"))
}
