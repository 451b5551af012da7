package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlertLevelForTemperature(t *testing.T) {
	product := Product{TempNormal: 20, TempWarn: 30, TempCritical: 40}

	val := func(v float64) *float64 { return &v }

	assert.Equal(t, AlertNormal, AlertLevelForTemperature(val(18.5), product))
	assert.Equal(t, AlertNormal, AlertLevelForTemperature(val(29.9), product))
	assert.Equal(t, AlertWarn, AlertLevelForTemperature(val(30), product))
	assert.Equal(t, AlertWarn, AlertLevelForTemperature(val(39.9), product))
	assert.Equal(t, AlertCritical, AlertLevelForTemperature(val(40), product))
	assert.Equal(t, AlertCritical, AlertLevelForTemperature(val(55), product))
	assert.Equal(t, AlertDisconnect, AlertLevelForTemperature(val(DisconnectedValue), product))
	assert.Equal(t, AlertDisconnect, AlertLevelForTemperature(nil, product))
}

func TestAlertLevelColor(t *testing.T) {
	assert.Equal(t, "#46d446", AlertLevelColor(AlertNormal))
	assert.Equal(t, "#c7c150", AlertLevelColor(AlertWarn))
	assert.Equal(t, "#d14141", AlertLevelColor(AlertCritical))
	assert.Equal(t, "#808080", AlertLevelColor(AlertDisconnect))
	assert.Equal(t, "#808080", AlertLevelColor("bogus"))
}

func TestReadingDisconnected(t *testing.T) {
	assert.True(t, (&TemperatureReading{ValueC: -127}).Disconnected())
	assert.False(t, (&TemperatureReading{ValueC: 21.5}).Disconnected())
}

func TestValidateDensity(t *testing.T) {
	assert.NoError(t, ValidateDensity(0.75))
	assert.NoError(t, ValidateDensity(10))
	assert.Error(t, ValidateDensity(0))
	assert.Error(t, ValidateDensity(-1))
	assert.Error(t, ValidateDensity(10.1))
}

func TestVolumeFor(t *testing.T) {
	m := &MaterialType{Density: 0.8}
	volume, err := m.VolumeFor(40)
	assert.NoError(t, err)
	assert.InDelta(t, 50.0, volume, 1e-9)

	zero := &MaterialType{}
	_, err = zero.VolumeFor(40)
	assert.Error(t, err)

	_, err = m.VolumeFor(-1)
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	m := &MaterialType{Name: "Wheat", NameAr: "قمح"}
	assert.Equal(t, "Wheat", m.DisplayName("en"))
	assert.Equal(t, "قمح", m.DisplayName("ar"))

	noAr := &MaterialType{Name: "Barley"}
	assert.Equal(t, "Barley", noAr.DisplayName("ar"))
}
