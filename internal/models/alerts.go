package models

// Alert levels ordered by severity
const (
	AlertNormal     = "normal"
	AlertWarn       = "warn"
	AlertCritical   = "critical"
	AlertDisconnect = "disconnect"
)

// Alert statuses
const (
	AlertStatusActive   = "active"
	AlertStatusResolved = "resolved"
)

// DisconnectedValue is the sentinel a sensor reports when its probe is
// physically disconnected.
const DisconnectedValue = -127.0

var alertLevelColors = map[string]string{
	AlertNormal:     "#46d446",
	AlertWarn:       "#c7c150",
	AlertCritical:   "#d14141",
	AlertDisconnect: "#808080",
}

// Disconnected reports whether the reading carries the sensor's
// disconnect sentinel rather than a real temperature.
func (r *TemperatureReading) Disconnected() bool {
	return r.ValueC == DisconnectedValue
}

// AlertLevelForTemperature classifies a temperature against the
// product's thresholds. A nil value means no reading was received.
func AlertLevelForTemperature(valueC *float64, product Product) string {
	if valueC == nil || *valueC == DisconnectedValue {
		return AlertDisconnect
	}
	if *valueC >= product.TempCritical {
		return AlertCritical
	}
	if *valueC >= product.TempWarn {
		return AlertWarn
	}
	return AlertNormal
}

// AlertLevelColor returns the display color for an alert level
func AlertLevelColor(level string) string {
	if color, ok := alertLevelColors[level]; ok {
		return color
	}
	return alertLevelColors[AlertDisconnect]
}
