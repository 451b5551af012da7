package models

import "github.com/pkg/errors"

// MaxDensity bounds how dense a stored material can plausibly be, in
// tons per cubic meter.
const MaxDensity = 10.0

// ErrInvalidDensity is returned for densities outside (0, MaxDensity]
var ErrInvalidDensity = errors.New("density must be greater than 0 and at most 10")

// ValidateDensity checks the physical plausibility of a material density
func ValidateDensity(density float64) error {
	if density <= 0 || density > MaxDensity {
		return errors.Wrapf(ErrInvalidDensity, "got %.3f", density)
	}
	return nil
}

// DisplayName returns the localized name, falling back to the default
// name when no Arabic name is set.
func (m *MaterialType) DisplayName(lang string) string {
	if lang == "ar" && m.NameAr != "" {
		return m.NameAr
	}
	return m.Name
}

// VolumeFor converts a weight of this material to volume using its density
func (m *MaterialType) VolumeFor(weight float64) (float64, error) {
	if err := ValidateDensity(m.Density); err != nil {
		return 0, err
	}
	if weight < 0 {
		return 0, errors.New("weight cannot be negative")
	}
	return weight / m.Density, nil
}
