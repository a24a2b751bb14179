// Package units provides shared constants and conversion for signal strength units
package units

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Unit constants
const (
	DBM = "dBm"
	MW  = "mW"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{DBM, MW}

// ErrUnsupportedUnitConversion is returned when a conversion between the
// requested pair of units is not defined.
var ErrUnsupportedUnitConversion = errors.New("unsupported unit conversion")

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// Convert converts a single signal strength value between units.
// Matching units return the value unchanged.
func Convert(value float64, from, to string) (float64, error) {
	switch {
	case from == to && IsValid(from):
		return value, nil
	case from == DBM && to == MW:
		return math.Pow(10, value/10), nil
	case from == MW && to == DBM:
		return 10 * math.Log10(value), nil
	default:
		return 0, fmt.Errorf("%w: %q to %q (valid units: %s)", ErrUnsupportedUnitConversion, from, to, GetValidUnitsString())
	}
}

// ConvertSlice converts every value in values and returns a new slice of the
// same length. The input slice is not modified.
func ConvertSlice(values []float64, from, to string) ([]float64, error) {
	// Resolve the unit pair once so an empty slice still reports bad units.
	if _, err := Convert(0, from, to); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i], _ = Convert(v, from, to)
	}
	return out, nil
}
