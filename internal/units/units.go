// Package units provides shared constants and conversions for speed units.
// Telemetry stores speeds in m/s; display surfaces convert on the way out.
package units

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// metersPerSecondPerKnot converts NMEA speed-over-ground (knots) to m/s.
const metersPerSecondPerKnot = 0.514444

// ValidUnits contains all valid display unit values.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed from meters per second to the target units.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// KnotsToMPS converts a speed-over-ground reading in knots to m/s.
func KnotsToMPS(knots float64) float64 {
	return knots * metersPerSecondPerKnot
}
