// Package units provides shared constants and conversions for the length
// and angle units found in flight logs.
package units

import "fmt"

// Length unit constants
const (
	Metres = "m"
	Feet   = "ft"
)

// Angle unit constants
const (
	Degrees = "deg"
	Radians = "rad"
)

// FeetToMetres is the exact international foot.
const FeetToMetres = 0.3048

// ValidUnits contains all valid unit values
var ValidUnits = []string{Metres, Feet, Degrees, Radians}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// Factor returns the multiplier converting a value in unit from into unit
// to. Converting between a length and an angle is an error.
func Factor(from, to string) (float64, error) {
	if from == to {
		if !IsValid(from) {
			return 0, fmt.Errorf("unknown unit %q", from)
		}
		return 1, nil
	}
	switch {
	case from == Feet && to == Metres:
		return FeetToMetres, nil
	case from == Metres && to == Feet:
		return 1 / FeetToMetres, nil
	case from == Degrees && to == Radians:
		return degToRad, nil
	case from == Radians && to == Degrees:
		return 1 / degToRad, nil
	}
	if !IsValid(from) {
		return 0, fmt.Errorf("unknown unit %q", from)
	}
	if !IsValid(to) {
		return 0, fmt.Errorf("unknown unit %q", to)
	}
	return 0, fmt.Errorf("cannot convert %s to %s", from, to)
}

const degToRad = 0.017453292519943295 // math.Pi / 180
