package enums

import "fmt"

// RoundingMode selects how fractional point amounts collapse to integers.
type RoundingMode string

const (
	RoundingModeFloor   RoundingMode = "FLOOR"
	RoundingModeNearest RoundingMode = "NEAREST"
)

var validRoundingModes = []RoundingMode{
	RoundingModeFloor,
	RoundingModeNearest,
}

// String implements fmt.Stringer.
func (r RoundingMode) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RoundingMode.
func (r RoundingMode) IsValid() bool {
	for _, candidate := range validRoundingModes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRoundingMode converts raw input into a RoundingMode.
func ParseRoundingMode(value string) (RoundingMode, error) {
	for _, candidate := range validRoundingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rounding mode %q", value)
}
