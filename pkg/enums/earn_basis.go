package enums

import "fmt"

// EarnBasis selects which order amount feeds the point-earning formula.
type EarnBasis string

const (
	EarnBasisTotal    EarnBasis = "TOTAL"
	EarnBasisSubtotal EarnBasis = "SUBTOTAL"
)

var validEarnBases = []EarnBasis{
	EarnBasisTotal,
	EarnBasisSubtotal,
}

// String implements fmt.Stringer.
func (e EarnBasis) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EarnBasis.
func (e EarnBasis) IsValid() bool {
	for _, candidate := range validEarnBases {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEarnBasis converts raw input into an EarnBasis.
func ParseEarnBasis(value string) (EarnBasis, error) {
	for _, candidate := range validEarnBases {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid earn basis %q", value)
}
