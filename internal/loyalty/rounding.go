package loyalty

import (
	"github.com/shopspring/decimal"

	"github.com/lehaiminh/chainpos-backend/pkg/enums"
)

// divideRound computes numerator/denominator as a whole number of points
// under the given rounding mode. Unknown modes fall back to floor.
func divideRound(numerator, denominator int64, mode enums.RoundingMode) int64 {
	if denominator <= 0 || numerator <= 0 {
		return 0
	}
	quotient := decimal.NewFromInt(numerator).Div(decimal.NewFromInt(denominator))
	switch mode {
	case enums.RoundingModeNearest:
		return quotient.Round(0).IntPart()
	default:
		return quotient.Floor().IntPart()
	}
}
