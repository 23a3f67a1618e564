package types

// LoyaltySnapshot freezes the earning outcome of a settled order. The revert
// path reads only this snapshot, never the live tier table, so a later tier
// edit cannot change how much is clamped back.
type LoyaltySnapshot struct {
	EarnedPoints        int    `json:"earned_points"`
	TierCode            string `json:"tier_code"`
	AmountPerPointCents int    `json:"amount_per_point_cents"`
	BasisCents          int    `json:"basis_cents"`
}
