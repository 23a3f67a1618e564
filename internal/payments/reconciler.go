package payments

import (
	"github.com/lehaiminh/chainpos-backend/pkg/enums"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
)

// Payment is a single tendered payment before persistence.
type Payment struct {
	Method      enums.PaymentMethod
	AmountCents int
}

// Mode selects how strictly the payment sum is held against the order total.
type Mode string

const (
	// ModeNone rejects any tendered payment (pending orders).
	ModeNone Mode = "none"
	// ModeExact requires the sum to equal the order total (confirmed orders).
	ModeExact Mode = "exact"
	// ModeAtMost allows partial payment up to the order total (debt orders).
	ModeAtMost Mode = "at_most"
)

// Sum totals the tendered amounts in minor currency units.
func Sum(payments []Payment) int {
	total := 0
	for _, p := range payments {
		total += p.AmountCents
	}
	return total
}

// DefaultCOD synthesizes the single cash-on-delivery payment used when an
// online order is confirmed without explicit payments.
func DefaultCOD(totalCents int) []Payment {
	return []Payment{{Method: enums.PaymentMethodCOD, AmountCents: totalCents}}
}

// Reconcile validates tendered payments against the required total for the
// target status. It returns the normalized list or a coded error; it never
// silently drops or rescales a payment.
func Reconcile(payments []Payment, requiredTotalCents int, mode Mode) ([]Payment, error) {
	for _, p := range payments {
		if !p.Method.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
				WithDetails(map[string]any{"method": string(p.Method)})
		}
		if p.AmountCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive").
				WithDetails(map[string]any{"amount_cents": p.AmountCents})
		}
	}

	paid := Sum(payments)

	switch mode {
	case ModeNone:
		if paid != 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "pending orders cannot carry payments").
				WithDetails(map[string]any{"paid_cents": paid})
		}
	case ModeExact:
		if paid != requiredTotalCents {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payments must sum exactly to order total").
				WithDetails(map[string]any{"paid_cents": paid, "total_cents": requiredTotalCents})
		}
	case ModeAtMost:
		if paid > requiredTotalCents {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payments exceed order total").
				WithDetails(map[string]any{"paid_cents": paid, "total_cents": requiredTotalCents})
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown payment reconcile mode")
	}

	return payments, nil
}
