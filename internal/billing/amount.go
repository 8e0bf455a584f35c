package billing

import (
	"fmt"
	"math"

	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"
)

// Units converts an occurrence duration into the contract's billing units as
// an exact rational value: 90 minutes at a 45-minute unit is 2 units, 60
// minutes is 1.333... units. Integer division would silently round down.
func Units(durationMinutes, unitDurationMinutes int) (float64, error) {
	const op = "billing.Units"

	if durationMinutes <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive: %w", op, response.ErrValidation)
	}
	if unitDurationMinutes <= 0 {
		return 0, fmt.Errorf("%s: unit duration must be positive: %w", op, response.ErrValidation)
	}

	return float64(durationMinutes) / float64(unitDurationMinutes), nil
}

// Amount is the single billable-amount computation, used by the invoice
// creator and every read-side aggregation alike. Monetary rounding to two
// decimals happens exactly once, here; once an invoice item stores the
// result, that stored value is authoritative and is never re-derived.
func Amount(occ *models.Occurrence, contract *models.Contract) (float64, error) {
	const op = "billing.Amount"

	units, err := Units(occ.DurationMinutes, contract.UnitDurationMinutes)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return roundMoney(units * contract.RatePerUnit), nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
