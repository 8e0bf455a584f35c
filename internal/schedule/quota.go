package schedule

import (
	"context"
	"fmt"
	"time"

	"tutorflow-service/internal/models"
)

type PlanReader interface {
	// SumPlannedUnitsThrough sums planned_units over all monthly plans of the
	// contract with (year, month) <= (y, m).
	SumPlannedUnitsThrough(ctx context.Context, contractID string, year, month int) (int, error)
}

type OccurrenceCounter interface {
	// CountBillableThrough counts the contract's occurrences dated on or
	// before lastDay with status planned, taught or paid. excludeID skips one
	// occurrence when non-empty.
	CountBillableThrough(ctx context.Context, contractID string, lastDay time.Time, excludeID string) (int, error)
}

// QuotaEnforcer applies the no-advance-work rule: the cumulative count of
// non-cancelled occurrences from contract start through any month must never
// exceed the cumulative planned units through that month. The rule is
// deliberately cumulative, not month-isolated: a shortfall in an earlier
// month may be caught up later.
type QuotaEnforcer struct {
	plans       PlanReader
	occurrences OccurrenceCounter
}

func NewQuotaEnforcer(plans PlanReader, occurrences OccurrenceCounter) *QuotaEnforcer {
	return &QuotaEnforcer{plans: plans, occurrences: occurrences}
}

// CheckQuota returns a quota conflict if adding the candidate would push the
// cumulative actual count past the cumulative plan of the candidate's month,
// nil otherwise. Contracts with enforcement disabled never conflict.
func (q *QuotaEnforcer) CheckQuota(ctx context.Context, cand *models.Occurrence, contract *models.Contract, excludeSelf bool) (*Conflict, error) {
	const op = "schedule.QuotaEnforcer.CheckQuota"

	if !contract.EnforceQuota {
		return nil, nil
	}

	year, month := cand.Date.Year(), int(cand.Date.Month())

	plannedTotal, err := q.plans.SumPlannedUnitsThrough(ctx, contract.ID, year, month)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	excludeID := ""
	if excludeSelf {
		excludeID = cand.ID
	}

	actualTotal, err := q.occurrences.CountBillableThrough(ctx, contract.ID, lastDayOfMonth(year, month, cand.Date.Location()), excludeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if actualTotal+1 > plannedTotal {
		return &Conflict{
			Kind:           ConflictQuota,
			PlannedUnits:   plannedTotal,
			AttemptedUnits: actualTotal + 1,
			Year:           year,
			Month:          month,
		}, nil
	}

	return nil, nil
}

// lastDayOfMonth uses the day-zero trick: day 0 of the next month.
func lastDayOfMonth(year, month int, loc *time.Location) time.Time {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, loc)
}
