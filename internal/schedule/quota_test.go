package schedule

import (
	"context"
	"testing"
	"time"

	"tutorflow-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuotaStore serves both the plan sums and the occurrence counts from
// in-memory data keyed the way the real store would aggregate them.
type fakeQuotaStore struct {
	plans       map[[2]int]int // (year, month) -> planned units
	occurrences []models.Occurrence
}

func (f *fakeQuotaStore) SumPlannedUnitsThrough(_ context.Context, _ string, year, month int) (int, error) {
	sum := 0
	for ym, units := range f.plans {
		if ym[0] < year || (ym[0] == year && ym[1] <= month) {
			sum += units
		}
	}
	return sum, nil
}

func (f *fakeQuotaStore) CountBillableThrough(_ context.Context, _ string, lastDay time.Time, excludeID string) (int, error) {
	count := 0
	for _, occ := range f.occurrences {
		if occ.ID != "" && occ.ID == excludeID {
			continue
		}
		if occ.Status == models.StatusCancelled {
			continue
		}
		if occ.Date.After(lastDay) {
			continue
		}
		count++
	}
	return count, nil
}

func quotaContract(enforce bool) *models.Contract {
	return &models.Contract{
		ID:                  "c1",
		UnitDurationMinutes: 45,
		EnforceQuota:        enforce,
	}
}

func plannedOn(id string, d time.Time) models.Occurrence {
	return models.Occurrence{ID: id, ContractID: "c1", Date: d, Status: models.StatusPlanned}
}

func TestCheckQuota_CumulativeCatchUp(t *testing.T) {
	// January plans 3 units, February 5. Only 2 happened in January, so
	// February may hold up to 6: the shortfall carries over.
	store := &fakeQuotaStore{
		plans: map[[2]int]int{
			{2025, 1}: 3,
			{2025, 2}: 5,
		},
		occurrences: []models.Occurrence{
			plannedOn("j1", date(2025, time.January, 7)),
			plannedOn("j2", date(2025, time.January, 14)),
			plannedOn("f1", date(2025, time.February, 4)),
			plannedOn("f2", date(2025, time.February, 6)),
			plannedOn("f3", date(2025, time.February, 11)),
			plannedOn("f4", date(2025, time.February, 13)),
			plannedOn("f5", date(2025, time.February, 18)),
		},
	}
	enforcer := NewQuotaEnforcer(store, store)

	// 7 existing, cumulative plan 8: one more fits
	cand := plannedOn("", date(2025, time.February, 20))
	conflict, err := enforcer.CheckQuota(context.Background(), &cand, quotaContract(true), false)
	require.NoError(t, err)
	assert.Nil(t, conflict)

	// with the eighth in place, the ninth conflicts
	store.occurrences = append(store.occurrences, plannedOn("f6", date(2025, time.February, 20)))

	cand = plannedOn("", date(2025, time.February, 25))
	conflict, err = enforcer.CheckQuota(context.Background(), &cand, quotaContract(true), false)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, ConflictQuota, conflict.Kind)
	assert.Equal(t, 8, conflict.PlannedUnits)
	assert.Equal(t, 9, conflict.AttemptedUnits)
	assert.Equal(t, 2025, conflict.Year)
	assert.Equal(t, 2, conflict.Month)
}

func TestCheckQuota_CancelledExcluded(t *testing.T) {
	cancelled := plannedOn("x", date(2025, time.January, 7))
	cancelled.Status = models.StatusCancelled

	store := &fakeQuotaStore{
		plans: map[[2]int]int{{2025, 1}: 1},
		occurrences: []models.Occurrence{
			cancelled,
		},
	}
	enforcer := NewQuotaEnforcer(store, store)

	cand := plannedOn("", date(2025, time.January, 21))
	conflict, err := enforcer.CheckQuota(context.Background(), &cand, quotaContract(true), false)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestCheckQuota_ExcludeSelfOnEdit(t *testing.T) {
	store := &fakeQuotaStore{
		plans: map[[2]int]int{{2025, 1}: 1},
		occurrences: []models.Occurrence{
			plannedOn("o1", date(2025, time.January, 7)),
		},
	}
	enforcer := NewQuotaEnforcer(store, store)

	// moving o1 within its month must not count it against itself
	cand := plannedOn("o1", date(2025, time.January, 14))
	conflict, err := enforcer.CheckQuota(context.Background(), &cand, quotaContract(true), true)
	require.NoError(t, err)
	assert.Nil(t, conflict)

	// without the exclusion the same edit would trip the quota
	conflict, err = enforcer.CheckQuota(context.Background(), &cand, quotaContract(true), false)
	require.NoError(t, err)
	assert.NotNil(t, conflict)
}

func TestCheckQuota_EnforcementDisabled(t *testing.T) {
	store := &fakeQuotaStore{
		plans: map[[2]int]int{}, // nothing planned at all
		occurrences: []models.Occurrence{
			plannedOn("o1", date(2025, time.January, 7)),
		},
	}
	enforcer := NewQuotaEnforcer(store, store)

	cand := plannedOn("", date(2025, time.January, 14))
	conflict, err := enforcer.CheckQuota(context.Background(), &cand, quotaContract(false), false)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestCheckQuota_NoPlanMeansZeroBudget(t *testing.T) {
	store := &fakeQuotaStore{plans: map[[2]int]int{}}
	enforcer := NewQuotaEnforcer(store, store)

	cand := plannedOn("", date(2025, time.March, 3))
	conflict, err := enforcer.CheckQuota(context.Background(), &cand, quotaContract(true), false)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, 0, conflict.PlannedUnits)
	assert.Equal(t, 1, conflict.AttemptedUnits)
}
