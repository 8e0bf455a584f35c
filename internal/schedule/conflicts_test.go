package schedule

import (
	"context"
	"testing"
	"time"

	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConflictStore struct {
	occurrences []models.Occurrence
	blocked     []models.BlockedTime
	contract    *models.Contract
}

func (f *fakeConflictStore) ListOccurrencesOnDate(_ context.Context, d time.Time) ([]models.Occurrence, error) {
	var out []models.Occurrence
	for _, occ := range f.occurrences {
		if occ.Date.Equal(d) {
			out = append(out, occ)
		}
	}
	return out, nil
}

func (f *fakeConflictStore) ListBlockedTimesOverlapping(_ context.Context, from, to time.Time) ([]models.BlockedTime, error) {
	var out []models.BlockedTime
	for _, b := range f.blocked {
		if Overlaps(from, to, b.Start, b.End) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeConflictStore) GetContract(_ context.Context, _ string) (*models.Contract, error) {
	return f.contract, nil
}

func newDetector(store *fakeConflictStore) *ConflictDetector {
	quota := NewQuotaEnforcer(&fakeQuotaStore{plans: map[[2]int]int{}}, &fakeQuotaStore{})
	return NewConflictDetector(store, quota)
}

func sessionAt(id string, d time.Time, h, m, duration, before, after int) models.Occurrence {
	return models.Occurrence{
		ID:                  id,
		ContractID:          "c1",
		Date:                d,
		StartTime:           clock(h, m),
		DurationMinutes:     duration,
		TravelBeforeMinutes: before,
		TravelAfterMinutes:  after,
		Status:              models.StatusPlanned,
	}
}

func TestCheckConflicts_OccurrenceOverlap(t *testing.T) {
	d := date(2025, time.March, 10)
	store := &fakeConflictStore{
		occurrences: []models.Occurrence{
			sessionAt("other", d, 10, 0, 60, 0, 0), // 10:00-11:00
		},
		contract: quotaContract(false),
	}
	detector := newDetector(store)

	// 11:00 start touches but does not overlap
	cand := sessionAt("", d, 11, 0, 60, 0, 0)
	conflicts, err := detector.CheckConflicts(context.Background(), &cand, false)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	// 10:59 start overlaps by a minute
	cand = sessionAt("", d, 10, 59, 60, 0, 0)
	conflicts, err = detector.CheckConflicts(context.Background(), &cand, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictOccurrence, conflicts[0].Kind)
	assert.Equal(t, "other", conflicts[0].OccurrenceID)
}

func TestCheckConflicts_TravelBuffersCollide(t *testing.T) {
	d := date(2025, time.March, 10)
	store := &fakeConflictStore{
		occurrences: []models.Occurrence{
			// lesson 10:00-11:00 plus 30 min travel after: blocked until 11:30
			sessionAt("other", d, 10, 0, 60, 0, 30),
		},
		contract: quotaContract(false),
	}
	detector := newDetector(store)

	// lesson at 11:15 with 10 min travel before: blocked from 11:05
	cand := sessionAt("", d, 11, 15, 45, 10, 0)
	conflicts, err := detector.CheckConflicts(context.Background(), &cand, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictOccurrence, conflicts[0].Kind)
}

func TestCheckConflicts_ExcludeSelf(t *testing.T) {
	d := date(2025, time.March, 10)
	store := &fakeConflictStore{
		occurrences: []models.Occurrence{
			sessionAt("me", d, 10, 0, 60, 0, 0),
		},
		contract: quotaContract(false),
	}
	detector := newDetector(store)

	cand := sessionAt("me", d, 10, 30, 60, 0, 0)

	conflicts, err := detector.CheckConflicts(context.Background(), &cand, true)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	conflicts, err = detector.CheckConflicts(context.Background(), &cand, false)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestCheckConflicts_BlockedTime(t *testing.T) {
	d := date(2025, time.March, 10)
	store := &fakeConflictStore{
		blocked: []models.BlockedTime{
			{
				ID:    "b1",
				Title: "vacation",
				// multi-day block spanning the candidate's date entirely
				Start: date(2025, time.March, 8),
				End:   date(2025, time.March, 12),
			},
		},
		contract: quotaContract(false),
	}
	detector := newDetector(store)

	cand := sessionAt("", d, 10, 0, 60, 0, 0)
	conflicts, err := detector.CheckConflicts(context.Background(), &cand, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictBlockedTime, conflicts[0].Kind)
	assert.Equal(t, "b1", conflicts[0].BlockedTimeID)
	assert.Equal(t, "vacation", conflicts[0].Title)
}

func TestCheckConflicts_MultipleKindsAtOnce(t *testing.T) {
	d := date(2025, time.March, 10)
	store := &fakeConflictStore{
		occurrences: []models.Occurrence{
			sessionAt("other", d, 10, 0, 60, 0, 0),
		},
		blocked: []models.BlockedTime{
			{ID: "b1", Start: d.Add(10 * time.Hour), End: d.Add(11 * time.Hour)},
		},
		contract: quotaContract(true), // zero plan, so quota trips too
	}
	detector := newDetector(store)

	cand := sessionAt("", d, 10, 30, 60, 0, 0)
	conflicts, err := detector.CheckConflicts(context.Background(), &cand, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 3)

	kinds := map[ConflictKind]bool{}
	for _, c := range conflicts {
		kinds[c.Kind] = true
	}
	assert.True(t, kinds[ConflictOccurrence])
	assert.True(t, kinds[ConflictBlockedTime])
	assert.True(t, kinds[ConflictQuota])
}

func TestCheckConflicts_RejectsNonPositiveDuration(t *testing.T) {
	detector := newDetector(&fakeConflictStore{contract: quotaContract(false)})

	cand := sessionAt("", date(2025, time.March, 10), 10, 0, 0, 0, 0)
	_, err := detector.CheckConflicts(context.Background(), &cand, false)
	assert.ErrorIs(t, err, response.ErrValidation)
}

func TestHasConflicts(t *testing.T) {
	d := date(2025, time.March, 10)
	store := &fakeConflictStore{
		occurrences: []models.Occurrence{
			sessionAt("other", d, 10, 0, 60, 0, 0),
		},
		contract: quotaContract(false),
	}
	detector := newDetector(store)

	cand := sessionAt("", d, 10, 30, 60, 0, 0)
	has, err := detector.HasConflicts(context.Background(), &cand, false)
	require.NoError(t, err)
	assert.True(t, has)

	cand = sessionAt("", d, 12, 0, 60, 0, 0)
	has, err = detector.HasConflicts(context.Background(), &cand, false)
	require.NoError(t, err)
	assert.False(t, has)
}
