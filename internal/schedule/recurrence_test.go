package schedule

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"tutorflow-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpandStore struct {
	created  []models.Occurrence
	contract *models.Contract
}

func (f *fakeExpandStore) OccurrenceExistsAt(_ context.Context, contractID string, d, startTime time.Time) (bool, error) {
	for _, occ := range f.created {
		if occ.ContractID == contractID && occ.Date.Equal(d) && SameClock(occ.StartTime, startTime) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeExpandStore) CreateOccurrence(_ context.Context, occ *models.Occurrence) (string, error) {
	id := occ.Date.Format("2006-01-02")
	copied := *occ
	copied.ID = id
	f.created = append(f.created, copied)
	return id, nil
}

func (f *fakeExpandStore) GetContract(_ context.Context, _ string) (*models.Contract, error) {
	return f.contract, nil
}

func newExpander(store *fakeExpandStore) *RecurrenceExpander {
	detector := newDetector(&fakeConflictStore{contract: store.contract})
	return NewRecurrenceExpander(store, store, detector)
}

func weeklyTemplate(weekdays []string, start, end time.Time) *models.RecurrenceTemplate {
	return &models.RecurrenceTemplate{
		ID:              "tpl1",
		ContractID:      "c1",
		StartDate:       start,
		EndDate:         sql.NullTime{Time: end, Valid: true},
		StartTime:       clock(14, 0),
		DurationMinutes: 60,
		Weekdays:        weekdays,
		Cadence:         models.CadenceWeekly,
		Active:          true,
	}
}

func expandDates(occs []models.Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, occ := range occs {
		out = append(out, occ.Date.Format("2006-01-02"))
	}
	return out
}

func TestExpand_WeeklySingleWeek(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	// 2025-08-25 is a Monday; one week, Mondays only: exactly one occurrence.
	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.August, 25), date(2025, time.August, 31))

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.August, 1), false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-25"}, expandDates(result.Created))
	assert.Zero(t, result.Skipped)
	assert.NotEmpty(t, result.JobID)
}

func TestExpand_WeeklyMultipleWeekdays(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	tpl := weeklyTemplate([]string{"mon", "wed"}, date(2025, time.August, 25), date(2025, time.September, 7))

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.August, 1), false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-08-25", "2025-08-27",
		"2025-09-01", "2025-09-03",
	}, expandDates(result.Created))
}

func TestExpand_BiweeklyParity(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	// start Monday 2025-01-06: weeks of Jan 6 and Jan 20 are even, Jan 13 is odd
	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.January, 6), date(2025, time.January, 26))
	tpl.Cadence = models.CadenceBiweekly

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.January, 1), false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-06", "2025-01-20"}, expandDates(result.Created))
}

func TestExpand_BiweeklyParityStableAcrossWeekdays(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	// start Wednesday 2025-01-08; the Friday of the SAME calendar week
	// (Jan 10) belongs to week zero, so it fires even though it is only two
	// days after the start.
	tpl := weeklyTemplate([]string{"wed", "fri"}, date(2025, time.January, 8), date(2025, time.January, 26))
	tpl.Cadence = models.CadenceBiweekly

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.January, 1), false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-01-08", "2025-01-10",
		"2025-01-22", "2025-01-24",
	}, expandDates(result.Created))
}

func TestExpand_MonthlyAnchorDayAndWeekdayBothRequired(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	// anchored on the 3rd (2025-03-03, a Monday). April 3rd is a Thursday,
	// so April yields nothing; May is skipped too (3rd is a Saturday);
	// November 3rd is the next Monday within range... but range ends earlier.
	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.March, 3), date(2025, time.May, 31))
	tpl.Cadence = models.CadenceMonthly

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.January, 1), false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-03"}, expandDates(result.Created))
}

func TestExpand_MonthlyClampsToShortMonths(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	// anchored on the 31st (2025-01-31, a Friday). February clamps the anchor
	// to the 28th, which is also a Friday in 2025, so it fires on 02-28.
	tpl := weeklyTemplate([]string{"fri"}, date(2025, time.January, 31), date(2025, time.March, 1))
	tpl.Cadence = models.CadenceMonthly

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.January, 1), false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-31", "2025-02-28"}, expandDates(result.Created))
}

func TestExpand_Idempotent(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.August, 25), date(2025, time.September, 7))

	first, err := expander.Expand(context.Background(), tpl, date(2025, time.August, 1), false, false)
	require.NoError(t, err)
	require.Len(t, first.Created, 2)

	second, err := expander.Expand(context.Background(), tpl, date(2025, time.August, 1), false, false)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 2, second.Skipped)
}

func TestExpand_DryRunPersistsNothing(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.August, 25), date(2025, time.September, 7))

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.August, 1), false, true)
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Equal(t, []string{"2025-08-25", "2025-09-01"}, expandDates(result.Preview))
	assert.Empty(t, store.created)
}

func TestExpand_StatusFromAsOf(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.August, 25), date(2025, time.September, 7))

	// as of Aug 28, the Aug 25 lesson already happened
	asOf := date(2025, time.August, 28)
	result, err := expander.Expand(context.Background(), tpl, asOf, false, false)
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	assert.Equal(t, models.StatusTaught, result.Created[0].Status)
	assert.Equal(t, models.StatusPlanned, result.Created[1].Status)
}

func TestExpand_CreatedCarryTemplateLink(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.August, 25), date(2025, time.August, 31))

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.August, 1), false, false)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.True(t, result.Created[0].SourceTemplateID.Valid)
	assert.Equal(t, "tpl1", result.Created[0].SourceTemplateID.String)
	assert.Equal(t, models.SourceSeries, result.Created[0].Source)
}

func TestExpand_InactiveTemplate(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.August, 25), date(2025, time.August, 31))
	tpl.Active = false

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.August, 1), false, false)
	require.NoError(t, err)
	assert.Empty(t, result.Created)
}

func TestExpand_UnparseableWeekdaysYieldNothing(t *testing.T) {
	store := &fakeExpandStore{contract: quotaContract(false)}
	expander := newExpander(store)

	tpl := weeklyTemplate([]string{"someday", ""}, date(2025, time.August, 25), date(2025, time.August, 31))

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.August, 1), false, false)
	require.NoError(t, err)
	assert.Empty(t, result.Created)
}

func TestExpand_EndFallsBackToContractEnd(t *testing.T) {
	contract := quotaContract(false)
	contract.EndDate = sql.NullTime{Time: date(2025, time.September, 7), Valid: true}

	store := &fakeExpandStore{contract: contract}
	expander := newExpander(store)

	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.August, 25), time.Time{})
	tpl.EndDate = sql.NullTime{}

	result, err := expander.Expand(context.Background(), tpl, date(2025, time.August, 1), false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-25", "2025-09-01"}, expandDates(result.Created))
}

func TestParseWeekdays_FlexibleSpellings(t *testing.T) {
	set := ParseWeekdays([]string{"Mon", "TUESDAY", "3", "7", "nonsense"})

	assert.Len(t, set, 4)
	assert.Contains(t, set, time.Monday)
	assert.Contains(t, set, time.Tuesday)
	assert.Contains(t, set, time.Wednesday)
	assert.Contains(t, set, time.Sunday)
}

func TestMatchesPattern_AgreesWithExpansion(t *testing.T) {
	tpl := weeklyTemplate([]string{"mon"}, date(2025, time.January, 6), date(2025, time.January, 26))
	tpl.Cadence = models.CadenceBiweekly

	assert.True(t, MatchesPattern(tpl, date(2025, time.January, 6)))
	assert.False(t, MatchesPattern(tpl, date(2025, time.January, 13)))
	assert.True(t, MatchesPattern(tpl, date(2025, time.January, 20)))
	assert.False(t, MatchesPattern(tpl, date(2025, time.January, 7)))
}
