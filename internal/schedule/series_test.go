package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSeriesStore struct {
	templates   []models.RecurrenceTemplate
	occurrences []models.Occurrence
}

func (f *fakeSeriesStore) GetTemplate(_ context.Context, id string) (*models.RecurrenceTemplate, error) {
	for i := range f.templates {
		if f.templates[i].ID == id {
			return &f.templates[i], nil
		}
	}
	return nil, fmt.Errorf("fake: %w", response.ErrNotFound)
}

func (f *fakeSeriesStore) ListTemplatesForContract(_ context.Context, contractID string) ([]models.RecurrenceTemplate, error) {
	var out []models.RecurrenceTemplate
	for _, tpl := range f.templates {
		if tpl.ContractID == contractID {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (f *fakeSeriesStore) ListOccurrencesForTemplate(_ context.Context, templateID string) ([]models.Occurrence, error) {
	var out []models.Occurrence
	for _, occ := range f.occurrences {
		if occ.SourceTemplateID.Valid && occ.SourceTemplateID.String == templateID {
			out = append(out, occ)
		}
	}
	return out, nil
}

func (f *fakeSeriesStore) ListOccurrencesForContract(_ context.Context, contractID string) ([]models.Occurrence, error) {
	var out []models.Occurrence
	for _, occ := range f.occurrences {
		if occ.ContractID == contractID {
			out = append(out, occ)
		}
	}
	return out, nil
}

func linkedTo(templateID string) sql.NullString {
	return sql.NullString{String: templateID, Valid: true}
}

func mondayTemplate(id string) models.RecurrenceTemplate {
	return models.RecurrenceTemplate{
		ID:              id,
		ContractID:      "c1",
		StartDate:       date(2025, time.January, 6),
		StartTime:       clock(14, 0),
		DurationMinutes: 60,
		Weekdays:        []string{"mon"},
		Cadence:         models.CadenceWeekly,
		Active:          true,
	}
}

func TestFindTemplateFor_ExplicitLinkWins(t *testing.T) {
	store := &fakeSeriesStore{
		templates: []models.RecurrenceTemplate{mondayTemplate("tpl1"), mondayTemplate("tpl2")},
	}
	matcher := NewSeriesMatcher(store)

	occ := sessionAt("o1", date(2025, time.January, 6), 14, 0, 60, 0, 0)
	occ.SourceTemplateID = linkedTo("tpl2")

	tpl, err := matcher.FindTemplateFor(context.Background(), &occ)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, "tpl2", tpl.ID)
}

func TestFindTemplateFor_FallsBackToPatternMatch(t *testing.T) {
	store := &fakeSeriesStore{
		templates: []models.RecurrenceTemplate{mondayTemplate("tpl1")},
	}
	matcher := NewSeriesMatcher(store)

	// unlinked occurrence on a Monday at the template's time
	occ := sessionAt("o1", date(2025, time.January, 13), 14, 0, 60, 0, 0)

	tpl, err := matcher.FindTemplateFor(context.Background(), &occ)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, "tpl1", tpl.ID)
}

func TestFindTemplateFor_DanglingLinkFallsBack(t *testing.T) {
	store := &fakeSeriesStore{
		templates: []models.RecurrenceTemplate{mondayTemplate("tpl1")},
	}
	matcher := NewSeriesMatcher(store)

	occ := sessionAt("o1", date(2025, time.January, 13), 14, 0, 60, 0, 0)
	occ.SourceTemplateID = linkedTo("gone")

	tpl, err := matcher.FindTemplateFor(context.Background(), &occ)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, "tpl1", tpl.ID)
}

func TestFindTemplateFor_NoMatch(t *testing.T) {
	store := &fakeSeriesStore{
		templates: []models.RecurrenceTemplate{mondayTemplate("tpl1")},
	}
	matcher := NewSeriesMatcher(store)

	// wrong time
	occ := sessionAt("o1", date(2025, time.January, 13), 16, 0, 60, 0, 0)
	tpl, err := matcher.FindTemplateFor(context.Background(), &occ)
	require.NoError(t, err)
	assert.Nil(t, tpl)

	// wrong weekday
	occ = sessionAt("o2", date(2025, time.January, 14), 14, 0, 60, 0, 0)
	tpl, err = matcher.FindTemplateFor(context.Background(), &occ)
	require.NoError(t, err)
	assert.Nil(t, tpl)
}

func TestFindOccurrencesFor_LinkedAndPatternMatched(t *testing.T) {
	linked := sessionAt("linked", date(2025, time.January, 6), 14, 0, 60, 0, 0)
	linked.SourceTemplateID = linkedTo("tpl1")

	// linked elsewhere: belongs to another series even though the date fits
	foreign := sessionAt("foreign", date(2025, time.January, 13), 14, 0, 60, 0, 0)
	foreign.SourceTemplateID = linkedTo("tpl2")

	unlinkedMatch := sessionAt("unlinked", date(2025, time.January, 20), 14, 0, 60, 0, 0)
	wrongTime := sessionAt("wrong_time", date(2025, time.January, 27), 16, 0, 60, 0, 0)

	store := &fakeSeriesStore{
		templates:   []models.RecurrenceTemplate{mondayTemplate("tpl1")},
		occurrences: []models.Occurrence{linked, foreign, unlinkedMatch, wrongTime},
	}
	matcher := NewSeriesMatcher(store)

	tpl := mondayTemplate("tpl1")
	occs, err := matcher.FindOccurrencesFor(context.Background(), &tpl, nil)
	require.NoError(t, err)

	ids := make([]string, 0, len(occs))
	for _, occ := range occs {
		ids = append(ids, occ.ID)
	}
	assert.ElementsMatch(t, []string{"linked", "unlinked"}, ids)
}

func TestFindOccurrencesFor_PriorStartTimeKey(t *testing.T) {
	// the series used to run at 14:00; its unlinked members still carry that
	// time while the template is being moved to 16:00
	old := sessionAt("old_member", date(2025, time.January, 6), 14, 0, 60, 0, 0)

	store := &fakeSeriesStore{
		templates:   []models.RecurrenceTemplate{mondayTemplate("tpl1")},
		occurrences: []models.Occurrence{old},
	}
	matcher := NewSeriesMatcher(store)

	tpl := mondayTemplate("tpl1")
	tpl.StartTime = clock(16, 0)

	// matching against the new time finds nothing
	occs, err := matcher.FindOccurrencesFor(context.Background(), &tpl, nil)
	require.NoError(t, err)
	assert.Empty(t, occs)

	// matching against the prior time captures the member
	prior := clock(14, 0)
	occs, err = matcher.FindOccurrencesFor(context.Background(), &tpl, &prior)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, "old_member", occs[0].ID)
}
