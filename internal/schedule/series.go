package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"
)

type SeriesStore interface {
	GetTemplate(ctx context.Context, id string) (*models.RecurrenceTemplate, error)
	ListTemplatesForContract(ctx context.Context, contractID string) ([]models.RecurrenceTemplate, error)
	ListOccurrencesForTemplate(ctx context.Context, templateID string) ([]models.Occurrence, error)
	ListOccurrencesForContract(ctx context.Context, contractID string) ([]models.Occurrence, error)
}

// SeriesMatcher resolves the derived template-occurrence relationship.
// Occurrences created by the expander carry an explicit source template id;
// older or manually created ones fall back to pattern matching on contract,
// start time and cadence predicate.
type SeriesMatcher struct {
	store SeriesStore
}

func NewSeriesMatcher(store SeriesStore) *SeriesMatcher {
	return &SeriesMatcher{store: store}
}

// FindTemplateFor returns the template the occurrence was generated from, or
// nil when none matches.
func (m *SeriesMatcher) FindTemplateFor(ctx context.Context, occ *models.Occurrence) (*models.RecurrenceTemplate, error) {
	const op = "schedule.SeriesMatcher.FindTemplateFor"

	if occ.SourceTemplateID.Valid {
		tpl, err := m.store.GetTemplate(ctx, occ.SourceTemplateID.String)
		if err == nil {
			return tpl, nil
		}
		if !errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// linked template is gone, fall back to pattern matching
	}

	templates, err := m.store.ListTemplatesForContract(ctx, occ.ContractID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range templates {
		tpl := &templates[i]
		if !SameClock(tpl.StartTime, occ.StartTime) {
			continue
		}
		if MatchesPattern(tpl, occ.Date) {
			return tpl, nil
		}
	}

	return nil, nil
}

// FindOccurrencesFor returns every occurrence currently belonging to the
// template: explicitly linked ones plus unlinked ones whose date and start
// time match the pattern. When the template's start time is about to change,
// callers pass the prior start time so the unlinked set is captured before
// the matching key mutates.
func (m *SeriesMatcher) FindOccurrencesFor(ctx context.Context, tpl *models.RecurrenceTemplate, originalStartTime *time.Time) ([]models.Occurrence, error) {
	const op = "schedule.SeriesMatcher.FindOccurrencesFor"

	matchTime := tpl.StartTime
	if originalStartTime != nil {
		matchTime = *originalStartTime
	}

	linked, err := m.store.ListOccurrencesForTemplate(ctx, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seen := make(map[string]struct{}, len(linked))
	for _, occ := range linked {
		seen[occ.ID] = struct{}{}
	}

	all, err := m.store.ListOccurrencesForContract(ctx, tpl.ContractID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := linked
	for i := range all {
		occ := all[i]
		if _, ok := seen[occ.ID]; ok {
			continue
		}
		if occ.SourceTemplateID.Valid {
			// belongs to a different series
			continue
		}
		if !SameClock(occ.StartTime, matchTime) {
			continue
		}
		if MatchesPattern(tpl, occ.Date) {
			result = append(result, occ)
		}
	}

	return result, nil
}
