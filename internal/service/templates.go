package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tutorflow-service/api"
	"tutorflow-service/internal/models"
	"tutorflow-service/internal/schedule"
	"tutorflow-service/pkg/response"
)

func (s *Service) templateFromRequest(op string, req *api.TemplateRequest) (*models.RecurrenceTemplate, error) {
	startDate, err := s.parseDate(op, "start_date", req.StartDate)
	if err != nil {
		return nil, err
	}

	var endDate sql.NullTime
	if req.EndDate != nil && *req.EndDate != "" {
		end, err := s.parseDate(op, "end_date", *req.EndDate)
		if err != nil {
			return nil, err
		}
		endDate = sql.NullTime{Time: end, Valid: true}
	}

	startTime, err := s.parseClock(op, "start_time", req.StartTime)
	if err != nil {
		return nil, err
	}

	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%s: duration must be positive: %w", op, response.ErrValidation)
	}

	tpl := &models.RecurrenceTemplate{
		ContractID:          req.ContractID,
		StartDate:           startDate,
		EndDate:             endDate,
		StartTime:           startTime,
		DurationMinutes:     req.DurationMinutes,
		TravelBeforeMinutes: req.TravelBeforeMinutes,
		TravelAfterMinutes:  req.TravelAfterMinutes,
		Weekdays:            req.Weekdays,
		Cadence:             models.Cadence(req.Cadence),
		Notes:               req.Notes,
		Active:              req.Active,
	}

	// An inactive template may sit without weekdays; an active one must
	// expand to something. Surfaced, never silently corrected.
	if tpl.Active && len(schedule.ParseWeekdays(tpl.Weekdays)) == 0 {
		return nil, fmt.Errorf("%s: active template needs at least one weekday: %w", op, response.ErrValidation)
	}

	return tpl, nil
}

func (s *Service) CreateTemplate(ctx context.Context, req *api.TemplateRequest) (*api.TemplateResponse, error) {
	const op = "service.CreateTemplate"

	tpl, err := s.templateFromRequest(op, req)
	if err != nil {
		return nil, err
	}

	id, err := s.store.CreateTemplate(ctx, nil, tpl)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tpl.ID = id

	return templateToAPI(tpl), nil
}

func (s *Service) GetTemplate(ctx context.Context, id string) (*api.TemplateResponse, error) {
	const op = "service.GetTemplate"

	tpl, err := s.store.GetTemplate(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return templateToAPI(tpl), nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	const op = "service.DeleteTemplate"

	err := s.store.DeleteTemplate(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ExpandTemplate materializes the template into occurrences. Dry runs share
// the exact iteration logic but persist nothing and skip conflict detection.
func (s *Service) ExpandTemplate(ctx context.Context, id string, req *api.ExpandRequest) (*api.ExpansionResponse, error) {
	const op = "service.ExpandTemplate"

	tpl, err := s.store.GetTemplate(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	asOf := time.Now().In(s.loc)
	if req.AsOf != "" {
		asOf, err = s.parseInstant(op, "as_of", req.AsOf)
		if err != nil {
			return nil, err
		}
	}

	if req.DryRun {
		result, err := s.expander(nil).Expand(ctx, tpl, asOf, false, true)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return expansionToAPI(result), nil
	}

	var result *schedule.ExpansionResult

	err = s.withContractLock(ctx, op, tpl.ContractID, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("%s: begin tx: %w", op, err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		result, err = s.expander(tx).Expand(ctx, tpl, asOf, req.CheckConflicts, false)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	return expansionToAPI(result), nil
}

// UpdateTemplate edits the whole series. The currently matching occurrence
// set is captured with the template's prior values before anything is
// persisted: pattern matching against already-mutated template fields would
// silently orphan occurrences. Occurrences whose weekday leaves the active
// set are deleted, the rest are updated in place, then the expander fills in
// newly active weekdays.
func (s *Service) UpdateTemplate(ctx context.Context, id string, req *api.TemplateRequest) (*api.SeriesUpdateResponse, error) {
	const op = "service.UpdateTemplate"

	oldTpl, err := s.store.GetTemplate(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newTpl, err := s.templateFromRequest(op, req)
	if err != nil {
		return nil, err
	}
	newTpl.ID = oldTpl.ID

	asOf := time.Now().In(s.loc)
	newWeekdays := schedule.ParseWeekdays(newTpl.Weekdays)

	resp := &api.SeriesUpdateResponse{}

	err = s.withContractLock(ctx, op, oldTpl.ContractID, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("%s: begin tx: %w", op, err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		priorStart := oldTpl.StartTime
		series, err := s.matcher(tx).FindOccurrencesFor(ctx, oldTpl, &priorStart)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		for i := range series {
			occ := series[i]

			if _, ok := newWeekdays[occ.Date.Weekday()]; !ok {
				if err := s.store.DeleteOccurrence(ctx, tx, occ.ID); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
				resp.Deleted++
				continue
			}

			occ.StartTime = newTpl.StartTime
			occ.DurationMinutes = newTpl.DurationMinutes
			occ.TravelBeforeMinutes = newTpl.TravelBeforeMinutes
			occ.TravelAfterMinutes = newTpl.TravelAfterMinutes
			occ.Notes = newTpl.Notes
			occ.SourceTemplateID = sql.NullString{String: newTpl.ID, Valid: true}

			if err := s.store.UpdateOccurrence(ctx, tx, &occ); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			resp.Updated++
		}

		if err := s.store.UpdateTemplate(ctx, tx, newTpl); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		result, err := s.expander(tx).Expand(ctx, newTpl, asOf, true, false)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		resp.Created = len(result.Created)
		resp.Conflicts = conflictsToAPI(result.Conflicts)

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	resp.Template = *templateToAPI(newTpl)

	return resp, nil
}

// FindTemplateFor resolves the series an occurrence belongs to, nil if none.
func (s *Service) FindTemplateFor(ctx context.Context, occurrenceID string) (*api.TemplateResponse, error) {
	const op = "service.FindTemplateFor"

	occ, err := s.store.GetOccurrence(ctx, nil, occurrenceID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tpl, err := s.matcher(nil).FindTemplateFor(ctx, occ)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tpl == nil {
		return nil, nil
	}

	return templateToAPI(tpl), nil
}

// FindOccurrencesFor lists the series members of a template.
func (s *Service) FindOccurrencesFor(ctx context.Context, templateID string) ([]api.OccurrenceResponse, error) {
	const op = "service.FindOccurrencesFor"

	tpl, err := s.store.GetTemplate(ctx, nil, templateID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	occs, err := s.matcher(nil).FindOccurrencesFor(ctx, tpl, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return occurrencesToAPI(occs), nil
}

func expansionToAPI(result *schedule.ExpansionResult) *api.ExpansionResponse {
	return &api.ExpansionResponse{
		JobID:     result.JobID,
		Created:   occurrencesToAPI(result.Created),
		Skipped:   result.Skipped,
		Conflicts: conflictsToAPI(result.Conflicts),
		Preview:   occurrencesToAPI(result.Preview),
	}
}
