package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorflow-service/api"
	"tutorflow-service/internal/billing"
	"tutorflow-service/internal/models"
	"tutorflow-service/internal/schedule"
	"tutorflow-service/pkg/response"
)

func (s *Service) occurrenceFromRequest(op string, req *api.OccurrenceRequest) (*models.Occurrence, error) {
	date, err := s.parseDate(op, "date", req.Date)
	if err != nil {
		return nil, err
	}

	startTime, err := s.parseClock(op, "start_time", req.StartTime)
	if err != nil {
		return nil, err
	}

	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%s: duration must be positive: %w", op, response.ErrValidation)
	}
	if req.TravelBeforeMinutes < 0 || req.TravelAfterMinutes < 0 {
		return nil, fmt.Errorf("%s: travel buffers must not be negative: %w", op, response.ErrValidation)
	}

	source := models.OccurrenceSource(req.Source)
	if source == "" {
		source = models.SourceManual
	}

	return &models.Occurrence{
		ContractID:          req.ContractID,
		Date:                date,
		StartTime:           startTime,
		DurationMinutes:     req.DurationMinutes,
		TravelBeforeMinutes: req.TravelBeforeMinutes,
		TravelAfterMinutes:  req.TravelAfterMinutes,
		Notes:               req.Notes,
		Source:              source,
	}, nil
}

// CreateOccurrence persists one occurrence and returns any conflicts found
// along the way. Conflicts are data, not failures: the occurrence is created
// regardless and the caller decides how to surface them. The conflict check
// and the insert run under the contract lock inside one transaction.
func (s *Service) CreateOccurrence(ctx context.Context, req *api.OccurrenceRequest) (*api.OccurrenceResponse, []api.Conflict, error) {
	const op = "service.CreateOccurrence"

	occ, err := s.occurrenceFromRequest(op, req)
	if err != nil {
		return nil, nil, err
	}
	occ.Status = schedule.StatusAt(occ, time.Now().In(s.loc))

	var conflicts []schedule.Conflict

	err = s.withContractLock(ctx, op, occ.ContractID, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("%s: begin tx: %w", op, err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		conflicts, err = s.detector(tx).CheckConflicts(ctx, occ, false)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		id, err := s.store.CreateOccurrence(ctx, tx, occ)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		occ.ID = id

		return tx.Commit()
	})
	if err != nil {
		return nil, nil, err
	}

	return occurrenceToAPI(occ), conflictsToAPI(conflicts), nil
}

func (s *Service) GetOccurrence(ctx context.Context, id string) (*api.OccurrenceResponse, error) {
	const op = "service.GetOccurrence"

	occ, err := s.store.GetOccurrence(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return occurrenceToAPI(occ), nil
}

// UpdateOccurrence edits time, duration, buffers and notes. Status is owned
// by the lifecycle rules and is not writable here.
func (s *Service) UpdateOccurrence(ctx context.Context, id string, req *api.OccurrenceRequest) (*api.OccurrenceResponse, []api.Conflict, error) {
	const op = "service.UpdateOccurrence"

	existing, err := s.store.GetOccurrence(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.occurrenceFromRequest(op, req)
	if err != nil {
		return nil, nil, err
	}
	updated.ID = existing.ID
	updated.Status = existing.Status
	updated.SourceTemplateID = existing.SourceTemplateID
	if req.Source == "" {
		updated.Source = existing.Source
	}

	var conflicts []schedule.Conflict

	err = s.withContractLock(ctx, op, updated.ContractID, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("%s: begin tx: %w", op, err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		conflicts, err = s.detector(tx).CheckConflicts(ctx, updated, true)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := s.store.UpdateOccurrence(ctx, tx, updated); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, nil, err
	}

	return occurrenceToAPI(updated), conflictsToAPI(conflicts), nil
}

func (s *Service) DeleteOccurrence(ctx context.Context, id string) error {
	const op = "service.DeleteOccurrence"

	err := s.store.DeleteOccurrence(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CancelOccurrence is the only manual status transition. Paid occurrences
// cannot be cancelled; the invoice has to be reverted first.
func (s *Service) CancelOccurrence(ctx context.Context, id string) (*api.OccurrenceResponse, error) {
	const op = "service.CancelOccurrence"

	occ, err := s.store.GetOccurrence(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if occ.Status != models.StatusPlanned && occ.Status != models.StatusTaught {
		return nil, fmt.Errorf("%s: cannot cancel a %s occurrence: %w", op, occ.Status, response.ErrConflict)
	}

	if err := s.store.UpdateOccurrenceStatus(ctx, nil, id, models.StatusCancelled); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	occ.Status = models.StatusCancelled

	return occurrenceToAPI(occ), nil
}

// CheckConflicts evaluates a candidate without persisting anything.
func (s *Service) CheckConflicts(ctx context.Context, req *api.ConflictCheckRequest) ([]api.Conflict, error) {
	const op = "service.CheckConflicts"

	occ, err := s.occurrenceFromRequest(op, &req.OccurrenceRequest)
	if err != nil {
		return nil, err
	}
	occ.ID = req.ID

	conflicts, err := s.detector(nil).CheckConflicts(ctx, occ, req.ExcludeSelf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return conflictsToAPI(conflicts), nil
}

// GetOccurrenceConflicts re-evaluates a stored occurrence, excluding itself.
func (s *Service) GetOccurrenceConflicts(ctx context.Context, id string) ([]api.Conflict, error) {
	const op = "service.GetOccurrenceConflicts"

	occ, err := s.store.GetOccurrence(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conflicts, err := s.detector(nil).CheckConflicts(ctx, occ, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return conflictsToAPI(conflicts), nil
}

// CheckQuota runs only the quota rule for a candidate; nil means no conflict.
func (s *Service) CheckQuota(ctx context.Context, req *api.ConflictCheckRequest) (*api.Conflict, error) {
	const op = "service.CheckQuota"

	occ, err := s.occurrenceFromRequest(op, &req.OccurrenceRequest)
	if err != nil {
		return nil, err
	}
	occ.ID = req.ID

	contract, err := s.store.GetContract(ctx, nil, occ.ContractID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conflict, err := s.quotaEnforcer(nil).CheckQuota(ctx, occ, contract, req.ExcludeSelf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if conflict == nil {
		return nil, nil
	}

	resp := conflictToAPI(conflict)

	return &resp, nil
}

// MarkElapsedTaught runs the planned-to-taught sweep as of an explicit
// instant and reports how many occurrences were flipped.
func (s *Service) MarkElapsedTaught(ctx context.Context, asOf time.Time) (int, error) {
	const op = "service.MarkElapsedTaught"

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	count, err := s.synchronizer(tx).MarkElapsedTaught(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return count, nil
}

// ComputeBillableAmount exposes the single amount computation for read-side
// aggregation (income views, reports) so the UI can never derive a figure
// that disagrees with invoicing.
func (s *Service) ComputeBillableAmount(ctx context.Context, occurrenceID string) (float64, error) {
	const op = "service.ComputeBillableAmount"

	occ, err := s.store.GetOccurrence(ctx, nil, occurrenceID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return 0, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	contract, err := s.store.GetContract(ctx, nil, occ.ContractID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	amount, err := billing.Amount(occ, contract)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return amount, nil
}
