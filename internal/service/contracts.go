package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tutorflow-service/api"
	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"
)

func (s *Service) CreateContract(ctx context.Context, req *api.ContractRequest) (*api.ContractResponse, error) {
	const op = "service.CreateContract"

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

	if req.UnitDurationMinutes <= 0 {
		return nil, fmt.Errorf("%s: unit duration must be positive: %w", op, response.ErrValidation)
	}
	if req.RatePerUnit < 0 {
		return nil, fmt.Errorf("%s: rate must not be negative: %w", op, response.ErrValidation)
	}

	c := &models.Contract{
		StudentID:           req.StudentID,
		UnitDurationMinutes: req.UnitDurationMinutes,
		RatePerUnit:         req.RatePerUnit,
		StartDate:           startDate,
		EndDate:             endDate,
		Active:              req.Active,
		EnforceQuota:        req.EnforceQuota,
	}

	id, err := s.store.CreateContract(ctx, nil, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.ID = id

	return contractToAPI(c), nil
}

func (s *Service) GetContract(ctx context.Context, id string) (*api.ContractResponse, error) {
	const op = "service.GetContract"

	c, err := s.store.GetContract(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return contractToAPI(c), nil
}

// SetMonthlyPlan upserts the planned unit count for one contract month.
func (s *Service) SetMonthlyPlan(ctx context.Context, contractID string, req *api.MonthlyPlanRequest) (*api.MonthlyPlanResponse, error) {
	const op = "service.SetMonthlyPlan"

	if _, err := s.store.GetContract(ctx, nil, contractID); err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := &models.MonthlyPlan{
		ContractID:   contractID,
		Year:         req.Year,
		Month:        req.Month,
		PlannedUnits: req.PlannedUnits,
	}

	id, err := s.store.UpsertMonthlyPlan(ctx, nil, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.ID = id

	return monthlyPlanToAPI(p), nil
}

func (s *Service) ListMonthlyPlans(ctx context.Context, contractID string) ([]api.MonthlyPlanResponse, error) {
	const op = "service.ListMonthlyPlans"

	plans, err := s.store.ListMonthlyPlans(ctx, nil, contractID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]api.MonthlyPlanResponse, 0, len(plans))
	for i := range plans {
		result = append(result, *monthlyPlanToAPI(&plans[i]))
	}

	return result, nil
}

func monthlyPlanToAPI(p *models.MonthlyPlan) *api.MonthlyPlanResponse {
	return &api.MonthlyPlanResponse{
		ID:           p.ID,
		ContractID:   p.ContractID,
		Year:         p.Year,
		Month:        p.Month,
		PlannedUnits: p.PlannedUnits,
	}
}
