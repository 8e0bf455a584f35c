package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorflow-service/api"
	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"
)

func (s *Service) blockedTimeFromRequest(op string, req *api.BlockedTimeRequest) (*models.BlockedTime, error) {
	start, err := s.parseInstant(op, "start", req.Start)
	if err != nil {
		return nil, err
	}
	end, err := s.parseInstant(op, "end", req.End)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%s: end must be after start: %w", op, response.ErrValidation)
	}

	return &models.BlockedTime{
		Start: start,
		End:   end,
		Title: req.Title,
	}, nil
}

func (s *Service) CreateBlockedTime(ctx context.Context, req *api.BlockedTimeRequest) (*api.BlockedTimeResponse, error) {
	const op = "service.CreateBlockedTime"

	b, err := s.blockedTimeFromRequest(op, req)
	if err != nil {
		return nil, err
	}

	id, err := s.store.CreateBlockedTime(ctx, nil, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	b.ID = id

	return blockedTimeToAPI(b), nil
}

func (s *Service) GetBlockedTime(ctx context.Context, id string) (*api.BlockedTimeResponse, error) {
	const op = "service.GetBlockedTime"

	b, err := s.store.GetBlockedTime(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return blockedTimeToAPI(b), nil
}

func (s *Service) UpdateBlockedTime(ctx context.Context, id string, req *api.BlockedTimeRequest) (*api.BlockedTimeResponse, error) {
	const op = "service.UpdateBlockedTime"

	b, err := s.blockedTimeFromRequest(op, req)
	if err != nil {
		return nil, err
	}
	b.ID = id

	if err := s.store.UpdateBlockedTime(ctx, nil, b); err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return blockedTimeToAPI(b), nil
}

func (s *Service) DeleteBlockedTime(ctx context.Context, id string) error {
	const op = "service.DeleteBlockedTime"

	if err := s.store.DeleteBlockedTime(ctx, nil, id); err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ListBlockedTimes returns every block touching the window.
func (s *Service) ListBlockedTimes(ctx context.Context, from, to time.Time) ([]api.BlockedTimeResponse, error) {
	const op = "service.ListBlockedTimes"

	blocks, err := s.store.ListBlockedTimesOverlapping(ctx, nil, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]api.BlockedTimeResponse, 0, len(blocks))
	for i := range blocks {
		result = append(result, *blockedTimeToAPI(&blocks[i]))
	}

	return result, nil
}

func blockedTimeToAPI(b *models.BlockedTime) *api.BlockedTimeResponse {
	return &api.BlockedTimeResponse{
		ID:    b.ID,
		Start: b.Start,
		End:   b.End,
		Title: b.Title,
	}
}
