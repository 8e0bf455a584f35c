package schedule

import (
	"context"
	"fmt"
	"time"

	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"
)

type ConflictKind string

const (
	ConflictOccurrence  ConflictKind = "occurrence"
	ConflictBlockedTime ConflictKind = "blocked_time"
	ConflictQuota       ConflictKind = "quota"
)

// Conflict is data, not an error: creation proceeds and the caller decides
// whether to block, warn or allow.
type Conflict struct {
	Kind ConflictKind

	// occurrence / blocked_time conflicts
	OccurrenceID  string
	BlockedTimeID string
	Title         string
	BlockStart    time.Time
	BlockEnd      time.Time

	// quota conflicts
	PlannedUnits   int
	AttemptedUnits int
	Year           int
	Month          int
}

type ConflictStore interface {
	ListOccurrencesOnDate(ctx context.Context, date time.Time) ([]models.Occurrence, error)
	ListBlockedTimesOverlapping(ctx context.Context, from, to time.Time) ([]models.BlockedTime, error)
	GetContract(ctx context.Context, id string) (*models.Contract, error)
}

// ConflictDetector is read-only and side-effect-free; it is invoked
// opportunistically (display, save, recalculation sweeps) without a
// transaction boundary, so it must never mutate or cache anything.
type ConflictDetector struct {
	store ConflictStore
	quota *QuotaEnforcer
}

func NewConflictDetector(store ConflictStore, quota *QuotaEnforcer) *ConflictDetector {
	return &ConflictDetector{store: store, quota: quota}
}

// CheckConflicts runs all three checks independently; a candidate may carry
// several simultaneous conflicts.
func (d *ConflictDetector) CheckConflicts(ctx context.Context, cand *models.Occurrence, excludeSelf bool) ([]Conflict, error) {
	const op = "schedule.ConflictDetector.CheckConflicts"

	if cand.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%s: duration must be positive: %w", op, response.ErrValidation)
	}

	blockStart, blockEnd := EffectiveBlock(cand)

	var conflicts []Conflict

	others, err := d.store.ListOccurrencesOnDate(ctx, cand.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range others {
		other := &others[i]

		if excludeSelf && cand.ID != "" && other.ID == cand.ID {
			continue
		}

		otherStart, otherEnd := EffectiveBlock(other)
		if Overlaps(blockStart, blockEnd, otherStart, otherEnd) {
			conflicts = append(conflicts, Conflict{
				Kind:         ConflictOccurrence,
				OccurrenceID: other.ID,
				BlockStart:   otherStart,
				BlockEnd:     otherEnd,
			})
		}
	}

	// Blocked times may span several days; they are tested against their full
	// stored interval, not clipped to the candidate's day.
	blocked, err := d.store.ListBlockedTimesOverlapping(ctx, blockStart, blockEnd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, b := range blocked {
		if Overlaps(blockStart, blockEnd, b.Start, b.End) {
			conflicts = append(conflicts, Conflict{
				Kind:          ConflictBlockedTime,
				BlockedTimeID: b.ID,
				Title:         b.Title,
				BlockStart:    b.Start,
				BlockEnd:      b.End,
			})
		}
	}

	contract, err := d.store.GetContract(ctx, cand.ContractID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	quotaConflict, err := d.quota.CheckQuota(ctx, cand, contract, excludeSelf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if quotaConflict != nil {
		conflicts = append(conflicts, *quotaConflict)
	}

	return conflicts, nil
}

func (d *ConflictDetector) HasConflicts(ctx context.Context, cand *models.Occurrence, excludeSelf bool) (bool, error) {
	const op = "schedule.ConflictDetector.HasConflicts"

	conflicts, err := d.CheckConflicts(ctx, cand, excludeSelf)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return len(conflicts) > 0, nil
}
