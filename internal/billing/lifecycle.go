package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorflow-service/internal/models"
	"tutorflow-service/internal/schedule"
	"tutorflow-service/pkg/response"
)

type LifecycleStore interface {
	GetOccurrence(ctx context.Context, id string) (*models.Occurrence, error)
	ListOccurrencesByStatusThrough(ctx context.Context, status models.OccurrenceStatus, lastDate time.Time) ([]models.Occurrence, error)
	UpdateOccurrenceStatus(ctx context.Context, id string, status models.OccurrenceStatus) error
	ListItemOccurrenceIDs(ctx context.Context, invoiceID string) ([]string, error)
	ListInvoicesReferencing(ctx context.Context, occurrenceID string) ([]models.Invoice, error)
}

// Synchronizer owns the occurrence status state machine:
// planned -> taught (sweep), taught <-> paid (invoice events only),
// planned|taught -> cancelled (manual only, elsewhere). It must run inside
// the same transaction as the invoice mutation it reacts to.
type Synchronizer struct {
	store LifecycleStore
}

func NewSynchronizer(store LifecycleStore) *Synchronizer {
	return &Synchronizer{store: store}
}

// MarkElapsedTaught flips planned occurrences whose effective block has ended
// by asOf to taught. asOf is an explicit parameter so the sweep is
// deterministic and testable; there is no ambient clock read. Idempotent, and
// never touches cancelled or paid occurrences.
func (s *Synchronizer) MarkElapsedTaught(ctx context.Context, asOf time.Time) (int, error) {
	const op = "billing.Synchronizer.MarkElapsedTaught"

	planned, err := s.store.ListOccurrencesByStatusThrough(ctx, models.StatusPlanned, asOf)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	count := 0
	for i := range planned {
		_, end := schedule.EffectiveBlock(&planned[i])
		if end.After(asOf) {
			continue
		}

		if err := s.store.UpdateOccurrenceStatus(ctx, planned[i].ID, models.StatusTaught); err != nil {
			return count, fmt.Errorf("%s: %w", op, err)
		}
		count++
	}

	return count, nil
}

// OnInvoiceCreated marks every referenced occurrence paid. Eligibility for
// invoicing (taught and unreferenced by any other item) was established by
// the caller, so the transition is unconditional.
func (s *Synchronizer) OnInvoiceCreated(ctx context.Context, invoiceID string) error {
	const op = "billing.Synchronizer.OnInvoiceCreated"

	ids, err := s.store.ListItemOccurrenceIDs(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, id := range ids {
		occ, err := s.getReferenced(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if occ.Status == models.StatusCancelled {
			continue
		}

		if err := s.store.UpdateOccurrenceStatus(ctx, id, models.StatusPaid); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// OnInvoicePaid recomputes every referenced occurrence: it is paid iff every
// non-deleted invoice referencing it is paid. A lesson shared with a still
// unpaid invoice stays taught until the last invoice is settled.
func (s *Synchronizer) OnInvoicePaid(ctx context.Context, invoiceID string) error {
	const op = "billing.Synchronizer.OnInvoicePaid"

	ids, err := s.store.ListItemOccurrenceIDs(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, id := range ids {
		occ, err := s.getReferenced(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if occ.Status == models.StatusCancelled {
			continue
		}

		allPaid, err := s.allReferencingPaid(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		status := models.StatusTaught
		if allPaid {
			status = models.StatusPaid
		}
		if occ.Status == status {
			continue
		}

		if err := s.store.UpdateOccurrenceStatus(ctx, id, status); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// OnInvoiceReverted handles un-paying an invoice: each referenced occurrence
// stays paid only if some other invoice still references it with status paid,
// otherwise it reverts to taught. The invoice's own status must already be
// flipped in the store. Returns the number of reverted occurrences.
func (s *Synchronizer) OnInvoiceReverted(ctx context.Context, invoiceID string) (int, error) {
	const op = "billing.Synchronizer.OnInvoiceReverted"

	ids, err := s.store.ListItemOccurrenceIDs(ctx, invoiceID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	count, err := s.revertUncovered(ctx, ids, invoiceID)
	if err != nil {
		return count, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// OnInvoiceDeleted applies the same reversion rule after an invoice and its
// items are gone. The caller snapshots the referenced occurrence ids before
// cascading the item deletion and hands them in here afterwards.
func (s *Synchronizer) OnInvoiceDeleted(ctx context.Context, occurrenceIDs []string) (int, error) {
	const op = "billing.Synchronizer.OnInvoiceDeleted"

	count, err := s.revertUncovered(ctx, occurrenceIDs, "")
	if err != nil {
		return count, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (s *Synchronizer) revertUncovered(ctx context.Context, occurrenceIDs []string, excludeInvoiceID string) (int, error) {
	count := 0
	for _, id := range occurrenceIDs {
		occ, err := s.getReferenced(ctx, id)
		if err != nil {
			return count, err
		}
		if occ.Status != models.StatusPaid {
			continue
		}

		covered, err := s.anyOtherPaid(ctx, id, excludeInvoiceID)
		if err != nil {
			return count, err
		}
		if covered {
			continue
		}

		if err := s.store.UpdateOccurrenceStatus(ctx, id, models.StatusTaught); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func (s *Synchronizer) allReferencingPaid(ctx context.Context, occurrenceID string) (bool, error) {
	invoices, err := s.store.ListInvoicesReferencing(ctx, occurrenceID)
	if err != nil {
		return false, err
	}

	for _, inv := range invoices {
		if inv.Status != models.InvoicePaid {
			return false, nil
		}
	}

	return len(invoices) > 0, nil
}

func (s *Synchronizer) anyOtherPaid(ctx context.Context, occurrenceID, excludeInvoiceID string) (bool, error) {
	invoices, err := s.store.ListInvoicesReferencing(ctx, occurrenceID)
	if err != nil {
		return false, err
	}

	for _, inv := range invoices {
		if inv.ID == excludeInvoiceID {
			continue
		}
		if inv.Status == models.InvoicePaid {
			return true, nil
		}
	}

	return false, nil
}

// getReferenced loads an occurrence a live invoice item points at. A missing
// row here means the store violated the item-occurrence relationship.
func (s *Synchronizer) getReferenced(ctx context.Context, id string) (*models.Occurrence, error) {
	occ, err := s.store.GetOccurrence(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("occurrence %s referenced by invoice item is gone: %w", id, response.ErrInconsistentState)
		}
		return nil, err
	}

	return occ, nil
}
