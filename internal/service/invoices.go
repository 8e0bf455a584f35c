package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tutorflow-service/api"
	"tutorflow-service/internal/billing"
	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"
)

// CreateInvoice bills every taught, not-yet-invoiced occurrence of the
// contract inside the period. Item amounts are frozen at creation; later rate
// changes on the contract never touch an existing invoice.
func (s *Service) CreateInvoice(ctx context.Context, req *api.InvoiceCreateRequest) (*api.InvoiceResponse, error) {
	const op = "service.CreateInvoice"

	periodStart, err := s.parseDate(op, "period_start", req.PeriodStart)
	if err != nil {
		return nil, err
	}
	periodEnd, err := s.parseDate(op, "period_end", req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if periodEnd.Before(periodStart) {
		return nil, fmt.Errorf("%s: period end before start: %w", op, response.ErrValidation)
	}

	contract, err := s.store.GetContract(ctx, nil, req.ContractID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var resp *api.InvoiceResponse

	err = s.withContractLock(ctx, op, contract.ID, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("%s: begin tx: %w", op, err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		eligible, err := s.store.ListEligibleForInvoice(ctx, tx, contract.ID, periodStart, periodEnd)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if len(eligible) == 0 {
			return fmt.Errorf("%s: %w", op, response.ErrNothingToInvoice)
		}

		inv := &models.Invoice{
			ContractID:  contract.ID,
			Status:      models.InvoiceDraft,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		}

		items := make([]models.InvoiceItem, 0, len(eligible))
		for i := range eligible {
			occ := &eligible[i]

			if occ.ContractID != contract.ID {
				return fmt.Errorf("%s: occurrence %s belongs to another contract: %w", op, occ.ID, response.ErrInconsistentState)
			}

			amount, err := billing.Amount(occ, contract)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}

			items = append(items, models.InvoiceItem{
				OccurrenceID:    sql.NullString{String: occ.ID, Valid: true},
				Date:            occ.Date,
				DurationMinutes: occ.DurationMinutes,
				Description:     fmt.Sprintf("Lesson on %s (%d min)", occ.Date.Format("2006-01-02"), occ.DurationMinutes),
				Amount:          amount,
			})
			inv.TotalAmount += amount
		}

		invoiceID, err := s.store.CreateInvoice(ctx, tx, inv)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		inv.ID = invoiceID

		for i := range items {
			items[i].InvoiceID = invoiceID
			itemID, err := s.store.CreateInvoiceItem(ctx, tx, &items[i])
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			items[i].ID = itemID
		}

		if err := s.synchronizer(tx).OnInvoiceCreated(ctx, invoiceID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%s: commit: %w", op, err)
		}

		resp = invoiceToAPI(inv, items)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*api.InvoiceResponse, error) {
	const op = "service.GetInvoice"

	inv, err := s.store.GetInvoice(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items, err := s.store.ListInvoiceItems(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return invoiceToAPI(inv, items), nil
}

// MarkInvoicePaid settles an invoice and recomputes the status of every
// occurrence it references in the same transaction.
func (s *Service) MarkInvoicePaid(ctx context.Context, id string) (*api.InvoiceResponse, error) {
	const op = "service.MarkInvoicePaid"

	inv, err := s.store.GetInvoice(ctx, nil, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	paidAt := time.Now().In(s.loc)
	if err := s.store.UpdateInvoiceStatus(ctx, tx, id, models.InvoicePaid, &paidAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.synchronizer(tx).OnInvoicePaid(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	inv.Status = models.InvoicePaid
	inv.PaidAt = sql.NullTime{Time: paidAt, Valid: true}

	items, err := s.store.ListInvoiceItems(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return invoiceToAPI(inv, items), nil
}

// RevertInvoicePaid undoes a settlement. Occurrences still covered by some
// other paid invoice stay paid; the rest go back to taught. Returns how many
// occurrences were reverted.
func (s *Service) RevertInvoicePaid(ctx context.Context, id string) (int, error) {
	const op = "service.RevertInvoicePaid"

	if _, err := s.store.GetInvoice(ctx, nil, id); err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return 0, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.store.UpdateInvoiceStatus(ctx, tx, id, models.InvoiceSent, nil); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	count, err := s.synchronizer(tx).OnInvoiceReverted(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return count, nil
}

// DeleteInvoice removes the invoice and its items and reverts occurrences
// that lose their last paid coverage. The referenced occurrence ids are
// snapshotted before the cascade so the lifecycle rule still sees them.
func (s *Service) DeleteInvoice(ctx context.Context, id string) (int, error) {
	const op = "service.DeleteInvoice"

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	occurrenceIDs, err := s.store.ListItemOccurrenceIDs(ctx, tx, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.DeleteInvoiceItems(ctx, tx, id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.DeleteInvoice(ctx, tx, id); err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return 0, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	count, err := s.synchronizer(tx).OnInvoiceDeleted(ctx, occurrenceIDs)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return count, nil
}
