package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

func (s *Storage) CreateInvoice(ctx context.Context, tx *sql.Tx, inv *models.Invoice) (string, error) {
	const op = "storage.postgres.CreateInvoice"

	id := uuid.NewString()

	_, err := s.q(tx).ExecContext(ctx,
		`INSERT INTO invoices (id, contract_id, status, period_start, period_end, total_amount, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, inv.ContractID, string(inv.Status), dateArg(inv.PeriodStart), dateArg(inv.PeriodEnd), inv.TotalAmount, inv.PaidAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return "", fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetInvoice(ctx context.Context, tx *sql.Tx, id string) (*models.Invoice, error) {
	const op = "storage.postgres.GetInvoice"

	var inv models.Invoice
	err := s.q(tx).QueryRowContext(ctx,
		`SELECT id, contract_id, status, period_start, period_end, total_amount, paid_at
		FROM invoices WHERE id=$1`, id,
	).Scan(&inv.ID, &inv.ContractID, &inv.Status, &inv.PeriodStart, &inv.PeriodEnd, &inv.TotalAmount, &inv.PaidAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inv.PeriodStart = s.inLocDate(inv.PeriodStart)
	inv.PeriodEnd = s.inLocDate(inv.PeriodEnd)
	if inv.PaidAt.Valid {
		inv.PaidAt.Time = inv.PaidAt.Time.In(s.loc)
	}

	return &inv, nil
}

func (s *Storage) UpdateInvoiceStatus(ctx context.Context, tx *sql.Tx, id string, status models.InvoiceStatus, paidAt *time.Time) error {
	const op = "storage.postgres.UpdateInvoiceStatus"

	var paid any
	if paidAt != nil {
		paid = *paidAt
	}

	res, err := s.q(tx).ExecContext(ctx,
		`UPDATE invoices SET status=$1, paid_at=$2 WHERE id=$3`,
		string(status), paid, id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) DeleteInvoice(ctx context.Context, tx *sql.Tx, id string) error {
	const op = "storage.postgres.DeleteInvoice"

	res, err := s.q(tx).ExecContext(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) CreateInvoiceItem(ctx context.Context, tx *sql.Tx, item *models.InvoiceItem) (string, error) {
	const op = "storage.postgres.CreateInvoiceItem"

	id := uuid.NewString()

	_, err := s.q(tx).ExecContext(ctx,
		`INSERT INTO invoice_items (id, invoice_id, occurrence_id, date, duration_minutes, description, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, item.InvoiceID, item.OccurrenceID, dateArg(item.Date), item.DurationMinutes, item.Description, item.Amount,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return "", fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) ListInvoiceItems(ctx context.Context, tx *sql.Tx, invoiceID string) ([]models.InvoiceItem, error) {
	const op = "storage.postgres.ListInvoiceItems"

	rows, err := s.q(tx).QueryContext(ctx,
		`SELECT id, invoice_id, occurrence_id, date, duration_minutes, description, amount
		FROM invoice_items WHERE invoice_id=$1 ORDER BY date, id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var items []models.InvoiceItem
	for rows.Next() {
		var item models.InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.OccurrenceID, &item.Date, &item.DurationMinutes, &item.Description, &item.Amount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		item.Date = s.inLocDate(item.Date)
		items = append(items, item)
	}

	return items, rows.Err()
}

func (s *Storage) DeleteInvoiceItems(ctx context.Context, tx *sql.Tx, invoiceID string) error {
	const op = "storage.postgres.DeleteInvoiceItems"

	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id=$1`, invoiceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ListItemOccurrenceIDs(ctx context.Context, tx *sql.Tx, invoiceID string) ([]string, error) {
	const op = "storage.postgres.ListItemOccurrenceIDs"

	rows, err := s.q(tx).QueryContext(ctx,
		`SELECT occurrence_id FROM invoice_items
		WHERE invoice_id=$1 AND occurrence_id IS NOT NULL`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *Storage) ListInvoicesReferencing(ctx context.Context, tx *sql.Tx, occurrenceID string) ([]models.Invoice, error) {
	const op = "storage.postgres.ListInvoicesReferencing"

	rows, err := s.q(tx).QueryContext(ctx,
		`SELECT DISTINCT i.id, i.contract_id, i.status, i.period_start, i.period_end, i.total_amount, i.paid_at
		FROM invoices i
		JOIN invoice_items ii ON ii.invoice_id = i.id
		WHERE ii.occurrence_id=$1`, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		if err := rows.Scan(&inv.ID, &inv.ContractID, &inv.Status, &inv.PeriodStart, &inv.PeriodEnd, &inv.TotalAmount, &inv.PaidAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		inv.PeriodStart = s.inLocDate(inv.PeriodStart)
		inv.PeriodEnd = s.inLocDate(inv.PeriodEnd)
		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}
