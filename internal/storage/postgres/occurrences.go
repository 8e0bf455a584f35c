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

const occurrenceColumns = `id, contract_id, date, start_time, duration_minutes,
	travel_before_minutes, travel_after_minutes, status, notes, source, source_template_id`

func (s *Storage) scanOccurrence(scan func(dest ...any) error) (*models.Occurrence, error) {
	var o models.Occurrence
	err := scan(
		&o.ID, &o.ContractID, &o.Date, &o.StartTime, &o.DurationMinutes,
		&o.TravelBeforeMinutes, &o.TravelAfterMinutes, &o.Status, &o.Notes, &o.Source, &o.SourceTemplateID,
	)
	if err != nil {
		return nil, err
	}

	o.Date = s.inLocDate(o.Date)
	o.StartTime = s.inLocClock(o.StartTime)

	return &o, nil
}

func (s *Storage) CreateOccurrence(ctx context.Context, tx *sql.Tx, o *models.Occurrence) (string, error) {
	const op = "storage.postgres.CreateOccurrence"

	id := uuid.NewString()

	_, err := s.q(tx).ExecContext(ctx,
		`INSERT INTO occurrences
		(`+occurrenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, o.ContractID, dateArg(o.Date), clockArg(o.StartTime), o.DurationMinutes,
		o.TravelBeforeMinutes, o.TravelAfterMinutes, string(o.Status), o.Notes, string(o.Source), o.SourceTemplateID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return "", fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetOccurrence(ctx context.Context, tx *sql.Tx, id string) (*models.Occurrence, error) {
	const op = "storage.postgres.GetOccurrence"

	row := s.q(tx).QueryRowContext(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE id=$1`, id)

	o, err := s.scanOccurrence(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return o, nil
}

func (s *Storage) UpdateOccurrence(ctx context.Context, tx *sql.Tx, o *models.Occurrence) error {
	const op = "storage.postgres.UpdateOccurrence"

	res, err := s.q(tx).ExecContext(ctx,
		`UPDATE occurrences SET
		contract_id=$1, date=$2, start_time=$3, duration_minutes=$4,
		travel_before_minutes=$5, travel_after_minutes=$6, status=$7, notes=$8, source=$9, source_template_id=$10
		WHERE id=$11`,
		o.ContractID, dateArg(o.Date), clockArg(o.StartTime), o.DurationMinutes,
		o.TravelBeforeMinutes, o.TravelAfterMinutes, string(o.Status), o.Notes, string(o.Source), o.SourceTemplateID,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) UpdateOccurrenceStatus(ctx context.Context, tx *sql.Tx, id string, status models.OccurrenceStatus) error {
	const op = "storage.postgres.UpdateOccurrenceStatus"

	res, err := s.q(tx).ExecContext(ctx,
		`UPDATE occurrences SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) DeleteOccurrence(ctx context.Context, tx *sql.Tx, id string) error {
	const op = "storage.postgres.DeleteOccurrence"

	res, err := s.q(tx).ExecContext(ctx, `DELETE FROM occurrences WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) listOccurrences(ctx context.Context, tx *sql.Tx, op, query string, args ...any) ([]models.Occurrence, error) {
	rows, err := s.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var occs []models.Occurrence
	for rows.Next() {
		o, err := s.scanOccurrence(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		occs = append(occs, *o)
	}

	return occs, rows.Err()
}

func (s *Storage) ListOccurrencesOnDate(ctx context.Context, tx *sql.Tx, date time.Time) ([]models.Occurrence, error) {
	const op = "storage.postgres.ListOccurrencesOnDate"

	return s.listOccurrences(ctx, tx, op,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE date=$1 ORDER BY start_time`,
		dateArg(date))
}

func (s *Storage) ListOccurrencesForContract(ctx context.Context, tx *sql.Tx, contractID string) ([]models.Occurrence, error) {
	const op = "storage.postgres.ListOccurrencesForContract"

	return s.listOccurrences(ctx, tx, op,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE contract_id=$1 ORDER BY date, start_time`,
		contractID)
}

func (s *Storage) ListOccurrencesForTemplate(ctx context.Context, tx *sql.Tx, templateID string) ([]models.Occurrence, error) {
	const op = "storage.postgres.ListOccurrencesForTemplate"

	return s.listOccurrences(ctx, tx, op,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE source_template_id=$1 ORDER BY date, start_time`,
		templateID)
}

func (s *Storage) ListOccurrencesByStatusThrough(ctx context.Context, tx *sql.Tx, status models.OccurrenceStatus, lastDate time.Time) ([]models.Occurrence, error) {
	const op = "storage.postgres.ListOccurrencesByStatusThrough"

	return s.listOccurrences(ctx, tx, op,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE status=$1 AND date<=$2 ORDER BY date, start_time`,
		string(status), dateArg(lastDate))
}

func (s *Storage) CountBillableThrough(ctx context.Context, tx *sql.Tx, contractID string, lastDay time.Time, excludeID string) (int, error) {
	const op = "storage.postgres.CountBillableThrough"

	var count int
	err := s.q(tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM occurrences
		WHERE contract_id=$1 AND date<=$2
		AND status IN ('planned', 'taught', 'paid')
		AND ($3 = '' OR id <> $3)`,
		contractID, dateArg(lastDay), excludeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (s *Storage) OccurrenceExistsAt(ctx context.Context, tx *sql.Tx, contractID string, date, startTime time.Time) (bool, error) {
	const op = "storage.postgres.OccurrenceExistsAt"

	var exists bool
	err := s.q(tx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM occurrences WHERE contract_id=$1 AND date=$2 AND start_time=$3)`,
		contractID, dateArg(date), clockArg(startTime),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (s *Storage) ListEligibleForInvoice(ctx context.Context, tx *sql.Tx, contractID string, periodStart, periodEnd time.Time) ([]models.Occurrence, error) {
	const op = "storage.postgres.ListEligibleForInvoice"

	// eligible = taught and not yet referenced by any invoice item
	return s.listOccurrences(ctx, tx, op,
		`SELECT `+occurrenceColumns+` FROM occurrences o
		WHERE o.contract_id=$1 AND o.date>=$2 AND o.date<=$3 AND o.status='taught'
		AND NOT EXISTS (SELECT 1 FROM invoice_items ii WHERE ii.occurrence_id = o.id)
		ORDER BY o.date, o.start_time`,
		contractID, dateArg(periodStart), dateArg(periodEnd))
}

// #### recurrence templates ####

const templateColumns = `id, contract_id, start_date, end_date, start_time, duration_minutes,
	travel_before_minutes, travel_after_minutes, weekdays, cadence, notes, active`

func (s *Storage) scanTemplate(scan func(dest ...any) error) (*models.RecurrenceTemplate, error) {
	var t models.RecurrenceTemplate
	err := scan(
		&t.ID, &t.ContractID, &t.StartDate, &t.EndDate, &t.StartTime, &t.DurationMinutes,
		&t.TravelBeforeMinutes, &t.TravelAfterMinutes, pq.Array(&t.Weekdays), &t.Cadence, &t.Notes, &t.Active,
	)
	if err != nil {
		return nil, err
	}

	t.StartDate = s.inLocDate(t.StartDate)
	if t.EndDate.Valid {
		t.EndDate.Time = s.inLocDate(t.EndDate.Time)
	}
	t.StartTime = s.inLocClock(t.StartTime)

	return &t, nil
}

func (s *Storage) CreateTemplate(ctx context.Context, tx *sql.Tx, t *models.RecurrenceTemplate) (string, error) {
	const op = "storage.postgres.CreateTemplate"

	id := uuid.NewString()

	var endDate any
	if t.EndDate.Valid {
		endDate = dateArg(t.EndDate.Time)
	}

	_, err := s.q(tx).ExecContext(ctx,
		`INSERT INTO recurrence_templates
		(`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, t.ContractID, dateArg(t.StartDate), endDate, clockArg(t.StartTime), t.DurationMinutes,
		t.TravelBeforeMinutes, t.TravelAfterMinutes, pq.Array(t.Weekdays), string(t.Cadence), t.Notes, t.Active,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return "", fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetTemplate(ctx context.Context, tx *sql.Tx, id string) (*models.RecurrenceTemplate, error) {
	const op = "storage.postgres.GetTemplate"

	row := s.q(tx).QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM recurrence_templates WHERE id=$1`, id)

	t, err := s.scanTemplate(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (s *Storage) UpdateTemplate(ctx context.Context, tx *sql.Tx, t *models.RecurrenceTemplate) error {
	const op = "storage.postgres.UpdateTemplate"

	var endDate any
	if t.EndDate.Valid {
		endDate = dateArg(t.EndDate.Time)
	}

	res, err := s.q(tx).ExecContext(ctx,
		`UPDATE recurrence_templates SET
		contract_id=$1, start_date=$2, end_date=$3, start_time=$4, duration_minutes=$5,
		travel_before_minutes=$6, travel_after_minutes=$7, weekdays=$8, cadence=$9, notes=$10, active=$11
		WHERE id=$12`,
		t.ContractID, dateArg(t.StartDate), endDate, clockArg(t.StartTime), t.DurationMinutes,
		t.TravelBeforeMinutes, t.TravelAfterMinutes, pq.Array(t.Weekdays), string(t.Cadence), t.Notes, t.Active,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) DeleteTemplate(ctx context.Context, tx *sql.Tx, id string) error {
	const op = "storage.postgres.DeleteTemplate"

	res, err := s.q(tx).ExecContext(ctx, `DELETE FROM recurrence_templates WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) ListTemplatesForContract(ctx context.Context, tx *sql.Tx, contractID string) ([]models.RecurrenceTemplate, error) {
	const op = "storage.postgres.ListTemplatesForContract"

	rows, err := s.q(tx).QueryContext(ctx,
		`SELECT `+templateColumns+` FROM recurrence_templates WHERE contract_id=$1 ORDER BY start_date`,
		contractID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var templates []models.RecurrenceTemplate
	for rows.Next() {
		t, err := s.scanTemplate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		templates = append(templates, *t)
	}

	return templates, rows.Err()
}
