package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// queryer is satisfied by both *sql.DB and *sql.Tx. Every storage method
// takes an optional transaction; nil means autocommit on the pool.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Storage struct {
	db  *sql.DB
	loc *time.Location
}

func New(storagePath string, loc *time.Location) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, loc: loc}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func (s *Storage) q(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return s.db
}

// dateArg / clockArg format calendar and clock values for DATE and TIME
// columns; inLocDate / inLocClock rebind scanned values to the configured
// location so interval arithmetic stays in the tutor's timezone.

func dateArg(t time.Time) string  { return t.Format("2006-01-02") }
func clockArg(t time.Time) string { return t.Format("15:04:05") }

func (s *Storage) inLocDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Storage) inLocClock(t time.Time) time.Time {
	return time.Date(0, time.January, 1, t.Hour(), t.Minute(), 0, 0, s.loc)
}

// #### contracts ####

func (s *Storage) CreateContract(ctx context.Context, tx *sql.Tx, c *models.Contract) (string, error) {
	const op = "storage.postgres.CreateContract"

	id := uuid.NewString()

	var endDate any
	if c.EndDate.Valid {
		endDate = dateArg(c.EndDate.Time)
	}

	_, err := s.q(tx).ExecContext(ctx,
		`INSERT INTO contracts
		(id, student_id, unit_duration_minutes, rate_per_unit, start_date, end_date, active, enforce_quota)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, c.StudentID, c.UnitDurationMinutes, c.RatePerUnit,
		dateArg(c.StartDate), endDate, c.Active, c.EnforceQuota,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetContract(ctx context.Context, tx *sql.Tx, id string) (*models.Contract, error) {
	const op = "storage.postgres.GetContract"

	var c models.Contract
	err := s.q(tx).QueryRowContext(ctx,
		`SELECT id, student_id, unit_duration_minutes, rate_per_unit, start_date, end_date, active, enforce_quota
		FROM contracts WHERE id=$1`, id,
	).Scan(&c.ID, &c.StudentID, &c.UnitDurationMinutes, &c.RatePerUnit, &c.StartDate, &c.EndDate, &c.Active, &c.EnforceQuota)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.StartDate = s.inLocDate(c.StartDate)
	if c.EndDate.Valid {
		c.EndDate.Time = s.inLocDate(c.EndDate.Time)
	}

	return &c, nil
}

// #### monthly plans ####

func (s *Storage) UpsertMonthlyPlan(ctx context.Context, tx *sql.Tx, p *models.MonthlyPlan) (string, error) {
	const op = "storage.postgres.UpsertMonthlyPlan"

	id := uuid.NewString()

	err := s.q(tx).QueryRowContext(ctx,
		`INSERT INTO monthly_plans (id, contract_id, year, month, planned_units)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (contract_id, year, month)
		DO UPDATE SET planned_units = EXCLUDED.planned_units
		RETURNING id`,
		id, p.ContractID, p.Year, p.Month, p.PlannedUnits,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) ListMonthlyPlans(ctx context.Context, tx *sql.Tx, contractID string) ([]models.MonthlyPlan, error) {
	const op = "storage.postgres.ListMonthlyPlans"

	rows, err := s.q(tx).QueryContext(ctx,
		`SELECT id, contract_id, year, month, planned_units
		FROM monthly_plans WHERE contract_id=$1 ORDER BY year, month`, contractID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var plans []models.MonthlyPlan
	for rows.Next() {
		var p models.MonthlyPlan
		if err := rows.Scan(&p.ID, &p.ContractID, &p.Year, &p.Month, &p.PlannedUnits); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		plans = append(plans, p)
	}

	return plans, rows.Err()
}

func (s *Storage) SumPlannedUnitsThrough(ctx context.Context, tx *sql.Tx, contractID string, year, month int) (int, error) {
	const op = "storage.postgres.SumPlannedUnitsThrough"

	var sum int
	err := s.q(tx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(planned_units), 0) FROM monthly_plans
		WHERE contract_id=$1 AND (year < $2 OR (year = $2 AND month <= $3))`,
		contractID, year, month,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return sum, nil
}

// #### blocked times ####

func (s *Storage) CreateBlockedTime(ctx context.Context, tx *sql.Tx, b *models.BlockedTime) (string, error) {
	const op = "storage.postgres.CreateBlockedTime"

	id := uuid.NewString()

	_, err := s.q(tx).ExecContext(ctx,
		`INSERT INTO blocked_times (id, start_ts, end_ts, title) VALUES ($1, $2, $3, $4)`,
		id, b.Start, b.End, b.Title,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetBlockedTime(ctx context.Context, tx *sql.Tx, id string) (*models.BlockedTime, error) {
	const op = "storage.postgres.GetBlockedTime"

	var b models.BlockedTime
	err := s.q(tx).QueryRowContext(ctx,
		`SELECT id, start_ts, end_ts, title FROM blocked_times WHERE id=$1`, id,
	).Scan(&b.ID, &b.Start, &b.End, &b.Title)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b.Start = b.Start.In(s.loc)
	b.End = b.End.In(s.loc)

	return &b, nil
}

func (s *Storage) UpdateBlockedTime(ctx context.Context, tx *sql.Tx, b *models.BlockedTime) error {
	const op = "storage.postgres.UpdateBlockedTime"

	res, err := s.q(tx).ExecContext(ctx,
		`UPDATE blocked_times SET start_ts=$1, end_ts=$2, title=$3 WHERE id=$4`,
		b.Start, b.End, b.Title, b.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) DeleteBlockedTime(ctx context.Context, tx *sql.Tx, id string) error {
	const op = "storage.postgres.DeleteBlockedTime"

	res, err := s.q(tx).ExecContext(ctx, `DELETE FROM blocked_times WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) ListBlockedTimesOverlapping(ctx context.Context, tx *sql.Tx, from, to time.Time) ([]models.BlockedTime, error) {
	const op = "storage.postgres.ListBlockedTimesOverlapping"

	// half-open overlap, matching the in-memory interval rule
	rows, err := s.q(tx).QueryContext(ctx,
		`SELECT id, start_ts, end_ts, title FROM blocked_times
		WHERE end_ts > $1 AND start_ts < $2 ORDER BY start_ts`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var blocks []models.BlockedTime
	for rows.Next() {
		var b models.BlockedTime
		if err := rows.Scan(&b.ID, &b.Start, &b.End, &b.Title); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		b.Start = b.Start.In(s.loc)
		b.End = b.End.In(s.loc)
		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}
