package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutorflow-service/api"
	"tutorflow-service/internal/billing"
	"tutorflow-service/internal/lock"
	"tutorflow-service/internal/models"
	"tutorflow-service/internal/schedule"
	"tutorflow-service/pkg/response"
)

type Service struct {
	store  Store
	locker lock.Locker
	loc    *time.Location
}

func NewService(store Store, locker lock.Locker, loc *time.Location) *Service {
	return &Service{store: store, locker: locker, loc: loc}
}

type Store interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Contracts
	CreateContract(ctx context.Context, tx *sql.Tx, c *models.Contract) (string, error)
	GetContract(ctx context.Context, tx *sql.Tx, id string) (*models.Contract, error)

	// Monthly plans
	UpsertMonthlyPlan(ctx context.Context, tx *sql.Tx, p *models.MonthlyPlan) (string, error)
	ListMonthlyPlans(ctx context.Context, tx *sql.Tx, contractID string) ([]models.MonthlyPlan, error)
	SumPlannedUnitsThrough(ctx context.Context, tx *sql.Tx, contractID string, year, month int) (int, error)

	// Blocked times
	CreateBlockedTime(ctx context.Context, tx *sql.Tx, b *models.BlockedTime) (string, error)
	GetBlockedTime(ctx context.Context, tx *sql.Tx, id string) (*models.BlockedTime, error)
	UpdateBlockedTime(ctx context.Context, tx *sql.Tx, b *models.BlockedTime) error
	DeleteBlockedTime(ctx context.Context, tx *sql.Tx, id string) error
	ListBlockedTimesOverlapping(ctx context.Context, tx *sql.Tx, from, to time.Time) ([]models.BlockedTime, error)

	// Occurrences
	CreateOccurrence(ctx context.Context, tx *sql.Tx, o *models.Occurrence) (string, error)
	GetOccurrence(ctx context.Context, tx *sql.Tx, id string) (*models.Occurrence, error)
	UpdateOccurrence(ctx context.Context, tx *sql.Tx, o *models.Occurrence) error
	UpdateOccurrenceStatus(ctx context.Context, tx *sql.Tx, id string, status models.OccurrenceStatus) error
	DeleteOccurrence(ctx context.Context, tx *sql.Tx, id string) error
	ListOccurrencesOnDate(ctx context.Context, tx *sql.Tx, date time.Time) ([]models.Occurrence, error)
	ListOccurrencesForContract(ctx context.Context, tx *sql.Tx, contractID string) ([]models.Occurrence, error)
	ListOccurrencesForTemplate(ctx context.Context, tx *sql.Tx, templateID string) ([]models.Occurrence, error)
	ListOccurrencesByStatusThrough(ctx context.Context, tx *sql.Tx, status models.OccurrenceStatus, lastDate time.Time) ([]models.Occurrence, error)
	CountBillableThrough(ctx context.Context, tx *sql.Tx, contractID string, lastDay time.Time, excludeID string) (int, error)
	OccurrenceExistsAt(ctx context.Context, tx *sql.Tx, contractID string, date, startTime time.Time) (bool, error)
	ListEligibleForInvoice(ctx context.Context, tx *sql.Tx, contractID string, periodStart, periodEnd time.Time) ([]models.Occurrence, error)

	// Recurrence templates
	CreateTemplate(ctx context.Context, tx *sql.Tx, t *models.RecurrenceTemplate) (string, error)
	GetTemplate(ctx context.Context, tx *sql.Tx, id string) (*models.RecurrenceTemplate, error)
	UpdateTemplate(ctx context.Context, tx *sql.Tx, t *models.RecurrenceTemplate) error
	DeleteTemplate(ctx context.Context, tx *sql.Tx, id string) error
	ListTemplatesForContract(ctx context.Context, tx *sql.Tx, contractID string) ([]models.RecurrenceTemplate, error)

	// Invoices
	CreateInvoice(ctx context.Context, tx *sql.Tx, inv *models.Invoice) (string, error)
	GetInvoice(ctx context.Context, tx *sql.Tx, id string) (*models.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, tx *sql.Tx, id string, status models.InvoiceStatus, paidAt *time.Time) error
	DeleteInvoice(ctx context.Context, tx *sql.Tx, id string) error
	CreateInvoiceItem(ctx context.Context, tx *sql.Tx, item *models.InvoiceItem) (string, error)
	ListInvoiceItems(ctx context.Context, tx *sql.Tx, invoiceID string) ([]models.InvoiceItem, error)
	DeleteInvoiceItems(ctx context.Context, tx *sql.Tx, invoiceID string) error
	ListItemOccurrenceIDs(ctx context.Context, tx *sql.Tx, invoiceID string) ([]string, error)
	ListInvoicesReferencing(ctx context.Context, tx *sql.Tx, occurrenceID string) ([]models.Invoice, error)
}

// storeAdapter binds the Store to one transaction and exposes the narrow
// ctx-only interfaces the engine packages consume. A nil tx reads committed
// state; engine calls that are part of a business write always get the
// operation's transaction so check-then-write stays atomic.
type storeAdapter struct {
	st Store
	tx *sql.Tx
}

func (a storeAdapter) GetContract(ctx context.Context, id string) (*models.Contract, error) {
	return a.st.GetContract(ctx, a.tx, id)
}

func (a storeAdapter) SumPlannedUnitsThrough(ctx context.Context, contractID string, year, month int) (int, error) {
	return a.st.SumPlannedUnitsThrough(ctx, a.tx, contractID, year, month)
}

func (a storeAdapter) CountBillableThrough(ctx context.Context, contractID string, lastDay time.Time, excludeID string) (int, error) {
	return a.st.CountBillableThrough(ctx, a.tx, contractID, lastDay, excludeID)
}

func (a storeAdapter) ListOccurrencesOnDate(ctx context.Context, date time.Time) ([]models.Occurrence, error) {
	return a.st.ListOccurrencesOnDate(ctx, a.tx, date)
}

func (a storeAdapter) ListBlockedTimesOverlapping(ctx context.Context, from, to time.Time) ([]models.BlockedTime, error) {
	return a.st.ListBlockedTimesOverlapping(ctx, a.tx, from, to)
}

func (a storeAdapter) OccurrenceExistsAt(ctx context.Context, contractID string, date, startTime time.Time) (bool, error) {
	return a.st.OccurrenceExistsAt(ctx, a.tx, contractID, date, startTime)
}

func (a storeAdapter) CreateOccurrence(ctx context.Context, occ *models.Occurrence) (string, error) {
	return a.st.CreateOccurrence(ctx, a.tx, occ)
}

func (a storeAdapter) GetOccurrence(ctx context.Context, id string) (*models.Occurrence, error) {
	return a.st.GetOccurrence(ctx, a.tx, id)
}

func (a storeAdapter) ListOccurrencesByStatusThrough(ctx context.Context, status models.OccurrenceStatus, lastDate time.Time) ([]models.Occurrence, error) {
	return a.st.ListOccurrencesByStatusThrough(ctx, a.tx, status, lastDate)
}

func (a storeAdapter) UpdateOccurrenceStatus(ctx context.Context, id string, status models.OccurrenceStatus) error {
	return a.st.UpdateOccurrenceStatus(ctx, a.tx, id, status)
}

func (a storeAdapter) GetTemplate(ctx context.Context, id string) (*models.RecurrenceTemplate, error) {
	return a.st.GetTemplate(ctx, a.tx, id)
}

func (a storeAdapter) ListTemplatesForContract(ctx context.Context, contractID string) ([]models.RecurrenceTemplate, error) {
	return a.st.ListTemplatesForContract(ctx, a.tx, contractID)
}

func (a storeAdapter) ListOccurrencesForTemplate(ctx context.Context, templateID string) ([]models.Occurrence, error) {
	return a.st.ListOccurrencesForTemplate(ctx, a.tx, templateID)
}

func (a storeAdapter) ListOccurrencesForContract(ctx context.Context, contractID string) ([]models.Occurrence, error) {
	return a.st.ListOccurrencesForContract(ctx, a.tx, contractID)
}

func (a storeAdapter) ListItemOccurrenceIDs(ctx context.Context, invoiceID string) ([]string, error) {
	return a.st.ListItemOccurrenceIDs(ctx, a.tx, invoiceID)
}

func (a storeAdapter) ListInvoicesReferencing(ctx context.Context, occurrenceID string) ([]models.Invoice, error) {
	return a.st.ListInvoicesReferencing(ctx, a.tx, occurrenceID)
}

// Engine factories. Each business operation builds its engine over the
// transaction it runs in.

func (s *Service) quotaEnforcer(tx *sql.Tx) *schedule.QuotaEnforcer {
	ad := storeAdapter{st: s.store, tx: tx}
	return schedule.NewQuotaEnforcer(ad, ad)
}

func (s *Service) detector(tx *sql.Tx) *schedule.ConflictDetector {
	ad := storeAdapter{st: s.store, tx: tx}
	return schedule.NewConflictDetector(ad, s.quotaEnforcer(tx))
}

func (s *Service) expander(tx *sql.Tx) *schedule.RecurrenceExpander {
	ad := storeAdapter{st: s.store, tx: tx}
	return schedule.NewRecurrenceExpander(ad, ad, s.detector(tx))
}

func (s *Service) matcher(tx *sql.Tx) *schedule.SeriesMatcher {
	return schedule.NewSeriesMatcher(storeAdapter{st: s.store, tx: tx})
}

func (s *Service) synchronizer(tx *sql.Tx) *billing.Synchronizer {
	return billing.NewSynchronizer(storeAdapter{st: s.store, tx: tx})
}

// withContractLock serializes check-then-write sections per contract so two
// concurrent writers cannot both pass a conflict check and commit overlapping
// occurrences.
func (s *Service) withContractLock(ctx context.Context, op, contractID string, fn func() error) error {
	lockKey := fmt.Sprintf("contract:%s", contractID)

	locked, err := s.locker.Lock(ctx, lockKey, 10*time.Second)
	if err != nil {
		return fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	return fn()
}

// parsing helpers

func (s *Service) parseDate(op, field, value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid %s: %w", op, field, response.ErrValidation)
	}
	return t, nil
}

func (s *Service) parseClock(op, field, value string) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid %s: %w", op, field, response.ErrValidation)
	}
	return t, nil
}

func (s *Service) parseInstant(op, field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid %s: %w", op, field, response.ErrValidation)
	}
	return t.In(s.loc), nil
}

// response converters

func occurrenceToAPI(o *models.Occurrence) *api.OccurrenceResponse {
	resp := &api.OccurrenceResponse{
		ID:                  o.ID,
		ContractID:          o.ContractID,
		Date:                o.Date.Format("2006-01-02"),
		StartTime:           o.StartTime.Format("15:04"),
		DurationMinutes:     o.DurationMinutes,
		TravelBeforeMinutes: o.TravelBeforeMinutes,
		TravelAfterMinutes:  o.TravelAfterMinutes,
		Status:              string(o.Status),
		Notes:               o.Notes,
		Source:              string(o.Source),
	}
	if o.SourceTemplateID.Valid {
		id := o.SourceTemplateID.String
		resp.SourceTemplateID = &id
	}
	return resp
}

func occurrencesToAPI(occs []models.Occurrence) []api.OccurrenceResponse {
	result := make([]api.OccurrenceResponse, 0, len(occs))
	for i := range occs {
		result = append(result, *occurrenceToAPI(&occs[i]))
	}
	return result
}

func conflictToAPI(c *schedule.Conflict) api.Conflict {
	resp := api.Conflict{
		Kind:           string(c.Kind),
		OccurrenceID:   c.OccurrenceID,
		BlockedTimeID:  c.BlockedTimeID,
		Title:          c.Title,
		PlannedUnits:   c.PlannedUnits,
		AttemptedUnits: c.AttemptedUnits,
		Year:           c.Year,
		Month:          c.Month,
	}
	if !c.BlockStart.IsZero() {
		start, end := c.BlockStart, c.BlockEnd
		resp.BlockStart = &start
		resp.BlockEnd = &end
	}
	return resp
}

func conflictsToAPI(conflicts []schedule.Conflict) []api.Conflict {
	result := make([]api.Conflict, 0, len(conflicts))
	for i := range conflicts {
		result = append(result, conflictToAPI(&conflicts[i]))
	}
	return result
}

func templateToAPI(t *models.RecurrenceTemplate) *api.TemplateResponse {
	resp := &api.TemplateResponse{
		ID:                  t.ID,
		ContractID:          t.ContractID,
		StartDate:           t.StartDate.Format("2006-01-02"),
		StartTime:           t.StartTime.Format("15:04"),
		DurationMinutes:     t.DurationMinutes,
		TravelBeforeMinutes: t.TravelBeforeMinutes,
		TravelAfterMinutes:  t.TravelAfterMinutes,
		Weekdays:            t.Weekdays,
		Cadence:             string(t.Cadence),
		Notes:               t.Notes,
		Active:              t.Active,
	}
	if t.EndDate.Valid {
		end := t.EndDate.Time.Format("2006-01-02")
		resp.EndDate = &end
	}
	return resp
}

func contractToAPI(c *models.Contract) *api.ContractResponse {
	resp := &api.ContractResponse{
		ID:                  c.ID,
		StudentID:           c.StudentID,
		UnitDurationMinutes: c.UnitDurationMinutes,
		RatePerUnit:         c.RatePerUnit,
		StartDate:           c.StartDate.Format("2006-01-02"),
		Active:              c.Active,
		EnforceQuota:        c.EnforceQuota,
	}
	if c.EndDate.Valid {
		end := c.EndDate.Time.Format("2006-01-02")
		resp.EndDate = &end
	}
	return resp
}

func invoiceToAPI(inv *models.Invoice, items []models.InvoiceItem) *api.InvoiceResponse {
	resp := &api.InvoiceResponse{
		ID:          inv.ID,
		ContractID:  inv.ContractID,
		Status:      string(inv.Status),
		PeriodStart: inv.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   inv.PeriodEnd.Format("2006-01-02"),
		TotalAmount: inv.TotalAmount,
		Items:       make([]api.InvoiceItemResponse, 0, len(items)),
	}
	if inv.PaidAt.Valid {
		paidAt := inv.PaidAt.Time
		resp.PaidAt = &paidAt
	}
	for _, item := range items {
		itemResp := api.InvoiceItemResponse{
			ID:              item.ID,
			Date:            item.Date.Format("2006-01-02"),
			DurationMinutes: item.DurationMinutes,
			Description:     item.Description,
			Amount:          item.Amount,
		}
		if item.OccurrenceID.Valid {
			occID := item.OccurrenceID.String
			itemResp.OccurrenceID = &occID
		}
		resp.Items = append(resp.Items, itemResp)
	}
	return resp
}
