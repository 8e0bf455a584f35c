package models

import (
	"database/sql"
	"time"
)

type OccurrenceStatus string

const (
	StatusPlanned   OccurrenceStatus = "planned"
	StatusTaught    OccurrenceStatus = "taught"
	StatusCancelled OccurrenceStatus = "cancelled"
	StatusPaid      OccurrenceStatus = "paid"
)

type OccurrenceSource string

const (
	SourceManual  OccurrenceSource = "manual"
	SourceSeries  OccurrenceSource = "series"
	SourceBooking OccurrenceSource = "booking"
)

// Occurrence is one concrete, dated tutoring session. Its effective time
// block is [start - travel_before, start + duration + travel_after).
type Occurrence struct {
	ID                  string           `db:"id"`
	ContractID          string           `db:"contract_id"`
	Date                time.Time        `db:"date"`
	StartTime           time.Time        `db:"start_time"`
	DurationMinutes     int              `db:"duration_minutes"`
	TravelBeforeMinutes int              `db:"travel_before_minutes"`
	TravelAfterMinutes  int              `db:"travel_after_minutes"`
	Status              OccurrenceStatus `db:"status"`
	Notes               string           `db:"notes"`
	Source              OccurrenceSource `db:"source"`
	SourceTemplateID    sql.NullString   `db:"source_template_id"`
}

type Cadence string

const (
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly"
	CadenceMonthly  Cadence = "monthly"
)

// RecurrenceTemplate expands into occurrences. Weekdays are stored as a
// TEXT[] of weekday names ("mon", "monday", "1" are all accepted).
type RecurrenceTemplate struct {
	ID                  string       `db:"id"`
	ContractID          string       `db:"contract_id"`
	StartDate           time.Time    `db:"start_date"`
	EndDate             sql.NullTime `db:"end_date"`
	StartTime           time.Time    `db:"start_time"`
	DurationMinutes     int          `db:"duration_minutes"`
	TravelBeforeMinutes int          `db:"travel_before_minutes"`
	TravelAfterMinutes  int          `db:"travel_after_minutes"`
	Weekdays            []string     `db:"weekdays"`
	Cadence             Cadence      `db:"cadence"`
	Notes               string       `db:"notes"`
	Active              bool         `db:"active"`
}

// Contract defines the billing granularity: an occurrence's duration converts
// to units of unit_duration_minutes, each billed at rate_per_unit.
type Contract struct {
	ID                  string       `db:"id"`
	StudentID           string       `db:"student_id"`
	UnitDurationMinutes int          `db:"unit_duration_minutes"`
	RatePerUnit         float64      `db:"rate_per_unit"`
	StartDate           time.Time    `db:"start_date"`
	EndDate             sql.NullTime `db:"end_date"`
	Active              bool         `db:"active"`
	EnforceQuota        bool         `db:"enforce_quota"`
}

// MonthlyPlan is the committed unit count for one contract month, unique per
// (contract, year, month). Quota checks sum these cumulatively.
type MonthlyPlan struct {
	ID           string `db:"id"`
	ContractID   string `db:"contract_id"`
	Year         int    `db:"year"`
	Month        int    `db:"month"`
	PlannedUnits int    `db:"planned_units"`
}

// BlockedTime is a conflict source only, never billed. May span several days.
type BlockedTime struct {
	ID    string    `db:"id"`
	Start time.Time `db:"start_ts"`
	End   time.Time `db:"end_ts"`
	Title string    `db:"title"`
}

type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceSent  InvoiceStatus = "sent"
	InvoicePaid  InvoiceStatus = "paid"
)

type Invoice struct {
	ID          string        `db:"id"`
	ContractID  string        `db:"contract_id"`
	Status      InvoiceStatus `db:"status"`
	PeriodStart time.Time     `db:"period_start"`
	PeriodEnd   time.Time     `db:"period_end"`
	TotalAmount float64       `db:"total_amount"`
	PaidAt      sql.NullTime  `db:"paid_at"`
}

// InvoiceItem freezes one occurrence's billing data at invoicing time. The
// occurrence reference is nullable so the item survives occurrence deletion;
// the stored amount stays authoritative even if the contract rate changes.
type InvoiceItem struct {
	ID              string         `db:"id"`
	InvoiceID       string         `db:"invoice_id"`
	OccurrenceID    sql.NullString `db:"occurrence_id"`
	Date            time.Time      `db:"date"`
	DurationMinutes int            `db:"duration_minutes"`
	Description     string         `db:"description"`
	Amount          float64        `db:"amount"`
}
