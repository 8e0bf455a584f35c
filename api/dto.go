package api

import "time"

// Dates travel as "2006-01-02", clock times as "15:04", instants as RFC3339.

type OccurrenceRequest struct {
	ContractID          string `json:"contract_id" validate:"required"`
	Date                string `json:"date" validate:"required"`
	StartTime           string `json:"start_time" validate:"required"`
	DurationMinutes     int    `json:"duration_minutes" validate:"required,min=1"`
	TravelBeforeMinutes int    `json:"travel_before_minutes" validate:"min=0"`
	TravelAfterMinutes  int    `json:"travel_after_minutes" validate:"min=0"`
	Notes               string `json:"notes"`
	Source              string `json:"source" validate:"omitempty,oneof=manual series booking"`
}

type OccurrenceResponse struct {
	ID                  string  `json:"id"`
	ContractID          string  `json:"contract_id"`
	Date                string  `json:"date"`
	StartTime           string  `json:"start_time"`
	DurationMinutes     int     `json:"duration_minutes"`
	TravelBeforeMinutes int     `json:"travel_before_minutes"`
	TravelAfterMinutes  int     `json:"travel_after_minutes"`
	Status              string  `json:"status"`
	Notes               string  `json:"notes,omitempty"`
	Source              string  `json:"source"`
	SourceTemplateID    *string `json:"source_template_id,omitempty"`
}

type Conflict struct {
	Kind           string     `json:"kind"`
	OccurrenceID   string     `json:"occurrence_id,omitempty"`
	BlockedTimeID  string     `json:"blocked_time_id,omitempty"`
	Title          string     `json:"title,omitempty"`
	BlockStart     *time.Time `json:"block_start,omitempty"`
	BlockEnd       *time.Time `json:"block_end,omitempty"`
	PlannedUnits   int        `json:"planned_units,omitempty"`
	AttemptedUnits int        `json:"attempted_units,omitempty"`
	Year           int        `json:"year,omitempty"`
	Month          int        `json:"month,omitempty"`
}

type ConflictCheckRequest struct {
	OccurrenceRequest
	ID          string `json:"id"`
	ExcludeSelf bool   `json:"exclude_self"`
}

type TemplateRequest struct {
	ContractID          string   `json:"contract_id" validate:"required"`
	StartDate           string   `json:"start_date" validate:"required"`
	EndDate             *string  `json:"end_date"`
	StartTime           string   `json:"start_time" validate:"required"`
	DurationMinutes     int      `json:"duration_minutes" validate:"required,min=1"`
	TravelBeforeMinutes int      `json:"travel_before_minutes" validate:"min=0"`
	TravelAfterMinutes  int      `json:"travel_after_minutes" validate:"min=0"`
	Weekdays            []string `json:"weekdays"`
	Cadence             string   `json:"cadence" validate:"required,oneof=weekly biweekly monthly"`
	Notes               string   `json:"notes"`
	Active              bool     `json:"active"`
}

type TemplateResponse struct {
	ID                  string   `json:"id"`
	ContractID          string   `json:"contract_id"`
	StartDate           string   `json:"start_date"`
	EndDate             *string  `json:"end_date,omitempty"`
	StartTime           string   `json:"start_time"`
	DurationMinutes     int      `json:"duration_minutes"`
	TravelBeforeMinutes int      `json:"travel_before_minutes"`
	TravelAfterMinutes  int      `json:"travel_after_minutes"`
	Weekdays            []string `json:"weekdays"`
	Cadence             string   `json:"cadence"`
	Notes               string   `json:"notes,omitempty"`
	Active              bool     `json:"active"`
}

type ExpandRequest struct {
	CheckConflicts bool   `json:"check_conflicts"`
	DryRun         bool   `json:"dry_run"`
	AsOf           string `json:"as_of"`
}

type ExpansionResponse struct {
	JobID     string               `json:"job_id"`
	Created   []OccurrenceResponse `json:"created"`
	Skipped   int                  `json:"skipped"`
	Conflicts []Conflict           `json:"conflicts,omitempty"`
	Preview   []OccurrenceResponse `json:"preview,omitempty"`
}

type SeriesUpdateResponse struct {
	Template  TemplateResponse `json:"template"`
	Updated   int              `json:"updated"`
	Deleted   int              `json:"deleted"`
	Created   int              `json:"created"`
	Conflicts []Conflict       `json:"conflicts,omitempty"`
}

type BlockedTimeRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
	Title string `json:"title"`
}

type BlockedTimeResponse struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Title string    `json:"title,omitempty"`
}

type ContractRequest struct {
	StudentID           string  `json:"student_id" validate:"required"`
	UnitDurationMinutes int     `json:"unit_duration_minutes" validate:"required,min=1"`
	RatePerUnit         float64 `json:"rate_per_unit" validate:"min=0"`
	StartDate           string  `json:"start_date" validate:"required"`
	EndDate             *string `json:"end_date"`
	Active              bool    `json:"active"`
	EnforceQuota        bool    `json:"enforce_quota"`
}

type ContractResponse struct {
	ID                  string  `json:"id"`
	StudentID           string  `json:"student_id"`
	UnitDurationMinutes int     `json:"unit_duration_minutes"`
	RatePerUnit         float64 `json:"rate_per_unit"`
	StartDate           string  `json:"start_date"`
	EndDate             *string `json:"end_date,omitempty"`
	Active              bool    `json:"active"`
	EnforceQuota        bool    `json:"enforce_quota"`
}

type MonthlyPlanRequest struct {
	Year         int `json:"year" validate:"required,min=2000,max=2100"`
	Month        int `json:"month" validate:"required,min=1,max=12"`
	PlannedUnits int `json:"planned_units" validate:"min=0"`
}

type MonthlyPlanResponse struct {
	ID           string `json:"id"`
	ContractID   string `json:"contract_id"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	PlannedUnits int    `json:"planned_units"`
}

type InvoiceCreateRequest struct {
	ContractID  string `json:"contract_id" validate:"required"`
	PeriodStart string `json:"period_start" validate:"required"`
	PeriodEnd   string `json:"period_end" validate:"required"`
}

type InvoiceItemResponse struct {
	ID              string  `json:"id"`
	OccurrenceID    *string `json:"occurrence_id,omitempty"`
	Date            string  `json:"date"`
	DurationMinutes int     `json:"duration_minutes"`
	Description     string  `json:"description"`
	Amount          float64 `json:"amount"`
}

type InvoiceResponse struct {
	ID          string                `json:"id"`
	ContractID  string                `json:"contract_id"`
	Status      string                `json:"status"`
	PeriodStart string                `json:"period_start"`
	PeriodEnd   string                `json:"period_end"`
	TotalAmount float64               `json:"total_amount"`
	PaidAt      *time.Time            `json:"paid_at,omitempty"`
	Items       []InvoiceItemResponse `json:"items"`
}

type SweepRequest struct {
	AsOf string `json:"as_of"`
}
