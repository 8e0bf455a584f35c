package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tutorflow-service/internal/models"

	"github.com/google/uuid"
)

type ExpandStore interface {
	OccurrenceExistsAt(ctx context.Context, contractID string, date, startTime time.Time) (bool, error)
	CreateOccurrence(ctx context.Context, occ *models.Occurrence) (string, error)
}

type ContractReader interface {
	GetContract(ctx context.Context, id string) (*models.Contract, error)
}

type ExpansionResult struct {
	JobID     string
	Created   []models.Occurrence
	Skipped   int
	Conflicts []Conflict
	// Preview holds the would-be occurrences of a dry run; nothing is
	// persisted and no conflict detection happens in that mode.
	Preview []models.Occurrence
}

// RecurrenceExpander turns a template into concrete dated occurrences.
type RecurrenceExpander struct {
	store     ExpandStore
	contracts ContractReader
	detector  *ConflictDetector
}

func NewRecurrenceExpander(store ExpandStore, contracts ContractReader, detector *ConflictDetector) *RecurrenceExpander {
	return &RecurrenceExpander{store: store, contracts: contracts, detector: detector}
}

// Expand iterates day by day from the template start to its effective end
// (explicit end date, else contract end date, else start plus one year) and
// creates an occurrence for every date the cadence predicate accepts, unless
// one already exists for (contract, date, start time). Conflicts on created
// occurrences are accumulated into the result, never blocking creation.
func (e *RecurrenceExpander) Expand(ctx context.Context, tpl *models.RecurrenceTemplate, asOf time.Time, checkConflicts, dryRun bool) (*ExpansionResult, error) {
	const op = "schedule.RecurrenceExpander.Expand"

	result := &ExpansionResult{JobID: uuid.NewString()}

	if !tpl.Active {
		return result, nil
	}

	weekdays := ParseWeekdays(tpl.Weekdays)
	if len(weekdays) == 0 {
		return result, nil
	}

	end := tpl.StartDate.AddDate(1, 0, 0)
	if tpl.EndDate.Valid {
		end = tpl.EndDate.Time
	} else {
		contract, err := e.contracts.GetContract(ctx, tpl.ContractID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if contract.EndDate.Valid {
			end = contract.EndDate.Time
		}
	}

	for d := tpl.StartDate; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !matchesCadence(tpl, weekdays, d) {
			continue
		}

		exists, err := e.store.OccurrenceExistsAt(ctx, tpl.ContractID, d, tpl.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if exists {
			result.Skipped++
			continue
		}

		occ := models.Occurrence{
			ContractID:          tpl.ContractID,
			Date:                d,
			StartTime:           tpl.StartTime,
			DurationMinutes:     tpl.DurationMinutes,
			TravelBeforeMinutes: tpl.TravelBeforeMinutes,
			TravelAfterMinutes:  tpl.TravelAfterMinutes,
			Notes:               tpl.Notes,
			Source:              models.SourceSeries,
		}
		occ.SourceTemplateID.String = tpl.ID
		occ.SourceTemplateID.Valid = true
		occ.Status = StatusAt(&occ, asOf)

		if dryRun {
			result.Preview = append(result.Preview, occ)
			continue
		}

		id, err := e.store.CreateOccurrence(ctx, &occ)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		occ.ID = id
		result.Created = append(result.Created, occ)

		if checkConflicts {
			conflicts, err := e.detector.CheckConflicts(ctx, &occ, true)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			result.Conflicts = append(result.Conflicts, conflicts...)
		}
	}

	return result, nil
}

// MatchesPattern reports whether a date belongs to the template's recurrence
// pattern. The series matcher reuses this predicate so that series membership
// and expansion can never disagree.
func MatchesPattern(tpl *models.RecurrenceTemplate, date time.Time) bool {
	return matchesCadence(tpl, ParseWeekdays(tpl.Weekdays), date)
}

func matchesCadence(tpl *models.RecurrenceTemplate, weekdays map[time.Weekday]struct{}, date time.Time) bool {
	if _, ok := weekdays[date.Weekday()]; !ok {
		return false
	}

	switch tpl.Cadence {
	case models.CadenceWeekly:
		return true
	case models.CadenceBiweekly:
		// Weeks are counted by calendar-Monday crossings from the start date,
		// not raw day-count/7, so the parity stays stable no matter which
		// weekday the template starts on.
		weeks := int(mondayOf(date).Sub(mondayOf(tpl.StartDate)).Hours() / 24 / 7)
		return weeks%2 == 0
	case models.CadenceMonthly:
		// A monthly template keeps both constraints: the anchor day of month
		// (clamped to short months) AND the weekday set. Months where the
		// anchor day misses every active weekday produce nothing.
		day := tpl.StartDate.Day()
		if last := daysInMonth(date); day > last {
			day = last
		}
		return date.Day() == day
	default:
		return false
	}
}

func mondayOf(t time.Time) time.Time {
	shift := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -shift)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// ParseWeekdays converts the stored weekday names into a lookup set, ignoring
// entries it cannot parse.
func ParseWeekdays(names []string) map[time.Weekday]struct{} {
	set := make(map[time.Weekday]struct{}, len(names))
	for _, n := range names {
		if wd, ok := parseWeekdayFlexible(n); ok {
			set[wd] = struct{}{}
		}
	}
	return set
}

// parseWeekdayFlexible accepts the spellings that tend to end up in a TEXT[]:
// "mon", "monday", "Mon", "1", "0" and so on (0 = Sunday, 7 = Sunday too).
func parseWeekdayFlexible(s string) (time.Weekday, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n >= 0 && n <= 6 {
			return time.Weekday(n), true
		}
		if n == 7 {
			return time.Sunday, true
		}
		return 0, false
	}

	switch s {
	case "sun", "sunday":
		return time.Sunday, true
	case "mon", "monday":
		return time.Monday, true
	case "tue", "tues", "tuesday":
		return time.Tuesday, true
	case "wed", "wednesday":
		return time.Wednesday, true
	case "thu", "thur", "thursday":
		return time.Thursday, true
	case "fri", "friday":
		return time.Friday, true
	case "sat", "saturday":
		return time.Saturday, true
	default:
		return 0, false
	}
}
