package schedule

import (
	"time"

	"tutorflow-service/internal/models"
)

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap: a session
// ending 10:00 never collides with one starting 10:00.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aEnd.After(bStart) && aStart.Before(bEnd)
}

// At combines a calendar date with a clock time into an instant in the
// date's location. Only hour and minute of the clock value are significant.
func At(date, clock time.Time) time.Time {
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), 0, 0,
		date.Location(),
	)
}

// EffectiveBlock is the occurrence's scheduled interval padded by its travel
// buffers. All overlap testing runs against effective blocks, never the bare
// lesson time.
func EffectiveBlock(occ *models.Occurrence) (time.Time, time.Time) {
	start := At(occ.Date, occ.StartTime)

	blockStart := start.Add(-time.Duration(occ.TravelBeforeMinutes) * time.Minute)
	blockEnd := start.Add(time.Duration(occ.DurationMinutes+occ.TravelAfterMinutes) * time.Minute)

	return blockStart, blockEnd
}

// StatusAt decides the initial lifecycle status of a fresh occurrence: taught
// if its effective block has already ended as of the given instant, planned
// otherwise. The same comparison drives the planned-to-taught sweep.
func StatusAt(occ *models.Occurrence, asOf time.Time) models.OccurrenceStatus {
	_, end := EffectiveBlock(occ)
	if !end.After(asOf) {
		return models.StatusTaught
	}

	return models.StatusPlanned
}

// SameClock compares two clock values by hour and minute, ignoring date and
// seconds. Start times act as series-matching keys, so exact equality on the
// stored instant would be too strict.
func SameClock(a, b time.Time) bool {
	return a.Hour() == b.Hour() && a.Minute() == b.Minute()
}
