package schedule

import (
	"testing"
	"time"

	"tutorflow-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clock(h, min int) time.Time {
	return time.Date(0, time.January, 1, h, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	base := date(2025, time.March, 10)

	tests := []struct {
		name   string
		aStart time.Time
		aEnd   time.Time
		bStart time.Time
		bEnd   time.Time
		want   bool
	}{
		{
			name:   "disjoint",
			aStart: base.Add(9 * time.Hour), aEnd: base.Add(10 * time.Hour),
			bStart: base.Add(11 * time.Hour), bEnd: base.Add(12 * time.Hour),
			want: false,
		},
		{
			name:   "touching endpoints do not overlap",
			aStart: base.Add(9 * time.Hour), aEnd: base.Add(10 * time.Hour),
			bStart: base.Add(10 * time.Hour), bEnd: base.Add(11 * time.Hour),
			want: false,
		},
		{
			name:   "one minute into the other",
			aStart: base.Add(9 * time.Hour), aEnd: base.Add(10*time.Hour + time.Minute),
			bStart: base.Add(10 * time.Hour), bEnd: base.Add(11 * time.Hour),
			want: true,
		},
		{
			name:   "contained",
			aStart: base.Add(9 * time.Hour), aEnd: base.Add(12 * time.Hour),
			bStart: base.Add(10 * time.Hour), bEnd: base.Add(11 * time.Hour),
			want: true,
		},
		{
			name:   "identical",
			aStart: base.Add(9 * time.Hour), aEnd: base.Add(10 * time.Hour),
			bStart: base.Add(9 * time.Hour), bEnd: base.Add(10 * time.Hour),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			// overlap is symmetric
			assert.Equal(t, tt.want, Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd))
		})
	}
}

func TestEffectiveBlock(t *testing.T) {
	occ := &models.Occurrence{
		Date:                date(2025, time.March, 10),
		StartTime:           clock(14, 0),
		DurationMinutes:     60,
		TravelBeforeMinutes: 15,
		TravelAfterMinutes:  10,
	}

	start, end := EffectiveBlock(occ)

	assert.Equal(t, time.Date(2025, time.March, 10, 13, 45, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.March, 10, 15, 10, 0, 0, time.UTC), end)
}

func TestEffectiveBlock_NoTravel(t *testing.T) {
	occ := &models.Occurrence{
		Date:            date(2025, time.March, 10),
		StartTime:       clock(9, 30),
		DurationMinutes: 45,
	}

	start, end := EffectiveBlock(occ)

	assert.Equal(t, time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.March, 10, 10, 15, 0, 0, time.UTC), end)
}

func TestStatusAt(t *testing.T) {
	occ := &models.Occurrence{
		Date:               date(2025, time.March, 10),
		StartTime:          clock(14, 0),
		DurationMinutes:    60,
		TravelAfterMinutes: 10,
	}
	// effective block ends 15:10

	blockEnd := time.Date(2025, time.March, 10, 15, 10, 0, 0, time.UTC)

	assert.Equal(t, models.StatusPlanned, StatusAt(occ, blockEnd.Add(-time.Minute)))
	assert.Equal(t, models.StatusTaught, StatusAt(occ, blockEnd))
	assert.Equal(t, models.StatusTaught, StatusAt(occ, blockEnd.Add(time.Minute)))
}

func TestSameClock(t *testing.T) {
	assert.True(t, SameClock(clock(14, 30), time.Date(2025, time.June, 1, 14, 30, 59, 0, time.UTC)))
	assert.False(t, SameClock(clock(14, 30), clock(14, 31)))
	assert.False(t, SameClock(clock(14, 30), clock(15, 30)))
}

func TestAt_UsesDateLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	d := time.Date(2025, time.March, 10, 0, 0, 0, 0, loc)
	got := At(d, clock(14, 0))

	assert.Equal(t, time.Date(2025, time.March, 10, 14, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}
