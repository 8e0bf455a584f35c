package billing

import (
	"testing"

	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnits(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		unit     int
		want     float64
	}{
		{"exact multiple", 90, 45, 2},
		{"single unit", 45, 45, 1},
		{"fractional", 60, 45, 60.0 / 45.0},
		{"less than one unit", 30, 60, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Units(tt.duration, tt.unit)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestUnits_Invalid(t *testing.T) {
	_, err := Units(0, 45)
	assert.ErrorIs(t, err, response.ErrValidation)

	_, err = Units(-30, 45)
	assert.ErrorIs(t, err, response.ErrValidation)

	_, err = Units(45, 0)
	assert.ErrorIs(t, err, response.ErrValidation)
}

func TestAmount(t *testing.T) {
	contract := &models.Contract{UnitDurationMinutes: 45, RatePerUnit: 12.00}

	tests := []struct {
		name     string
		duration int
		want     float64
	}{
		{"two units", 90, 24.00},
		{"one unit", 45, 12.00},
		{"fractional units round once", 60, 16.00},
		{"repeating decimal", 50, 13.33}, // 50/45 * 12 = 13.333...
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ := &models.Occurrence{DurationMinutes: tt.duration}
			got, err := Amount(occ, contract)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmount_ZeroRate(t *testing.T) {
	contract := &models.Contract{UnitDurationMinutes: 45, RatePerUnit: 0}
	occ := &models.Occurrence{DurationMinutes: 90}

	got, err := Amount(occ, contract)
	require.NoError(t, err)
	assert.Zero(t, got)
}
