package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veridian/comply/internal/models"
)

func TestChangeReason(t *testing.T) {
	snap := func(state models.OverallState, score float64) *models.ComplianceState {
		return &models.ComplianceState{OverallState: state, RiskScore: score}
	}

	tests := []struct {
		name     string
		havePrev bool
		prev     *models.ComplianceState
		next     *models.ComplianceState
		want     string
	}{
		{
			name: "first calculation always snapshots",
			next: snap(models.StateGreen, 0),
			want: "initial calculation",
		},
		{
			name:     "state transition",
			havePrev: true,
			prev:     snap(models.StateGreen, 10),
			next:     snap(models.StateRed, 80),
			want:     "state changed GREEN -> RED",
		},
		{
			name:     "score moves past the noise threshold",
			havePrev: true,
			prev:     snap(models.StateAmber, 32),
			next:     snap(models.StateAmber, 40),
			want:     "risk score moved 32.00 -> 40.00",
		},
		{
			name:     "score drop counts too",
			havePrev: true,
			prev:     snap(models.StateAmber, 40),
			next:     snap(models.StateAmber, 32),
			want:     "risk score moved 40.00 -> 32.00",
		},
		{
			name:     "delta exactly at threshold is noise",
			havePrev: true,
			prev:     snap(models.StateGreen, 10),
			next:     snap(models.StateGreen, 15),
			want:     "",
		},
		{
			name:     "jitter inside threshold is noise",
			havePrev: true,
			prev:     snap(models.StateGreen, 10),
			next:     snap(models.StateGreen, 12.5),
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, changeReason(tt.havePrev, tt.prev, tt.next, 5.0))
		})
	}
}
