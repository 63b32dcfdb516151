package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobConfigRoundTrip(t *testing.T) {
	cfg := JobConfig{"entity_id": "e-1", "max_age_days": "7"}

	val, err := cfg.Value()
	require.NoError(t, err)

	var scanned JobConfig
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, cfg, scanned)
}

func TestJobConfigNil(t *testing.T) {
	var cfg JobConfig

	val, err := cfg.Value()
	require.NoError(t, err)
	assert.Nil(t, val)

	var scanned JobConfig
	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
}

func TestJobConfigEntityID(t *testing.T) {
	assert.Equal(t, "e-1", JobConfig{"entity_id": "e-1"}.EntityID())
	assert.Equal(t, "", JobConfig{}.EntityID())
	assert.Equal(t, "", JobConfig(nil).EntityID())
}

func TestJobConfigMaxAge(t *testing.T) {
	fallback := 30 * 24 * time.Hour

	tests := []struct {
		name string
		cfg  JobConfig
		want time.Duration
	}{
		{"set", JobConfig{"max_age_days": "7"}, 7 * 24 * time.Hour},
		{"missing", JobConfig{}, fallback},
		{"not a number", JobConfig{"max_age_days": "soon"}, fallback},
		{"zero", JobConfig{"max_age_days": "0"}, fallback},
		{"negative", JobConfig{"max_age_days": "-3"}, fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.MaxAge(fallback))
		})
	}
}
