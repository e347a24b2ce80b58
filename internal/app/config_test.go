package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cipipe/internal/pipeline"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	steps := []pipeline.Step{{Module: "eval-context"}}

	testCases := []struct {
		name      string
		cfg       Config
		wantError string
	}{
		{name: "valid", cfg: Config{Steps: steps, Retries: 2, HealthcheckPort: 8080}},
		{name: "no steps", cfg: Config{}, wantError: "Steps is a required"},
		{name: "negative retries", cfg: Config{Steps: steps, Retries: -1}, wantError: "retries must not be negative"},
		{name: "port out of range", cfg: Config{Steps: steps, HealthcheckPort: 70000}, wantError: "out of range"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := NewConfig(tc.cfg)

			if tc.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cfg, *cfg)
		})
	}
}
