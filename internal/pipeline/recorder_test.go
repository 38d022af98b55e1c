package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pickwise/internal/config"
)

func TestRecorderHashesStable(t *testing.T) {
	cfg, err := config.LoadWithDefaults("")
	require.NoError(t, err)

	first, err := NewRecorder("totals-v2", cfg.Sports)
	require.NoError(t, err)
	second, err := NewRecorder("totals-v2", cfg.Sports)
	require.NoError(t, err)

	assert.Equal(t, first.ModelHash(), second.ModelHash())
	assert.Equal(t, first.ConfigHash(), second.ConfigHash())
}

func TestRecorderHashesTrackInputs(t *testing.T) {
	cfg, err := config.LoadWithDefaults("")
	require.NoError(t, err)

	base, err := NewRecorder("totals-v2", cfg.Sports)
	require.NoError(t, err)

	bumped, err := NewRecorder("totals-v3", cfg.Sports)
	require.NoError(t, err)
	assert.NotEqual(t, base.ModelHash(), bumped.ModelHash())
	assert.Equal(t, base.ConfigHash(), bumped.ConfigHash())

	altered := make(map[string]config.SportConfig, len(cfg.Sports))
	for name, sport := range cfg.Sports {
		altered[name] = sport
	}
	sport := altered["basketball"]
	sport.ClampZ = 2.5
	altered["basketball"] = sport

	retuned, err := NewRecorder("totals-v2", altered)
	require.NoError(t, err)
	assert.NotEqual(t, base.ConfigHash(), retuned.ConfigHash())
	assert.Equal(t, base.ModelHash(), retuned.ModelHash())
}

func TestStampCopiesTriggers(t *testing.T) {
	cfg, err := config.LoadWithDefaults("")
	require.NoError(t, err)
	recorder, err := NewRecorder("totals-v2", cfg.Sports)
	require.NoError(t, err)

	triggers := []string{LayerBaselineClamp}
	stamp := recorder.Stamp(triggers, time.Now().UTC())
	triggers[0] = "mutated"

	assert.Equal(t, []string{LayerBaselineClamp}, stamp.Triggers)
	assert.Equal(t, recorder.ModelHash(), stamp.ModelHash)
	assert.Equal(t, recorder.ConfigHash(), stamp.ConfigHash)
}
