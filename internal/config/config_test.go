package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widefield-mapper/internal/stage"
)

const sampleConfig = `{
	"RecordingFolder": "/data/ID543",
	"TIFF": "tiffs/",
	"Triggers": "triggers.csv",
	"Conditions": "conditions.json",
	"TriggerFR": 1000,
	"TriggerDelay": 0,
	"RecordingFR": 5,
	"EpochStart": -1000,
	"EpochEnd": 4000,
	"BaselineFrames": 5,
	"ZscoreThreshold": 2,
	"ResponseStart": 5,
	"ResponseStop": 10
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func validConfig() Config {
	cfg := Default()
	cfg.TriggerFrameRate = 1000
	cfg.RecordingFrameRate = 5
	cfg.EpochStartMs = -1000
	cfg.EpochEndMs = 4000
	cfg.BaselineFrames = 5
	cfg.ResponseStart = 5
	cfg.ResponseStop = 10
	return cfg
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.CalibrationTriggers)
	assert.Equal(t, 1000.0, cfg.DebounceMs)
	assert.Equal(t, 2, cfg.DownsampleFactor)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, 25, cfg.TrialLengthFrames())

	start, end := cfg.EpochOffsets()
	assert.Equal(t, -5, start)
	assert.Equal(t, 20, end)
}

func TestLoadResolvesPaths(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "/data/ID543/tiffs", cfg.RecordingPath())
	assert.Equal(t, "/data/ID543/triggers.csv", cfg.TriggersPath())
	assert.Equal(t, "/data/ID543/conditions.json", cfg.ConditionsPath())
	assert.Equal(t, "", cfg.BackgroundPath())
	assert.Equal(t, "tiffs/", cfg.Recording, "stored path is left as written")
}

func TestLoadRejectsBadJSON(t *testing.T) {
	_, err := Load(writeConfig(t, `{"RecordingFR": "fast"}`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero frame rate", func(c *Config) { c.RecordingFrameRate = 0 }},
		{"zero trigger rate", func(c *Config) { c.TriggerFrameRate = 0 }},
		{"inverted epoch", func(c *Config) { c.EpochEndMs = c.EpochStartMs }},
		{"baseline longer than epoch", func(c *Config) { c.BaselineFrames = 26 }},
		{"no baseline", func(c *Config) { c.BaselineFrames = 0 }},
		{"window past epoch", func(c *Config) { c.ResponseStop = 26 }},
		{"empty window", func(c *Config) { c.ResponseStop = c.ResponseStart }},
		{"negative calibration", func(c *Config) { c.CalibrationTriggers = -1 }},
		{"uneven rounding", func(c *Config) {
			// -2.5 and 7.5 frames round away from zero to -3 and 8: 11 frames, not 10
			c.RecordingFrameRate = 1
			c.EpochStartMs = -2500
			c.EpochEndMs = 7500
			c.BaselineFrames = 1
			c.ResponseStart = 0
			c.ResponseStop = 1
		}},
	}

	require.NoError(t, validConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, stage.ErrMalformedInput))
			assert.Equal(t, stage.Config, stage.In(err))
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"WIDEFIELD_RECORDING_FOLDER": "/mnt/rig2",
		"WIDEFIELD_WORKERS":          "3",
		"WIDEFIELD_STRICT":           "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := validConfig()
	cfg.Triggers = "triggers.csv"
	out, err := cfg.ApplyEnv(lookup)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Workers)
	assert.True(t, out.StrictStatistics)
	assert.Equal(t, "/mnt/rig2/triggers.csv", out.TriggersPath())
	assert.Equal(t, "", cfg.RecordingFolder, "receiver is not modified")

	env["WIDEFIELD_WORKERS"] = "many"
	_, err = cfg.ApplyEnv(lookup)
	assert.True(t, errors.Is(err, stage.ErrMalformedInput))
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.Recording = "stack.fits"
	path := filepath.Join(t.TempDir(), "out", DefaultFile)
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
