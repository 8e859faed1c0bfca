// Package config provides the immutable run configuration. Keys in the JSON
// file follow config_widefield.json as written by the acquisition rig.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"widefield-mapper/internal/stage"
)

// DefaultFile is the config file looked up when no path is given.
const DefaultFile = "config_widefield.json"

// Config holds every named parameter of a run. It is passed by value into
// each stage and never modified after Load.
type Config struct {
	// Input locations; relative paths resolve against RecordingFolder.
	RecordingFolder string `json:"RecordingFolder"`
	Recording       string `json:"TIFF"`
	Triggers        string `json:"Triggers"`
	Conditions      string `json:"Conditions"`
	Background      string `json:"Background,omitempty"`

	TriggerFrameRate   float64 `json:"TriggerFR"`    // trace samples per second
	TriggerDelayMs     float64 `json:"TriggerDelay"` // trigger-to-stimulus hardware lag
	RecordingFrameRate float64 `json:"RecordingFR"`  // frames per second
	EpochStartMs       float64 `json:"EpochStart"`   // relative to onset, usually negative
	EpochEndMs         float64 `json:"EpochEnd"`
	BaselineFrames     int     `json:"BaselineFrames"`
	ZscoreThreshold    float64 `json:"ZscoreThreshold"`
	ResponseStart      int     `json:"ResponseStart"` // inclusive frame
	ResponseStop       int     `json:"ResponseStop"`  // exclusive frame

	CalibrationTriggers int     `json:"CalibrationTriggers"`
	DebounceMs          float64 `json:"DebounceMs"`
	ConditionColumn     int     `json:"ConditionColumn"`
	DownsampleFactor    int     `json:"DownsampleFactor"`
	Workers             int     `json:"Workers"`
	StrictStatistics    bool    `json:"StrictStatistics"`
}

// Default returns a Config with the protocol defaults filled in.
func Default() Config {
	return Config{
		ZscoreThreshold:     2,
		CalibrationTriggers: 3,
		DebounceMs:          1000,
		DownsampleFactor:    2,
		Workers:             runtime.NumCPU(),
	}
}

// Load reads a config file and applies defaults for absent keys. The
// result is validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg = cfg.clamped()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv returns a copy with environment overrides applied. lookup is
// normally os.LookupEnv after godotenv has populated the process env.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup("WIDEFIELD_RECORDING_FOLDER"); ok && v != "" {
		c.RecordingFolder = v
	}
	if v, ok := lookup("WIDEFIELD_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, stage.Errorf(stage.Config, stage.ErrMalformedInput, "WIDEFIELD_WORKERS=%q is not an integer", v)
		}
		c.Workers = n
	}
	if v, ok := lookup("WIDEFIELD_STRICT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, stage.Errorf(stage.Config, stage.ErrMalformedInput, "WIDEFIELD_STRICT=%q is not a boolean", v)
		}
		c.StrictStatistics = b
	}
	c = c.clamped()
	return c, c.Validate()
}

func (c Config) clamped() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

// RecordingPath is the TIFF directory or FITS cube to load.
func (c Config) RecordingPath() string { return c.resolve(c.Recording) }

// TriggersPath is the trigger CSV.
func (c Config) TriggersPath() string { return c.resolve(c.Triggers) }

// ConditionsPath is the condition label file.
func (c Config) ConditionsPath() string { return c.resolve(c.Conditions) }

// BackgroundPath is the anatomical image, or "" when none is configured.
func (c Config) BackgroundPath() string { return c.resolve(c.Background) }

func (c Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.RecordingFolder == "" {
		return p
	}
	return filepath.Join(c.RecordingFolder, p)
}

// TrialLengthFrames is the frame count of every epoch.
func (c Config) TrialLengthFrames() int {
	return int(math.Round((c.EpochEndMs - c.EpochStartMs) / 1000 * c.RecordingFrameRate))
}

// EpochOffsets returns the epoch start and end relative to the rounded onset frame.
func (c Config) EpochOffsets() (start, end int) {
	start = int(math.Round(c.EpochStartMs / 1000 * c.RecordingFrameRate))
	end = int(math.Round(c.EpochEndMs / 1000 * c.RecordingFrameRate))
	return start, end
}

// Validate checks the stated parameter invariants.
func (c Config) Validate() error {
	bad := func(format string, args ...interface{}) error {
		return stage.Errorf(stage.Config, stage.ErrMalformedInput, format, args...)
	}

	if c.RecordingFrameRate <= 0 {
		return bad("RecordingFR must be positive, got %g", c.RecordingFrameRate)
	}
	if c.TriggerFrameRate <= 0 {
		return bad("TriggerFR must be positive, got %g", c.TriggerFrameRate)
	}
	if c.EpochEndMs <= c.EpochStartMs {
		return bad("EpochEnd (%g ms) must be after EpochStart (%g ms)", c.EpochEndMs, c.EpochStartMs)
	}
	if c.CalibrationTriggers < 0 {
		return bad("CalibrationTriggers must be >= 0, got %d", c.CalibrationTriggers)
	}
	if c.DebounceMs < 0 {
		return bad("DebounceMs must be >= 0, got %g", c.DebounceMs)
	}
	if c.DownsampleFactor < 1 {
		return bad("DownsampleFactor must be >= 1, got %d", c.DownsampleFactor)
	}
	if c.ConditionColumn < 0 {
		return bad("ConditionColumn must be >= 0, got %d", c.ConditionColumn)
	}

	length := c.TrialLengthFrames()
	if length < 1 {
		return bad("epoch of %g ms at %g fps is shorter than one frame", c.EpochEndMs-c.EpochStartMs, c.RecordingFrameRate)
	}
	if start, end := c.EpochOffsets(); end-start != length {
		return bad("epoch offsets [%d,%d) round to %d frames, expected %d", start, end, end-start, length)
	}
	if c.BaselineFrames < 1 || c.BaselineFrames > length {
		return bad("BaselineFrames must be in [1,%d], got %d", length, c.BaselineFrames)
	}
	if c.ResponseStart < 0 || c.ResponseStop <= c.ResponseStart || c.ResponseStop > length {
		return bad("response window [%d,%d) must lie within [0,%d)", c.ResponseStart, c.ResponseStop, length)
	}
	return nil
}
