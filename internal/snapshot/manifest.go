package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"widefield-mapper/internal/conditions"
	"widefield-mapper/internal/config"
	"widefield-mapper/internal/response"
)

// ManifestVersion is bumped when the manifest layout changes.
const ManifestVersion = 1

// Manifest records what a run read, what it produced and where (.json next
// to the snapshot).
type Manifest struct {
	Version     int       `json:"version"`
	RunID       string    `json:"run_id"`
	Created     time.Time `json:"created"`
	ToolVersion string    `json:"tool_version"`

	Config config.Config `json:"config"`

	// Output paths (relative to the manifest file)
	SnapshotPath string `json:"snapshot,omitempty"`
	OverlayPath  string `json:"overlay,omitempty"`
	MetricsPath  string `json:"metrics,omitempty"`

	Trials     int                `json:"trials"`
	Degenerate int                `json:"degenerate_pixels"`
	Conditions []ConditionSummary `json:"conditions"`
}

// ConditionSummary is one condition's entry in the manifest.
type ConditionSummary struct {
	Label  conditions.Label `json:"label"`
	Reps   int              `json:"repetitions"`
	Height int              `json:"height"`
	Width  int              `json:"width"`
}

// NewManifest creates a manifest for a finished run.
func NewManifest(runID, toolVersion string, cfg config.Config, maps response.Maps) *Manifest {
	m := &Manifest{
		Version:     ManifestVersion,
		RunID:       runID,
		Created:     time.Now().UTC(),
		ToolVersion: toolVersion,
		Config:      cfg,
	}
	for _, l := range maps.Labels() {
		rm := maps[l]
		m.Conditions = append(m.Conditions, ConditionSummary{Label: l, Reps: rm.Reps, Height: rm.Height, Width: rm.Width})
	}
	return m
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// WriteManifest saves m to path as indented JSON.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetOutputs records the output files relative to the manifest. Empty paths
// are left unset.
func (m *Manifest) SetOutputs(manifestPath, snapshot, overlay, metrics string) {
	m.SnapshotPath = relativeTo(manifestPath, snapshot)
	m.OverlayPath = relativeTo(manifestPath, overlay)
	m.MetricsPath = relativeTo(manifestPath, metrics)
}

// Snapshot returns the absolute path to the snapshot the manifest names.
func (m *Manifest) Snapshot(manifestPath string) string {
	return resolveFrom(manifestPath, m.SnapshotPath)
}

func relativeTo(manifestPath, p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	dir, err := filepath.Abs(filepath.Dir(manifestPath))
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return p
	}
	return rel
}

func resolveFrom(manifestPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(manifestPath), p)
}
