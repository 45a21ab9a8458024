package record

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// manifestFile is written once per completed session, next to the videos.
const manifestFile = "recording_info.json"

// Manifest summarizes one completed recording session.
type Manifest struct {
	Timestamp       string           `json:"timestamp"`
	DurationSeconds float64          `json:"duration_seconds"`
	Camera1         ManifestCamera   `json:"camera1"`
	Camera2         ManifestCamera   `json:"camera2"`
	FPS             int              `json:"fps"`
	OutputDirectory string           `json:"output_directory"`
	Frames          map[string]int64 `json:"frames"`
}

// ManifestCamera records one stream's device identity and output file.
type ManifestCamera struct {
	Device     string `json:"device"`
	Resolution string `json:"resolution"`
	File       string `json:"file"`
}

// write persists the manifest into the session directory.
func (m Manifest) write(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644)
}

// ReadManifest loads a session manifest from a session directory.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}
