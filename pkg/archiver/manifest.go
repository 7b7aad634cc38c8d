package archiver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultManifestPath is where AddManifest writes the manifest when no path is given.
const DefaultManifestPath = "info.json"

// ManifestEntry records one logical file added to the archive.
// It serializes in the format of the legacy export manifest ("info.json").
type ManifestEntry struct {
	Filename    string    `json:"filename"`
	CreatedOn   time.Time `json:"createdOn"`
	ContentType *string   `json:"contentType,omitempty"`
}

// Manifest is the ordered list of entries added to an archive.
type Manifest struct {
	Files []ManifestEntry `json:"files"`
}

// Encode serializes the manifest as indented JSON.
func (m Manifest) Encode() ([]byte, error) {
	files := m.Files
	if files == nil {
		files = []ManifestEntry{}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(Manifest{Files: files}); err != nil {
		return nil, fmt.Errorf("failed to encode manifest as JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseManifest reads a manifest produced by Encode.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m, nil
}
