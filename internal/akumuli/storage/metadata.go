package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/embeddb/akumuli/internal/akumuli/akuerr"
)

// metadataVersion is bumped whenever the on-disk metadata format changes
// shape, so a future Storage.Open can branch on it instead of guessing
// (SPEC_FULL "SUPPLEMENTED FEATURES: metadata file versioning").
const metadataVersion = 1

// volumeEntry is one row of the metadata file's volume table: spec §6
// names "(index, absolute_path) rows".
type volumeEntry struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// metadata is the <metapath>/<name>.akumuli file's decoded contents (spec
// §6 "Storage layout"). ID stamps a fresh UUID per instance the same way
// the teacher stamps node/shard identity with uuid.New() (DESIGN.md).
type metadata struct {
	Version   int           `json:"version"`
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Volumes   []volumeEntry `json:"volumes"`
}

func metadataPath(metaDir, name string) string {
	return filepath.Join(metaDir, name+".akumuli")
}

// loadMetadata reads and decodes an existing metadata file.
func loadMetadata(path string) (*metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, akuerr.Wrap(akuerr.General, "read metadata: "+err.Error())
	}
	var m metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, akuerr.Wrap(akuerr.BadData, "decode metadata: "+err.Error())
	}
	return &m, nil
}

// createMetadata builds a fresh metadata record for a new instance with
// numVolumes pages, rooted at volDir, and persists it.
func createMetadata(path, volDir, name string, numVolumes int) (*metadata, error) {
	m := &metadata{
		Version:   metadataVersion,
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Volumes:   make([]volumeEntry, numVolumes),
	}
	for i := 0; i < numVolumes; i++ {
		abs, err := filepath.Abs(filepath.Join(volDir, fmt.Sprintf("%s_%d.volume", name, i)))
		if err != nil {
			return nil, akuerr.Wrap(akuerr.General, "resolve volume path: "+err.Error())
		}
		m.Volumes[i] = volumeEntry{Index: i, Path: abs}
	}
	if err := saveMetadata(path, m); err != nil {
		return nil, err
	}
	return m, nil
}

// saveMetadata writes m to path, via a temp-file-then-rename so a crash
// mid-write never leaves a truncated metadata file behind.
func saveMetadata(path string, m *metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return akuerr.Wrap(akuerr.General, "create metadata directory: "+err.Error())
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return akuerr.Wrap(akuerr.General, "encode metadata: "+err.Error())
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return akuerr.Wrap(akuerr.General, "write metadata: "+err.Error())
	}
	if err := os.Rename(tmp, path); err != nil {
		return akuerr.Wrap(akuerr.General, "install metadata: "+err.Error())
	}
	return nil
}
