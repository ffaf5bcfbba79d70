package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// snapshotVersion guards the on-disk format. Mismatched versions are
// discarded and rebuilt; the snapshot is a cache, never a source of truth.
const snapshotVersion = 1

// Snapshot is one immutable index generation. Readers hold a pointer to a
// snapshot and are never exposed to a partially rebuilt index.
type Snapshot struct {
	Version       int       `json:"version"`
	Entries       []Entry   `json:"entries"`
	FileCount     int       `json:"file_count"`
	LastIndexedAt time.Time `json:"last_indexed_at"`

	// semantic is the in-memory vector collection built over Entries.
	// Nil when no embedding provider is configured. Not persisted.
	semantic *semanticCollection
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Version: snapshotVersion}
}

// stats derives Stats from the snapshot.
func (s *Snapshot) stats() Stats {
	return Stats{
		FileCount:     s.FileCount,
		EntryCount:    len(s.Entries),
		LastIndexedAt: s.LastIndexedAt,
	}
}

// saveSnapshot persists the snapshot to path via temp-file + rename so a
// crash mid-write never corrupts the previous snapshot.
func saveSnapshot(path string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshot temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// loadSnapshot reads a persisted snapshot. A missing file returns an empty
// snapshot; a corrupt or version-mismatched file is discarded the same way.
func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptySnapshot(), nil
		}
		return nil, fmt.Errorf("read index snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return emptySnapshot(), nil
	}
	if snap.Version != snapshotVersion {
		return emptySnapshot(), nil
	}
	return &snap, nil
}
