// Package index builds and serves a searchable code index over a worktree:
// keyword lookup always, semantic lookup when an embedding provider is wired.
//
// The index is a cache, not a source of truth: it is rebuilt from the file
// tree at any time and the on-disk snapshot can be deleted safely.
package index

import (
	"errors"
	"time"
)

// ErrEmbeddingUnavailable indicates semantic search was invoked without a
// configured embedding provider. Callers must fall back to keyword search.
var ErrEmbeddingUnavailable = errors.New("embedding provider not configured")

// EntryType categorizes an index entry.
type EntryType string

const (
	EntryTypeFunction EntryType = "function"
	EntryTypeClass    EntryType = "class"
	EntryTypeModule   EntryType = "module"
)

// Entry is one indexed symbol. Entries are keyed by (FilePath, Symbol)
// within a snapshot; a module entry exists per indexed file.
type Entry struct {
	FilePath  string    `json:"file_path"`
	Symbol    string    `json:"symbol"`
	Type      EntryType `json:"type"`
	Keywords  []string  `json:"keywords"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Key returns the snapshot-unique identity of the entry.
func (e Entry) Key() string {
	return e.FilePath + "#" + e.Symbol
}

// Match is a semantic search hit.
type Match struct {
	Entry      Entry
	Similarity float32
}

// Stats summarizes the current snapshot.
type Stats struct {
	FileCount     int       `json:"file_count"`
	EntryCount    int       `json:"entry_count"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
}
