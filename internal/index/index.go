package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/crewd/internal/embeddings"
	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// Config holds index configuration.
type Config struct {
	// Root is the worktree directory to index.
	Root string

	// SnapshotPath is the on-disk snapshot file. Empty disables persistence.
	SnapshotPath string

	// IncludePatterns / ExcludePatterns filter tracked files (glob syntax).
	// Exclude takes precedence.
	IncludePatterns []string
	ExcludePatterns []string

	// MaxFileSize is the largest file (bytes) the scanner will read.
	MaxFileSize int64
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("index root is required")
	}
	return nil
}

// Index serves keyword and semantic lookups over one snapshot at a time.
//
// Rebuilds replace the snapshot with a single pointer swap, so searches may
// run concurrently against the previous snapshot while a rebuild is in
// flight; only concurrent rebuilds are mutually excluded.
type Index struct {
	config   Config
	scanner  *Scanner
	provider embeddings.Provider
	logger   *logging.Logger

	snapshot atomic.Pointer[Snapshot]

	// rebuildMu guards against concurrent rebuilds, not against readers.
	rebuildMu sync.Mutex
}

// New creates an index over the configured root. provider may be nil:
// keyword search works regardless, semantic search reports
// ErrEmbeddingUnavailable.
//
// A persisted snapshot at SnapshotPath is loaded eagerly so searches work
// before the first rebuild.
func New(config Config, provider embeddings.Provider, logger *logging.Logger) (*Index, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	idx := &Index{
		config:   config,
		scanner:  NewScanner(config.Root, config.IncludePatterns, config.ExcludePatterns, config.MaxFileSize),
		provider: provider,
		logger:   logger.Named("index"),
	}

	snap := emptySnapshot()
	if config.SnapshotPath != "" {
		loaded, err := loadSnapshot(config.SnapshotPath)
		if err != nil {
			return nil, err
		}
		snap = loaded
	}
	if provider != nil && len(snap.Entries) > 0 {
		semantic, err := buildSemanticCollection(context.Background(), snap.Entries, provider)
		if err != nil {
			return nil, err
		}
		snap.semantic = semantic
	}
	idx.snapshot.Store(snap)

	return idx, nil
}

// Rebuild scans the tree, computes keywords (and embeddings when a provider
// is configured) and atomically swaps in the new snapshot. All-or-nothing:
// a failed rebuild leaves the previous snapshot untouched.
func (i *Index) Rebuild(ctx context.Context) error {
	i.rebuildMu.Lock()
	defer i.rebuildMu.Unlock()

	started := time.Now()
	scanned, err := i.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", i.config.Root, err)
	}
	if i.logger.Enabled(zapcore.DebugLevel) {
		for _, se := range scanned {
			i.logger.Debug(ctx, "indexed entry",
				zap.String("file", se.Entry.FilePath),
				zap.String("symbol", se.Entry.Symbol),
				zap.String("type", string(se.Entry.Type)),
			)
		}
	}

	entries := make([]Entry, len(scanned))
	files := make(map[string]struct{}, len(scanned))
	for n, se := range scanned {
		entries[n] = se.Entry
		files[se.Entry.FilePath] = struct{}{}
	}

	if i.provider != nil && len(scanned) > 0 {
		texts := make([]string, len(scanned))
		for n, se := range scanned {
			texts[n] = se.EmbedText
		}
		vectors, err := i.provider.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding %d entries: %w", len(texts), err)
		}
		if len(vectors) != len(entries) {
			return fmt.Errorf("embedding provider returned %d vectors for %d entries", len(vectors), len(entries))
		}
		for n := range entries {
			entries[n].Embedding = vectors[n]
		}
	}

	snap := &Snapshot{
		Version:       snapshotVersion,
		Entries:       entries,
		FileCount:     len(files),
		LastIndexedAt: time.Now().UTC(),
	}
	if i.provider != nil {
		semantic, err := buildSemanticCollection(ctx, entries, i.provider)
		if err != nil {
			return err
		}
		snap.semantic = semantic
	}

	if i.config.SnapshotPath != "" {
		if err := saveSnapshot(i.config.SnapshotPath, snap); err != nil {
			return err
		}
	}

	i.snapshot.Store(snap)

	i.logger.Info(ctx, "rebuilt index",
		zap.Int("files", snap.FileCount),
		zap.Int("entries", len(entries)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// SearchByKeyword returns entries whose keyword set matches term.
//
// Match policy: case-insensitive substring against each keyword. Results
// are ordered by number of matching keywords descending, then file path,
// then symbol, for determinism. An unknown term yields an empty slice.
func (i *Index) SearchByKeyword(term string) []Entry {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []Entry{}
	}

	snap := i.snapshot.Load()

	type scored struct {
		entry Entry
		hits  int
	}
	var results []scored
	for _, entry := range snap.Entries {
		hits := 0
		for _, keyword := range entry.Keywords {
			if strings.Contains(keyword, term) {
				hits++
			}
		}
		if hits > 0 {
			results = append(results, scored{entry: entry, hits: hits})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].hits != results[b].hits {
			return results[a].hits > results[b].hits
		}
		if results[a].entry.FilePath != results[b].entry.FilePath {
			return results[a].entry.FilePath < results[b].entry.FilePath
		}
		return results[a].entry.Symbol < results[b].entry.Symbol
	})

	out := make([]Entry, len(results))
	for n, r := range results {
		out[n] = r.entry
	}
	return out
}

// SearchByEmbedding embeds queryText with the index's provider and ranks
// entries by cosine similarity descending, ties broken by file path.
//
// Returns ErrEmbeddingUnavailable when no provider is configured: semantic
// search is an optional capability, callers must fall back to keywords.
func (i *Index) SearchByEmbedding(ctx context.Context, queryText string, k int) ([]Match, error) {
	if i.provider == nil {
		return nil, ErrEmbeddingUnavailable
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("query text is required")
	}

	snap := i.snapshot.Load()
	if snap.semantic == nil {
		return []Match{}, nil
	}

	queryEmbedding, err := i.provider.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return snap.semantic.query(ctx, queryEmbedding, k)
}

// Stats returns counters for the current snapshot.
func (i *Index) Stats() Stats {
	return i.snapshot.Load().stats()
}
