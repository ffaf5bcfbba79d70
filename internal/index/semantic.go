package index

import (
	"context"
	"fmt"
	"sort"

	chromem "github.com/philippgille/chromem-go"

	"github.com/fyrsmithlabs/crewd/internal/embeddings"
)

// semanticCollection holds the per-snapshot chromem collection. Each
// rebuild produces a fresh in-memory collection; persistence rides on the
// JSON snapshot (entries carry their vectors), not on chromem.
type semanticCollection struct {
	collection *chromem.Collection
	byKey      map[string]Entry
}

// buildSemanticCollection loads entry vectors into a chromem collection.
// Entries without vectors (e.g. files skipped during embedding) are left out.
func buildSemanticCollection(ctx context.Context, entries []Entry, provider embeddings.Provider) (*semanticCollection, error) {
	db := chromem.NewDB()

	// chromem requires an embedding func at creation; queries go through
	// QueryEmbedding with the provider's vector, so this adapter only runs
	// if chromem ever needs to embed content itself.
	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return provider.EmbedQuery(ctx, text)
	}

	collection, err := db.CreateCollection("index_entries", nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating semantic collection: %w", err)
	}

	byKey := make(map[string]Entry, len(entries))
	docs := make([]chromem.Document, 0, len(entries))
	for _, entry := range entries {
		if len(entry.Embedding) == 0 {
			continue
		}
		byKey[entry.Key()] = entry
		docs = append(docs, chromem.Document{
			ID:      entry.Key(),
			Content: entry.Key(),
			Metadata: map[string]string{
				"file_path": entry.FilePath,
				"symbol":    entry.Symbol,
				"type":      string(entry.Type),
			},
			Embedding: entry.Embedding,
		})
	}

	if len(docs) > 0 {
		// Concurrency of 1: embeddings are precomputed, nothing to parallelize.
		if err := collection.AddDocuments(ctx, docs, 1); err != nil {
			return nil, fmt.Errorf("adding documents to semantic collection: %w", err)
		}
	}

	return &semanticCollection{collection: collection, byKey: byKey}, nil
}

// query ranks entries by cosine similarity to the query vector, descending,
// breaking ties by file path then symbol.
func (s *semanticCollection) query(ctx context.Context, queryEmbedding []float32, k int) ([]Match, error) {
	docCount := s.collection.Count()
	if docCount == 0 {
		return []Match{}, nil
	}
	// chromem requires nResults <= document count.
	if k <= 0 || k > docCount {
		k = docCount
	}

	results, err := s.collection.QueryEmbedding(ctx, queryEmbedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying semantic collection: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		entry, ok := s.byKey[r.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{Entry: entry, Similarity: r.Similarity})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Entry.FilePath != matches[j].Entry.FilePath {
			return matches[i].Entry.FilePath < matches[j].Entry.FilePath
		}
		return matches[i].Entry.Symbol < matches[j].Entry.Symbol
	})

	return matches, nil
}
