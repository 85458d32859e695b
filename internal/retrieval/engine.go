package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"askfolio/internal/embedding"
	"askfolio/internal/storage"
)

// snippetLimit bounds the excerpt attached to each result.
const snippetLimit = 500

// QueryEmbedder produces a query vector, reporting whether the local
// fallback was used. Implemented by embedding.Service.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string, targetDim int) embedding.Result
}

// RecordLister provides the corpus snapshot to rank against.
// Implemented by storage.Store.
type RecordLister interface {
	ListRecords(ctx context.Context, sourceKind string) ([]storage.EmbeddingRecord, error)
}

// RefResolver looks up display metadata for the entities behind matched
// chunks. Implemented by storage.Store.
type RefResolver interface {
	GetProjectsByIDs(ctx context.Context, ids []string) (map[string]storage.Project, error)
}

// Engine scores stored chunks against a query and returns the top-k as
// enriched results. Cosine similarity is used when a remote query
// embedding is available and shares a dimension with stored records;
// otherwise it falls back to keyword scoring.
type Engine struct {
	embedder QueryEmbedder
	records  RecordLister
	refs     RefResolver
	logger   *slog.Logger
}

// NewEngine creates an Engine over the given embedder and stores.
func NewEngine(embedder QueryEmbedder, records RecordLister, refs RefResolver) *Engine {
	return &Engine{
		embedder: embedder,
		records:  records,
		refs:     refs,
		logger:   slog.Default().With("component", "retrieval"),
	}
}

// Search embeds query, ranks the corpus, and returns the top k results
// with 1-based ranks. An empty corpus yields an empty slice; only store
// access failures surface as errors.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	records, err := e.records.ListRecords(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing corpus records: %w", err)
	}
	if len(records) == 0 {
		return []SearchResult{}, nil
	}

	dim := embedding.DefaultDimensions
	if records[0].VectorDim > 0 {
		dim = records[0].VectorDim
	}
	embedded := e.embedder.Embed(ctx, query, dim)

	type candidate struct {
		record storage.EmbeddingRecord
		score  float32
	}

	var candidates []candidate
	if !embedded.UsedFallback && anyDimMatch(records, len(embedded.Vector)) {
		// Fallback vectors live in a different space than the remotely
		// embedded corpus, so cosine only applies on the remote path.
		for _, r := range records {
			if r.VectorDim != len(embedded.Vector) {
				continue
			}
			candidates = append(candidates, candidate{
				record: r,
				score:  embedding.Cosine(embedded.Vector, r.Vector),
			})
		}
	} else {
		for _, r := range records {
			candidates = append(candidates, candidate{
				record: r,
				score:  keywordScore(query, r.Text),
			})
		}
	}

	// Stable sort keeps corpus order as the tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	refIDs := make([]string, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		if c.record.SourceKind == "project" && !seen[c.record.RefID] {
			seen[c.record.RefID] = true
			refIDs = append(refIDs, c.record.RefID)
		}
	}
	projects, err := e.refs.GetProjectsByIDs(ctx, refIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving result refs: %w", err)
	}

	results := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = SearchResult{
			Rank:    i + 1,
			Score:   c.score,
			Ref:     buildRef(c.record, projects),
			Snippet: truncateRunes(c.record.Text, snippetLimit),
		}
	}
	return results, nil
}

func anyDimMatch(records []storage.EmbeddingRecord, dim int) bool {
	if dim == 0 {
		return false
	}
	for _, r := range records {
		if r.VectorDim == dim {
			return true
		}
	}
	return false
}

func buildRef(r storage.EmbeddingRecord, projects map[string]storage.Project) Ref {
	if p, ok := projects[r.RefID]; ok {
		var tags []string
		if p.Tags != "" {
			// Tags are stored as a JSON array; a parse failure just
			// leaves them off the result.
			json.Unmarshal([]byte(p.Tags), &tags)
		}
		return Ref{
			ID:        p.ID,
			Title:     p.Title,
			Tags:      tags,
			DemoURL:   p.DemoURL,
			SourceURL: p.SourceURL,
		}
	}

	// Document chunks carry their title in record metadata.
	ref := Ref{ID: r.RefID}
	var meta struct {
		Title string `json:"title"`
	}
	if r.Metadata != "" && json.Unmarshal([]byte(r.Metadata), &meta) == nil {
		ref.Title = meta.Title
	}
	return ref
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
