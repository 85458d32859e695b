package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"askfolio/internal/embedding"
	"askfolio/internal/storage"
)

// DefaultWorkers bounds concurrent projects during a full reindex.
const DefaultWorkers = 4

// ChunkEmbedder turns chunk text into a vector. Implemented by
// embedding.Service.
type ChunkEmbedder interface {
	Embed(ctx context.Context, text string, targetDim int) embedding.Result
}

// RecordWriter persists embedding records. Implemented by storage.Store.
type RecordWriter interface {
	UpsertRecords(ctx context.Context, records []storage.EmbeddingRecord) error
}

// Options tune the Indexer. Zero values fall back to defaults.
type Options struct {
	Dimensions    int // canonical vector dimension written to the store
	MaxChunkChars int
	MaxChunks     int
	Workers       int
}

// Indexer chunks entities, embeds each chunk, and upserts the results
// into the vector store. Chunk IDs are deterministic, so re-running the
// indexer over the same entity overwrites instead of duplicating.
type Indexer struct {
	embedder      ChunkEmbedder
	records       RecordWriter
	dim           int
	maxChunkChars int
	maxChunks     int
	workers       int
	logger        *slog.Logger
}

// NewIndexer creates an Indexer with the given dependencies.
func NewIndexer(embedder ChunkEmbedder, records RecordWriter, opts Options) *Indexer {
	if opts.Dimensions <= 0 {
		opts.Dimensions = embedding.DefaultDimensions
	}
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = DefaultMaxChunkChars
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = DefaultMaxChunks
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Indexer{
		embedder:      embedder,
		records:       records,
		dim:           opts.Dimensions,
		maxChunkChars: opts.MaxChunkChars,
		maxChunks:     opts.MaxChunks,
		workers:       opts.Workers,
		logger:        slog.Default().With("component", "indexer"),
	}
}

// IndexProject chunks and embeds one project, returning the number of
// records written.
func (ix *Indexer) IndexProject(ctx context.Context, p storage.Project) (int, error) {
	doc := buildDocument(p)
	return ix.index(ctx, p.ID, "project", p.Title, doc)
}

// IndexAll reindexes the given projects with bounded parallelism and
// returns the total number of records written.
func (ix *Indexer) IndexAll(ctx context.Context, projects []storage.Project) (int, error) {
	var total atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for _, p := range projects {
		g.Go(func() error {
			n, err := ix.IndexProject(gCtx, p)
			if err != nil {
				return fmt.Errorf("indexing project %s: %w", p.ID, err)
			}
			total.Add(int64(n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(total.Load()), err
	}
	ix.logger.Info("reindex complete", "projects", len(projects), "records", total.Load())
	return int(total.Load()), nil
}

func (ix *Indexer) index(ctx context.Context, refID, sourceKind, title, doc string) (int, error) {
	chunks := Chunk(doc, ix.maxChunkChars, ix.maxChunks)
	if len(chunks) == 0 {
		return 0, nil
	}

	metadata, _ := json.Marshal(map[string]string{"title": title})
	records := make([]storage.EmbeddingRecord, len(chunks))
	for i, chunk := range chunks {
		res := ix.embedder.Embed(ctx, chunk, ix.dim)
		records[i] = storage.EmbeddingRecord{
			RefID:      refID,
			ChunkID:    chunkID(refID, i),
			SourceKind: sourceKind,
			Text:       chunk,
			Vector:     res.Vector,
			VectorDim:  len(res.Vector),
			Metadata:   string(metadata),
		}
	}

	if err := ix.records.UpsertRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("upserting %d records for %s: %w", len(records), refID, err)
	}
	return len(records), nil
}

// chunkID is deterministic from the entity and chunk index, which makes
// re-indexing idempotent at the store level.
func chunkID(refID string, index int) string {
	return fmt.Sprintf("%s#%d", refID, index)
}

// buildDocument flattens a project into one indexable text blob.
func buildDocument(p storage.Project) string {
	parts := []string{p.Title, p.Description}

	var tags []string
	if p.Tags != "" && json.Unmarshal([]byte(p.Tags), &tags) == nil && len(tags) > 0 {
		parts = append(parts, "Technologies: "+strings.Join(tags, ", "))
	}

	var nonEmpty []string
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
