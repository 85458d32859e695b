package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"askfolio/internal/embedding"
	"askfolio/internal/storage"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string, targetDim int) embedding.Result {
	return embedding.Result{Vector: embedding.LocalVector(text, targetDim), UsedFallback: true}
}

// fakeRecordStore keys records by (ref, chunk) to mirror the real
// store's upsert semantics.
type fakeRecordStore struct {
	mu        sync.Mutex
	records   map[string]storage.EmbeddingRecord
	upsertErr error
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: make(map[string]storage.EmbeddingRecord)}
}

func (f *fakeRecordStore) UpsertRecords(_ context.Context, records []storage.EmbeddingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, r := range records {
		f.records[r.RefID+"|"+r.ChunkID] = r
	}
	return nil
}

func (f *fakeRecordStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func sampleProject() storage.Project {
	return storage.Project{
		ID:          "p1",
		Title:       "Warehouse Dashboard",
		Description: strings.Repeat("A React dashboard for warehouse inventory. ", 30),
		Tags:        `["react","go"]`,
	}
}

func TestIndexProject_WritesChunkedRecords(t *testing.T) {
	store := newFakeRecordStore()
	ix := NewIndexer(fakeEmbedder{}, store, Options{Dimensions: 32, MaxChunkChars: 200, MaxChunks: 6})

	n, err := ix.IndexProject(context.Background(), sampleProject())
	if err != nil {
		t.Fatalf("IndexProject: %v", err)
	}
	if n < 2 {
		t.Fatalf("got %d records, want several chunks", n)
	}
	if store.count() != n {
		t.Errorf("store has %d records, want %d", store.count(), n)
	}

	first, ok := store.records["p1|p1#0"]
	if !ok {
		t.Fatal("missing record p1#0; chunk IDs must be deterministic")
	}
	if first.SourceKind != "project" {
		t.Errorf("got source kind %q, want project", first.SourceKind)
	}
	if first.VectorDim != 32 || len(first.Vector) != 32 {
		t.Errorf("got dim %d with %d elements, want 32", first.VectorDim, len(first.Vector))
	}
	if !strings.Contains(first.Metadata, "Warehouse Dashboard") {
		t.Errorf("metadata missing title: %q", first.Metadata)
	}
	if !strings.Contains(first.Text, "Warehouse Dashboard") {
		t.Errorf("first chunk missing title text: %q", first.Text)
	}
}

func TestIndexProject_TagsRenderedIntoDocument(t *testing.T) {
	store := newFakeRecordStore()
	ix := NewIndexer(fakeEmbedder{}, store, Options{Dimensions: 16})

	p := storage.Project{ID: "p1", Title: "Tiny", Description: "Small project", Tags: `["rust","wasm"]`}
	if _, err := ix.IndexProject(context.Background(), p); err != nil {
		t.Fatalf("IndexProject: %v", err)
	}

	rec := store.records["p1|p1#0"]
	if !strings.Contains(rec.Text, "Technologies: rust, wasm") {
		t.Errorf("document missing rendered tags: %q", rec.Text)
	}
}

func TestIndexProject_Idempotent(t *testing.T) {
	store := newFakeRecordStore()
	ix := NewIndexer(fakeEmbedder{}, store, Options{Dimensions: 16, MaxChunkChars: 200})

	first, err := ix.IndexProject(context.Background(), sampleProject())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := ix.IndexProject(context.Background(), sampleProject())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first != second {
		t.Errorf("runs wrote %d and %d records, want equal", first, second)
	}
	if store.count() != first {
		t.Errorf("store has %d records after re-run, want %d", store.count(), first)
	}
}

func TestIndexProject_EmptyProject(t *testing.T) {
	store := newFakeRecordStore()
	ix := NewIndexer(fakeEmbedder{}, store, Options{})

	n, err := ix.IndexProject(context.Background(), storage.Project{ID: "empty"})
	if err != nil {
		t.Fatalf("IndexProject: %v", err)
	}
	if n != 0 {
		t.Errorf("got %d records for empty project, want 0", n)
	}
}

func TestIndexAll_SumsRecords(t *testing.T) {
	store := newFakeRecordStore()
	ix := NewIndexer(fakeEmbedder{}, store, Options{Dimensions: 16, Workers: 2})

	projects := []storage.Project{
		{ID: "a", Title: "One", Description: "first project"},
		{ID: "b", Title: "Two", Description: "second project"},
		{ID: "c", Title: "Three", Description: "third project"},
	}
	total, err := ix.IndexAll(context.Background(), projects)
	if err != nil {
		t.Fatalf("IndexAll: %v", err)
	}
	if total != 3 {
		t.Errorf("got %d records, want 3", total)
	}
	if store.count() != 3 {
		t.Errorf("store has %d records, want 3", store.count())
	}
}

func TestIndexAll_PropagatesStoreError(t *testing.T) {
	store := newFakeRecordStore()
	store.upsertErr = errors.New("disk gone")
	ix := NewIndexer(fakeEmbedder{}, store, Options{Dimensions: 16})

	_, err := ix.IndexAll(context.Background(), []storage.Project{{ID: "a", Title: "One", Description: "x"}})
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestIndexDocument_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("Shipped a Go service with SQLite storage."), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	store := newFakeRecordStore()
	ix := NewIndexer(fakeEmbedder{}, store, Options{Dimensions: 16})

	n, err := ix.IndexDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d records, want 1", n)
	}

	rec, ok := store.records["doc:notes.txt|doc:notes.txt#0"]
	if !ok {
		t.Fatal("missing document record under doc: ref")
	}
	if rec.SourceKind != "document" {
		t.Errorf("got source kind %q, want document", rec.SourceKind)
	}
	if !strings.Contains(rec.Metadata, "notes.txt") {
		t.Errorf("metadata missing file name: %q", rec.Metadata)
	}
}

func TestIndexDocument_MissingFile(t *testing.T) {
	ix := NewIndexer(fakeEmbedder{}, newFakeRecordStore(), Options{})
	if _, err := ix.IndexDocument(context.Background(), "/nonexistent/file.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
