package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"askfolio/internal/answer"
	"askfolio/internal/retrieval"
	"askfolio/internal/storage"
)

type mockSearcher struct {
	lastK    int
	searchFn func(ctx context.Context, query string, k int) ([]retrieval.SearchResult, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string, k int) ([]retrieval.SearchResult, error) {
	m.lastK = k
	if m.searchFn == nil {
		return []retrieval.SearchResult{}, nil
	}
	return m.searchFn(ctx, query, k)
}

type mockSynth struct {
	synthFn func(ctx context.Context, query string, results []retrieval.SearchResult) answer.Answer
}

func (m *mockSynth) Synthesize(ctx context.Context, query string, results []retrieval.SearchResult) answer.Answer {
	if m.synthFn == nil {
		return answer.Answer{Text: "stub"}
	}
	return m.synthFn(ctx, query, results)
}

type mockIndexer struct {
	indexFn func(ctx context.Context, p storage.Project) (int, error)
}

func (m *mockIndexer) IndexProject(ctx context.Context, p storage.Project) (int, error) {
	if m.indexFn == nil {
		return 1, nil
	}
	return m.indexFn(ctx, p)
}

func (m *mockIndexer) IndexAll(ctx context.Context, projects []storage.Project) (int, error) {
	var total int
	for _, p := range projects {
		n, err := m.IndexProject(ctx, p)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return Deps{
		Store:   store,
		Engine:  &mockSearcher{},
		Synth:   &mockSynth{},
		Indexer: &mockIndexer{},
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("got body %q", rec.Body.String())
	}
}

func TestSearch_HappyPath(t *testing.T) {
	deps := newTestDeps(t)
	deps.Engine = &mockSearcher{
		searchFn: func(_ context.Context, query string, _ int) ([]retrieval.SearchResult, error) {
			if query != "React dashboard" {
				t.Errorf("got query %q", query)
			}
			return []retrieval.SearchResult{
				{Rank: 1, Score: 0.9, Ref: retrieval.Ref{ID: "p1", Title: "Dashboard"}, Snippet: "React dashboard"},
			}, nil
		},
	}
	deps.Synth = &mockSynth{
		synthFn: func(_ context.Context, _ string, results []retrieval.SearchResult) answer.Answer {
			return answer.Answer{Text: "The Dashboard project.", CitedRanks: []int{1}}
		},
	}
	h := NewHandler(deps)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"React dashboard","k":3}`))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Ref.Title != "Dashboard" {
		t.Errorf("got results %+v", resp.Results)
	}
	if resp.Answer.Text != "The Dashboard project." {
		t.Errorf("got answer %q", resp.Answer.Text)
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestSearch_ClampsK(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		wantK int
	}{
		{"zero uses default", `{"query":"q"}`, defaultTopK},
		{"too large clamps to max", `{"query":"q","k":50}`, maxTopK},
		{"negative clamps to min", `{"query":"q","k":-2}`, minTopK},
		{"in range passes through", `{"query":"q","k":7}`, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t)
			searcher := &mockSearcher{}
			deps.Engine = searcher
			h := NewHandler(deps)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(tt.body)))

			if rec.Code != http.StatusOK {
				t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
			}
			if searcher.lastK != tt.wantK {
				t.Errorf("got k %d, want %d", searcher.lastK, tt.wantK)
			}
		})
	}
}

func TestProjects_RequireAuthWhenTokenSet(t *testing.T) {
	deps := newTestDeps(t)
	deps.Token = "secret"
	h := NewHandler(deps)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d without token, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d with token, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestSearch_PublicDespiteToken(t *testing.T) {
	deps := newTestDeps(t)
	deps.Token = "secret"
	h := NewHandler(deps)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"q"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want search to stay public", rec.Code)
	}
}

func TestSaveProject_AndList(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rec := httptest.NewRecorder()
	body := `{"title":"Warehouse Dashboard","description":"React dashboard","tags":["react","go"],"demo_url":"https://example.com"}`
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	var created projectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated project ID")
	}
	if len(created.Tags) != 2 || created.Tags[0] != "react" {
		t.Errorf("got tags %v", created.Tags)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var listed []projectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "Warehouse Dashboard" {
		t.Errorf("got list %+v", listed)
	}
}

func TestSaveProject_MissingTitle(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(`{"description":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestIndexProject_NotFound(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/missing/index", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestIndexProject_ReportsRecordCount(t *testing.T) {
	deps := newTestDeps(t)
	if err := deps.Store.SaveProject(context.Background(), storage.Project{ID: "p1", Title: "One"}); err != nil {
		t.Fatalf("saving project: %v", err)
	}
	deps.Indexer = &mockIndexer{
		indexFn: func(_ context.Context, p storage.Project) (int, error) {
			if p.ID != "p1" {
				t.Errorf("indexed project %q, want p1", p.ID)
			}
			return 4, nil
		},
	}
	h := NewHandler(deps)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/p1/index", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["records"].(float64) != 4 {
		t.Errorf("got records %v, want 4", resp["records"])
	}
}

func TestReindex(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := deps.Store.SaveProject(ctx, storage.Project{ID: id, Title: id}); err != nil {
			t.Fatalf("saving project: %v", err)
		}
	}
	h := NewHandler(deps)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reindex", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["projects"].(float64) != 2 {
		t.Errorf("got projects %v, want 2", resp["projects"])
	}
}
