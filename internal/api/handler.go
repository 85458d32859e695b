package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"askfolio/internal/answer"
	"askfolio/internal/retrieval"
	"askfolio/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

const (
	minTopK     = 1
	maxTopK     = 10
	defaultTopK = 5
)

// Searcher abstracts the retrieval engine for the API layer.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.SearchResult, error)
}

// Synthesizer abstracts answer synthesis for the API layer.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, results []retrieval.SearchResult) answer.Answer
}

// ProjectIndexer abstracts the corpus indexer for the API layer.
type ProjectIndexer interface {
	IndexProject(ctx context.Context, p storage.Project) (int, error)
	IndexAll(ctx context.Context, projects []storage.Project) (int, error)
}

// Deps holds dependencies for the HTTP handler. Token guards the
// project-management endpoints; an empty token leaves them open, which
// is only sensible for local development.
type Deps struct {
	Store   *storage.Store
	Engine  Searcher
	Synth   Synthesizer
	Indexer ProjectIndexer
	Token   string
	TopK    int
}

// NewHandler returns the askfolio REST handler. Search and health are
// public; project management requires the bearer token when one is
// configured.
func NewHandler(deps Deps) http.Handler {
	if deps.TopK <= 0 {
		deps.TopK = defaultTopK
	}

	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/search", handleSearch(deps))

	r.Group(func(g chi.Router) {
		if deps.Token != "" {
			g.Use(BearerAuth(deps.Token))
		}
		g.Get("/projects", handleListProjects(deps))
		g.Post("/projects", handleSaveProject(deps))
		g.Post("/projects/{id}/index", handleIndexProject(deps))
		g.Post("/reindex", handleReindex(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Results []retrieval.SearchResult `json:"results"`
	Answer  answer.Answer            `json:"answer"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		k := req.K
		if k == 0 {
			k = deps.TopK
		}
		if k < minTopK {
			k = minTopK
		}
		if k > maxTopK {
			k = maxTopK
		}

		requestID := uuid.New().String()
		start := time.Now()

		results, err := deps.Engine.Search(r.Context(), req.Query, k)
		if err != nil {
			slog.Error("search failed", "request_id", requestID, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}
		ans := deps.Synth.Synthesize(r.Context(), req.Query, results)

		slog.Info("search handled",
			"request_id", requestID,
			"results", len(results),
			"answer_fallback", ans.UsedFallback,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(searchResponse{Results: results, Answer: ans})
	}
}

type projectRequest struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	DemoURL     string   `json:"demo_url"`
	SourceURL   string   `json:"source_url"`
}

type projectResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	DemoURL     string   `json:"demo_url,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toProjectResponse(p storage.Project) projectResponse {
	var tags []string
	if p.Tags != "" {
		json.Unmarshal([]byte(p.Tags), &tags)
	}
	if tags == nil {
		tags = []string{}
	}
	return projectResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Tags:        tags,
		DemoURL:     p.DemoURL,
		SourceURL:   p.SourceURL,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

func handleListProjects(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		projects, err := deps.Store.ListProjects(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list projects: %v", err)
			return
		}

		out := make([]projectResponse, len(projects))
		for i, p := range projects {
			out[i] = toProjectResponse(p)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleSaveProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req projectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}
		if req.ID == "" {
			req.ID = uuid.New().String()
		}

		tagsJSON := "[]"
		if len(req.Tags) > 0 {
			b, err := json.Marshal(req.Tags)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to marshal tags: %v", err)
				return
			}
			tagsJSON = string(b)
		}

		p := storage.Project{
			ID:          req.ID,
			Title:       req.Title,
			Description: req.Description,
			Tags:        tagsJSON,
			DemoURL:     req.DemoURL,
			SourceURL:   req.SourceURL,
		}
		if err := deps.Store.SaveProject(r.Context(), p); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save project: %v", err)
			return
		}

		saved, err := deps.Store.GetProject(r.Context(), p.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load saved project: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(toProjectResponse(saved))
	}
}

func handleIndexProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		p, err := deps.Store.GetProject(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get project: %v", err)
			return
		}

		n, err := deps.Indexer.IndexProject(r.Context(), p)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to index project: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      id,
			"records": n,
		})
	}
}

func handleReindex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := deps.Store.ListProjects(r.Context(), 1000, 0)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list projects: %v", err)
			return
		}

		total, err := deps.Indexer.IndexAll(r.Context(), projects)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reindex failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"projects": len(projects),
			"records":  total,
		})
	}
}
