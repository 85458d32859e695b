package retrieval

// Ref is the denormalized display metadata attached to a search result,
// resolved from the entity the matched chunk belongs to.
type Ref struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags,omitempty"`
	DemoURL   string   `json:"demo_url,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
}

// SearchResult is one ranked match. Rank is 1-based in final sorted
// order; Snippet is a bounded excerpt of the matched chunk.
type SearchResult struct {
	Rank    int     `json:"rank"`
	Score   float32 `json:"score"`
	Ref     Ref     `json:"ref"`
	Snippet string  `json:"snippet"`
}
