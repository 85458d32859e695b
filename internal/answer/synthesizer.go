package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"askfolio/internal/llm"
	"askfolio/internal/resilience"
	"askfolio/internal/retrieval"
)

const (
	remoteTimeout = 12 * time.Second

	quotaCooldown   = 60 * time.Second
	failureCooldown = 20 * time.Second

	// summaryResults bounds the local fallback summary.
	summaryResults = 3
)

// NoResultsMessage is returned verbatim when there is nothing to answer
// from.
const NoResultsMessage = "No relevant projects were found for this query."

const systemPrompt = `You answer questions about a portfolio of projects.
Use ONLY the numbered excerpts provided by the user. Do not invent facts.
Cite the excerpts you used by their rank numbers.
Respond with a single JSON object: {"answer": "...", "citations": [1, 2]}`

// Completer is the remote chat-completion surface, implemented by
// llm.Client.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Answer is the synthesized response. CitedRanks refer to the 1-based
// ranks of the search results the answer drew from. UsedFallback
// reports that the local summarizer produced the text.
type Answer struct {
	Text         string `json:"text"`
	CitedRanks   []int  `json:"cited_ranks"`
	UsedFallback bool   `json:"used_fallback"`
}

// Synthesizer turns ranked search results into a cited answer. Like the
// embedding service it never fails outward: any remote problem resolves
// to the deterministic local summary.
type Synthesizer struct {
	completer Completer // nil when no credentials are configured
	breaker   *resilience.Breaker
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSynthesizer creates a Synthesizer. completer may be nil; breaker
// may be nil to use a fresh instance. The breaker should be separate
// from the embedding breaker so an embedding outage does not silence
// completions, and vice versa.
func NewSynthesizer(completer Completer, breaker *resilience.Breaker) *Synthesizer {
	if breaker == nil {
		breaker = resilience.NewBreaker()
	}
	return &Synthesizer{
		completer: completer,
		breaker:   breaker,
		timeout:   remoteTimeout,
		logger:    slog.Default().With("component", "answer"),
	}
}

// Synthesize produces an answer over results. Empty results return the
// fixed no-results message without any remote call.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []retrieval.SearchResult) Answer {
	if len(results) == 0 {
		return Answer{Text: NoResultsMessage, CitedRanks: []int{}}
	}

	if s.completer != nil && s.breaker.Allow() {
		if a, ok := s.tryRemote(ctx, query, results); ok {
			return a
		}
	}

	return s.summarize(results)
}

func (s *Synthesizer) tryRemote(ctx context.Context, query string, results []retrieval.SearchResult) (Answer, bool) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.completer.Complete(callCtx, systemPrompt, buildUserContent(query, results))
	if err != nil {
		cooldown := failureCooldown
		if errors.Is(err, llm.ErrQuota) {
			cooldown = quotaCooldown
		}
		s.breaker.Open(cooldown)
		s.logger.Warn("remote completion failed, using local summary",
			"error", err, "cooldown", cooldown)
		return Answer{}, false
	}

	var parsed struct {
		Answer    string `json:"answer"`
		Citations []int  `json:"citations"`
	}
	block := extractJSONBlock(raw)
	if block == "" || json.Unmarshal([]byte(block), &parsed) != nil || parsed.Answer == "" {
		s.logger.Warn("unparseable completion response, using local summary")
		return Answer{}, false
	}

	return Answer{
		Text:       parsed.Answer,
		CitedRanks: sanitizeCitations(parsed.Citations, results),
	}, true
}

func buildUserContent(query string, results []retrieval.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nExcerpts:\n", query)
	for _, r := range results {
		title := r.Ref.Title
		if title == "" {
			title = r.Ref.ID
		}
		fmt.Fprintf(&b, "[%d] %s: %s\n", r.Rank, title, r.Snippet)
	}
	return b.String()
}

// sanitizeCitations drops ranks the model invented and duplicates,
// preserving the model's order.
func sanitizeCitations(cited []int, results []retrieval.SearchResult) []int {
	valid := make(map[int]bool, len(results))
	for _, r := range results {
		valid[r.Rank] = true
	}

	out := make([]int, 0, len(cited))
	seen := make(map[int]bool)
	for _, rank := range cited {
		if valid[rank] && !seen[rank] {
			seen[rank] = true
			out = append(out, rank)
		}
	}
	return out
}

// summarize renders the deterministic local answer from the top
// results. No randomness: identical input yields identical text.
func (s *Synthesizer) summarize(results []retrieval.SearchResult) Answer {
	top := results
	if len(top) > summaryResults {
		top = top[:summaryResults]
	}

	var b strings.Builder
	b.WriteString("Here is a quick summary of the most relevant projects:\n")
	ranks := make([]int, 0, len(top))
	for _, r := range top {
		ranks = append(ranks, r.Rank)
		title := r.Ref.Title
		if title == "" {
			title = r.Ref.ID
		}
		fmt.Fprintf(&b, "- [%d] %s", r.Rank, title)
		if len(r.Ref.Tags) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(r.Ref.Tags, ", "))
		}
		if r.Ref.DemoURL != "" {
			b.WriteString(" [demo available]")
		}
		if r.Ref.SourceURL != "" {
			b.WriteString(" [source available]")
		}
		b.WriteString("\n")
	}

	return Answer{
		Text:         strings.TrimRight(b.String(), "\n"),
		CitedRanks:   ranks,
		UsedFallback: true,
	}
}
