package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"askfolio/internal/llm"
	"askfolio/internal/resilience"
)

const (
	// DefaultDimensions matches text-embedding-3-small output and is
	// used when the corpus has no stored record to infer a dimension from.
	DefaultDimensions = 1536

	remoteTimeout = 12 * time.Second

	// Quota errors get a longer cool-down than generic failures:
	// hammering a rate-limited account only extends the limit.
	quotaCooldown   = 60 * time.Second
	failureCooldown = 20 * time.Second
)

// Result is the outcome of an Embed call. UsedFallback reports that the
// vector came from the local deterministic provider rather than the
// remote API, for observability and for the retrieval engine's
// keyword-scoring decision.
type Result struct {
	Vector       []float32
	UsedFallback bool
}

// Service turns text into fixed-width vectors and never fails outward:
// every failure path resolves to a usable local-fallback vector.
type Service struct {
	remote  Provider // nil when no credentials are configured
	local   Provider
	model   string
	cache   *resilience.Cache[string, Result]
	breaker *resilience.Breaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewService creates a Service. remote may be nil (no credentials);
// cache and breaker may be nil to use fresh defaults. model is part of
// the cache key so a model change never serves stale vectors.
func NewService(remote Provider, model string, cache *resilience.Cache[string, Result], breaker *resilience.Breaker) *Service {
	if cache == nil {
		cache = resilience.NewCache[string, Result](resilience.DefaultCacheCapacity)
	}
	if breaker == nil {
		breaker = resilience.NewBreaker()
	}
	return &Service{
		remote:  remote,
		local:   Local{},
		model:   model,
		cache:   cache,
		breaker: breaker,
		timeout: remoteTimeout,
		logger:  slog.Default().With("component", "embedding"),
	}
}

// Embed returns a vector of exactly targetDim elements for text. The
// remote provider is tried first unless it is unconfigured or the
// circuit breaker is open; any remote failure opens the breaker and
// falls back to the local deterministic vector. Results are cached by
// (model, targetDim, text), fallback flag included, so a hit reports
// the same provenance as the original call.
func (s *Service) Embed(ctx context.Context, text string, targetDim int) Result {
	if targetDim <= 0 {
		targetDim = DefaultDimensions
	}

	key := cacheKey(s.model, targetDim, text)
	if res, ok := s.cache.Get(key); ok {
		return res
	}

	if s.remote != nil && s.breaker.Allow() {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		vec, err := s.remote.Embed(callCtx, text, targetDim)
		cancel()
		if err == nil {
			res := Result{Vector: vec}
			s.cache.Put(key, res)
			return res
		}

		cooldown := failureCooldown
		if errors.Is(err, llm.ErrQuota) {
			cooldown = quotaCooldown
		}
		s.breaker.Open(cooldown)
		s.logger.Warn("remote embedding failed, using local fallback",
			"error", err, "cooldown", cooldown)
	}

	vec, _ := s.local.Embed(ctx, text, targetDim)
	res := Result{Vector: vec, UsedFallback: true}
	s.cache.Put(key, res)
	return res
}

func cacheKey(model string, dim int, text string) string {
	return fmt.Sprintf("%s|%d|%s", model, dim, text)
}
