package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"askfolio/internal/llm"
	"askfolio/internal/resilience"
)

type mockProvider struct {
	mu      sync.Mutex
	calls   int
	embedFn func(ctx context.Context, text string, dim int) ([]float32, error)
}

func (m *mockProvider) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.embedFn(ctx, text, dim)
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestService_NoRemoteUsesLocalFallback(t *testing.T) {
	svc := NewService(nil, "test-model", nil, nil)

	res := svc.Embed(context.Background(), "hello world", 64)
	if !res.UsedFallback {
		t.Error("expected fallback with no remote provider")
	}
	if len(res.Vector) != 64 {
		t.Fatalf("got %d dimensions, want 64", len(res.Vector))
	}

	again := svc.Embed(context.Background(), "hello world", 64)
	for i := range res.Vector {
		if res.Vector[i] != again.Vector[i] {
			t.Fatal("fallback vectors for the same text differ")
		}
	}
}

func TestService_RemoteSuccess(t *testing.T) {
	remote := &mockProvider{
		embedFn: func(_ context.Context, _ string, dim int) ([]float32, error) {
			v := make([]float32, dim)
			v[0] = 1
			return v, nil
		},
	}
	svc := NewService(remote, "test-model", nil, nil)

	res := svc.Embed(context.Background(), "some text", 8)
	if res.UsedFallback {
		t.Error("remote success must not report fallback")
	}
	if len(res.Vector) != 8 || res.Vector[0] != 1 {
		t.Errorf("got vector %v, want remote vector", res.Vector)
	}
}

func TestService_CacheHitSkipsRemote(t *testing.T) {
	remote := &mockProvider{
		embedFn: func(_ context.Context, _ string, dim int) ([]float32, error) {
			return make([]float32, dim), nil
		},
	}
	svc := NewService(remote, "test-model", nil, nil)

	svc.Embed(context.Background(), "cached text", 8)
	svc.Embed(context.Background(), "cached text", 8)

	if got := remote.callCount(); got != 1 {
		t.Errorf("remote called %d times, want 1", got)
	}
}

func TestService_CacheHitKeepsFallbackFlag(t *testing.T) {
	remote := &mockProvider{
		embedFn: func(_ context.Context, _ string, _ int) ([]float32, error) {
			return nil, errors.New("boom")
		},
	}
	svc := NewService(remote, "test-model", nil, nil)

	first := svc.Embed(context.Background(), "flaky text", 8)
	if !first.UsedFallback {
		t.Fatal("expected fallback after remote error")
	}

	hit := svc.Embed(context.Background(), "flaky text", 8)
	if !hit.UsedFallback {
		t.Error("cache hit lost the fallback flag")
	}
	if got := remote.callCount(); got != 1 {
		t.Errorf("remote called %d times, want 1", got)
	}
}

func TestService_RemoteErrorOpensBreaker(t *testing.T) {
	remote := &mockProvider{
		embedFn: func(_ context.Context, _ string, _ int) ([]float32, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewService(remote, "test-model", nil, nil)

	res := svc.Embed(context.Background(), "first", 8)
	if !res.UsedFallback {
		t.Fatal("expected fallback after remote error")
	}

	// Breaker is now open, so a different text goes straight to the
	// local provider without touching the remote.
	res = svc.Embed(context.Background(), "second", 8)
	if !res.UsedFallback {
		t.Error("expected fallback while breaker is open")
	}
	if got := remote.callCount(); got != 1 {
		t.Errorf("remote called %d times, want 1", got)
	}
}

func TestService_BreakerCooldowns(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		closedAt  time.Duration
		stillOpen time.Duration
	}{
		{"generic failure", errors.New("timeout"), failureCooldown, failureCooldown - time.Second},
		{"quota exhausted", llm.ErrQuota, quotaCooldown, quotaCooldown - time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			clock := func() time.Time { return now }
			breaker := resilience.NewBreakerWithClock(func() time.Time { return clock() })

			remote := &mockProvider{
				embedFn: func(_ context.Context, _ string, _ int) ([]float32, error) {
					return nil, tt.err
				},
			}
			svc := NewService(remote, "test-model", nil, breaker)

			svc.Embed(context.Background(), "trigger", 8)

			later := now.Add(tt.stillOpen)
			clock = func() time.Time { return later }
			if breaker.Allow() {
				t.Errorf("breaker closed after %v, want open", tt.stillOpen)
			}

			done := now.Add(tt.closedAt)
			clock = func() time.Time { return done }
			if !breaker.Allow() {
				t.Errorf("breaker still open after %v", tt.closedAt)
			}
		})
	}
}

func TestService_ZeroDimensionUsesDefault(t *testing.T) {
	svc := NewService(nil, "test-model", nil, nil)
	res := svc.Embed(context.Background(), "text", 0)
	if len(res.Vector) != DefaultDimensions {
		t.Errorf("got %d dimensions, want %d", len(res.Vector), DefaultDimensions)
	}
}
