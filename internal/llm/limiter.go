package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter rate limits completions per model, so a person model and a
// household model sharing one endpoint each get their own budget.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until a request for key is allowed
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.getLimiter(key).Wait(ctx)
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter

	return limiter
}

// RateLimitedProvider waits on a Limiter before every completion
type RateLimitedProvider struct {
	Provider
	limiter *Limiter
	model   string
}

// NewRateLimitedProvider wraps p. model is the default key when a request
// does not override the model.
func NewRateLimitedProvider(p Provider, limiter *Limiter, model string) *RateLimitedProvider {
	return &RateLimitedProvider{Provider: p, limiter: limiter, model: model}
}

// Complete waits for clearance, then delegates
func (p *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	if err := p.limiter.Wait(ctx, p.Provider.Name()+"/"+model); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return p.Provider.Complete(ctx, req)
}
