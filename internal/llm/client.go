// Package llm is the model access layer: a single call surface that hides
// provider selection, exact and semantic caching, retry with backoff, and
// provider fallback from the agents built on top of it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/cache"
	"github.com/fyrsmithlabs/agendad/internal/compression"
	"github.com/fyrsmithlabs/agendad/internal/embeddings"
)

// RetryConfig bounds the per-provider retry loop.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetry is the production retry policy.
var DefaultRetry = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    8 * time.Second,
}

// Config wires a Client together. Providers are ordered cheapest-first;
// that order seeds the default complexity chains.
type Config struct {
	Providers []Provider
	// Chains maps a complexity class to an ordered provider-name list.
	// When empty, simple prompts use the first provider only and
	// moderate/complex prompts fall back through the first two.
	Chains map[Complexity][]string
	Cache  *cache.ResponseCache
	// Embedder enables the semantic cache; nil limits caching to exact
	// hash matches.
	Embedder   embeddings.Embedder
	Compressor *compression.Compressor
	Retry      RetryConfig
}

// Stats is a point-in-time snapshot of the call counters.
type Stats struct {
	TotalCalls   uint64  `json:"total_calls"`
	CacheHits    uint64  `json:"cache_hits"`
	SemanticHits uint64  `json:"semantic_hits"`
	HitRate      float64 `json:"hit_rate"`
}

// Client is the unified call surface. Counter state is confined behind
// its own mutex so Stats never contends with in-flight network calls.
type Client struct {
	providers  map[string]Provider
	chains     map[Complexity][]string
	cache      *cache.ResponseCache
	embedder   embeddings.Embedder
	compressor *compression.Compressor
	retry      RetryConfig
	logger     *zap.Logger

	statsMu      sync.Mutex
	totalCalls   uint64
	cacheHits    uint64
	semanticHits uint64

	sleep func(ctx context.Context, d time.Duration) error // test hook
}

// New creates a Client. At least one provider is required, and every
// chain entry must name a registered provider.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	providers := make(map[string]Provider, len(cfg.Providers))
	order := make([]string, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if _, dup := providers[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", p.Name())
		}
		providers[p.Name()] = p
		order = append(order, p.Name())
	}

	chains := cfg.Chains
	if len(chains) == 0 {
		fallback := order
		if len(fallback) > 2 {
			fallback = fallback[:2]
		}
		chains = map[Complexity][]string{
			ComplexitySimple:   order[:1],
			ComplexityModerate: fallback,
			ComplexityComplex:  fallback,
		}
	}
	for class, chain := range chains {
		if len(chain) == 0 {
			return nil, fmt.Errorf("empty chain for complexity %q", class)
		}
		for _, name := range chain {
			if _, ok := providers[name]; !ok {
				return nil, fmt.Errorf("chain for %q references unknown provider %q", class, name)
			}
		}
	}

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetry
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = DefaultRetry.BaseDelay
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = DefaultRetry.MaxDelay
	}

	return &Client{
		providers:  providers,
		chains:     chains,
		cache:      cfg.Cache,
		embedder:   cfg.Embedder,
		compressor: cfg.Compressor,
		retry:      retry,
		logger:     logger.Named("llm"),
		sleep:      sleepCtx,
	}, nil
}

// Invoke routes one prompt through compression, caching, the complexity
// chain, and per-provider retry. The returned text is exactly what would
// be cached for an identical later call.
func (c *Client) Invoke(ctx context.Context, req Request) (string, error) {
	c.statsMu.Lock()
	c.totalCalls++
	c.statsMu.Unlock()

	if req.Compress && c.compressor != nil {
		compressed, stats := c.compressor.Compress(req.User)
		if stats.Ratio < 1.0 {
			c.logger.Info("prompt compressed",
				zap.Int("original_chars", stats.OriginalChars),
				zap.Int("compressed_chars", stats.CompressedChars))
		}
		req.User = compressed
	}

	key := cache.Key(req.System, req.User)
	var emb []float32
	if req.UseCache && c.cache != nil {
		if resp, ok := c.cache.GetExact(key); ok {
			c.statsMu.Lock()
			c.cacheHits++
			c.statsMu.Unlock()
			return resp, nil
		}
		// Exact miss: try the semantic cache if an embedder is wired.
		if c.embedder != nil {
			var err error
			emb, err = c.embedder.Embed(ctx, req.User)
			if err != nil {
				c.logger.Warn("embedding failed, skipping semantic cache", zap.Error(err))
				emb = nil
			} else if resp, ok := c.cache.GetSemantic(emb); ok {
				c.statsMu.Lock()
				c.semanticHits++
				c.statsMu.Unlock()
				return resp, nil
			}
		}
	}

	complexity := Classify(req.System, req.User)
	chain := c.chains[complexity]

	var failures []error
	for _, name := range chain {
		provider := c.providers[name]
		resp, err := c.callWithRetry(ctx, provider, req)
		if err == nil {
			if req.UseCache && c.cache != nil {
				c.cache.Put(key, emb, resp)
			}
			return resp, nil
		}
		if !IsRetryable(err) {
			// Configuration and semantic failures are not the next
			// provider's problem; surface them as-is.
			return "", err
		}
		c.logger.Warn("provider exhausted retries, falling back",
			zap.String("provider", name),
			zap.String("complexity", string(complexity)),
			zap.Error(err))
		failures = append(failures, fmt.Errorf("%s: %w", name, err))
	}
	return "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(failures...))
}

// callWithRetry retries retryable failures up to MaxAttempts with
// exponential backoff plus jitter, capped at MaxDelay.
func (c *Client) callWithRetry(ctx context.Context, p Provider, req Request) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		resp, err := p.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return "", err
		}
		if attempt == c.retry.MaxAttempts {
			break
		}
		delay := c.retry.BaseDelay << (attempt - 1)
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
		c.logger.Debug("retrying after backoff",
			zap.String("provider", p.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// Stats returns a snapshot of the call counters. Never blocks on
// in-flight calls.
func (c *Client) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s := Stats{
		TotalCalls:   c.totalCalls,
		CacheHits:    c.cacheHits,
		SemanticHits: c.semanticHits,
	}
	if s.TotalCalls > 0 {
		s.HitRate = float64(s.CacheHits+s.SemanticHits) / float64(s.TotalCalls)
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
