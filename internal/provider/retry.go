package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/observability"
)

// Settings tune the calls made for one purpose.
type Settings struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration // first attempt
	TimeoutStep time.Duration // added per further attempt
	MaxAttempts int
}

// Policy is the retry configuration shared by every caller, with
// per-purpose overrides.
type Policy struct {
	Default  Settings
	Purposes map[string]Settings

	RateLimitBackoff  time.Duration
	RateLimitStep     time.Duration
	TimeoutBackoff    time.Duration
	ServerBackoff     time.Duration
	ConnectionBackoff time.Duration
}

func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultConfig())
}

func PolicyFromConfig(cfg *config.Config) Policy {
	r := cfg.Reasoning
	p := Policy{
		Default: Settings{
			MaxTokens:   800,
			Temperature: 0.7,
			Timeout:     r.Timeout,
			TimeoutStep: r.TimeoutStep,
			MaxAttempts: r.MaxAttempts,
		},
		Purposes:          make(map[string]Settings, len(r.Purposes)),
		RateLimitBackoff:  r.RateLimitBackoff,
		RateLimitStep:     r.RateLimitStep,
		TimeoutBackoff:    r.TimeoutBackoff,
		ServerBackoff:     r.ServerBackoff,
		ConnectionBackoff: r.ConnectionBackoff,
	}
	for name := range r.Purposes {
		pc := cfg.Purpose(name)
		p.Purposes[name] = Settings{
			MaxTokens:   pc.MaxTokens,
			Temperature: pc.Temperature,
			Timeout:     pc.Timeout,
			TimeoutStep: pc.TimeoutStep,
			MaxAttempts: pc.MaxAttempts,
		}
	}
	return p
}

// For returns the settings for purpose, falling back to the default.
func (p Policy) For(purpose string) Settings {
	s, ok := p.Purposes[purpose]
	if !ok {
		s = p.Default
	}
	if s.MaxAttempts < 1 {
		s.MaxAttempts = 1
	}
	if s.Timeout <= 0 {
		s.Timeout = p.Default.Timeout
	}
	return s
}

// backoff is the pause before the attempt after a failure of kind.
func (p Policy) backoff(kind Kind, attempt int) time.Duration {
	switch kind {
	case KindRateLimited:
		return p.RateLimitBackoff + time.Duration(attempt)*p.RateLimitStep
	case KindTimeout:
		return p.TimeoutBackoff
	case KindConnection:
		return p.ConnectionBackoff
	default:
		return p.ServerBackoff
	}
}

// Client wraps a Provider with the retry policy, request pacing and
// metrics. It is safe to share between sessions; every Call retries
// independently.
type Client struct {
	inner   Provider
	policy  Policy
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *observability.Metrics
}

type ClientOption func(*Client)

// WithRequestsPerMinute paces calls; zero disables pacing.
func WithRequestsPerMinute(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(p Provider, policy Policy, opts ...ClientOption) *Client {
	c := &Client{
		inner:   p,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("reasoning")
	return c
}

func (c *Client) Provider() Provider { return c.inner }

func (c *Client) Policy() Policy { return c.policy }

// Call sends msgs with the settings for purpose. Rate limits, timeouts and
// server errors are retried until the purpose's attempts run out, after
// which the error wraps ErrNoResult. Cancelling ctx stops immediately.
func (c *Client) Call(ctx context.Context, purpose string, msgs ...Message) (string, error) {
	s := c.policy.For(purpose)
	start := time.Now()
	defer func() { c.metrics.RecordReasoningLatency(purpose, time.Since(start)) }()

	var lastErr error
	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		timeout := s.Timeout + time.Duration(attempt)*s.TimeoutStep
		c.logger.Debug("reasoning call",
			zap.String("purpose", purpose),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", s.MaxAttempts),
			zap.Duration("timeout", timeout),
		)

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		text, err := c.inner.Complete(attemptCtx, Request{
			Messages:    msgs,
			MaxTokens:   s.MaxTokens,
			Temperature: s.Temperature,
		})
		cancel()

		if err == nil {
			c.metrics.RecordReasoning(purpose, "ok")
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		kind := KindOf(err)
		c.metrics.RecordReasoning(purpose, kind.String())
		c.logger.Warn("reasoning call failed",
			zap.String("purpose", purpose),
			zap.Int("attempt", attempt+1),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)

		if attempt == s.MaxAttempts-1 {
			break
		}
		if err := sleep(ctx, c.policy.backoff(kind, attempt)); err != nil {
			return "", err
		}
	}

	c.metrics.RecordReasoning(purpose, "exhausted")
	return "", fmt.Errorf("%w: %s after %d attempts: %w", ErrNoResult, purpose, s.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
