package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/careplan-cli/internal/cost"
	"github.com/sells-group/careplan-cli/internal/monitoring"
	"github.com/sells-group/careplan-cli/internal/resilience"
)

// GuardConfig controls the protections applied around a Provider.
type GuardConfig struct {
	// Timeout bounds each individual attempt. Default: 60s.
	Timeout time.Duration

	// Retry controls retries of transient failures. The zero value makes a
	// single attempt.
	Retry resilience.RetryConfig

	// Breaker configures the circuit breaker shared by all calls.
	Breaker resilience.CircuitBreakerConfig

	// RateLimit is the sustained request rate per second. Zero or negative
	// disables limiting.
	RateLimit float64

	// RateBurst is the limiter bucket size. Default: 1.
	RateBurst int
}

// Guard decorates a Provider with rate limiting, a circuit breaker, retries,
// a per-attempt timeout, metrics and cost logging.
type Guard struct {
	next    Provider
	cfg     GuardConfig
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	metrics *monitoring.Metrics
	costs   *cost.Calculator
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithMetrics records every call on m.
func WithMetrics(m *monitoring.Metrics) GuardOption {
	return func(g *Guard) { g.metrics = m }
}

// WithCostCalculator logs the estimated USD cost of every successful call.
func WithCostCalculator(c *cost.Calculator) GuardOption {
	return func(g *Guard) { g.costs = c }
}

// NewGuard wraps next with the protections described by cfg.
func NewGuard(next Provider, cfg GuardConfig, opts ...GuardOption) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	g := &Guard{
		next:    next,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.RateBurst),
		breaker: resilience.NewCircuitBreaker(cfg.Breaker),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Name implements Provider.
func (g *Guard) Name() string { return g.next.Name() }

// Breaker exposes the circuit breaker for status reporting.
func (g *Guard) Breaker() *resilience.CircuitBreaker { return g.breaker }

// Complete implements Provider.
func (g *Guard) Complete(ctx context.Context, req Request) (*Completion, error) {
	start := time.Now()

	retry := g.cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(g.Name(), req.CallType)
	}

	comp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*Completion, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Provider: g.Name(), Err: err}
		}
		return resilience.ExecuteVal(ctx, g.breaker, g.attempt(req))
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = &TransportError{Provider: g.Name(), Err: err}
	}

	elapsed := time.Since(start)
	g.metrics.ObserveLLMRequest(g.Name(), req.CallType, Outcome(err), elapsed)

	if err != nil {
		zap.L().Warn("llm: completion failed",
			zap.String("provider", g.Name()),
			zap.String("call_type", req.CallType),
			zap.String("outcome", Outcome(err)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	fields := []zap.Field{
		zap.String("provider", g.Name()),
		zap.String("call_type", req.CallType),
		zap.String("model", comp.Model),
		zap.Int("input_tokens", comp.InputTokens),
		zap.Int("output_tokens", comp.OutputTokens),
		zap.Duration("elapsed", elapsed),
	}
	if g.costs != nil {
		usd := g.costs.Call(comp.Model, cost.Usage{
			InputTokens:      comp.InputTokens,
			OutputTokens:     comp.OutputTokens,
			CacheWriteTokens: comp.CacheWriteTokens,
			CacheReadTokens:  comp.CacheReadTokens,
		})
		fields = append(fields, zap.Float64("cost_usd", usd))
	}
	zap.L().Debug("llm: completion", fields...)

	return comp, nil
}

func (g *Guard) attempt(req Request) func(ctx context.Context) (*Completion, error) {
	return func(ctx context.Context) (*Completion, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
		return g.next.Complete(callCtx, req)
	}
}
