package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careplan-cli/internal/attribution"
	"github.com/sells-group/careplan-cli/internal/config"
	"github.com/sells-group/careplan-cli/internal/cost"
	"github.com/sells-group/careplan-cli/internal/llm"
	"github.com/sells-group/careplan-cli/internal/monitoring"
	"github.com/sells-group/careplan-cli/internal/resilience"
	"github.com/sells-group/careplan-cli/internal/store"
	"github.com/sells-group/careplan-cli/pkg/anthropic"
	"github.com/sells-group/careplan-cli/pkg/openrouter"
)

// initStore opens the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// initProvider builds the raw completion provider selected by llm.provider.
func initProvider(c *config.Config) (llm.Provider, error) {
	timeout := time.Duration(c.LLM.TimeoutSecs) * time.Second
	switch c.LLM.Provider {
	case "", "openrouter":
		opts := []openrouter.Option{
			openrouter.WithModel(c.LLM.Model),
			openrouter.WithTimeout(timeout),
			openrouter.WithAppInfo(c.LLM.AppURL, c.LLM.AppTitle),
		}
		if c.LLM.BaseURL != "" {
			opts = append(opts, openrouter.WithBaseURL(c.LLM.BaseURL))
		}
		return llm.NewOpenRouterProvider(openrouter.NewClient(c.LLM.APIKey, opts...), c.LLM.Model), nil
	case "anthropic":
		client := anthropic.NewClient(c.Anthropic.Key, option.WithRequestTimeout(timeout))
		return llm.NewAnthropicProvider(client, c.Anthropic.Model), nil
	default:
		return nil, eris.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
}

// guardConfig translates the llm settings into provider protections.
func guardConfig(c *config.Config, provider string) llm.GuardConfig {
	retry := resilience.FromConfig(c.LLM.MaxAttempts, c.LLM.InitialBackoffMs, c.LLM.MaxBackoffMs)
	retry.OnRetry = resilience.RetryLogger(provider, "attribution")

	return llm.GuardConfig{
		Timeout: time.Duration(c.LLM.TimeoutSecs) * time.Second,
		Retry:   retry,
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: c.LLM.BreakerThreshold,
			ResetTimeout:     time.Duration(c.LLM.BreakerResetSecs) * time.Second,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("provider circuit state changed",
					zap.String("provider", provider),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		},
		RateLimit: c.LLM.RateLimit,
		RateBurst: c.LLM.RateBurst,
	}
}

// costRates converts configured pricing into calculator rates.
func costRates(p config.PricingConfig) cost.Rates {
	rates := cost.Rates{Models: make(map[string]cost.ModelRate, len(p.Models))}
	for id, m := range p.Models {
		rates.Models[id] = cost.ModelRate{
			Input:         m.Input,
			Output:        m.Output,
			CacheWriteMul: m.CacheWriteMul,
			CacheReadMul:  m.CacheReadMul,
		}
	}
	return rates
}

// attributionConfig maps config onto generator settings. The key and model
// follow the selected provider.
func attributionConfig(c *config.Config) attribution.Config {
	ac := attribution.Config{
		APIKey:           c.LLM.APIKey,
		Model:            c.LLM.Model,
		Temperature:      c.LLM.Temperature,
		TokenThreshold:   c.Attribution.TokenThreshold,
		ChunkChars:       c.Attribution.ChunkChars,
		SingleMaxTokens:  c.Attribution.SingleMaxTokens,
		ChunkMaxTokens:   c.Attribution.ChunkMaxTokens,
		ChunkConcurrency: c.Attribution.ChunkConcurrency,
	}
	if c.LLM.Provider == "anthropic" {
		ac.APIKey = c.Anthropic.Key
		ac.Model = c.Anthropic.Model
	}
	return ac
}

// initGenerator wires the provider, its guard and the attribution generator.
func initGenerator(c *config.Config, metrics *monitoring.Metrics) (*attribution.Generator, error) {
	provider, err := initProvider(c)
	if err != nil {
		return nil, err
	}

	guarded := llm.NewGuard(provider, guardConfig(c, provider.Name()),
		llm.WithMetrics(metrics),
		llm.WithCostCalculator(cost.NewCalculator(costRates(c.Pricing))),
	)

	return attribution.New(attributionConfig(c), guarded, attribution.WithMetrics(metrics)), nil
}
