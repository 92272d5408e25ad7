// Package attribution maps every statement of a generated care plan to the
// patient data, clinical reasoning or standard practice that supports it.
package attribution

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/careplan-cli/internal/llm"
	"github.com/sells-group/careplan-cli/internal/model"
	"github.com/sells-group/careplan-cli/internal/monitoring"
)

// Strategy labels used in logs and metrics.
const (
	StrategySingle  = "single"
	StrategyChunked = "chunked"
)

// Config holds the generator settings. Zero numeric fields take the values
// from DefaultConfig.
type Config struct {
	// APIKey is the provider credential. Generate refuses to run without it.
	APIKey string
	// Model is requested from the provider and reported as model_used.
	Model string
	// Temperature is the sampling temperature. Zero means the default of 0.1.
	Temperature float64
	// TokenThreshold is the estimated input size above which the care plan
	// is chunked.
	TokenThreshold   int
	ChunkChars       int
	SingleMaxTokens  int
	ChunkMaxTokens   int
	ChunkConcurrency int
}

// DefaultConfig returns the production settings without an API key.
func DefaultConfig() Config {
	return Config{
		Model:            "openai/gpt-oss-20b:free",
		Temperature:      0.1,
		TokenThreshold:   5000,
		ChunkChars:       2000,
		SingleMaxTokens:  6000,
		ChunkMaxTokens:   3000,
		ChunkConcurrency: 1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Temperature <= 0 {
		c.Temperature = d.Temperature
	}
	if c.TokenThreshold <= 0 {
		c.TokenThreshold = d.TokenThreshold
	}
	if c.ChunkChars <= 0 {
		c.ChunkChars = d.ChunkChars
	}
	if c.SingleMaxTokens <= 0 {
		c.SingleMaxTokens = d.SingleMaxTokens
	}
	if c.ChunkMaxTokens <= 0 {
		c.ChunkMaxTokens = d.ChunkMaxTokens
	}
	if c.ChunkConcurrency <= 0 {
		c.ChunkConcurrency = d.ChunkConcurrency
	}
	return c
}

// Generator produces source attribution documents.
type Generator struct {
	cfg      Config
	provider llm.Provider
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithMetrics records run and chunk outcomes on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithClock overrides the clock used for generated_at.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a Generator that calls provider.
func New(cfg Config, provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		cfg:      cfg.withDefaults(),
		provider: provider,
		now:      time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate attributes every statement of carePlanText to evidence in
// patientRecordText.
//
// It returns a *ConfigurationError, before contacting the provider, when no
// API key is configured. Inputs whose estimated size is within the token
// threshold are attributed in one call: provider failures are returned as a
// *GenerationError, while output that cannot be parsed yields the Fallback
// document. Larger inputs are chunked; a failed chunk contributes no sections
// and the run itself never fails.
func (g *Generator) Generate(ctx context.Context, carePlanText, patientRecordText string) (*model.SourceAttribution, error) {
	if g.cfg.APIKey == "" {
		return nil, &ConfigurationError{Setting: "provider API key"}
	}

	systemTokens := EstimateTokens(SystemPrompt)
	planTokens := EstimateTokens(carePlanText)
	recordTokens := EstimateTokens(patientRecordText)
	total := systemTokens + planTokens + recordTokens

	log := zap.L().With(zap.String("component", "attribution"))
	log.Info("token estimation",
		zap.Int("system_tokens", systemTokens),
		zap.Int("care_plan_tokens", planTokens),
		zap.Int("patient_record_tokens", recordTokens),
		zap.Int("total_tokens", total),
		zap.Int("threshold", g.cfg.TokenThreshold),
	)

	if total > g.cfg.TokenThreshold {
		return g.generateChunked(ctx, log, carePlanText, patientRecordText), nil
	}
	return g.generateSingle(ctx, log, carePlanText, patientRecordText)
}

func (g *Generator) generateSingle(ctx context.Context, log *zap.Logger, carePlanText, patientRecordText string) (*model.SourceAttribution, error) {
	log = log.With(zap.String("strategy", StrategySingle))

	comp, err := g.provider.Complete(ctx, g.request(llm.CallSingle, BuildUserPrompt(carePlanText, patientRecordText)))
	if err != nil {
		g.metrics.ObserveAttribution(StrategySingle, "error")
		log.Error("attribution call failed",
			zap.Int("care_plan_chars", len(carePlanText)),
			zap.Int("patient_record_chars", len(patientRecordText)),
			zap.Error(err),
		)
		return nil, &GenerationError{Err: err}
	}

	sections, err := ParseResponse(comp.Text)
	if err != nil {
		g.metrics.ObserveAttribution(StrategySingle, "fallback")
		log.Warn("unparseable attribution response, using fallback document", zap.Error(err))
		log.Debug("raw attribution response", zap.String("raw", comp.Text))
		return Fallback(g.now(), g.cfg.Model), nil
	}

	g.metrics.ObserveAttribution(StrategySingle, "ok")
	log.Info("generated source attribution",
		zap.Int("sections", len(sections)),
	)
	return g.document(sections), nil
}

func (g *Generator) generateChunked(ctx context.Context, log *zap.Logger, carePlanText, patientRecordText string) *model.SourceAttribution {
	log = log.With(zap.String("strategy", StrategyChunked))

	chunks := ChunkText(carePlanText, g.cfg.ChunkChars)
	log.Info("large input, using chunked attribution",
		zap.Int("chunks", len(chunks)),
		zap.Int("concurrency", g.cfg.ChunkConcurrency),
	)

	results := make([][]model.AttributionSection, len(chunks))
	failed := make([]bool, len(chunks))

	var eg errgroup.Group
	eg.SetLimit(g.cfg.ChunkConcurrency)
	for i, chunk := range chunks {
		eg.Go(func() error {
			sections, err := g.attributeChunk(ctx, chunk, patientRecordText)
			if err != nil {
				failed[i] = true
				g.metrics.ObserveChunk("failed")
				log.Warn("skipping chunk",
					zap.Int("chunk", i+1),
					zap.Int("of", len(chunks)),
					zap.Error(err),
				)
				return nil
			}
			results[i] = sections
			g.metrics.ObserveChunk("ok")
			log.Debug("processed chunk",
				zap.Int("chunk", i+1),
				zap.Int("of", len(chunks)),
				zap.Int("chars", len(chunk)),
				zap.Int("sections", len(sections)),
			)
			return nil
		})
	}
	_ = eg.Wait()

	merged := []model.AttributionSection{}
	failures := 0
	for i := range chunks {
		if failed[i] {
			failures++
			continue
		}
		merged = append(merged, results[i]...)
	}

	outcome := "ok"
	if failures > 0 {
		outcome = "partial"
	}
	g.metrics.ObserveAttribution(StrategyChunked, outcome)
	log.Info("generated chunked source attribution",
		zap.Int("sections", len(merged)),
		zap.Int("failed_chunks", failures),
	)

	return g.document(merged)
}

func (g *Generator) attributeChunk(ctx context.Context, chunk, patientRecordText string) ([]model.AttributionSection, error) {
	comp, err := g.provider.Complete(ctx, g.request(llm.CallChunk, BuildUserPrompt(chunk, patientRecordText)))
	if err != nil {
		return nil, err
	}
	sections, err := ParseResponse(comp.Text)
	if err != nil {
		zap.L().Debug("raw chunk response", zap.String("raw", comp.Text))
		return nil, err
	}
	return sections, nil
}

func (g *Generator) request(callType, user string) llm.Request {
	maxTokens := g.cfg.SingleMaxTokens
	if callType == llm.CallChunk {
		maxTokens = g.cfg.ChunkMaxTokens
	}
	return llm.Request{
		Model:       g.cfg.Model,
		System:      SystemPrompt,
		User:        user,
		Temperature: g.cfg.Temperature,
		MaxTokens:   maxTokens,
		CallType:    callType,
	}
}

func (g *Generator) document(sections []model.AttributionSection) *model.SourceAttribution {
	return &model.SourceAttribution{
		Sections:    sections,
		GeneratedAt: g.now().UTC(),
		ModelUsed:   g.cfg.Model,
	}
}

// Fallback returns the placeholder document used when the model output could
// not be recovered.
func Fallback(now time.Time, modelUsed string) *model.SourceAttribution {
	return &model.SourceAttribution{
		Sections: []model.AttributionSection{
			{
				Section: model.FallbackSection,
				Statements: []model.AttributionStatement{
					{
						Statement:       model.FallbackStatement,
						Sources:         []string{model.FallbackSource},
						AttributionType: model.AttributionStandardPractice,
					},
				},
			},
		},
		GeneratedAt: now.UTC(),
		ModelUsed:   modelUsed,
	}
}
