// Package llm adapts completion providers to the single call shape used by
// the attribution pipeline and guards them with rate limiting, retries and a
// circuit breaker.
package llm

import "context"

// Call types label a request for max-token selection, metrics and logs.
const (
	CallSingle = "single"
	CallChunk  = "chunk"
)

// Request is one system+user completion request.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	CallType    string
}

// Completion is the text returned by a provider plus its usage.
type Completion struct {
	Text             string
	Model            string
	InputTokens      int
	OutputTokens     int
	CacheWriteTokens int
	CacheReadTokens  int
}

// Provider performs a single completion call.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}
