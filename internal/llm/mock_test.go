package llm

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/careplan-cli/pkg/anthropic"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Scripted Provider ---

// scriptedProvider returns results from a queue, one per call, and repeats
// the last entry once the queue is exhausted.
type scriptedProvider struct {
	mu      sync.Mutex
	results []scriptedResult
	calls   int
	block   bool
}

type scriptedResult struct {
	comp *Completion
	err  error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, _ Request) (*Completion, error) {
	p.mu.Lock()
	i := p.calls
	p.calls++
	block := p.block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, newTransportError(p.Name(), 0, "", ctx.Err())
	}
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	r := p.results[i]
	return r.comp, r.err
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
