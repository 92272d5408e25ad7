package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/careplan-cli/internal/resilience"
	"github.com/sells-group/careplan-cli/pkg/openrouter"
)

func newOpenRouterServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenRouterProvider_Complete(t *testing.T) {
	var got openrouter.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"1","model":"openai/gpt-oss-20b:free","choices":[{"index":0,"message":{"role":"assistant","content":"{\"sections\":[]}"}}],"usage":{"prompt_tokens":120,"completion_tokens":30}}`))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(openrouter.NewClient("k", openrouter.WithBaseURL(srv.URL)), "openai/gpt-oss-20b:free")
	comp, err := p.Complete(context.Background(), Request{
		System:      "sys",
		User:        "usr",
		Temperature: 0.1,
		MaxTokens:   6000,
		CallType:    CallSingle,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"sections":[]}`, comp.Text)
	assert.Equal(t, "openai/gpt-oss-20b:free", comp.Model)
	assert.Equal(t, 120, comp.InputTokens)
	assert.Equal(t, 30, comp.OutputTokens)

	assert.Equal(t, "openai/gpt-oss-20b:free", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openrouter.Message{Role: "system", Content: "sys"}, got.Messages[0])
	assert.Equal(t, openrouter.Message{Role: "user", Content: "usr"}, got.Messages[1])
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.1, *got.Temperature, 1e-9)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 6000, *got.MaxTokens)
}

func TestOpenRouterProvider_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantIs        error
		wantTransient bool
		wantContains  string
	}{
		{
			name:          "server_error",
			status:        http.StatusBadGateway,
			body:          `upstream unavailable`,
			wantIs:        ErrTransport,
			wantTransient: true,
			wantContains:  "status 502: upstream unavailable",
		},
		{
			name:         "unauthorized",
			status:       http.StatusUnauthorized,
			body:         `{"error":"bad key"}`,
			wantIs:       ErrTransport,
			wantContains: "status 401",
		},
		{
			name:          "rate_limited",
			status:        http.StatusTooManyRequests,
			body:          `slow down`,
			wantIs:        ErrTransport,
			wantTransient: true,
		},
		{
			name:   "no_choices",
			status: http.StatusOK,
			body:   `{"id":"1","choices":[]}`,
			wantIs: ErrInvalidResponse,
		},
		{
			name:   "missing_message",
			status: http.StatusOK,
			body:   `{"id":"1","choices":[{"index":0}]}`,
			wantIs: ErrInvalidResponse,
		},
		{
			name:   "malformed_body",
			status: http.StatusOK,
			body:   `not json`,
			wantIs: ErrInvalidResponse,
		},
		{
			name:   "blank_content",
			status: http.StatusOK,
			body:   `{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"  \n "}}]}`,
			wantIs: ErrEmptyGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOpenRouterServer(t, tt.status, tt.body)
			p := NewOpenRouterProvider(openrouter.NewClient("k", openrouter.WithBaseURL(srv.URL)), "m")

			comp, err := p.Complete(context.Background(), Request{User: "x"})
			require.Error(t, err)
			assert.Nil(t, comp)
			assert.True(t, errors.Is(err, tt.wantIs), "got %v", err)
			assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
			if tt.wantContains != "" {
				assert.Contains(t, err.Error(), tt.wantContains)
			}

			var te *TransportError
			if errors.As(err, &te) {
				assert.Equal(t, tt.status, te.StatusCode)
			}
		})
	}
}

func TestOpenRouterProvider_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewOpenRouterProvider(openrouter.NewClient("k", openrouter.WithBaseURL(url)), "m")
	_, err := p.Complete(context.Background(), Request{User: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, "transport", Outcome(err))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "transport", Outcome(&TransportError{Provider: "p", StatusCode: 500}))
	assert.Equal(t, "invalid_response", Outcome(ErrInvalidResponse))
	assert.Equal(t, "empty", Outcome(ErrEmptyGeneration))
	assert.Equal(t, "circuit_open", Outcome(&TransportError{Provider: "p", Err: resilience.ErrCircuitOpen}))
	assert.Equal(t, "error", Outcome(errors.New("other")))
}
