package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the settings required by the given mode are present
// and in range. Modes: "serve", "attribute", "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateStore()...)
	case "attribute":
	case "migrate":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.LLM.Provider {
	case "openrouter", "anthropic":
	default:
		errs = append(errs, "llm.provider must be openrouter or anthropic")
	}
	if c.LLM.TimeoutSecs <= 0 {
		errs = append(errs, "llm.timeout_secs must be > 0")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.Attribution.ChunkConcurrency < 1 || c.Attribution.ChunkConcurrency > 16 {
		errs = append(errs, "attribution.chunk_concurrency must be between 1 and 16")
	}
	if c.Attribution.ChunkChars <= 0 {
		errs = append(errs, "attribution.chunk_chars must be > 0")
	}
	if c.Attribution.SingleMaxTokens < c.Attribution.ChunkMaxTokens {
		errs = append(errs, "attribution.single_max_tokens must be >= attribution.chunk_max_tokens")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}
