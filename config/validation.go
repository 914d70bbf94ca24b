package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every problem found in one pass so operators
// can fix the whole file at once.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "config: no errors"
	}
	msgs := make([]string, 0, len(e))
	for _, ve := range e {
		msgs = append(msgs, ve.Error())
	}
	return strings.Join(msgs, "; ")
}

var supportedLLMProviders = map[string]bool{"openai": true}
var supportedEmbeddingProviders = map[string]bool{"openai": true}
var supportedVectorDBProviders = map[string]bool{"qdrant": true, "milvus": true}

// Validate checks the configuration after defaults are applied. It returns
// ValidationErrors listing every invalid field, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{"server.port", fmt.Sprintf("invalid port %d", c.Server.Port)})
	}
	if c.Registry.Path == "" {
		errs = append(errs, ValidationError{"registry.path", "client registry file is required"})
	}
	if !supportedLLMProviders[c.LLM.Provider] {
		errs = append(errs, ValidationError{"llm.provider", fmt.Sprintf("unsupported provider %q", c.LLM.Provider)})
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, ValidationError{"llm.api_key", "api key is required (or set OPENAI_API_KEY)"})
	}
	if !supportedEmbeddingProviders[c.Embedding.Provider] {
		errs = append(errs, ValidationError{"embedding.provider", fmt.Sprintf("unsupported provider %q", c.Embedding.Provider)})
	}
	if !supportedVectorDBProviders[c.VectorDB.Provider] {
		errs = append(errs, ValidationError{"vectordb.provider", fmt.Sprintf("unsupported provider %q", c.VectorDB.Provider)})
	}
	if c.VectorDB.Host == "" {
		errs = append(errs, ValidationError{"vectordb.host", "host is required"})
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 100 {
		errs = append(errs, ValidationError{"search.fuzzy_threshold", "must be between 0 and 100"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
