package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the support-search service.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Registry   RegistryConfig   `json:"registry" yaml:"registry"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Embedding  EmbeddingConfig  `json:"embedding" yaml:"embedding"`
	VectorDB   VectorDBConfig   `json:"vectordb" yaml:"vectordb"`
	Assistants AssistantsConfig `json:"assistants" yaml:"assistants"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Timeouts   StageTimeouts    `json:"timeouts" yaml:"timeouts"`
	// HTTP tunes the hardened outbound HTTP client. Nil uses defaults.
	HTTP *HTTPClientConfig `json:"http,omitempty" yaml:"http,omitempty"`
}

// ServerConfig holds the HTTP transport settings.
type ServerConfig struct {
	Port        int    `json:"port,omitempty" yaml:"port,omitempty"`
	CORSOrigins string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

// RegistryConfig locates the client registry source file.
type RegistryConfig struct {
	Path string `json:"path" yaml:"path"`
}

// LLMConfig defines configuration for the completion model.
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // Available options: openai
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// EmbeddingConfig defines configuration for the embedding model.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // Available options: openai
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// VectorDBConfig defines configuration for the vector database backing the
// knowledge collections.
type VectorDBConfig struct {
	Provider string `json:"provider" yaml:"provider"` // Available options: qdrant, milvus
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	UseTLS   bool   `json:"use_tls,omitempty" yaml:"use_tls,omitempty"`
	// Collections maps logical collection names (JIRA, SAP, ...) to the
	// physical collection names provisioned in the store.
	Collections map[string]string `json:"collections,omitempty" yaml:"collections,omitempty"`
}

// PhysicalCollection resolves a logical collection name, falling back to the
// logical name itself when no mapping is configured.
func (v VectorDBConfig) PhysicalCollection(name string) string {
	if v.Collections != nil {
		if mapped, ok := v.Collections[name]; ok && mapped != "" {
			return mapped
		}
	}
	return name
}

// AssistantsConfig addresses the ERP specialist assistants.
type AssistantsConfig struct {
	APIKey         string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL        string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	SAPID          string `json:"sap_id,omitempty" yaml:"sap_id,omitempty"`
	NetSuiteID     string `json:"netsuite_id,omitempty" yaml:"netsuite_id,omitempty"`
	PollIntervalMS int    `json:"poll_interval_ms,omitempty" yaml:"poll_interval_ms,omitempty"`
	MaxPollSeconds int    `json:"max_poll_seconds,omitempty" yaml:"max_poll_seconds,omitempty"`
}

// AssistantID returns the assistant addressed for an ERP, empty when none is
// configured for it.
func (a AssistantsConfig) AssistantID(erp string) string {
	switch erp {
	case "SAP":
		return a.SAPID
	case "NetSuite":
		return a.NetSuiteID
	}
	return ""
}

// CacheConfig configures the two cache layers. Either layer may be left
// unconfigured; the cache then degrades gracefully.
type CacheConfig struct {
	RedisURL         string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	DatabasePath     string `json:"database_path,omitempty" yaml:"database_path,omitempty"`
	RawTTLSeconds    int    `json:"raw_ttl_seconds,omitempty" yaml:"raw_ttl_seconds,omitempty"`
	FormatTTLSeconds int    `json:"format_ttl_seconds,omitempty" yaml:"format_ttl_seconds,omitempty"`
}

// SearchConfig tunes the retrieval stage.
type SearchConfig struct {
	DefaultLimit     int  `json:"default_limit,omitempty" yaml:"default_limit,omitempty"`
	UseEmbedding     bool `json:"use_embedding" yaml:"use_embedding"`
	RecentWindowDays int  `json:"recent_window_days,omitempty" yaml:"recent_window_days,omitempty"`
	FuzzyThreshold   int  `json:"fuzzy_threshold,omitempty" yaml:"fuzzy_threshold,omitempty"`
}

// StageTimeouts sets the per-stage deadlines so a slow external call cannot
// hang a request.
type StageTimeouts struct {
	EnrichMS int `json:"enrich_ms,omitempty" yaml:"enrich_ms,omitempty"`
	SearchMS int `json:"search_ms,omitempty" yaml:"search_ms,omitempty"`
	FusionMS int `json:"fusion_ms,omitempty" yaml:"fusion_ms,omitempty"`
}

// HTTPClientConfig tunes the outbound HTTP client used for external AI
// services.
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty"`
}

// Load reads the YAML configuration file, overlays secrets from the
// environment, and applies defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.overlayEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// overlayEnv lets environment variables supply or override secrets so they
// never need to live in the YAML file.
func (c *Config) overlayEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
		if c.Assistants.APIKey == "" {
			c.Assistants.APIKey = v
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" && c.Cache.RedisURL == "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" && c.VectorDB.APIKey == "" {
		c.VectorDB.APIKey = v
	}
	if v := os.Getenv("CLIENTS_FILE"); v != "" && c.Registry.Path == "" {
		c.Registry.Path = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8000
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 300
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-ada-002"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.VectorDB.Provider == "" {
		c.VectorDB.Provider = "qdrant"
	}
	if c.VectorDB.Port <= 0 {
		c.VectorDB.Port = 6334
	}
	if c.Cache.RawTTLSeconds <= 0 {
		c.Cache.RawTTLSeconds = 3600
	}
	if c.Cache.FormatTTLSeconds <= 0 {
		c.Cache.FormatTTLSeconds = 3600
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 5
	}
	if c.Search.RecentWindowDays <= 0 {
		c.Search.RecentWindowDays = 180
	}
	if c.Search.FuzzyThreshold <= 0 {
		c.Search.FuzzyThreshold = 80
	}
	if c.Timeouts.EnrichMS <= 0 {
		c.Timeouts.EnrichMS = 5000
	}
	if c.Timeouts.SearchMS <= 0 {
		c.Timeouts.SearchMS = 10000
	}
	if c.Timeouts.FusionMS <= 0 {
		c.Timeouts.FusionMS = 60000
	}
	if c.Assistants.PollIntervalMS <= 0 {
		c.Assistants.PollIntervalMS = 1000
	}
	if c.Assistants.MaxPollSeconds <= 0 {
		c.Assistants.MaxPollSeconds = 45
	}
}
