package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
registry:
  path: clients.csv
vectordb:
  host: localhost
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 300, cfg.LLM.MaxTokens)
	assert.Equal(t, "text-embedding-ada-002", cfg.Embedding.Model)
	assert.Equal(t, "qdrant", cfg.VectorDB.Provider)
	assert.Equal(t, 6334, cfg.VectorDB.Port)
	assert.Equal(t, 3600, cfg.Cache.RawTTLSeconds)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 180, cfg.Search.RecentWindowDays)
	assert.Equal(t, 80, cfg.Search.FuzzyThreshold)
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	path := writeConfig(t, `
registry:
  path: clients.csv
vectordb:
  host: localhost
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-env", cfg.Assistants.APIKey)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
}

func TestLoadEnvDoesNotOverrideFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	path := writeConfig(t, `
registry:
  path: clients.csv
llm:
  api_key: sk-file
vectordb:
  host: localhost
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.VectorDB.Provider = "chroma"
	err := cfg.Validate()
	require.Error(t, err)
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	fields := make(map[string]bool)
	for _, ve := range verrs {
		fields[ve.Field] = true
	}
	assert.True(t, fields["registry.path"])
	assert.True(t, fields["llm.api_key"])
	assert.True(t, fields["vectordb.provider"])
	assert.True(t, fields["vectordb.host"])
}

func TestPhysicalCollection(t *testing.T) {
	v := VectorDBConfig{Collections: map[string]string{"JIRA": "prod_jira"}}
	assert.Equal(t, "prod_jira", v.PhysicalCollection("JIRA"))
	assert.Equal(t, "SAP", v.PhysicalCollection("SAP"))
}

func TestAssistantID(t *testing.T) {
	a := AssistantsConfig{SAPID: "asst_sap", NetSuiteID: "asst_ns"}
	assert.Equal(t, "asst_sap", a.AssistantID("SAP"))
	assert.Equal(t, "asst_ns", a.AssistantID("NetSuite"))
	assert.Equal(t, "", a.AssistantID("Dynamics"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
