package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  addr: ":9090"

database:
  dialect: sqlite3
  dsn: "${TEST_DB_DSN:-bestboxd.db}"

llm:
  base_url: "http://localhost:11434/v1"
  model: "qwen2.5-14b"
  api_key_env: "LLM_API_KEY"

adapters:
  - kind: demo
    name: erp-demo
    domain: erp

personas:
  - agent: erp
    system_prompt: "You are the ERP specialist."
    tool_names: ["erp_count_purchase_orders"]

gpu:
  devices:
    - id: gpu-0
      classes: ["llm-primary", "ocr-vl"]
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bestboxd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_DecodesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_DSN", "file:test.db?cache=shared")
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "file:test.db?cache=shared", cfg.Database.DSN)
	assert.Equal(t, "qwen2.5-14b", cfg.LLM.Model)
	assert.Equal(t, 25, cfg.Retriever.TopK) // SetDefaults fan-out
	assert.Equal(t, 10, cfg.Graph.MaxToolCallsPerTurn)
	assert.Len(t, cfg.Adapters, 1)
	assert.Equal(t, "erp", cfg.Personas[0].Agent)
	assert.Len(t, cfg.GPU.Devices, 1)
}

func TestLoad_MissingRequiredFieldFailsValidation(t *testing.T) {
	path := writeTempConfig(t, `
llm:
  model: "qwen2.5-14b"
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "base_url")
}

func TestLoad_UnknownAdapterDomainFailsValidation(t *testing.T) {
	path := writeTempConfig(t, `
llm:
  base_url: "http://localhost:11434/v1"
  model: "qwen2.5-14b"
adapters:
  - kind: demo
    name: bad
    domain: finance
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "domain")
}

func TestResolveSecret(t *testing.T) {
	t.Setenv("MY_SECRET", "sekret")
	assert.Equal(t, "sekret", ResolveSecret("MY_SECRET"))
	assert.Equal(t, "", ResolveSecret(""))
}
