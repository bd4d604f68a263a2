package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	queroerr "quero/pkg/errors"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderHashing, cfg.Embedder.Type)
	assert.Equal(t, 512, cfg.Embedder.Dimensions)
	assert.Equal(t, ProviderNone, cfg.Chat.Provider)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 20, cfg.History.MaxMessages)
	assert.Equal(t, 3, cfg.Summarizer.MaxSentences)
	assert.Equal(t, filepath.Join(home, ".quero", "embeddings.json"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(home, ".quero", "quero.log"), cfg.Log.Path)
}

func TestLoad_ProviderDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quero.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
username: ana
embedder:
  type: openai
chat:
  provider: ollama
store:
  path: /tmp/store.json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ana", cfg.Username)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 30, cfg.Embedder.TimeoutSecs)
	assert.Equal(t, 32, cfg.Embedder.BatchSize)

	assert.Equal(t, "http://localhost:11434/v1", cfg.Chat.BaseURL)
	assert.Equal(t, "llama3.1:8b", cfg.Chat.Model)
	assert.Empty(t, cfg.Chat.APIKeyEnv)
	require.NotNil(t, cfg.Chat.Temperature)
	assert.InDelta(t, 0.5, *cfg.Chat.Temperature, 1e-9)

	assert.Equal(t, "/tmp/store.json", cfg.Store.Path)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quero.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: ollama
  model: mxbai-embed-large
  base_url: http://gpu-box:11434/v1
chat:
  provider: openai
  model: gpt-4o-mini
  temperature: 0.1
retrieval:
  top_k: 8
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedder.Model)
	assert.Equal(t, "http://gpu-box:11434/v1", cfg.Embedder.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Chat.Model)
	require.NotNil(t, cfg.Chat.Temperature)
	assert.InDelta(t, 0.1, *cfg.Chat.Temperature, 1e-9)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
}

func TestLoad_OpenAIChatLeavesTemperatureUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quero.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  provider: openai\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-mini-2025-08-07", cfg.Chat.Model)
	assert.Nil(t, cfg.Chat.Temperature)

	// An explicit zero is kept rather than replaced by a default.
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  provider: ollama\n  temperature: 0\n"), 0o600))
	cfg, err = Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Chat.Temperature)
	assert.Zero(t, *cfg.Chat.Temperature)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quero.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, queroerr.CodeConfigParseInvalidFormat, queroerr.CodeOf(err))
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".quero", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, filepath.Join(home, ".quero", "embeddings.json"), cfg.Store.Path)

	// The saved file keeps the unexpanded form so it survives a home move.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "~/.quero/embeddings.json")
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("quero.yaml", []byte("username: local\n"), 0o600))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "quero.yaml", path)
	assert.Equal(t, "local", cfg.Username)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := ForProvider(ProviderOpenAI)
	require.NoError(t, err)
	cfg.Username = "sam"

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sam", got.Username)
	assert.Equal(t, cfg.Embedder, got.Embedder)
	assert.Equal(t, cfg.Chat, got.Chat)
}

func TestForProvider(t *testing.T) {
	cfg, err := ForProvider(ProviderOllama)
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, cfg.Embedder.Type)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Model)
	assert.Equal(t, ProviderOllama, cfg.Chat.Provider)

	cfg, err = ForProvider(ProviderHashing)
	require.NoError(t, err)
	assert.Equal(t, ProviderNone, cfg.Chat.Provider)

	_, err = ForProvider("cohere")
	require.Error(t, err)
	assert.True(t, queroerr.HasCode(err, queroerr.CodeConfigValidateInvalidValue))
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/q")
	assert.Equal(t, "/home/q/.quero/x.json", expandPath("~/.quero/x.json"))
	assert.Equal(t, "/home/q", expandPath("~"))
	assert.Equal(t, "relative/x.json", expandPath("relative/x.json"))
	assert.Equal(t, "~other/x", expandPath("~other/x"))
}

func TestPlaceholderKey(t *testing.T) {
	t.Setenv("QUERO_OLLAMA_KEY", "")
	assert.Equal(t, "ollama", PlaceholderKey(ProviderOllama, ""))
	assert.Equal(t, "ollama", PlaceholderKey(ProviderOllama, "QUERO_OLLAMA_KEY"))
	assert.Empty(t, PlaceholderKey(ProviderOpenAI, ""))

	t.Setenv("QUERO_OLLAMA_KEY", "proxy-secret")
	assert.Empty(t, PlaceholderKey(ProviderOllama, "QUERO_OLLAMA_KEY"))
}
