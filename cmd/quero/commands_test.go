package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quero/internal/config"
	"quero/internal/domain"
	queroerr "quero/pkg/errors"
)

// isolate points HOME and the working directory at temp dirs so discovery
// and the default store location never touch the real user config.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	isolate(t)
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"chat", "add", "search", "init", "--config", "--debug"} {
		assert.Contains(t, out, sub)
	}
}

func TestInitCommand(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".quero", "config.yaml")

	out, err := run(t, "init", "--provider", "ollama", "--username", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ana", cfg.Username)
	assert.Equal(t, config.ProviderOllama, cfg.Embedder.Type)
	assert.Equal(t, "llama3.1:8b", cfg.Chat.Model)

	_, err = run(t, "init")
	require.Error(t, err)
	assert.True(t, queroerr.HasCode(err, queroerr.CodeCLIInputInvalid))

	_, err = run(t, "init", "--force", "--provider", "hashing")
	require.NoError(t, err)

	_, err = run(t, "init", "--force", "--provider", "cohere")
	require.Error(t, err)
	assert.True(t, queroerr.IsInvalidInput(err))
}

func TestInitCommand_OpenAIKeyHint(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "")
	cfgPath := filepath.Join(t.TempDir(), "quero.yaml")

	out, err := run(t, "init", "--provider", "openai", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Set OPENAI_API_KEY")
	assert.FileExists(t, cfgPath)
}

func TestAddAndSearchCommands(t *testing.T) {
	home := isolate(t)
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "garden.txt"),
		[]byte("Tomatoes need full sun. Water the basil every morning. Compost feeds the soil."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "trip.md"),
		[]byte("The train to Lisbon leaves at nine. Pack a light jacket."), 0o600))

	out, err := run(t, "add", docs)
	require.NoError(t, err)
	assert.Contains(t, out, "Remembered 2 chunks from 2 documents.")
	assert.FileExists(t, filepath.Join(home, ".quero", "embeddings.json"))
	assert.FileExists(t, filepath.Join(home, ".quero", "config.yaml"))

	out, err = run(t, "search", "-k", "1", "when", "does", "the", "train", "to", "Lisbon", "leave")
	require.NoError(t, err)
	assert.Contains(t, out, "1. [")
	assert.Contains(t, out, "trip.md")
	assert.NotContains(t, out, "2. [")
}

func TestSearchCommand_EmptyStore(t *testing.T) {
	isolate(t)
	out, err := run(t, "search", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing remembered yet")
}

func TestAddCommand_NoDocuments(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pic.png"), []byte("x"), 0o600))

	_, err := run(t, "add", dir)
	require.Error(t, err)
	assert.True(t, queroerr.IsNotFound(err))
}

func TestAddCommand_MalformedStore(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".quero"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".quero", "embeddings.json"), []byte(`{"not":"an array"}`), 0o600))
	doc := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Hello."), 0o600))

	_, err := run(t, "add", doc)
	require.Error(t, err)
	assert.True(t, queroerr.IsMalformedStoreFile(err))
}

func TestNewChatModel(t *testing.T) {
	chat, err := newChatModel(config.ChatConfig{Provider: config.ProviderNone})
	require.NoError(t, err)
	assert.Nil(t, chat)

	chat, err = newChatModel(config.ChatConfig{Provider: config.ProviderOllama, Model: "llama3.1:8b", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, config.ProviderOllama, chat.Name())

	t.Setenv("QUERO_MISSING_KEY", "")
	_, err = newChatModel(config.ChatConfig{Provider: config.ProviderOpenAI, Model: "gpt-5-mini-2025-08-07", APIKeyEnv: "QUERO_MISSING_KEY"})
	require.Error(t, err)

	_, err = newChatModel(config.ChatConfig{Provider: "cohere"})
	require.Error(t, err)
	assert.True(t, queroerr.HasCode(err, queroerr.CodeConfigValidateInvalidValue))
}

func TestNewChatModel_DefaultOpenAIRequest(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"hi"},"finish_reason":"stop"}]}`+"\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.ForProvider(config.ProviderOpenAI)
	require.NoError(t, err)
	cfg.Chat.BaseURL = srv.URL + "/v1"

	chat, err := newChatModel(cfg.Chat)
	require.NoError(t, err)
	reply, err := chat.Stream(context.Background(), "", []domain.Message{{Role: domain.RoleUser, Content: "hello"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)

	assert.Equal(t, "gpt-5-mini-2025-08-07", body["model"])
	assert.NotContains(t, body, "temperature")
}
