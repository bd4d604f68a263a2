package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	queroerr "quero/pkg/errors"
)

// Provider names shared by the embedder and chat sections.
const (
	ProviderHashing = "hashing"
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderNone    = "none"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOllamaBaseURL = "http://localhost:11434/v1"
	defaultAPIKeyEnv     = "OPENAI_API_KEY"

	defaultOllamaTemperature = 0.5
)

// ollamaPlaceholderKey satisfies the SDK for Ollama, which ignores the key.
const ollamaPlaceholderKey = "ollama"

// PlaceholderKey returns the API key to send when provider needs none and
// apiKeyEnv does not supply one; otherwise "".
func PlaceholderKey(provider, apiKeyEnv string) string {
	if provider != ProviderOllama {
		return ""
	}
	if apiKeyEnv != "" && os.Getenv(apiKeyEnv) != "" {
		return ""
	}
	return ollamaPlaceholderKey
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	Model       string `yaml:"model,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
	BatchSize   int    `yaml:"batch_size,omitempty"`
	MaxRetries  int    `yaml:"max_retries,omitempty"`
	// Dimensions applies to the hashing embedder only.
	Dimensions int `yaml:"dimensions,omitempty"`
}

// ChatConfig selects and configures the chat model.
type ChatConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	APIKeyEnv   string   `yaml:"api_key_env,omitempty"`
	// Temperature is sent only when set; gpt-5 and o-series models reject
	// anything but their default.
	Temperature *float64 `yaml:"temperature,omitempty"`
	TimeoutSecs int      `yaml:"timeout_secs,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// StoreConfig locates the persisted vector store file.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// RetrievalConfig controls how much context is retrieved per question.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// HistoryConfig bounds the conversation memory sent to the chat model.
type HistoryConfig struct {
	MaxMessages int `yaml:"max_messages"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Debug bool   `yaml:"debug"`
	Path  string `yaml:"path"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Username   string           `yaml:"username"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chat       ChatConfig       `yaml:"chat"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Store      StoreConfig      `yaml:"store"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	History    HistoryConfig    `yaml:"history"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			expandPaths(cfg)
			return cfg, nil
		}
		return nil, queroerr.Wrap(err, queroerr.CodeConfigLoadReadFailure, "reading config", queroerr.FieldPath(path))
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, queroerr.Wrap(err, queroerr.CodeConfigParseInvalidFormat, "parsing config", queroerr.FieldPath(path))
	}
	applyDefaults(&cfg)
	expandPaths(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./quero.yaml first, then ~/.quero/config.yaml.
// If neither exists, it writes defaults to ~/.quero/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "quero.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	expandPaths(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return queroerr.Wrap(err, queroerr.CodeConfigSaveFailure, "creating config dir", queroerr.FieldPath(path))
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return queroerr.Wrap(err, queroerr.CodeConfigSaveFailure, "encoding config", queroerr.FieldPath(path))
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return queroerr.Wrap(err, queroerr.CodeConfigSaveFailure, "writing config", queroerr.FieldPath(path))
	}
	return nil
}

// DefaultPath is ~/.quero/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", queroerr.Wrap(err, queroerr.CodeConfigLoadReadFailure, "resolving home directory")
	}
	return filepath.Join(home, ".quero", "config.yaml"), nil
}

// Default returns the offline configuration: hashing embeddings, no chat model.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:   EmbedderConfig{Type: ProviderHashing},
		Chat:       ChatConfig{Provider: ProviderNone},
		Chunker:    ChunkerConfig{Type: "sentence", SentencesPerChunk: 5, OverlapSentences: 1},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
	}
	applyDefaults(cfg)
	return cfg
}

// ForProvider returns defaults wired to a single provider for both
// embeddings and chat, as chosen by `quero init`.
func ForProvider(provider string) (*AppConfig, error) {
	cfg := Default()
	switch provider {
	case ProviderHashing, "":
	case ProviderOpenAI, ProviderOllama:
		cfg.Embedder = EmbedderConfig{Type: provider}
		cfg.Chat = ChatConfig{Provider: provider}
	default:
		return nil, queroerr.New(queroerr.CodeConfigValidateInvalidValue,
			"unknown provider: "+provider, queroerr.FieldProvider(provider))
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = ProviderHashing
	}
	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = ProviderNone
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "sentence"
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.quero/embeddings.json"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.History.MaxMessages == 0 {
		cfg.History.MaxMessages = 20
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = "~/.quero/quero.log"
	}

	e := &cfg.Embedder
	switch e.Type {
	case ProviderOpenAI:
		if e.BaseURL == "" {
			e.BaseURL = defaultOpenAIBaseURL
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = defaultAPIKeyEnv
		}
		if e.Model == "" {
			e.Model = "text-embedding-3-small"
		}
	case ProviderOllama:
		if e.BaseURL == "" {
			e.BaseURL = defaultOllamaBaseURL
		}
		if e.Model == "" {
			e.Model = "nomic-embed-text"
		}
	case ProviderHashing:
		if e.Dimensions == 0 {
			e.Dimensions = 512
		}
	}
	if e.Type == ProviderOpenAI || e.Type == ProviderOllama {
		if e.TimeoutSecs == 0 {
			e.TimeoutSecs = 30
		}
		if e.BatchSize == 0 {
			e.BatchSize = 32
		}
		if e.MaxRetries == 0 {
			e.MaxRetries = 2
		}
	}

	c := &cfg.Chat
	switch c.Provider {
	case ProviderOpenAI:
		if c.BaseURL == "" {
			c.BaseURL = defaultOpenAIBaseURL
		}
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = defaultAPIKeyEnv
		}
		if c.Model == "" {
			c.Model = "gpt-5-mini-2025-08-07"
		}
	case ProviderOllama:
		if c.BaseURL == "" {
			c.BaseURL = defaultOllamaBaseURL
		}
		if c.Model == "" {
			c.Model = "llama3.1:8b"
		}
		if c.Temperature == nil {
			t := defaultOllamaTemperature
			c.Temperature = &t
		}
	}
	if c.Provider == ProviderOpenAI || c.Provider == ProviderOllama {
		if c.TimeoutSecs == 0 {
			c.TimeoutSecs = 120
		}
	}
}

func expandPaths(cfg *AppConfig) {
	cfg.Store.Path = expandPath(cfg.Store.Path)
	cfg.Log.Path = expandPath(cfg.Log.Path)
}

// expandPath replaces a leading "~/" with the home directory.
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
