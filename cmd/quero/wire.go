package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"quero/internal/chunker"
	"quero/internal/config"
	"quero/internal/domain"
	"quero/internal/embedding"
	"quero/internal/llm"
	"quero/internal/service"
	"quero/internal/summarizer"
	"quero/internal/vectorstore"
	queroerr "quero/pkg/errors"
)

// buildAssistant assembles the assistant from config. The chat model is only
// built when withChat is set, so `add` and `search` work without chat credentials.
func buildAssistant(cfg *config.AppConfig, logger *zap.Logger, withChat bool) (*service.Assistant, error) {
	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	// The store writes into an existing directory only.
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, queroerr.Wrap(err, queroerr.CodeCLISetupFailure, "creating store directory", queroerr.FieldPath(cfg.Store.Path))
	}
	store, err := vectorstore.Open(cfg.Store.Path, emb, vectorstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "sentence", "":
		ch = chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	default:
		return nil, queroerr.New(queroerr.CodeConfigValidateInvalidValue, fmt.Sprintf("unknown chunker: %s", cfg.Chunker.Type))
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	default:
		return nil, queroerr.New(queroerr.CodeConfigValidateInvalidValue, fmt.Sprintf("unknown summarizer: %s", cfg.Summarizer.Type))
	}

	var chat domain.ChatModel
	if withChat {
		chat, err = newChatModel(cfg.Chat)
		if err != nil {
			return nil, err
		}
	}

	return service.New(ch, store, chat, sum, service.Options{
		Username:            cfg.Username,
		TopK:                cfg.Retrieval.TopK,
		MaxHistory:          cfg.History.MaxMessages,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		Logger:              logger,
	}), nil
}

// newChatModel returns nil for provider "none".
func newChatModel(cfg config.ChatConfig) (domain.ChatModel, error) {
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderOpenAI, config.ProviderOllama:
		lcfg := llm.Config{
			Name:        cfg.Provider,
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
			APIKey:      config.PlaceholderKey(cfg.Provider, cfg.APIKeyEnv),
		}
		client, err := llm.New(lcfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, queroerr.New(queroerr.CodeConfigValidateInvalidValue,
			fmt.Sprintf("unknown chat provider: %s", cfg.Provider), queroerr.FieldProvider(cfg.Provider))
	}
}
