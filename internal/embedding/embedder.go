// Package embedding selects the configured embedding provider.
package embedding

import (
	"fmt"
	"time"

	"quero/internal/config"
	"quero/internal/domain"
	"quero/internal/embedding/hashing"
	"quero/internal/embedding/openai"
	queroerr "quero/pkg/errors"
)

// New assembles the embedder named by cfg.Type.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case config.ProviderHashing, "":
		return hashing.NewEmbedder(cfg.Dimensions), nil
	case config.ProviderOpenAI, config.ProviderOllama:
		ocfg := openai.Config{
			Name:       cfg.Type,
			BaseURL:    cfg.BaseURL,
			APIKeyEnv:  cfg.APIKeyEnv,
			Model:      cfg.Model,
			Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
			BatchSize:  cfg.BatchSize,
			MaxRetries: cfg.MaxRetries,
			APIKey:     config.PlaceholderKey(cfg.Type, cfg.APIKeyEnv),
		}
		client, err := openai.NewClient(ocfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, queroerr.New(queroerr.CodeConfigValidateInvalidValue,
			fmt.Sprintf("unknown embedder: %s", cfg.Type), queroerr.FieldProvider(cfg.Type))
	}
}
