// Package openai implements an embeddings client for OpenAI-compatible APIs
// (OpenAI itself and Ollama's /v1 endpoint) on top of the openai-go SDK.
package openai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	queroerr "quero/pkg/errors"
)

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	name      string
	model     string
	batchSize int
	client    openaisdk.Client
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	// Name labels the provider in logs and errors; defaults to "openai".
	Name      string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// BatchSize caps the number of inputs per request; 0 sends everything at once.
	BatchSize  int
	MaxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
// APIKey wins over APIKeyEnv; a client without any key is rejected.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, queroerr.New(queroerr.CodeProviderRequestInvalid,
			fmt.Sprintf("missing API key in env %s", cfg.APIKeyEnv), queroerr.FieldProvider(cfg.Name))
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(withTrailingSlash(cfg.BaseURL)),
		option.WithRequestTimeout(t),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	return &Client{
		name:      cfg.Name,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		client:    openaisdk.NewClient(opts...),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return c.name }

// Model returns the embedding model requested from the provider.
func (c *Client) Model() string { return c.model }

// Embed returns one embedding per text, in input order. Inputs larger than
// the batch size are sent as consecutive requests. Errors are returned
// uncoded; the vector store classifies them.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	size := c.batchSize
	if size <= 0 || size > len(texts) {
		size = len(texts)
	}
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%s embeddings [%d:%d]: %w", c.name, start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float64, error) {
	resp, err := c.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		Model:          openaisdk.EmbeddingModel(c.model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(batch))
	}
	// Rows may arrive in any order; index ties them back to the inputs.
	vecs := make([][]float64, len(batch))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(batch) || vecs[idx] != nil {
			return nil, fmt.Errorf("invalid embedding index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", d.Index)
		}
		vecs[idx] = d.Embedding
	}
	return vecs, nil
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
