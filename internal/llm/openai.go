// Package llm streams chat completions from OpenAI-compatible APIs.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"quero/internal/domain"
	queroerr "quero/pkg/errors"
)

// Config holds chat model configuration.
type Config struct {
	// Name labels the provider in errors; defaults to "openai".
	Name        string
	BaseURL     string
	APIKey      string
	APIKeyEnv   string
	Model       string
	// Temperature is omitted from requests when nil.
	Temperature *float64
	Timeout     time.Duration
	MaxRetries  int
}

// Client implements domain.ChatModel using the Chat Completions API.
type Client struct {
	name        string
	model       string
	temperature *float64
	client      openaisdk.Client
}

var _ domain.ChatModel = (*Client)(nil)

// New creates a chat client. Returns an error if no API key can be resolved.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, queroerr.New(queroerr.CodeProviderRequestInvalid,
			fmt.Sprintf("%s: missing api_key in env %s", cfg.Name, cfg.APIKeyEnv), queroerr.FieldProvider(cfg.Name))
	}
	if cfg.Model == "" {
		return nil, queroerr.New(queroerr.CodeProviderRequestInvalid,
			fmt.Sprintf("%s: chat model is required", cfg.Name), queroerr.FieldProvider(cfg.Name))
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Client{
		name:        cfg.Name,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      openaisdk.NewClient(opts...),
	}, nil
}

func (c *Client) Name() string { return c.name }

// Stream sends the conversation and forwards each content delta to onDelta.
// The concatenated reply is returned once the stream ends.
func (c *Client) Stream(ctx context.Context, systemPrompt string, messages []domain.Message, onDelta func(string)) (string, error) {
	msgs, err := convertMessages(messages, systemPrompt)
	if err != nil {
		return "", queroerr.Wrap(err, queroerr.CodeProviderRequestInvalid, "building chat request", queroerr.FieldProvider(c.name))
	}
	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: msgs,
	}
	if c.temperature != nil {
		params.Temperature = param.NewOpt(*c.temperature)
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var reply strings.Builder
	for stream.Next() {
		for _, choice := range stream.Current().Choices {
			if delta := choice.Delta.Content; delta != "" {
				reply.WriteString(delta)
				if onDelta != nil {
					onDelta(delta)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", queroerr.Wrap(err, queroerr.CodeProviderUpstreamFailure, "streaming chat completion",
			queroerr.FieldProvider(c.name), queroerr.Field("model", c.model))
	}
	return reply.String(), nil
}

// convertMessages prepends the system prompt and maps conversation turns onto
// SDK message params.
func convertMessages(msgs []domain.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}
	for _, msg := range msgs {
		switch msg.Role {
		case domain.RoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case domain.RoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return result, nil
}
