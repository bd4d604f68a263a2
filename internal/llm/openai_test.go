package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quero/internal/domain"
	"quero/internal/llm"
	queroerr "quero/pkg/errors"
)

type chatRequest struct {
	Model       string   `json:"model"`
	Stream      bool     `json:"stream"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
}

func sseServer(t *testing.T, deltas []string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(got)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for i, d := range deltas {
			chunk := map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   got.Model,
				"choices": []map[string]any{{
					"index": 0,
					"delta": map[string]any{"role": "assistant", "content": d},
				}},
			}
			if i == len(deltas)-1 {
				chunk["choices"].([]map[string]any)[0]["finish_reason"] = "stop"
			}
			data, _ := json.Marshal(chunk)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Stream(t *testing.T) {
	var req chatRequest
	srv := sseServer(t, []string{"Hel", "lo", " there"}, &req)

	temp := 0.5
	c, err := llm.New(llm.Config{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "llama3.1:8b", Temperature: &temp})
	require.NoError(t, err)

	var deltas []string
	reply, err := c.Stream(context.Background(), "be brief", []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
		{Role: domain.RoleUser, Content: "again"},
	}, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)

	assert.Equal(t, "Hello there", reply)
	assert.Equal(t, []string{"Hel", "lo", " there"}, deltas)

	assert.Equal(t, "llama3.1:8b", req.Model)
	assert.True(t, req.Stream)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.5, *req.Temperature, 1e-9)
	roles := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		roles[i] = m.Role
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}

func TestClient_StreamOmitsUnsetTemperature(t *testing.T) {
	var req chatRequest
	srv := sseServer(t, []string{"ok"}, &req)

	c, err := llm.New(llm.Config{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "gpt-5-mini-2025-08-07"})
	require.NoError(t, err)

	_, err = c.Stream(context.Background(), "", []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-mini-2025-08-07", req.Model)
	assert.Nil(t, req.Temperature)
}

func TestClient_StreamUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	c, err := llm.New(llm.Config{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "missing"})
	require.NoError(t, err)

	reply, err := c.Stream(context.Background(), "", []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Empty(t, reply)
	assert.True(t, queroerr.IsUpstreamFailure(err))
}

func TestClient_StreamRejectsUnknownRole(t *testing.T) {
	c, err := llm.New(llm.Config{APIKey: "k", Model: "m"})
	require.NoError(t, err)

	_, err = c.Stream(context.Background(), "", []domain.Message{{Role: "tool", Content: "x"}}, nil)
	require.Error(t, err)
	assert.True(t, queroerr.HasCode(err, queroerr.CodeProviderRequestInvalid))
}

func TestNew_Validation(t *testing.T) {
	t.Setenv("QUERO_CHAT_KEY", "")
	_, err := llm.New(llm.Config{APIKeyEnv: "QUERO_CHAT_KEY", Model: "m"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "QUERO_CHAT_KEY"))
	assert.True(t, queroerr.IsInvalidInput(err))

	_, err = llm.New(llm.Config{APIKey: "k"})
	require.Error(t, err)
	assert.True(t, queroerr.HasCode(err, queroerr.CodeProviderRequestInvalid))

	c, err := llm.New(llm.Config{Name: "ollama", APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.Name())
}
