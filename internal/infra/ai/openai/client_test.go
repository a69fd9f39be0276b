package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/ai"
)

func TestClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"findings\":[]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk-test", srv.URL+"/v1", "gpt-4o-mini")
	out, err := c.Complete(context.Background(), ai.CompletionRequest{System: "sys", User: "user"})
	require.NoError(t, err)
	assert.Equal(t, `{"findings":[]}`, out)
	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.NotNil(t, got["max_tokens"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestClient_ReasoningModelUsesCompletionTokens(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", srv.URL+"/v1", "")
	_, err := c.Complete(context.Background(), ai.CompletionRequest{Model: "o3-mini", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "o3-mini", got["model"])
	assert.NotNil(t, got["max_completion_tokens"])
	assert.Nil(t, got["max_tokens"])
}

func TestClient_QuotaAndEmpty(t *testing.T) {
	quota := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer quota.Close()
	_, err := NewClientWithBaseURL("k", quota.URL+"/v1", "gpt-4o").Complete(context.Background(), ai.CompletionRequest{User: "u"})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()
	_, err = NewClientWithBaseURL("k", empty.URL+"/v1", "gpt-4o").Complete(context.Background(), ai.CompletionRequest{User: "u"})
	assert.ErrorIs(t, err, ai.ErrEmptyCompletion)
}
