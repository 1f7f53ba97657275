package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebot/backend/internal/domain/conversation"
	"github.com/coursebot/backend/internal/infrastructure/config"
)

func newTestClient(url string) *Client {
	return NewClient(&config.OpenAIConfig{
		BaseURL:     url,
		APIKey:      "sk-test",
		ChatTimeout: 5 * time.Second,
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestClient_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  Use pointers.\n"},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`)
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL).Complete(context.Background(), CompletionRequest{
		Model: "gpt-4o-mini",
		Turns: []conversation.Turn{
			{Role: conversation.RoleSystem, Content: "be nice"},
			{Role: conversation.RoleUser, Content: "what is a pointer?"},
			{Role: conversation.RoleContext, Content: "Relevant information:\n1. pointers\n"},
		},
		MaxCompletionTokens: 500,
		Temperature:         0.7,
		User:                "student-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Use pointers.", reply)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 1, got.N)
	assert.Equal(t, 500, got.MaxCompletionTokens)
	assert.Equal(t, []string{"\x00"}, got.Stop)
	assert.Equal(t, "student-1", got.User)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[2].Role)
}

func TestClient_Complete_ErrorKinds(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  conversation.UpstreamKind
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, conversation.UpstreamRateLimit, true},
		{"server error", http.StatusBadGateway, conversation.UpstreamStatus, true},
		{"bad request", http.StatusBadRequest, conversation.UpstreamStatus, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Complete(context.Background(), CompletionRequest{Model: "m"})
			var upErr *conversation.UpstreamError
			require.True(t, errors.As(err, &upErr))
			assert.Equal(t, tt.wantKind, upErr.Kind)
			assert.Equal(t, tt.status, upErr.StatusCode)
			assert.Equal(t, tt.retryable, upErr.Retryable())
		})
	}
}

func TestClient_Complete_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Complete(context.Background(), CompletionRequest{Model: "m"})
	var upErr *conversation.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, conversation.UpstreamConnection, upErr.Kind)
	assert.True(t, upErr.Retryable())
}

func TestClient_Complete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), CompletionRequest{Model: "m"})
	assert.ErrorContains(t, err, "no choices")
}

func TestClient_Moderate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/moderations", r.URL.Path)
		var req moderationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Input {
		case "bad words":
			writeJSON(w, http.StatusOK, `{"results":[{"flagged":true}]}`)
		case "empty":
			writeJSON(w, http.StatusOK, `{"results":[]}`)
		default:
			writeJSON(w, http.StatusOK, `{"results":[{"flagged":false}]}`)
		}
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	flagged, err := c.Moderate(context.Background(), "omni-moderation-latest", "bad words")
	require.NoError(t, err)
	assert.True(t, flagged)

	flagged, err = c.Moderate(context.Background(), "omni-moderation-latest", "what is malloc?")
	require.NoError(t, err)
	assert.False(t, flagged)

	_, err = c.Moderate(context.Background(), "omni-moderation-latest", "empty")
	assert.Error(t, err)
}

func TestToMessages(t *testing.T) {
	msgs := toMessages([]conversation.Turn{
		{Role: conversation.RoleUser, Content: "q"},
		{Role: conversation.RoleContext, Content: "ctx"},
		{Role: conversation.RoleAssistant, Content: "a"},
	})
	assert.Equal(t, []Message{{"user", "q"}, {"system", "ctx"}, {"assistant", "a"}}, msgs)
}
