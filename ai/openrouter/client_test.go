package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/finkg/ai/tracker"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/internal/retry"
	testutil "github.com/teranos/finkg/internal/testing"
)

func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, Delay: time.Millisecond}
}

func reply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(ChatCompletionResponse{
		ID:    "test-id",
		Model: "test-model",
		Choices: []Choice{{
			Message:      Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})

	assert.Equal(t, DefaultModel, c.config.Model)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, ProviderName, c.Provider())
	assert.Equal(t, 0.0, *c.config.Temperature)
	assert.Equal(t, 1000, *c.config.MaxTokens)
	assert.Equal(t, 3, c.config.Retry.MaxAttempts)
	assert.Nil(t, c.limiter)
	assert.True(t, c.IsConfigured())
	assert.False(t, NewClient(Config{}).IsConfigured())
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages(ChatRequest{
		SystemPrompt: "sys",
		Context:      []string{"facts", ""},
		UserPrompt:   "question?",
	})

	assert.Equal(t, []Message{
		{Role: "system", Content: "sys"},
		{Role: "system", Content: "facts"},
		{Role: "user", Content: "question?"},
	}, msgs)

	assert.Equal(t, []Message{{Role: "user", Content: "q"}}, BuildMessages(ChatRequest{UserPrompt: "q"}))
}

func TestChat(t *testing.T) {
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "finkg", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(t, w, "  Client A has three transactions.  ")
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: server.URL + "/", Retry: fastRetry(3)})
	resp, err := c.Chat(context.Background(), ChatRequest{
		SystemPrompt: "sys",
		Context:      []string{"Here are verified facts you MUST use:\n- fact"},
		UserPrompt:   "Summarize",
		JSONMode:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Client A has three transactions.", resp.Content)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
	assert.Equal(t, 1, resp.Attempts)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[1].Role)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestChatOverrides(t *testing.T) {
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(t, w, "ok")
	}))
	defer server.Close()

	temp := 0.7
	tokens := 42
	model := "openai/gpt-4o"
	c := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := c.Chat(context.Background(), ChatRequest{
		UserPrompt:  "q",
		Temperature: &temp,
		MaxTokens:   &tokens,
		Model:       &model,
	})
	require.NoError(t, err)

	assert.Equal(t, "openai/gpt-4o", got.Model)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 42, got.MaxTokens)
	assert.Nil(t, got.ResponseFormat)
}

func TestChatMissingKey(t *testing.T) {
	_, err := NewClient(Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "q"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingCredential))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestChatRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		switch n {
		case 1:
			http.Error(w, "slow down", http.StatusTooManyRequests)
		case 2:
			http.Error(w, "upstream", http.StatusBadGateway)
		default:
			reply(t, w, "ok")
		}
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: server.URL, Retry: fastRetry(3)})
	resp, err := c.Chat(context.Background(), ChatRequest{UserPrompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: server.URL, Retry: fastRetry(3)})
	_, err := c.Chat(context.Background(), ChatRequest{UserPrompt: "q"})
	require.Error(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, errors.Is(err, retry.ErrExhausted))
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestChatDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: server.URL, Retry: fastRetry(3)})
	_, err := c.Chat(context.Background(), ChatRequest{UserPrompt: "q"})
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, errors.Is(err, retry.ErrExhausted))
	assert.Contains(t, err.Error(), "status 401")
}

func TestChatMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{not json`, "unmarshal"},
		{"no choices", `{"choices":[]}`, "no response choices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(Config{APIKey: "k", BaseURL: server.URL, Retry: fastRetry(3)})
			_, err := c.Chat(context.Background(), ChatRequest{UserPrompt: "q"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestChatNetworkErrorIsRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: url, Retry: fastRetry(2)})

	_, err := c.Chat(context.Background(), ChatRequest{UserPrompt: "q"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, retry.ErrExhausted))
}

func TestChatRecordsUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reply(t, w, "ok")
	}))
	defer server.Close()

	db := testutil.CreateTestDB(t)
	tr := tracker.NewUsageTracker(db)
	c := NewClient(Config{APIKey: "k", BaseURL: server.URL, Tracker: tr})

	_, err := c.Chat(context.Background(), ChatRequest{UserPrompt: "q"})
	require.NoError(t, err)

	stats, err := tr.GetUsageStats(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 30, stats.TotalTokens)
	assert.Greater(t, stats.TotalCost, 0.0)
}

func TestChatRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reply(t, w, "ok")
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: server.URL, RequestsPerMinute: 1})
	require.NotNil(t, c.limiter)

	_, err := c.Chat(context.Background(), ChatRequest{UserPrompt: "first"})
	require.NoError(t, err)

	// the second call would wait a minute for a token
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Chat(ctx, ChatRequest{UserPrompt: "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
