package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient("test-key", srv.URL, "test-model")
}

func TestChatReturnsFirstChoice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model, "default model is filled in")

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello there"}, "finish_reason": "stop"},
			},
		})
	})

	out, err := c.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
}

func TestChatHTTPErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := c.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
}

func TestEmbedPreservesInputOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		// Return vectors out of order to exercise index mapping.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float64{0, 1}, "index": 1},
				{"embedding": []float64{1, 0}, "index": 0},
			},
		})
	})

	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
}

func TestClassifyIntentParsesFencedJSON(t *testing.T) {
	fake := &Fake{ChatReply: "```json\n{\"action\": \"create_post\", \"idea\": \"diwali sale\"}\n```"}

	cl, err := ClassifyIntent(context.Background(), fake, "maybe something festive?")
	require.NoError(t, err)
	assert.Equal(t, "create_post", cl.Action)
	assert.Equal(t, "diwali sale", cl.Idea)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, "user", fake.Calls[0].Messages[1].Role)
}

func TestClassifyIntentBadJSONIsError(t *testing.T) {
	fake := &Fake{ChatReply: "sure, I think they want to create a post"}

	_, err := ClassifyIntent(context.Background(), fake, "hmm")
	assert.Error(t, err)
}

func TestClassifyIntentEmptyActionDefaultsToMenu(t *testing.T) {
	fake := &Fake{ChatReply: `{"idea": ""}`}

	cl, err := ClassifyIntent(context.Background(), fake, "???")
	require.NoError(t, err)
	assert.Equal(t, "menu", cl.Action)
}
