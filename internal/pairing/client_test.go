package pairing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, models []string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(Options{
		APIKey:            "test-key",
		BaseURL:           server.URL + "/v1/",
		Models:            models,
		RequestsPerMinute: 600,
	})
	t.Cleanup(c.Close)
	return c
}

func textResponse(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` + mustJSON(text) + `}]}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestClient_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	c := newTestClient(t, []string{"gemini-test"}, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(textResponse("Roast lamb")))
	})

	text, err := c.Generate(context.Background(), "u1", "what goes with Barolo?")
	require.NoError(t, err)
	assert.Equal(t, "Roast lamb", text)
	assert.Equal(t, "/v1/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "user", gotBody.Contents[0].Role)
	assert.Equal(t, "what goes with Barolo?", gotBody.Contents[0].Parts[0].Text)
}

func TestClient_Generate_FallsBackOnMissingModel(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"404", http.StatusNotFound, `{"error":{"code":404,"message":"models/old is not found","status":"NOT_FOUND"}}`},
		{"status in body", http.StatusBadRequest, `{"error":{"code":400,"message":"not found","status":"NOT_FOUND"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var calls []string
			c := newTestClient(t, []string{"old", "new"}, func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				calls = append(calls, r.URL.Path)
				mu.Unlock()
				if strings.Contains(r.URL.Path, "/old:") {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(tt.body))
					return
				}
				_, _ = w.Write([]byte(textResponse("ok")))
			})

			text, err := c.Generate(context.Background(), "u1", "p")
			require.NoError(t, err)
			assert.Equal(t, "ok", text)
			assert.Len(t, calls, 2)
		})
	}
}

func TestClient_Generate_AllModelsMissing(t *testing.T) {
	c := newTestClient(t, []string{"a", "b"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Generate(context.Background(), "u1", "p")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestClient_Generate_OtherErrorsDoNotFallBack(t *testing.T) {
	calls := 0
	c := newTestClient(t, []string{"a", "b"}, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`))
	})

	_, err := c.Generate(context.Background(), "u1", "p")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, calls)
}

func TestClient_Generate_RateLimited(t *testing.T) {
	c := newTestClient(t, []string{"a"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Generate(context.Background(), "u1", "p")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_Generate_EmptyCandidates(t *testing.T) {
	c := newTestClient(t, []string{"a"}, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	text, err := c.Generate(context.Background(), "u1", "p")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestClient_NotConfigured(t *testing.T) {
	c := New(Options{Models: []string{"a"}})
	defer c.Close()

	assert.False(t, c.Configured())
	_, err := c.Generate(context.Background(), "u1", "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_Generate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := New(Options{APIKey: "k", BaseURL: server.URL, Models: []string{"a"}, Timeout: 50 * time.Millisecond})
	defer c.Close()

	_, err := c.Generate(context.Background(), "u1", "p")
	assert.ErrorIs(t, err, ErrUpstream)
}
