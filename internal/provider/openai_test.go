package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// MockCompletionHandler validates requests and answers with content.
func MockCompletionHandler(t *testing.T, content string, validation func(map[string]any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("Authorization = %q", got)
		}

		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if validation != nil {
			validation(raw)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}
}

func TestOpenAI_CompleteTextOnly(t *testing.T) {
	server := httptest.NewServer(MockCompletionHandler(t, `{"actions":["A"]}`, func(raw map[string]any) {
		assert.Equal(t, "grok-4", raw["model"])
		assert.Equal(t, 0.7, raw["temperature"])
		assert.Equal(t, float64(800), raw["max_tokens"])
		assert.Equal(t, false, raw["stream"])

		msgs := raw["messages"].([]any)
		require.Len(t, msgs, 2)
		sys := msgs[0].(map[string]any)
		assert.Equal(t, "system", sys["role"])
		assert.Equal(t, "be brief", sys["content"])
	}))
	defer server.Close()

	p := NewOpenAI("xai", server.URL+"/", "key", "grok-4")
	out, err := p.Complete(context.Background(), Request{
		Messages:    []Message{System("be brief"), User("what now?")},
		MaxTokens:   800,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"actions":["A"]}`, out)
}

func TestOpenAI_ImageParts(t *testing.T) {
	server := httptest.NewServer(MockCompletionHandler(t, "a title screen", func(raw map[string]any) {
		msgs := raw["messages"].([]any)
		user := msgs[0].(map[string]any)
		parts, ok := user["content"].([]any)
		require.True(t, ok, "content should be a list of parts")
		require.Len(t, parts, 2)

		text := parts[0].(map[string]any)
		assert.Equal(t, "text", text["type"])
		assert.Equal(t, "Describe this", text["text"])

		img := parts[1].(map[string]any)
		assert.Equal(t, "image_url", img["type"])
		url := img["image_url"].(map[string]any)
		assert.True(t, strings.HasPrefix(url["url"].(string), "data:image/png;base64,"))
		assert.Equal(t, "high", url["detail"])
	}))
	defer server.Close()

	p := NewOpenAI("xai", server.URL, "key", "grok-4")
	out, err := p.Complete(context.Background(), Request{
		Messages: []Message{User("Describe this", Image{Data: []byte{0x89, 'P', 'N', 'G'}})},
	})
	require.NoError(t, err)
	assert.Equal(t, "a title screen", out)
}

func TestOpenAI_EmptyContentMarshaling(t *testing.T) {
	// empty content must still be sent as "content": ""
	server := httptest.NewServer(MockCompletionHandler(t, "ok", func(raw map[string]any) {
		msgs := raw["messages"].([]any)
		msg := msgs[0].(map[string]any)
		_, has := msg["content"]
		assert.True(t, has, "JSON missing 'content' field for user message")
	}))
	defer server.Close()

	p := NewOpenAI("xai", server.URL, "key", "grok-4")
	_, err := p.Complete(context.Background(), Request{Messages: []Message{User("")}})
	require.NoError(t, err)
}

func TestOpenAI_ErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   Kind
		msg    string
	}{
		{429, `{"error":{"message":"slow down"}}`, KindRateLimited, "slow down"},
		{500, ``, KindServerError, "internal server error"},
		{503, `upstream`, KindServerError, "temporarily unavailable"},
		{401, ``, KindServerError, "authentication failed"},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))

		p := NewOpenAI("xai", server.URL, "key", "grok-4")
		_, err := p.Complete(context.Background(), Request{Messages: []Message{User("hi")}})
		server.Close()

		var pe *Error
		require.True(t, errors.As(err, &pe), "status %d", tc.status)
		assert.Equal(t, tc.kind, pe.Kind, "status %d", tc.status)
		assert.Equal(t, tc.status, pe.StatusCode)
		assert.Contains(t, pe.Error(), tc.msg)
	}
}

func TestOpenAI_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	p := NewOpenAI("xai", server.URL, "key", "grok-4")
	_, err := p.Complete(context.Background(), Request{Messages: []Message{User("hi")}})
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestOpenAI_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewOpenAI("xai", server.URL, "key", "grok-4")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, Request{Messages: []Message{User("hi")}})
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestOpenAI_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := NewOpenAI("xai", url, "key", "grok-4")
	_, err := p.Complete(context.Background(), Request{Messages: []Message{User("hi")}})
	assert.Equal(t, KindConnection, KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestOpenAI_Models(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"grok-4"},{"id":"grok-3"}]}`))
	}))
	defer server.Close()

	p := NewOpenAI("xai", server.URL, "key", "grok-4")
	models, err := p.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"grok-4", "grok-3"}, models)
}
