package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexrelay/gatewaycore/pkg/store"
	"github.com/nexrelay/gatewaycore/pkg/upstream"
)

func TestTargetPathPerKind(t *testing.T) {
	assert.Equal(t, "/v1/responses", upstream.Target{Kind: store.KindResponses}.Path())
	assert.Equal(t, "/v1/chat/completions", upstream.Target{Kind: store.KindChat}.Path())
	assert.Equal(t, "/v1/chat/completions", upstream.Target{Kind: store.KindGrok}.Path())
	assert.Equal(t, "/v1/messages", upstream.Target{Kind: store.KindMessages}.Path())
	assert.Equal(t, "/v1beta/models/gemini-2.5-pro:generateContent", upstream.Target{Kind: store.KindGemini, Model: "gemini-2.5-pro"}.Path())
	assert.Equal(t, "/v1beta/models/gemini-2.5-pro:streamGenerateContent?alt=sse", upstream.Target{Kind: store.KindGemini, Model: "gemini-2.5-pro", Stream: true}.Path())
}

func TestHeadersPerKind(t *testing.T) {
	h := upstream.Target{Kind: store.KindGemini, APIKey: "k1"}.Headers()
	assert.Equal(t, "k1", h["x-goog-api-key"])

	h = upstream.Target{Kind: store.KindMessages, APIKey: "k2"}.Headers()
	assert.Equal(t, "Bearer k2", h["Authorization"])
	assert.Equal(t, "2023-06-01", h["anthropic-version"])

	h = upstream.Target{Kind: store.KindChat, APIKey: "k3"}.Headers()
	assert.Equal(t, "Bearer k3", h["Authorization"])
	_, hasVersion := h["anthropic-version"]
	assert.False(t, hasVersion)
}

func TestInvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"resp1"}`))
	}))
	defer srv.Close()

	target := upstream.Target{Kind: store.KindChat, BaseURL: srv.URL, APIKey: "k"}
	outcome := upstream.Invoke(context.Background(), nil, target, target.Path())
	require.Nil(t, outcome.NetworkErr)
	require.Nil(t, outcome.HTTPErr)
	assert.Equal(t, "resp1", outcome.Value["id"])
}

func TestInvokeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	target := upstream.Target{Kind: store.KindChat, BaseURL: srv.URL, APIKey: "k"}
	outcome := upstream.Invoke(context.Background(), nil, target, target.Path())
	require.NotNil(t, outcome.HTTPErr)
	assert.Equal(t, 429, outcome.StatusCode)
}
