// Package upstream builds and executes the actual HTTP call for one
// routing attempt: header injection per provider kind, shape-specific path
// building, timeout enforcement, and response classification (spec §4.G).
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nexrelay/gatewaycore/internal/httpclient"
	"github.com/nexrelay/gatewaycore/pkg/gatewayerrors"
	"github.com/nexrelay/gatewaycore/pkg/store"
)

// Target names one concrete HTTP call: a provider kind, channel, and the
// already-encoded wire body.
type Target struct {
	Kind        store.ProviderKind
	BaseURL     string
	APIKey      string
	Model       string // upstream model id, used only for Gemini's path
	Stream      bool
	Body        map[string]any
	RequestTimeout time.Duration
}

// Path returns the shape-specific request path (spec §4.G).
func (t Target) Path() string {
	switch t.Kind {
	case store.KindResponses:
		return "/v1/responses"
	case store.KindChat, store.KindGrok:
		return "/v1/chat/completions"
	case store.KindMessages:
		return "/v1/messages"
	case store.KindGemini:
		if t.Stream {
			return fmt.Sprintf("/v1beta/models/%s:streamGenerateContent?alt=sse", t.Model)
		}
		return fmt.Sprintf("/v1beta/models/%s:generateContent", t.Model)
	default:
		return "/"
	}
}

// EmbeddingsPath is the fixed path for the embeddings endpoint, which every
// provider kind speaks the same way (spec §6).
const EmbeddingsPath = "/v1/embeddings"

// Headers returns the outbound header set for t (spec §4.G).
func (t Target) Headers() map[string]string {
	h := map[string]string{}
	switch t.Kind {
	case store.KindGemini:
		h["x-goog-api-key"] = t.APIKey
	default:
		h["Authorization"] = "Bearer " + t.APIKey
	}
	if t.Kind == store.KindMessages {
		h["anthropic-version"] = "2023-06-01"
	}
	return h
}

// Outcome is the classified result of one attempt: exactly one of Value,
// NetworkErr, or HTTPErr is set.
type Outcome struct {
	Value      map[string]any
	StatusCode int
	NetworkErr error
	HTTPErr    *gatewayerrors.GatewayError
}

// Invoke performs a unary (non-streaming) attempt against target using
// path, returning a classified Outcome. It never returns a Go error itself
// — network and HTTP failures are both folded into Outcome so the routing
// loop can inspect Outcome.NetworkErr / Outcome.HTTPErr uniformly.
func Invoke(ctx context.Context, client *http.Client, target Target, path string) Outcome {
	resp, err := httpclient.Do(ctx, client, httpclient.Request{
		Method:  http.MethodPost,
		BaseURL: target.BaseURL,
		Path:    path,
		Headers: target.Headers(),
		Body:    target.Body,
		Timeout: target.RequestTimeout,
	})
	if err != nil {
		return Outcome{NetworkErr: err}
	}

	if resp.StatusCode >= 400 {
		return Outcome{
			StatusCode: resp.StatusCode,
			HTTPErr:    classifyHTTPError(resp.StatusCode, resp.Body),
		}
	}

	var value map[string]any
	if err := json.Unmarshal(resp.Body, &value); err != nil {
		return Outcome{NetworkErr: fmt.Errorf("upstream: decode response body: %w", err)}
	}

	return Outcome{Value: value, StatusCode: resp.StatusCode}
}

// InvokeStream performs a streaming attempt, returning the live response
// for the caller (pkg/stream) to read incrementally. Non-2xx responses are
// still classified here so the routing loop doesn't have to special-case
// streaming failures.
func InvokeStream(ctx context.Context, client *http.Client, target Target, path string) (*http.Response, *gatewayerrors.GatewayError, error) {
	resp, err := httpclient.DoStream(ctx, client, httpclient.Request{
		Method:  http.MethodPost,
		BaseURL: target.BaseURL,
		Path:    path,
		Headers: target.Headers(),
		Body:    target.Body,
		Timeout: target.RequestTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body := make([]byte, 0, 512)
		buf := make([]byte, 512)
		for {
			n, rerr := resp.Body.Read(buf)
			body = append(body, buf[:n]...)
			if rerr != nil || len(body) >= 65536 {
				break
			}
		}
		return nil, classifyHTTPError(resp.StatusCode, body), nil
	}

	return resp, nil, nil
}

func classifyHTTPError(statusCode int, body []byte) *gatewayerrors.GatewayError {
	kind := gatewayerrors.ClassifyStatus(statusCode)
	message := string(body)
	var parsed map[string]any
	if json.Unmarshal(body, &parsed) == nil {
		if e, ok := parsed["error"].(map[string]any); ok {
			if m, ok := e["message"].(string); ok && m != "" {
				message = m
			}
		}
	}
	return gatewayerrors.New(kind, fmt.Sprintf("upstream_error: %s", message))
}
