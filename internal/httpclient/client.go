// Package httpclient is a small HTTP client wrapper generalized from a
// single shared client config (base URL, default headers) to a per-call
// one, since the gateway's upstream client builds a fresh base URL,
// credential and header set on every routing attempt (spec §4.G).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultClient is a shared *http.Client with sensible pool defaults,
// used whenever a caller passes a nil client. Its own 60s Timeout still
// applies when a Request sets a Timeout of its own.
var DefaultClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Request describes a single upstream attempt.
type Request struct {
	Method  string
	BaseURL string
	Path    string
	Headers map[string]string
	Body    any // marshaled as JSON when non-nil
	Timeout time.Duration
}

// Response is a fully-buffered HTTP response, for unary calls.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do performs req and buffers the entire response body. A non-nil error
// means the request never reached the upstream or the transport failed
// mid-flight (spec §4.G's "Err(Network|...)" branch); callers distinguish
// this from a non-2xx HTTP response, which is returned as a *Response with
// no error (the "Err(Http(status, body))" branch is classified by the
// caller via gatewayerrors).
func Do(ctx context.Context, client *http.Client, req Request) (*Response, error) {
	if client == nil {
		client = DefaultClient
	}

	httpReq, err := buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
		httpReq = httpReq.WithContext(ctx)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("httpclient: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read response body: %w", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
}

// DoStream performs req and returns the live *http.Response for the caller
// to read incrementally (SSE), rather than buffering it. The caller must
// close the response body. A non-2xx status still returns the response
// (with an unread, streamed body) so the caller can read and classify the
// error payload itself.
func DoStream(ctx context.Context, client *http.Client, req Request) (*http.Response, error) {
	if client == nil {
		client = DefaultClient
	}

	httpReq, err := buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("httpclient: request failed: %w", err)
	}
	return httpResp, nil
}

func buildHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := req.BaseURL + req.Path

	var bodyReader io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return httpReq, nil
}
