// Package embeddings adapts the OpenAI Embeddings wire shape. Unlike the
// other adapter packages this one does not decode into pkg/urp.Request:
// embeddings is a unary-only, non-chat operation (spec §6), so it carries
// its own small neutral Request/Response pair instead of forcing the
// message-oriented URP model onto it.
package embeddings

import (
	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/config"
)

var requestKnownKeys = map[string]struct{}{
	"model":           {},
	"input":           {},
	"encoding_format":  {},
	"user":            {},
}

var responseKnownKeys = map[string]struct{}{
	"object": {},
	"data":   {},
	"model":  {},
	"usage":  {},
}

// EncodingFormat is the requested embedding vector encoding.
type EncodingFormat string

const (
	EncodingFloat  EncodingFormat = "float"
	EncodingBase64 EncodingFormat = "base64"
)

// Request is the neutral embeddings request form.
type Request struct {
	Model          string
	Input          []string
	EncodingFormat EncodingFormat
	User           string
	ExtraBody      map[string]any
}

// Embedding is a single input's vector (Values when float-encoded, B64
// when base64-encoded, matching the EncodingFormat of the Request).
type Embedding struct {
	Index  int
	Values []float64
	B64    string
}

// Usage is embeddings token accounting (no completion side).
type Usage struct {
	PromptTokens int64
	TotalTokens  int64
}

// Response is the neutral embeddings response form.
type Response struct {
	Model      string
	Embeddings []Embedding
	Usage      Usage
	Extra      map[string]any
}

func asString(v any) string { s, _ := v.(string); return s }
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
func asSlice(v any) []any { s, _ := v.([]any); return s }
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func policyOrDefault(policy config.UnknownFieldPolicy) config.UnknownFieldPolicy {
	if policy == "" {
		return config.PolicyPreserve
	}
	return policy
}

// DecodeRequest parses an embeddings request body.
func DecodeRequest(body map[string]any, policy config.UnknownFieldPolicy) (Request, error) {
	extra, err := shared.SplitExtra(body, requestKnownKeys, policyOrDefault(policy))
	if err != nil {
		return Request{}, err
	}

	req := Request{
		Model:          asString(body["model"]),
		User:           asString(body["user"]),
		EncodingFormat: EncodingFloat,
		ExtraBody:      extra,
	}
	if ef := asString(body["encoding_format"]); ef == string(EncodingBase64) {
		req.EncodingFormat = EncodingBase64
	}

	switch in := body["input"].(type) {
	case string:
		req.Input = []string{in}
	case []any:
		for _, v := range in {
			req.Input = append(req.Input, asString(v))
		}
	}

	return req, nil
}

// EncodeRequest renders req as an embeddings request body for sending
// upstream.
func EncodeRequest(req Request) map[string]any {
	var input any = req.Input
	if len(req.Input) == 1 {
		input = req.Input[0]
	}
	out := map[string]any{
		"model": req.Model,
		"input": input,
	}
	if req.EncodingFormat != "" {
		out["encoding_format"] = string(req.EncodingFormat)
	}
	if req.User != "" {
		out["user"] = req.User
	}
	shared.MergeExtra(out, req.ExtraBody)
	return out
}

// DecodeResponse parses an embeddings response body.
func DecodeResponse(body map[string]any, policy config.UnknownFieldPolicy) (Response, error) {
	extra, err := shared.SplitExtra(body, responseKnownKeys, policyOrDefault(policy))
	if err != nil {
		return Response{}, err
	}

	resp := Response{Model: asString(body["model"]), Extra: extra}

	for _, d := range asSlice(body["data"]) {
		dm := asMap(d)
		idx := 0
		if v, ok := asFloat(dm["index"]); ok {
			idx = int(v)
		}
		e := Embedding{Index: idx}
		switch emb := dm["embedding"].(type) {
		case string:
			e.B64 = emb
		case []any:
			for _, v := range emb {
				f, _ := asFloat(v)
				e.Values = append(e.Values, f)
			}
		}
		resp.Embeddings = append(resp.Embeddings, e)
	}

	if u := asMap(body["usage"]); u != nil {
		if v, ok := asFloat(u["prompt_tokens"]); ok {
			resp.Usage.PromptTokens = int64(v)
		}
		if v, ok := asFloat(u["total_tokens"]); ok {
			resp.Usage.TotalTokens = int64(v)
		}
	}

	return resp, nil
}

// EncodeResponse renders resp as an embeddings response body for the final
// reply to the client.
func EncodeResponse(resp Response) map[string]any {
	var data []any
	for _, e := range resp.Embeddings {
		item := map[string]any{"object": "embedding", "index": e.Index}
		if e.B64 != "" {
			item["embedding"] = e.B64
		} else {
			vals := make([]any, len(e.Values))
			for i, v := range e.Values {
				vals[i] = v
			}
			item["embedding"] = vals
		}
		data = append(data, item)
	}

	out := map[string]any{
		"object": "list",
		"data":   data,
		"model":  resp.Model,
		"usage": map[string]any{
			"prompt_tokens": resp.Usage.PromptTokens,
			"total_tokens":  resp.Usage.TotalTokens,
		},
	}
	shared.MergeExtra(out, resp.Extra)
	return out
}
