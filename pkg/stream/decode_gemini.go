package stream

import (
	"encoding/json"
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// GeminiDecoder decodes Gemini's streamGenerateContent SSE frames: each
// frame is a full partial GenerateContentResponse, not an incremental
// patch, so every text/thought part observed is forwarded as a delta.
type GeminiDecoder struct {
	lastUsage *urp.Usage
	callIndex int
}

// NewGeminiDecoder builds an empty decoder.
func NewGeminiDecoder() *GeminiDecoder {
	return &GeminiDecoder{}
}

func (d *GeminiDecoder) Decode(raw *RawEvent) ([]Event, error) {
	var chunk struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text             string `json:"text"`
					Thought          bool   `json:"thought"`
					ThoughtSignature string `json:"thoughtSignature"`
					FunctionCall     *struct {
						Name string         `json:"name"`
						Args map[string]any `json:"args"`
					} `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata *struct {
			PromptTokenCount        int64  `json:"promptTokenCount"`
			CandidatesTokenCount    int64  `json:"candidatesTokenCount"`
			ThoughtsTokenCount      *int64 `json:"thoughtsTokenCount"`
			CachedContentTokenCount *int64 `json:"cachedContentTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal([]byte(raw.Data), &chunk); err != nil {
		return nil, fmt.Errorf("stream: decode gemini chunk: %w", err)
	}

	var out []Event

	if chunk.UsageMetadata != nil {
		u := &urp.Usage{
			PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
			CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
			ReasoningTokens:  chunk.UsageMetadata.ThoughtsTokenCount,
			CachedTokens:     chunk.UsageMetadata.CachedContentTokenCount,
		}
		if d.lastUsage == nil || u.GreaterOrEqual(*d.lastUsage) {
			d.lastUsage = u
			out = append(out, Event{Kind: KindUsage, Usage: u})
		}
	}

	var finishReason *string
	for _, cand := range chunk.Candidates {
		if cand.FinishReason != "" {
			fr := cand.FinishReason
			finishReason = &fr
		}
		for _, part := range cand.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				args, _ := json.Marshal(part.FunctionCall.Args)
				key := fmt.Sprintf("%d", d.callIndex)
				d.callIndex++
				out = append(out, Event{Kind: KindToolCallDelta, ToolCall: &ToolCallDelta{
					CorrelationKey: key,
					Name:           part.FunctionCall.Name,
					ArgumentsDelta: string(args),
				}})
				out = append(out, Event{Kind: KindToolCallDone, ToolCall: &ToolCallDelta{CorrelationKey: key, Name: part.FunctionCall.Name}})
			case part.Thought:
				if part.ThoughtSignature != "" {
					out = append(out, Event{Kind: KindReasoningSignatureDelta, ReasoningSignatureDelta: part.ThoughtSignature})
				}
				if part.Text != "" {
					out = append(out, Event{Kind: KindReasoningDelta, ReasoningDelta: part.Text})
				}
			case part.Text != "":
				out = append(out, Event{Kind: KindTextDelta, TextDelta: part.Text})
			}
		}
	}

	if finishReason != nil {
		out = append(out, Event{Kind: KindFinish, FinishReason: geminiFinishReasonToURP(*finishReason)})
	}

	return out, nil
}

func geminiFinishReasonToURP(reason string) urp.FinishReason {
	switch reason {
	case "STOP":
		return urp.FinishStop
	case "MAX_TOKENS":
		return urp.FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return urp.FinishContentFilter
	default:
		return urp.FinishStop
	}
}
