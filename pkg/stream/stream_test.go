package stream_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexrelay/gatewaycore/pkg/stream"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

func TestRawParserRoundTrip(t *testing.T) {
	raw := "event: message_start\ndata: {\"a\":1}\n\ndata: chunk2\n\n"
	parser := stream.NewRawParser(strings.NewReader(raw))

	ev1, err := parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "message_start", ev1.Event)
	assert.Equal(t, `{"a":1}`, ev1.Data)

	ev2, err := parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "chunk2", ev2.Data)

	_, err = parser.Next()
	assert.Error(t, err)
}

func TestChatDecoderTextAndFinish(t *testing.T) {
	d := stream.NewChatDecoder()

	evs, err := d.Decode(&stream.RawEvent{Data: `{"choices":[{"index":0,"delta":{"content":"hi"}}]}`})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindTextDelta, evs[0].Kind)
	assert.Equal(t, "hi", evs[0].TextDelta)

	evs, err = d.Decode(&stream.RawEvent{Data: `{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`})
	require.NoError(t, err)
	var sawUsage, sawFinish bool
	for _, e := range evs {
		if e.Kind == stream.KindUsage {
			sawUsage = true
			assert.Equal(t, int64(10), e.Usage.PromptTokens)
		}
		if e.Kind == stream.KindFinish {
			sawFinish = true
			assert.Equal(t, urp.FinishStop, e.FinishReason)
		}
	}
	assert.True(t, sawUsage)
	assert.True(t, sawFinish)

	done, err := d.Decode(&stream.RawEvent{Data: "[DONE]"})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, stream.KindDone, done[0].Kind)
}

func TestChatDecoderToolCallDelta(t *testing.T) {
	d := stream.NewChatDecoder()
	evs, err := d.Decode(&stream.RawEvent{Data: `{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"get_weather","arguments":"{\"city\""}}]}}]}`})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindToolCallDelta, evs[0].Kind)
	assert.Equal(t, "call_1", evs[0].ToolCall.CallID)
	assert.Equal(t, "get_weather", evs[0].ToolCall.Name)
}

func TestMessagesDecoderThinkingAndToolUse(t *testing.T) {
	d := stream.NewMessagesDecoder()

	_, err := d.Decode(&stream.RawEvent{Event: "message_start", Data: `{"message":{"usage":{"input_tokens":3,"output_tokens":0}}}`})
	require.NoError(t, err)

	_, err = d.Decode(&stream.RawEvent{Event: "content_block_start", Data: `{"index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"search"}}`})
	require.NoError(t, err)

	evs, err := d.Decode(&stream.RawEvent{Event: "content_block_delta", Data: `{"index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q\":1}"}}`})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "toolu_1", evs[0].ToolCall.CallID)

	evs, err = d.Decode(&stream.RawEvent{Event: "content_block_stop", Data: `{"index":0}`})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindToolCallDone, evs[0].Kind)
}

func TestResponsesEncoderEmitsSequenceNumbers(t *testing.T) {
	enc := stream.NewResponsesEncoder("resp_1", "gpt-4o")

	frames, err := enc.Encode(stream.Event{Kind: stream.KindTextDelta, TextDelta: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0].Data, `"sequence_number":0`)

	frames2, err := enc.Encode(stream.Event{Kind: stream.KindTextDelta, TextDelta: " there"})
	require.NoError(t, err)
	require.NotEmpty(t, frames2)
	assert.NotContains(t, frames2[len(frames2)-1].Data, `"sequence_number":0`)
}

func TestChatEncoderTerminatesWithDoneSentinel(t *testing.T) {
	enc := stream.NewChatEncoder("chatcmpl_1", "gpt-4o")
	frames := enc.Close()
	require.Len(t, frames, 1)
	assert.Equal(t, "[DONE]", frames[0].Data)
}

func TestTranscodeChatToChat(t *testing.T) {
	upstream := "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":1,\"completion_tokens\":1}}\n\n" +
		"data: [DONE]\n\n"

	var out strings.Builder
	writer := stream.NewRawWriter(&out)
	result := stream.Transcode(
		context.Background(),
		strings.NewReader(upstream),
		stream.NewChatDecoder(),
		writer,
		stream.NewChatEncoder("chatcmpl_1", "gpt-4o"),
		nil,
		time.Now(),
	)

	require.NoError(t, result.Err)
	require.NotNil(t, result.Usage)
	assert.Equal(t, urp.FinishStop, result.FinishReason)
	assert.Contains(t, out.String(), "[DONE]")
	assert.Contains(t, out.String(), `"content":"hi"`)
}

func TestSyntheticReplayProducesTextAndFinish(t *testing.T) {
	resp := &urp.Response{
		Message: urp.Message{Parts: []urp.Part{urp.TextPart{Content: "hello"}}},
		FinishReason: urp.FinishStop,
		Usage: &urp.Usage{PromptTokens: 2, CompletionTokens: 1},
	}
	evs := stream.SyntheticReplay(resp)
	require.NotEmpty(t, evs)
	assert.Equal(t, stream.KindTextDelta, evs[0].Kind)
	assert.Equal(t, stream.KindFinish, evs[len(evs)-1].Kind)
}
