package openai

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/modelgateway/core/runtime/agent/model"
	"github.com/modelgateway/core/runtime/agent/tools"
)

// openaiStreamer adapts an SSE stream of sdk.ChatCompletionChunk values into
// model.Chunks, accumulating tool-call argument fragments by index the way
// the Chat Completions streaming API delivers them (one chunk per delta,
// correlated by a stable per-call index rather than a restated id).
type openaiStreamer struct {
	stream  *ssestream.Stream[sdk.ChatCompletionChunk]
	nameMap map[string]string

	mu       sync.Mutex
	toolBufs map[int64]*toolCallBuffer
	toolIdx  []int64
	usage    model.TokenUsage
	hadTools bool
	drained  bool
	meta     map[string]any
}

type toolCallBuffer struct {
	id   string
	name string
	args []byte
}

func newOpenAIStreamer(_ context.Context, stream *ssestream.Stream[sdk.ChatCompletionChunk], nameMap map[string]string) *openaiStreamer {
	return &openaiStreamer{
		stream:   stream,
		nameMap:  nameMap,
		toolBufs: make(map[int64]*toolCallBuffer),
		meta:     make(map[string]any),
	}
}

// Recv implements model.Streamer.
func (s *openaiStreamer) Recv() (model.Chunk, error) {
	s.mu.Lock()
	if s.drained {
		s.mu.Unlock()
		return model.Chunk{}, io.EOF
	}
	s.mu.Unlock()

	for s.stream.Next() {
		chunk := s.stream.Current()
		if c, ok := s.translate(chunk); ok {
			return c, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		return model.Chunk{}, err
	}
	c, terminal := s.finalChunk()
	if terminal {
		s.mu.Lock()
		s.drained = true
		s.mu.Unlock()
	}
	return c, nil
}

// translate converts one SSE chunk into a model.Chunk. It returns ok=false
// when the chunk carries no client-visible event (for example a chunk that
// only updates the tool-call buffer without closing it).
func (s *openaiStreamer) translate(chunk sdk.ChatCompletionChunk) (model.Chunk, bool) {
	if len(chunk.Choices) == 0 {
		if chunk.Usage.TotalTokens > 0 {
			s.mu.Lock()
			s.usage = model.TokenUsage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:  int(chunk.Usage.TotalTokens),
			}
			s.mu.Unlock()
		}
		return model.Chunk{}, false
	}
	choice := chunk.Choices[0]
	if choice.Delta.Content != "" {
		return model.Chunk{
			Type:    model.ChunkTypeText,
			Message: &model.Message{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: choice.Delta.Content}}},
		}, true
	}
	for _, tc := range choice.Delta.ToolCalls {
		s.bufferToolCallDelta(tc)
	}
	return model.Chunk{}, false
}

func (s *openaiStreamer) bufferToolCallDelta(tc sdk.ChatCompletionChunkChoiceDeltaToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hadTools = true
	buf, ok := s.toolBufs[tc.Index]
	if !ok {
		buf = &toolCallBuffer{}
		s.toolBufs[tc.Index] = buf
		s.toolIdx = append(s.toolIdx, tc.Index)
	}
	if tc.ID != "" {
		buf.id = tc.ID
	}
	if tc.Function.Name != "" {
		buf.name = tc.Function.Name
	}
	if tc.Function.Arguments != "" {
		buf.args = append(buf.args, tc.Function.Arguments...)
	}
}

// finalChunk drains accumulated tool-call buffers into ChunkTypeToolCall
// events followed by a terminal ChunkTypeStop. Recv is only called again
// after the underlying SSE stream has closed, so this method is invoked by
// the caller once Next() returns false; it is exposed through a small state
// machine on s rather than a second method to keep Recv as the only public
// entry point expected by model.Streamer.
func (s *openaiStreamer) finalChunk() (model.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.toolIdx) > 0 {
		idx := s.toolIdx[0]
		s.toolIdx = s.toolIdx[1:]
		buf := s.toolBufs[idx]
		delete(s.toolBufs, idx)
		name := buf.name
		if canonical, ok := s.nameMap[name]; ok {
			name = canonical
		}
		payload := buf.args
		if len(payload) == 0 {
			payload = []byte("{}")
		}
		return model.Chunk{
			Type: model.ChunkTypeToolCall,
			ToolCall: &model.ToolCall{
				Name:    tools.Ident(name),
				Payload: json.RawMessage(payload),
				ID:      buf.id,
			},
		}, false
	}
	if s.usage.TotalTokens > 0 {
		u := s.usage
		s.usage = model.TokenUsage{}
		return model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &u}, false
	}
	reason := "stop"
	if s.hadTools {
		reason = "tool_calls"
	}
	return model.Chunk{Type: model.ChunkTypeStop, StopReason: reason}, true
}

// Close implements model.Streamer.
func (s *openaiStreamer) Close() error {
	return s.stream.Close()
}

// Metadata implements model.Streamer.
func (s *openaiStreamer) Metadata() map[string]any {
	return s.meta
}
