package gemini

import (
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"github.com/modelgateway/core/runtime/agent/model"
	"github.com/modelgateway/core/runtime/agent/tools"
)

// geminiStreamer adapts the iterator pattern the Gemini SDK streams with
// (Next returns one full candidate update per call, terminated by
// iterator.Done) into model.Chunks. Unlike OpenAI/Anthropic's SSE deltas,
// each Gemini streaming response carries complete Parts for the increment
// rather than incremental text/argument fragments, so there is no
// cross-call buffering to do beyond tracking whether any function call was
// seen, to pick the right terminal stop reason.
type geminiStreamer struct {
	iter    GenaiStream
	nameMap map[string]string

	mu       sync.Mutex
	hadTools bool
	usage    model.TokenUsage
	drained  bool
	meta     map[string]any
}

func newGeminiStreamer(iter GenaiStream, nameMap map[string]string) *geminiStreamer {
	return &geminiStreamer{
		iter:    iter,
		nameMap: nameMap,
		meta:    make(map[string]any),
	}
}

// Recv implements model.Streamer.
func (s *geminiStreamer) Recv() (model.Chunk, error) {
	s.mu.Lock()
	if s.drained {
		s.mu.Unlock()
		return model.Chunk{}, io.EOF
	}
	s.mu.Unlock()

	resp, err := s.iter.Next()
	if errors.Is(err, iterator.Done) {
		s.mu.Lock()
		hadUsage := s.usage.TotalTokens > 0
		usage := s.usage
		s.usage = model.TokenUsage{}
		if hadUsage {
			s.mu.Unlock()
			return model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &usage}, nil
		}
		s.drained = true
		s.mu.Unlock()
		reason := "stop"
		if s.hadTools {
			reason = "tool_calls"
		}
		return model.Chunk{Type: model.ChunkTypeStop, StopReason: reason}, nil
	}
	if err != nil {
		return model.Chunk{}, err
	}
	return s.translate(resp)
}

func (s *geminiStreamer) translate(resp *genai.GenerateContentResponse) (model.Chunk, error) {
	if resp == nil {
		return model.Chunk{}, nil
	}
	if u := resp.UsageMetadata; u != nil {
		s.mu.Lock()
		s.usage = model.TokenUsage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
		s.mu.Unlock()
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.Chunk{}, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			if string(v) == "" {
				continue
			}
			return model.Chunk{
				Type:    model.ChunkTypeText,
				Message: &model.Message{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: string(v)}}},
			}, nil
		case genai.FunctionCall:
			s.mu.Lock()
			s.hadTools = true
			s.mu.Unlock()
			payload, err := json.Marshal(v.Args)
			if err != nil {
				return model.Chunk{}, err
			}
			name := v.Name
			if canonical, ok := s.nameMap[v.Name]; ok {
				name = canonical
			}
			return model.Chunk{
				Type:     model.ChunkTypeToolCall,
				ToolCall: &model.ToolCall{Name: tools.Ident(name), Payload: payload},
			}, nil
		}
	}
	return model.Chunk{}, nil
}

// Close implements model.Streamer. The genai iterator has no explicit close;
// its underlying gRPC stream is released when Next returns a terminal error.
func (s *geminiStreamer) Close() error {
	return nil
}

// Metadata implements model.Streamer.
func (s *geminiStreamer) Metadata() map[string]any {
	return s.meta
}
