package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"

	"github.com/modelgateway/core/runtime/agent/model"
)

type stubChat struct {
	lastParts []genai.Part
	history   []*genai.Content
	resp      *genai.GenerateContentResponse
	err       error
}

func (s *stubChat) SetHistory(h []*genai.Content) { s.history = h }

func (s *stubChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	s.lastParts = parts
	return s.resp, s.err
}

func (s *stubChat) SendMessageStream(_ context.Context, parts ...genai.Part) GenaiStream {
	s.lastParts = parts
	return &stubStream{}
}

type stubStream struct{}

func (s *stubStream) Next() (*genai.GenerateContentResponse, error) {
	return nil, iterator.Done
}

func stubFactory(chat *stubChat, lastCfg *ModelConfig) ModelFactory {
	return func(_ string, cfg ModelConfig) (ChatHandle, error) {
		if lastCfg != nil {
			*lastCfg = cfg
		}
		return chat, nil
	}
}

func TestClientComplete(t *testing.T) {
	chat := &stubChat{
		resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content:      &genai.Content{Role: "model", Parts: []genai.Part{genai.Text("hello there")}},
				FinishReason: genai.FinishReasonStop,
			}},
			UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
		},
	}
	cl, err := New(stubFactory(chat, nil), Options{DefaultModel: "gemini-2.5-flash"})
	require.NoError(t, err)

	req := &model.Request{
		Messages: []*model.Message{
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}},
		},
	}
	resp, err := cl.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "stop", resp.StopReason)
	require.Len(t, resp.Content, 1)
	require.Equal(t, model.TextPart{Text: "hello there"}, resp.Content[0].Parts[0])
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestClientCompleteSplitsHistory(t *testing.T) {
	chat := &stubChat{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}}}}
	cl, err := New(stubFactory(chat, nil), Options{DefaultModel: "gemini-2.5-flash"})
	require.NoError(t, err)

	req := &model.Request{
		Messages: []*model.Message{
			{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: "be concise"}}},
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "first"}}},
			{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: "ack"}}},
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "second"}}},
		},
	}
	_, err = cl.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, chat.history, 2)
	require.Equal(t, "user", chat.history[0].Role)
	require.Equal(t, "model", chat.history[1].Role)
	require.Len(t, chat.lastParts, 1)
	require.Equal(t, genai.Text("second"), chat.lastParts[0])
}

func TestClientCompleteWithToolChoiceTool(t *testing.T) {
	chat := &stubChat{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}}}}
	var cfg ModelConfig
	cl, err := New(stubFactory(chat, &cfg), Options{DefaultModel: "gemini-2.5-flash"})
	require.NoError(t, err)

	req := &model.Request{
		Messages: []*model.Message{{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}}},
		Tools:    []*model.ToolDefinition{{Name: "tools.get_weather", Description: "looks up weather"}},
		ToolChoice: &model.ToolChoice{
			Mode: model.ToolChoiceModeTool,
			Name: "tools.get_weather",
		},
	}
	_, err = cl.Complete(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, cfg.ToolConfig)
	require.Equal(t, genai.FunctionCallingAny, cfg.ToolConfig.FunctionCallingConfig.Mode)
	require.Equal(t, []string{"get_weather"}, cfg.ToolConfig.FunctionCallingConfig.AllowedFunctionNames)
}

func TestClientCompleteWithToolChoiceNone(t *testing.T) {
	chat := &stubChat{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}}}}
	var cfg ModelConfig
	cl, err := New(stubFactory(chat, &cfg), Options{DefaultModel: "gemini-2.5-flash"})
	require.NoError(t, err)

	req := &model.Request{
		Messages:   []*model.Message{{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}}},
		ToolChoice: &model.ToolChoice{Mode: model.ToolChoiceModeNone},
	}
	_, err = cl.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, genai.FunctionCallingNone, cfg.ToolConfig.FunctionCallingConfig.Mode)
}

func TestClientRequiresDefaultModel(t *testing.T) {
	_, err := New(stubFactory(&stubChat{}, nil), Options{})
	require.Error(t, err)
}

func TestClientCompleteRequiresMessages(t *testing.T) {
	cl, err := New(stubFactory(&stubChat{}, nil), Options{DefaultModel: "gemini-2.5-flash"})
	require.NoError(t, err)
	_, err = cl.Complete(context.Background(), &model.Request{})
	require.Error(t, err)
}
