package openai

import (
	"context"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/stretchr/testify/require"

	"github.com/modelgateway/core/runtime/agent/model"
)

type stubChatClient struct {
	lastParams sdk.ChatCompletionNewParams
	resp       *sdk.ChatCompletion
	err        error
}

func (s *stubChatClient) New(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) (*sdk.ChatCompletion, error) {
	s.lastParams = body
	return s.resp, s.err
}

func (s *stubChatClient) NewStreaming(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.ChatCompletionChunk] {
	s.lastParams = body
	return ssestream.NewStream[sdk.ChatCompletionChunk](&noopDecoder{}, nil)
}

type noopDecoder struct{}

func (n *noopDecoder) Event() ssestream.Event { return ssestream.Event{} }
func (n *noopDecoder) Next() bool             { return false }
func (n *noopDecoder) Close() error           { return nil }
func (n *noopDecoder) Err() error             { return nil }

func TestClientComplete(t *testing.T) {
	stub := &stubChatClient{
		resp: &sdk.ChatCompletion{
			Choices: []sdk.ChatCompletionChoice{
				{
					FinishReason: "stop",
					Message:      sdk.ChatCompletionMessage{Content: "hello there"},
				},
			},
			Usage: sdk.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o-mini"})
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
	require.Equal(t, "gpt-4o-mini", string(stub.lastParams.Model))
}

func TestClientCompleteWithToolChoiceTool(t *testing.T) {
	stub := &stubChatClient{resp: &sdk.ChatCompletion{Choices: []sdk.ChatCompletionChoice{{FinishReason: "stop"}}}}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o-mini"})
	require.NoError(t, err)

	req := &model.Request{
		Messages: []*model.Message{{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}}},
		Tools:    []*model.ToolDefinition{{Name: "get_weather", Description: "looks up weather"}},
		ToolChoice: &model.ToolChoice{
			Mode: model.ToolChoiceModeTool,
			Name: "get_weather",
		},
	}
	_, err = cl.Complete(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, stub.lastParams.ToolChoice.OfChatCompletionNamedToolChoice)
	require.Equal(t, "get_weather", stub.lastParams.ToolChoice.OfChatCompletionNamedToolChoice.Function.Name)
}

func TestClientCompleteWithToolChoiceNone(t *testing.T) {
	stub := &stubChatClient{resp: &sdk.ChatCompletion{Choices: []sdk.ChatCompletionChoice{{FinishReason: "stop"}}}}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o-mini"})
	require.NoError(t, err)

	req := &model.Request{
		Messages:   []*model.Message{{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}}},
		ToolChoice: &model.ToolChoice{Mode: model.ToolChoiceModeNone},
	}
	_, err = cl.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "none", *stub.lastParams.ToolChoice.OfAuto)
}

func TestClientRequiresDefaultModel(t *testing.T) {
	_, err := New(&stubChatClient{}, Options{})
	require.Error(t, err)
}

func TestClientCompleteRequiresMessages(t *testing.T) {
	cl, err := New(&stubChatClient{}, Options{DefaultModel: "gpt-4o-mini"})
	require.NoError(t, err)
	_, err = cl.Complete(context.Background(), &model.Request{})
	require.Error(t, err)
}
