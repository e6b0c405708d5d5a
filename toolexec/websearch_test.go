package toolexec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	lifecycle  []string
	added      []any
	done       []any
	emitErr    error
}

func (s *fakeSink) EmitLifecycle(ctx context.Context, suffix string) error {
	if s.emitErr != nil {
		return s.emitErr
	}
	s.lifecycle = append(s.lifecycle, suffix)
	return nil
}

func (s *fakeSink) EmitItemAdded(ctx context.Context, item any) error {
	s.added = append(s.added, item)
	return nil
}

func (s *fakeSink) EmitItemDone(ctx context.Context, item any) error {
	s.done = append(s.done, item)
	return nil
}

type fakeWebSearchProvider struct {
	sources []WebSearchSource
	err     error
	gotParams WebSearchParams
}

func (p *fakeWebSearchProvider) Search(ctx context.Context, params WebSearchParams) ([]WebSearchSource, error) {
	p.gotParams = params
	if p.err != nil {
		return nil, p.err
	}
	return p.sources, nil
}

func TestWebSearchExecutor_CanHandle(t *testing.T) {
	e := NewWebSearchExecutor(nil)
	assert.True(t, e.CanHandle("web_search"))
	assert.False(t, e.CanHandle("file_search"))
	assert.Equal(t, WebSearchToolName, e.Name())
}

func TestWebSearchExecutor_Execute_ReturnsSources(t *testing.T) {
	provider := &fakeWebSearchProvider{sources: []WebSearchSource{{Title: "t", URL: "https://example.com"}}}
	e := NewWebSearchExecutor(provider)

	out, err := e.Execute(context.Background(), ToolCallInfo{Query: "weather", Params: map[string]any{"country": "US", "count": float64(5)}})
	require.NoError(t, err)
	assert.Equal(t, OutputWebSearch, out.Kind)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "https://example.com", out.Sources[0].URL)
	assert.Equal(t, "US", provider.gotParams.Country)
	assert.Equal(t, 5, provider.gotParams.Count)
}

func TestWebSearchExecutor_Execute_WrapsProviderError(t *testing.T) {
	provider := &fakeWebSearchProvider{err: errors.New("timeout")}
	e := NewWebSearchExecutor(provider)

	_, err := e.Execute(context.Background(), ToolCallInfo{Query: "weather"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web search failed")
}

func TestWebSearchExecutor_EmitStartAndComplete(t *testing.T) {
	e := NewWebSearchExecutor(nil)
	sink := &fakeSink{}

	require.NoError(t, e.EmitStart(context.Background(), ToolCallInfo{CallID: "call_1", Query: "weather"}, sink))
	assert.Equal(t, []string{"in_progress", "searching"}, sink.lifecycle)
	require.Len(t, sink.added, 1)

	require.NoError(t, e.EmitComplete(context.Background(), ToolCallInfo{CallID: "call_1"}, sink))
	assert.Equal(t, []string{"in_progress", "searching", "completed"}, sink.lifecycle)
	require.Len(t, sink.done, 1)
}

func TestParseWebSearchParams_NilParamsKeepsQueryOnly(t *testing.T) {
	p := parseWebSearchParams(ToolCallInfo{Query: "weather"})
	assert.Equal(t, WebSearchParams{Query: "weather"}, p)
}
