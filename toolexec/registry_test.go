package toolexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgateway/core/gatewayerr"
)

type fakeExecutor struct {
	BaseExecutor
	name       string
	handles    string
	output     ToolOutput
	execErr    error
	startCalls int
	doneCalls  int
}

func (f *fakeExecutor) Name() string { return f.name }

func (f *fakeExecutor) CanHandle(toolType string) bool { return toolType == f.handles }

func (f *fakeExecutor) Execute(ctx context.Context, call ToolCallInfo) (ToolOutput, error) {
	if f.execErr != nil {
		return ToolOutput{}, f.execErr
	}
	return f.output, nil
}

func (f *fakeExecutor) EmitStart(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	f.startCalls++
	return nil
}

func (f *fakeExecutor) EmitComplete(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	f.doneCalls++
	return nil
}

func TestRegistry_ExecuteDispatchesToMatchingExecutor(t *testing.T) {
	r := NewRegistry()
	web := &fakeExecutor{name: "web_search", handles: "web_search", output: ToolOutput{Kind: OutputWebSearch}}
	file := &fakeExecutor{name: "file_search", handles: "file_search", output: ToolOutput{Kind: OutputFileSearch}}
	r.Register(web)
	r.Register(file)

	out, err := r.Execute(context.Background(), ToolCallInfo{ToolType: "file_search"})
	require.NoError(t, err)
	assert.Equal(t, OutputFileSearch, out.Kind)
}

func TestRegistry_CanHandle(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeExecutor{name: "web_search", handles: "web_search"})

	assert.True(t, r.CanHandle("web_search"))
	assert.False(t, r.CanHandle("file_search"))
}

func TestRegistry_Execute_EmptyToolNameRejected(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), ToolCallInfo{ToolType: "  "})
	require.Error(t, err)
	var gwErr *gatewayerr.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gatewayerr.InvalidParams, gwErr.Kind)
}

func TestRegistry_Execute_UnknownToolRejected(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), ToolCallInfo{ToolType: "does_not_exist"})
	require.Error(t, err)
	var gwErr *gatewayerr.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gatewayerr.InvalidParams, gwErr.Kind)
}

func TestRegistry_EmitStartAndCompleteDispatchToMatchingExecutor(t *testing.T) {
	r := NewRegistry()
	web := &fakeExecutor{name: "web_search", handles: "web_search"}
	r.Register(web)

	require.NoError(t, r.EmitStart(context.Background(), ToolCallInfo{ToolType: "web_search"}, nil))
	require.NoError(t, r.EmitComplete(context.Background(), ToolCallInfo{ToolType: "web_search"}, nil))
	assert.Equal(t, 1, web.startCalls)
	assert.Equal(t, 1, web.doneCalls)
}

func TestRegistry_EmitStart_NoMatchIsNoop(t *testing.T) {
	r := NewRegistry()
	err := r.EmitStart(context.Background(), ToolCallInfo{ToolType: "unregistered"}, nil)
	assert.NoError(t, err)
}

func TestRegistry_Execute_PropagatesExecutorError(t *testing.T) {
	r := NewRegistry()
	wantErr := gatewayerr.New(gatewayerr.Internal, "boom")
	r.Register(&fakeExecutor{name: "web_search", handles: "web_search", execErr: wantErr})

	_, err := r.Execute(context.Background(), ToolCallInfo{ToolType: "web_search"})
	assert.ErrorIs(t, err, wantErr)
}

func TestToolCallInfo_RawArguments(t *testing.T) {
	c := ToolCallInfo{Params: map[string]any{"query": "weather"}}
	raw, err := c.RawArguments()
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"weather"}`, string(raw))
}
