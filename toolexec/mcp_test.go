package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgateway/core/gatewayerr"
	"github.com/modelgateway/core/runtime/mcp"
)

type fakeCaller struct {
	resp    mcp.CallResponse
	err     error
	gotReq  mcp.CallRequest
}

func (c *fakeCaller) CallTool(ctx context.Context, req mcp.CallRequest) (mcp.CallResponse, error) {
	c.gotReq = req
	if c.err != nil {
		return mcp.CallResponse{}, c.err
	}
	return c.resp, nil
}

func (c *fakeCaller) ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error) {
	return nil, nil
}

func resolverFor(label string, caller mcp.Caller) ServerResolver {
	return func(l string) (mcp.Caller, bool) {
		if l == label {
			return caller, true
		}
		return nil, false
	}
}

func TestMcpExecutor_CanHandle(t *testing.T) {
	caller := &fakeCaller{}
	e := NewMcpExecutor(resolverFor("files", caller), nil)

	assert.True(t, e.CanHandle("files:search"))
	assert.False(t, e.CanHandle("other:search"))
	assert.False(t, e.CanHandle("web_search"))
}

func TestMcpExecutor_Execute_Success(t *testing.T) {
	resultJSON, _ := json.Marshal("done")
	caller := &fakeCaller{resp: mcp.CallResponse{Result: resultJSON}}
	e := NewMcpExecutor(resolverFor("files", caller), nil)

	out, err := e.Execute(context.Background(), ToolCallInfo{ToolType: "files:search", Params: map[string]any{"q": "invoice"}})
	require.NoError(t, err)
	assert.Equal(t, OutputText, out.Kind)
	assert.Equal(t, "done", out.Text)
	assert.Equal(t, "files", caller.gotReq.Suite)
	assert.Equal(t, "search", caller.gotReq.Tool)
}

func TestMcpExecutor_Execute_MalformedToolName(t *testing.T) {
	e := NewMcpExecutor(resolverFor("files", &fakeCaller{}), nil)
	_, err := e.Execute(context.Background(), ToolCallInfo{ToolType: "no-colon-here"})
	require.Error(t, err)
	var gwErr *gatewayerr.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gatewayerr.InvalidParams, gwErr.Kind)
}

func TestMcpExecutor_Execute_UnknownServer(t *testing.T) {
	e := NewMcpExecutor(resolverFor("files", &fakeCaller{}), nil)
	_, err := e.Execute(context.Background(), ToolCallInfo{ToolType: "other:search"})
	require.Error(t, err)
	var gwErr *gatewayerr.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gatewayerr.InvalidParams, gwErr.Kind)
}

func TestMcpExecutor_Execute_SchemaValidationRejectsBadArguments(t *testing.T) {
	caller := &fakeCaller{}
	schema := json.RawMessage(`{"type":"object","required":["query"],"properties":{"query":{"type":"string"}}}`)
	resolveSchema := func(label, tool string) (json.RawMessage, bool) { return schema, true }
	e := NewMcpExecutor(resolverFor("files", caller), resolveSchema)

	_, err := e.Execute(context.Background(), ToolCallInfo{ToolType: "files:search", Params: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arguments invalid")
}

func TestMcpExecutor_Execute_SchemaValidationFailureCarriesRepairPrompt(t *testing.T) {
	caller := &fakeCaller{}
	schema := json.RawMessage(`{"type":"object","required":["query"],"properties":{"query":{"type":"string"}}}`)
	resolveSchema := func(label, tool string) (json.RawMessage, bool) { return schema, true }
	e := NewMcpExecutor(resolverFor("files", caller), resolveSchema)

	_, err := e.Execute(context.Background(), ToolCallInfo{ToolType: "files:search", Params: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redo the operation now with valid parameters")
	assert.Contains(t, err.Error(), "files:search")
}

func TestMcpExecutor_Execute_SchemaValidationAcceptsValidArguments(t *testing.T) {
	result, _ := json.Marshal("ok")
	caller := &fakeCaller{resp: mcp.CallResponse{Result: result}}
	schema := json.RawMessage(`{"type":"object","required":["query"],"properties":{"query":{"type":"string"}}}`)
	resolveSchema := func(label, tool string) (json.RawMessage, bool) { return schema, true }
	e := NewMcpExecutor(resolverFor("files", caller), resolveSchema)

	out, err := e.Execute(context.Background(), ToolCallInfo{ToolType: "files:search", Params: map[string]any{"query": "invoice"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
}

func TestMcpExecutor_Execute_NoSchemaResolverSkipsValidation(t *testing.T) {
	result, _ := json.Marshal("ok")
	caller := &fakeCaller{resp: mcp.CallResponse{Result: result}}
	e := NewMcpExecutor(resolverFor("files", caller), nil)

	_, err := e.Execute(context.Background(), ToolCallInfo{ToolType: "files:search", Params: map[string]any{}})
	require.NoError(t, err)
}

func TestMcpExecutor_Execute_InvalidParamsJSONRPCErrorMapsToInvalidParams(t *testing.T) {
	caller := &fakeCaller{err: &mcp.Error{Code: mcp.JSONRPCInvalidParams, Message: "bad params"}}
	e := NewMcpExecutor(resolverFor("files", caller), nil)

	_, err := e.Execute(context.Background(), ToolCallInfo{ToolType: "files:search"})
	require.Error(t, err)
	var gwErr *gatewayerr.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gatewayerr.InvalidParams, gwErr.Kind)
}

func TestMcpExecutor_Execute_OtherErrorMapsToToolError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection reset")}
	e := NewMcpExecutor(resolverFor("files", caller), nil)

	_, err := e.Execute(context.Background(), ToolCallInfo{ToolType: "files:search"})
	require.Error(t, err)
	var gwErr *gatewayerr.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gatewayerr.ToolError, gwErr.Kind)
}

func TestMcpExecutor_EmitStartAndComplete(t *testing.T) {
	e := NewMcpExecutor(resolverFor("files", &fakeCaller{}), nil)
	sink := &fakeSink{}

	require.NoError(t, e.EmitStart(context.Background(), ToolCallInfo{CallID: "call_1", ToolType: "files:search"}, sink))
	assert.Equal(t, []string{"in_progress"}, sink.lifecycle)

	require.NoError(t, e.EmitComplete(context.Background(), ToolCallInfo{CallID: "call_1", ToolType: "files:search"}, sink))
	assert.Equal(t, []string{"in_progress", "completed"}, sink.lifecycle)
}
