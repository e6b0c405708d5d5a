package responses

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modelgateway/core/gatewayerr"
)

func TestRenderToolError_GatewayErrorWithoutCause(t *testing.T) {
	err := gatewayerr.New(gatewayerr.ToolError, "search failed")
	assert.Equal(t, "search failed", renderToolError(err))
}

func TestRenderToolError_GatewayErrorWithCause_DoesNotDuplicateCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := gatewayerr.Wrap(gatewayerr.ToolError, cause, "search failed")

	got := renderToolError(err)
	assert.Equal(t, "search failed: caused by: connection reset", got)
}

func TestRenderToolError_PlainErrorFallsBackToMessage(t *testing.T) {
	got := renderToolError(errors.New("boom"))
	assert.Equal(t, "boom", got)
}

func TestQueryFromParams(t *testing.T) {
	assert.Equal(t, "weather", queryFromParams(map[string]any{"query": "weather"}))
	assert.Equal(t, "", queryFromParams(map[string]any{"other": "x"}))
	assert.Equal(t, "", queryFromParams(nil))
}

func TestCallID_GeneratesWhenEmpty(t *testing.T) {
	assert.Equal(t, "call_1", callID("call_1"))
	assert.NotEmpty(t, callID(""))
}

func TestSplitToolName(t *testing.T) {
	label, tool, ok := splitToolName("files:search")
	assert.True(t, ok)
	assert.Equal(t, "files", label)
	assert.Equal(t, "search", tool)

	_, _, ok = splitToolName("web_search")
	assert.False(t, ok)
}

func TestToolFamily(t *testing.T) {
	assert.Equal(t, "web_search_call", toolFamily("web_search"))
	assert.Equal(t, "file_search_call", toolFamily("file_search"))
	assert.Equal(t, "mcp_call", toolFamily("files:search"))
}

func TestRequiresApproval(t *testing.T) {
	specs := []ToolSpec{{Kind: "mcp", ServerLabel: "files", RequireApproval: "always"}}
	assert.True(t, requiresApproval(specs, "files"))
	assert.False(t, requiresApproval(specs, "other"))
}
