package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/modelgateway/core/gatewayerr"
	"github.com/modelgateway/core/runtime/mcp"
	"github.com/modelgateway/core/runtime/mcp/retry"
)

type (
	// ServerResolver maps an MCP server label (the part of "<label>:<tool>"
	// before the colon) to the Caller bound to that server, per §4.5 "routes
	// to the corresponding server (resolved by server_url in the request's
	// tool spec)". Callers build this from the CreateResponseRequest's tool
	// specs during Prepare.
	ServerResolver func(label string) (mcp.Caller, bool)

	// SchemaResolver looks up the cached tools/list input schema for
	// "<label>:<tool>", so Execute can reject malformed arguments before a
	// round trip to the server (§4.5's "routes to the corresponding
	// server"; the schema itself comes from the per-response tools/list
	// cache built during Prepare).
	SchemaResolver func(label, tool string) (json.RawMessage, bool)

	// McpExecutor implements Executor for "<label>:<tool_name>" tool calls.
	// Approval gating (§4.4's ApprovalNeeded transition) is the Response
	// State Machine's responsibility, not the executor's: by the time
	// Execute is called, approval has already been granted or was never
	// required.
	McpExecutor struct {
		BaseExecutor
		resolve       ServerResolver
		resolveSchema SchemaResolver
	}

	// McpCallSnapshot is the lifecycle payload handed to EventSink; the
	// Response State Machine converts it into a ResponseItem.McpCall output
	// item.
	McpCallSnapshot struct {
		ID          string
		ServerLabel string
		Tool        string
		Status      string
		Output      string
		Error       string
	}
)

// NewMcpExecutor builds an McpExecutor over the given server resolver. A nil
// schemaResolver disables argument validation, matching servers that never
// published an input schema for a tool.
func NewMcpExecutor(resolve ServerResolver, schemaResolver SchemaResolver) *McpExecutor {
	return &McpExecutor{resolve: resolve, resolveSchema: schemaResolver}
}

func (e *McpExecutor) Name() string { return "mcp" }

// CanHandle matches any "<label>:<tool>" tool type whose label resolves to
// a registered server. Intrinsic tools (web_search, file_search) never
// contain a colon, so this never shadows them.
func (e *McpExecutor) CanHandle(toolType string) bool {
	label, _, ok := splitMcpTool(toolType)
	if !ok {
		return false
	}
	_, ok = e.resolve(label)
	return ok
}

func (e *McpExecutor) Execute(ctx context.Context, call ToolCallInfo) (ToolOutput, error) {
	label, tool, ok := splitMcpTool(call.ToolType)
	if !ok {
		return ToolOutput{}, gatewayerr.Errorf(gatewayerr.InvalidParams, "malformed mcp tool name %q", call.ToolType)
	}
	caller, ok := e.resolve(label)
	if !ok {
		return ToolOutput{}, gatewayerr.Errorf(gatewayerr.InvalidParams, "unknown mcp server %q", label)
	}

	payload, err := call.RawArguments()
	if err != nil {
		return ToolOutput{}, gatewayerr.Wrap(gatewayerr.InvalidParams, err, "failed to encode mcp tool arguments")
	}

	if err := e.validateArguments(label, tool, payload); err != nil {
		return ToolOutput{}, gatewayerr.Wrap(gatewayerr.InvalidParams, err, fmt.Sprintf("mcp call %s:%s arguments invalid", label, tool))
	}

	resp, err := caller.CallTool(ctx, mcp.CallRequest{Suite: label, Tool: tool, Payload: payload})
	if err != nil {
		return ToolOutput{}, gatewayerr.Wrap(mcpErrorKind(err), err, fmt.Sprintf("mcp call %s:%s failed", label, tool))
	}

	return ToolOutput{Kind: OutputText, Text: renderMcpResult(resp)}, nil
}

func (e *McpExecutor) EmitStart(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	label, tool, _ := splitMcpTool(call.ToolType)
	item := McpCallSnapshot{ID: call.CallID, ServerLabel: label, Tool: tool, Status: "in_progress"}
	if err := sink.EmitItemAdded(ctx, item); err != nil {
		return err
	}
	return sink.EmitLifecycle(ctx, "in_progress")
}

func (e *McpExecutor) EmitComplete(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	if err := sink.EmitLifecycle(ctx, "completed"); err != nil {
		return err
	}
	label, tool, _ := splitMcpTool(call.ToolType)
	item := McpCallSnapshot{ID: call.CallID, ServerLabel: label, Tool: tool, Status: "completed"}
	return sink.EmitItemDone(ctx, item)
}

// validateArguments compiles and checks payload against the tool's cached
// input schema, if one was published and a resolver was configured.
// Compilation happens on every call rather than once at registration time
// since schemas are only known once tools/list responds per response (§4.4
// step 3), not at executor construction time.
func (e *McpExecutor) validateArguments(label, tool string, payload json.RawMessage) error {
	if e.resolveSchema == nil {
		return nil
	}
	schemaBytes, ok := e.resolveSchema(label, tool)
	if !ok || len(schemaBytes) == 0 {
		return nil
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal input schema: %w", err)
	}
	var payloadDoc any
	if err := json.Unmarshal(payload, &payloadDoc); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}

	c := jsonschema.NewCompiler()
	resourceID := fmt.Sprintf("%s:%s.json", label, tool)
	if err := c.AddResource(resourceID, schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(resourceID)
	if err != nil {
		return fmt.Errorf("compile input schema: %w", err)
	}
	if err := schema.Validate(payloadDoc); err != nil {
		return &retry.RetryableError{
			Prompt: retry.BuildRepairPrompt(fmt.Sprintf("%s:%s", label, tool), err.Error(), "{}", string(schemaBytes)),
			Cause:  err,
		}
	}
	return nil
}

func splitMcpTool(toolType string) (label, tool string, ok bool) {
	i := strings.IndexByte(toolType, ':')
	if i <= 0 || i == len(toolType)-1 {
		return "", "", false
	}
	return toolType[:i], toolType[i+1:], true
}

func renderMcpResult(resp mcp.CallResponse) string {
	if len(resp.Result) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(resp.Result, &s); err == nil {
		return s
	}
	return string(resp.Result)
}

// mcpErrorKind classifies an MCP JSON-RPC error (§C.5) into the gateway's
// error taxonomy: malformed requests/params map to InvalidParams (caller
// error, not worth retrying), everything else is a ToolError that the state
// machine injects as non-fatal tool output per §4.4.
func mcpErrorKind(err error) gatewayerr.Kind {
	var rpcErr *mcp.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case mcp.JSONRPCInvalidRequest, mcp.JSONRPCInvalidParams, mcp.JSONRPCMethodNotFound:
			return gatewayerr.InvalidParams
		}
	}
	return gatewayerr.ToolError
}
