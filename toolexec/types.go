// Package toolexec implements the Tool Registry & Executors (§4.5): a small,
// linearly-scanned dispatch table over web_search, file_search, and MCP tool
// calls, each returning a typed ToolOutput the Response State Machine
// pattern-matches on. Grounded on the original implementation's
// tools/executor.rs (§C.2): trait-shaped Go interfaces with the same
// name()/can_handle()/execute()/emit_start()/emit_complete() surface.
package toolexec

import (
	"context"
	"encoding/json"
)

type (
	// ToolCallInfo is what the Response State Machine's Detect-tool-calls
	// step (§4.4) builds for each accumulated tool call before dispatch.
	ToolCallInfo struct {
		// ToolType is the resolved dispatch key: "web_search", "file_search",
		// or "<server_label>:<tool_name>" for MCP.
		ToolType string
		// Query is the primary natural-language argument most tools key on
		// (the search query, or the MCP tool's most prominent string field).
		Query string
		// Params carries the full parsed JSON arguments object.
		Params map[string]any
		// CallID is the model-issued (or synthesized) id correlating this
		// call's FunctionCall/FunctionCallOutput pair.
		CallID string
	}

	// OutputKind discriminates the ToolOutput tagged variant (§4.5).
	OutputKind string

	// WebSearchSource is one result row a web search executor returns.
	WebSearchSource struct {
		Title   string
		URL     string
		Snippet string
	}

	// FileSearchResult is one result row a file search executor returns.
	FileSearchResult struct {
		FileID   string
		Filename string
		Score    float64
		Text     string
	}

	// ToolOutput is the tagged-variant result every executor returns (§4.5):
	// Text for MCP/errors, WebSearch/FileSearch carrying structured results
	// the caller (the state machine) uses to update the citation tracker and
	// render a FunctionCallOutput.
	ToolOutput struct {
		Kind    OutputKind
		Text    string
		Sources []WebSearchSource
		Results []FileSearchResult
	}

	// EventSink is the narrow interface an executor's emit_start/emit_complete
	// needs from the Response State Machine: add/finish an output item and
	// emit a lifecycle-only event carrying no payload beyond the item id.
	// Defined here (rather than depending on runtime/agent/stream directly)
	// to avoid an import cycle between toolexec and responses, which
	// constructs the concrete stream events these calls produce.
	EventSink interface {
		// EmitLifecycle sends a bare lifecycle event (e.g.
		// "response.web_search_call.searching") for the current tool call.
		EmitLifecycle(ctx context.Context, eventSuffix string) error
		// EmitItemAdded announces a new in-progress output item.
		EmitItemAdded(ctx context.Context, item any) error
		// EmitItemDone finalizes the output item, e.g. with status
		// "completed" or "failed".
		EmitItemDone(ctx context.Context, item any) error
	}

	// Executor is the per-tool-family dispatch target (§4.5). Implementations
	// are stateless: execution state lives in the caller-supplied
	// ToolCallInfo and EventSink.
	Executor interface {
		Name() string
		CanHandle(toolType string) bool
		Execute(ctx context.Context, call ToolCallInfo) (ToolOutput, error)
		EmitStart(ctx context.Context, call ToolCallInfo, sink EventSink) error
		EmitComplete(ctx context.Context, call ToolCallInfo, sink EventSink) error
	}

	// BaseExecutor gives emit_start/emit_complete no-op defaults, matching
	// §C.2's "emit_start/emit_complete as no-ops by default" — concrete
	// executors embed this and override only the hooks they need (web/file
	// search override both; the MCP executor overrides both too, since
	// every tool family in this spec has an observable lifecycle).
	BaseExecutor struct{}
)

const (
	OutputText       OutputKind = "text"
	OutputWebSearch  OutputKind = "web_search"
	OutputFileSearch OutputKind = "file_search"
)

func (BaseExecutor) EmitStart(context.Context, ToolCallInfo, EventSink) error    { return nil }
func (BaseExecutor) EmitComplete(context.Context, ToolCallInfo, EventSink) error { return nil }

// RawArguments marshals call.Params back to canonical JSON, used when an
// executor or the state machine needs to persist the original arguments
// object (e.g. on an McpApprovalRequest).
func (c ToolCallInfo) RawArguments() (json.RawMessage, error) {
	return json.Marshal(c.Params)
}
