package toolexec

import (
	"context"
	"strings"

	"github.com/modelgateway/core/gatewayerr"
)

// Registry dispatches tool calls to the first registered Executor whose
// CanHandle matches. It is a short slice checked by linear scan rather than
// a map, per §9's design note: typical registries have at most ~5 entries
// (web_search, file_search, one Executor per MCP server label).
type Registry struct {
	executors []Executor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an Executor. Registration order only matters if two
// executors claim an overlapping tool type, which should not happen in
// practice (web_search/file_search are fixed names and MCP executors are
// keyed by distinct server labels).
func (r *Registry) Register(e Executor) {
	r.executors = append(r.executors, e)
}

// CanHandle reports whether any registered executor claims toolType.
func (r *Registry) CanHandle(toolType string) bool {
	_, ok := r.find(toolType)
	return ok
}

// Execute dispatches call to the first matching Executor, per §4.5's
// UnknownTool/EmptyToolName boundary behavior.
func (r *Registry) Execute(ctx context.Context, call ToolCallInfo) (ToolOutput, error) {
	if strings.TrimSpace(call.ToolType) == "" {
		return ToolOutput{}, gatewayerr.New(gatewayerr.InvalidParams, "empty tool name")
	}
	e, ok := r.find(call.ToolType)
	if !ok {
		return ToolOutput{}, gatewayerr.Errorf(gatewayerr.InvalidParams, "unknown tool %q", call.ToolType)
	}
	return e.Execute(ctx, call)
}

// EmitStart dispatches to the matching executor's EmitStart, or is a no-op
// if none matches (mirrors the original implementation's registry
// behavior, §C.2).
func (r *Registry) EmitStart(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	if e, ok := r.find(call.ToolType); ok {
		return e.EmitStart(ctx, call, sink)
	}
	return nil
}

// EmitComplete dispatches to the matching executor's EmitComplete, or is a
// no-op if none matches.
func (r *Registry) EmitComplete(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	if e, ok := r.find(call.ToolType); ok {
		return e.EmitComplete(ctx, call, sink)
	}
	return nil
}

func (r *Registry) find(toolType string) (Executor, bool) {
	for _, e := range r.executors {
		if e.CanHandle(toolType) {
			return e, true
		}
	}
	return nil, false
}
