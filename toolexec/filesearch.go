package toolexec

import (
	"context"

	"github.com/modelgateway/core/gatewayerr"
)

const FileSearchToolName = "file_search"

type (
	// FileSearchParams is the parsed argument shape §4.5 names for
	// file_search: {query, vector_store_ids, max_num_results, filters?}.
	FileSearchParams struct {
		Query          string
		VectorStoreIDs []string
		MaxNumResults  int
		Filters        map[string]any
	}

	// FileSearchProvider is the external vector-store collaborator that
	// performs the actual similarity search. Out of scope per §1 (vector
	// store endpoints are stubbed); this module only defines the contract.
	FileSearchProvider interface {
		Search(ctx context.Context, params FileSearchParams) ([]FileSearchResult, error)
	}

	// FileSearchExecutor implements Executor for the intrinsic file_search
	// tool, mirroring WebSearchExecutor's shape.
	FileSearchExecutor struct {
		BaseExecutor
		provider FileSearchProvider
	}

	// FileSearchCallSnapshot is the lifecycle payload handed to EventSink;
	// the Response State Machine converts it into a
	// ResponseItem.FileSearchCall output item.
	FileSearchCallSnapshot struct {
		ID      string
		Query   string
		Status  string
		Results []FileSearchResult
	}
)

// NewFileSearchExecutor builds a FileSearchExecutor over the given provider.
func NewFileSearchExecutor(provider FileSearchProvider) *FileSearchExecutor {
	return &FileSearchExecutor{provider: provider}
}

func (e *FileSearchExecutor) Name() string { return FileSearchToolName }

func (e *FileSearchExecutor) CanHandle(toolType string) bool { return toolType == FileSearchToolName }

func (e *FileSearchExecutor) Execute(ctx context.Context, call ToolCallInfo) (ToolOutput, error) {
	params := parseFileSearchParams(call)
	results, err := e.provider.Search(ctx, params)
	if err != nil {
		return ToolOutput{}, gatewayerr.Wrap(gatewayerr.ToolError, err, "file search failed")
	}
	return ToolOutput{Kind: OutputFileSearch, Results: results}, nil
}

func (e *FileSearchExecutor) EmitStart(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	item := FileSearchCallSnapshot{ID: call.CallID, Query: call.Query, Status: "in_progress"}
	if err := sink.EmitItemAdded(ctx, item); err != nil {
		return err
	}
	if err := sink.EmitLifecycle(ctx, "in_progress"); err != nil {
		return err
	}
	return sink.EmitLifecycle(ctx, "searching")
}

func (e *FileSearchExecutor) EmitComplete(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	if err := sink.EmitLifecycle(ctx, "completed"); err != nil {
		return err
	}
	item := FileSearchCallSnapshot{ID: call.CallID, Query: call.Query, Status: "completed"}
	return sink.EmitItemDone(ctx, item)
}

func parseFileSearchParams(call ToolCallInfo) FileSearchParams {
	p := FileSearchParams{Query: call.Query, MaxNumResults: 10}
	if call.Params == nil {
		return p
	}
	if ids, ok := call.Params["vector_store_ids"].([]any); ok {
		for _, id := range ids {
			if s, ok := id.(string); ok {
				p.VectorStoreIDs = append(p.VectorStoreIDs, s)
			}
		}
	}
	if v, ok := call.Params["max_num_results"].(float64); ok {
		p.MaxNumResults = int(v)
	}
	if f, ok := call.Params["filters"].(map[string]any); ok {
		p.Filters = f
	}
	return p
}
