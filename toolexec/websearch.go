package toolexec

import (
	"context"

	"github.com/modelgateway/core/gatewayerr"
)

const WebSearchToolName = "web_search"

// CitationInstruction is appended to the system prompt the first time a web
// search succeeds in a response (§4.4 step 3), teaching the model the
// [s:N]...[/s:N] marker format the citation.Tracker parses.
const CitationInstruction = `CITATION REQUIREMENT: Use [s:N]text[/s:N] for EVERY fact from web search results.

FORMAT: [s:N]fact from source N[/s:N]
- N = source number (0, 1, 2, 3, etc. - cumulative across all searches)
- ALWAYS use BOTH opening [s:N] and closing [/s:N] tags together
- The number N MUST match in opening and closing tags
- Cite specific facts, names, numbers, and statements from sources
- Every factual claim must be wrapped`

type (
	// WebSearchParams is the parsed argument shape §4.5 names for
	// web_search: {query, country?, count?, safesearch?, freshness?, ...}.
	WebSearchParams struct {
		Query      string
		Country    string
		Count      int
		SafeSearch string
		Freshness  string
	}

	// WebSearchProvider is the external collaborator that actually performs
	// a search. Concrete implementations (Brave, Bing, etc.) are out of
	// scope; this module only defines the contract the executor drives.
	WebSearchProvider interface {
		Search(ctx context.Context, params WebSearchParams) ([]WebSearchSource, error)
	}

	// WebSearchExecutor implements Executor for the intrinsic web_search
	// tool. Grounded on the original implementation's WebSearchToolExecutor
	// (§C grounding): stateless, delegates the actual HTTP call to a
	// provider collaborator, and emits the in_progress -> searching ->
	// completed lifecycle around it.
	WebSearchExecutor struct {
		BaseExecutor
		provider WebSearchProvider
	}

	// WebSearchCallSnapshot is the lifecycle payload this executor hands to
	// EventSink.EmitItemAdded/EmitItemDone; the Response State Machine
	// converts it into a ResponseItem.WebSearchCall output item (§3).
	WebSearchCallSnapshot struct {
		ID     string
		Query  string
		Status string
	}
)

// NewWebSearchExecutor builds a WebSearchExecutor over the given provider.
func NewWebSearchExecutor(provider WebSearchProvider) *WebSearchExecutor {
	return &WebSearchExecutor{provider: provider}
}

func (e *WebSearchExecutor) Name() string { return WebSearchToolName }

func (e *WebSearchExecutor) CanHandle(toolType string) bool { return toolType == WebSearchToolName }

func (e *WebSearchExecutor) Execute(ctx context.Context, call ToolCallInfo) (ToolOutput, error) {
	params := parseWebSearchParams(call)
	sources, err := e.provider.Search(ctx, params)
	if err != nil {
		return ToolOutput{}, gatewayerr.Wrap(gatewayerr.ToolError, err, "web search failed")
	}
	return ToolOutput{Kind: OutputWebSearch, Sources: sources}, nil
}

func (e *WebSearchExecutor) EmitStart(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	item := WebSearchCallSnapshot{ID: call.CallID, Query: call.Query, Status: "in_progress"}
	if err := sink.EmitItemAdded(ctx, item); err != nil {
		return err
	}
	if err := sink.EmitLifecycle(ctx, "in_progress"); err != nil {
		return err
	}
	return sink.EmitLifecycle(ctx, "searching")
}

func (e *WebSearchExecutor) EmitComplete(ctx context.Context, call ToolCallInfo, sink EventSink) error {
	if err := sink.EmitLifecycle(ctx, "completed"); err != nil {
		return err
	}
	item := WebSearchCallSnapshot{ID: call.CallID, Query: call.Query, Status: "completed"}
	return sink.EmitItemDone(ctx, item)
}

func parseWebSearchParams(call ToolCallInfo) WebSearchParams {
	p := WebSearchParams{Query: call.Query}
	if call.Params == nil {
		return p
	}
	if v, ok := call.Params["country"].(string); ok {
		p.Country = v
	}
	if v, ok := call.Params["count"].(float64); ok {
		p.Count = int(v)
	}
	if v, ok := call.Params["safesearch"].(string); ok {
		p.SafeSearch = v
	}
	if v, ok := call.Params["freshness"].(string); ok {
		p.Freshness = v
	}
	return p
}
