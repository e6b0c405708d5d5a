package responses

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/citation"
	"github.com/modelgateway/core/gatewayerr"
	"github.com/modelgateway/core/organization"
	"github.com/modelgateway/core/provider"
	"github.com/modelgateway/core/runtime/agent/model"
	"github.com/modelgateway/core/runtime/agent/stream"
	"github.com/modelgateway/core/runtime/agent/toolerrors"
	"github.com/modelgateway/core/runtime/mcp"
	"github.com/modelgateway/core/toolexec"
	"github.com/modelgateway/core/usage"
)

// defaultMaxToolCalls bounds the Detect-tool-calls -> ExecuteTools -> Generate
// loop when CreateResponseRequest.MaxToolCalls is unset (§4.4 step 5's
// "ExhaustedToolCalls" transition needs a default budget to exhaust against).
const defaultMaxToolCalls = 25

type (
	// McpServerFactory dials the MCP server named by a request's ToolSpec,
	// used to build the per-request toolexec.ServerResolver. Kept as a
	// factory rather than a pre-built caller map since server URLs are
	// request-scoped (§4.5: "resolved by server_url in the request's tool
	// spec").
	McpServerFactory func(ctx context.Context, serverLabel, serverURL string) (mcp.Caller, error)

	// Engine drives the Response State Machine (§4.4): Prepare, Generate,
	// detect tool calls, execute them, and loop until the model stops
	// calling tools or a budget/approval boundary is hit.
	Engine struct {
		catalog    *catalog.Catalog
		pool       *provider.Pool
		usage      *usage.Service
		tools      *toolexec.Registry
		store      Store
		org        organization.Store
		mcpFactory McpServerFactory
	}

	// turnResult is the accumulated output of one Generate call, whether
	// sourced from a streaming or non-streaming provider round-trip.
	turnResult struct {
		text      string
		toolCalls []model.ToolCall
		usage     model.TokenUsage
		provider  provider.Provider
	}
)

// NewEngine builds an Engine over the given component set. mcpFactory may be
// nil for deployments that never declare mcp tools. orgStore may be nil, in
// which case every organization is treated as having no configured
// concurrency limit or system prompt (the pool's default limit applies and
// Prepare prepends nothing).
func NewEngine(cat *catalog.Catalog, pool *provider.Pool, usageSvc *usage.Service, registry *toolexec.Registry, store Store, orgStore organization.Store, mcpFactory McpServerFactory) *Engine {
	return &Engine{catalog: cat, pool: pool, usage: usageSvc, tools: registry, store: store, org: orgStore, mcpFactory: mcpFactory}
}

// Store exposes the backing Store for transports that need direct lookups
// (GET /v1/responses/:id, GET /v1/conversations/:id/items) outside the
// CreateResponse state machine itself.
func (e *Engine) Store() Store { return e.store }

// organizationConcurrentLimit looks up the organization's configured
// concurrent_limit for Acquire (§4.2). A missing org store, a not-found
// organization, or an unset limit all return 0, which Acquire treats as
// "apply the pool default" rather than "admit nothing."
func (e *Engine) organizationConcurrentLimit(ctx context.Context, orgID uuid.UUID) int {
	if e.org == nil {
		return 0
	}
	org, err := e.org.GetOrganization(ctx, orgID)
	if err != nil || org.ConcurrentLimit == nil {
		return 0
	}
	return *org.ConcurrentLimit
}

// organizationSystemPrompt looks up the organization's settings.system_prompt
// for Prepare to prepend ahead of the request's own instructions (§4.4 step
// 2). Absent an org store, organization, or configured prompt, it returns
// the empty string and Prepare's ordering collapses to instructions alone.
func (e *Engine) organizationSystemPrompt(ctx context.Context, orgID uuid.UUID) string {
	if e.org == nil {
		return ""
	}
	org, err := e.org.GetOrganization(ctx, orgID)
	if err != nil || org.Settings.SystemPrompt == nil {
		return ""
	}
	return *org.Settings.SystemPrompt
}

// CreateResponse runs the full state machine for req, emitting canonical SSE
// events to sink (which may be nil for a purely synchronous caller) and
// returning the terminal, persisted Response.
func (e *Engine) CreateResponse(ctx context.Context, req CreateResponseRequest) (*Response, error) {
	check, err := e.usage.CheckCanUse(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if check.Status != usage.CheckAllowed {
		return nil, gatewayerr.Errorf(gatewayerr.NoCredits, "organization %s is not permitted to run inference: %s", req.OrganizationID, check.Status)
	}

	release, err := e.pool.Acquire(ctx, req.OrganizationID, e.organizationConcurrentLimit(ctx, req.OrganizationID))
	if err != nil {
		return nil, err
	}
	defer release()

	snapshot, _ := json.Marshal(req.Input)
	resp := NewResponse(req, snapshot)
	resp.Status = StatusInProgress

	sc := newStreamContext(sinkFromContext(ctx), resp.ID.String(), conversationIDString(req.ConversationID))
	if err := sc.emitCreated(ctx, resp); err != nil {
		return nil, err
	}

	transcriptItems, transcriptMessages, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	_, mcpTools, err := e.resolveMcpServers(ctx, sc, req.Tools, transcriptItems, resp)
	if err != nil {
		return nil, err
	}

	tracker := citation.New()
	toolDefs := e.toolDefinitions(req.Tools, mcpTools)
	if m, err := e.catalog.Lookup(req.Model); err == nil && !m.Capabilities.SupportsTools {
		toolDefs = nil
	}
	budget := defaultMaxToolCalls
	if req.MaxToolCalls != nil && *req.MaxToolCalls > 0 {
		budget = *req.MaxToolCalls
	}

	var totalUsage model.TokenUsage
	var lastProvider provider.Provider

	for {
		if err := sc.emitInProgress(ctx, resp); err != nil {
			return nil, err
		}

		turn, err := e.generate(ctx, sc, req, transcriptMessages, toolDefs)
		if err != nil {
			resp.Status = StatusFailed
			resp.Error = err.Error()
			_ = sc.emitFailed(ctx, map[string]string{"message": err.Error()})
			_ = e.store.SaveResponse(ctx, resp)
			return resp, err
		}
		lastProvider = turn.provider
		totalUsage.InputTokens += turn.usage.InputTokens
		totalUsage.OutputTokens += turn.usage.OutputTokens

		cleaned, anns, _ := tracker.RewriteAndAnnotate(turn.text)
		if cleaned != "" {
			msgItem := &Message{Role: "assistant", Parts: []ContentPart{OutputText{Text: cleaned, Annotations: annotationsFromCitations(anns)}}}
			transcriptItems = append(transcriptItems, e.appendItem(resp, msgItem))
			_ = sc.emitOutputItemAdded(ctx, msgItem)
			_ = sc.emitTextDone(ctx, msgItem.ID, cleaned)
			_ = sc.emitOutputItemDone(ctx, msgItem)
		}

		if len(turn.toolCalls) == 0 {
			break
		}

		if budget <= 0 {
			resp.Status = StatusIncomplete
			resp.IncompleteReason = "max_tool_calls_exceeded"
			if err := e.finalize(ctx, sc, resp, totalUsage, req); err != nil {
				return nil, err
			}
			return resp, nil
		}

		approvalPending := false
		for _, tc := range turn.toolCalls {
			if budget <= 0 {
				break
			}
			label, _, isMcp := splitToolName(string(tc.Name))
			if isMcp && requiresApproval(req.Tools, label) && !hasApproval(transcriptItems, callID(tc.ID)) {
				areq := &McpApprovalRequest{ServerLabel: label, Name: string(tc.Name), Arguments: string(tc.Payload)}
				areq.setID(callID(tc.ID))
				transcriptItems = append(transcriptItems, e.appendItem(resp, areq))
				_ = sc.emitOutputItemAdded(ctx, areq)
				_ = sc.emitOutputItemDone(ctx, areq)
				approvalPending = true
				continue
			}

			fc := &FunctionCall{Name: string(tc.Name), Arguments: string(tc.Payload), CallID: callID(tc.ID)}
			transcriptItems = append(transcriptItems, e.appendItem(resp, fc))
			transcriptMessages = append(transcriptMessages, functionCallMessage(fc))

			var params map[string]any
			if err := json.Unmarshal(tc.Payload, &params); err != nil {
				argErr := gatewayerr.Wrap(gatewayerr.InvalidToolArguments, err, fmt.Sprintf("tool call %q arguments are not valid JSON", tc.Name))
				fco := &FunctionCallOutput{CallID: fc.CallID, Output: renderToolError(argErr)}
				transcriptItems = append(transcriptItems, e.appendItem(resp, fco))
				transcriptMessages = append(transcriptMessages, functionResultMessage(fco))
				budget--
				continue
			}
			info := toolexec.ToolCallInfo{ToolType: string(tc.Name), Query: queryFromParams(params), Params: params, CallID: fc.CallID}

			sink := &toolEventSink{sc: sc, family: toolFamily(string(tc.Name)), callID: fc.CallID}
			_ = e.tools.EmitStart(ctx, info, sink)
			out, execErr := e.tools.Execute(ctx, info)
			_ = e.tools.EmitComplete(ctx, info, sink)

			outputText := out.Text
			if execErr != nil {
				outputText = renderToolError(execErr)
				if gatewayerr.Is(execErr, gatewayerr.FatalToolError) {
					resp.Status = StatusFailed
					resp.Error = execErr.Error()
					_ = sc.emitFailed(ctx, map[string]string{"message": execErr.Error()})
					_ = e.store.SaveResponse(ctx, resp)
					return resp, execErr
				}
			}
			if len(out.Sources) > 0 {
				hadSources := tracker.HasSources()
				tracker.Accumulate(webSearchSourcesToCitationSources(out.Sources))
				if !hadSources {
					transcriptMessages = append(transcriptMessages, &model.Message{
						Role:  model.ConversationRoleSystem,
						Parts: []model.Part{model.TextPart{Text: toolexec.CitationInstruction}},
					})
				}
			}

			fco := &FunctionCallOutput{CallID: fc.CallID, Output: outputText}
			transcriptItems = append(transcriptItems, e.appendItem(resp, fco))
			transcriptMessages = append(transcriptMessages, functionResultMessage(fco))

			budget--
		}

		if approvalPending {
			resp.Status = StatusIncomplete
			resp.IncompleteReason = "mcp_approval_required"
			if err := e.finalize(ctx, sc, resp, totalUsage, req); err != nil {
				return nil, err
			}
			return resp, nil
		}
	}

	resp.Status = StatusCompleted
	if err := e.finalize(ctx, sc, resp, totalUsage, req); err != nil {
		return nil, err
	}
	e.recordUsage(ctx, req, totalUsage, lastProvider)
	_ = sc.emitCompleted(ctx, resp)
	return resp, nil
}

func (e *Engine) finalize(ctx context.Context, sc *streamContext, resp *Response, tu model.TokenUsage, req CreateResponseRequest) error {
	resp.Usage = usageSummary(int64(tu.InputTokens), int64(tu.OutputTokens))
	resp.UpdatedAt = time.Now()
	if err := e.store.SaveResponse(ctx, resp); err != nil {
		return gatewayerr.Wrap(gatewayerr.Internal, err, "failed to persist response")
	}
	if resp.Status == StatusIncomplete {
		return sc.emitIncomplete(ctx, resp, resp.IncompleteReason)
	}
	return nil
}

func (e *Engine) recordUsage(ctx context.Context, req CreateResponseRequest, tu model.TokenUsage, prov provider.Provider) {
	if prov == nil {
		return
	}
	_, _, _ = e.usage.RecordUsage(ctx, usage.RecordRequest{
		OrganizationID: req.OrganizationID,
		WorkspaceID:    req.WorkspaceID,
		ApiKeyID:       req.ApiKeyID,
		ModelName:      req.Model,
		InferenceType:  usage.InferenceChatCompletion,
		InputTokens:    int64(tu.InputTokens),
		OutputTokens:   int64(tu.OutputTokens),
		ExternalID:     req.ExternalID,
	})
}

// generate performs one Generate step (§4.4): select candidate providers,
// call the pool with failover, and normalize the result into a turnResult
// whether the call was streamed or not.
func (e *Engine) generate(ctx context.Context, sc *streamContext, req CreateResponseRequest, messages []*model.Message, toolDefs []*model.ToolDefinition) (turnResult, error) {
	sel, err := e.pool.Select(ctx, req.Model, messages, req.MaxOutputTokens)
	if err != nil {
		return turnResult{}, err
	}

	mreq := &model.Request{
		RunID:     resIDFromContext(sc),
		Model:     req.Model,
		Messages:  messages,
		Tools:     toolDefs,
		MaxTokens: req.MaxOutputTokens,
		Stream:    req.Stream,
	}
	params := provider.ChatParams{Request: mreq}

	if !req.Stream {
		res, prov, err := e.pool.ChatCompletion(ctx, sel.Candidates, params, req.ExternalID)
		if err != nil {
			return turnResult{}, err
		}
		return turnResultFromResponse(res.Response, prov), nil
	}

	streamer, prov, err := e.pool.ChatCompletionStream(ctx, sel.Candidates, params, req.ExternalID)
	if err != nil {
		return turnResult{}, err
	}
	defer streamer.Close()

	var sb strings.Builder
	var calls []model.ToolCall
	var tu model.TokenUsage
	itemID := uuid.NewString()
	for {
		chunk, err := streamer.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return turnResult{}, gatewayerr.Wrap(gatewayerr.UpstreamTransient, err, "stream recv failed")
		}
		switch chunk.Type {
		case model.ChunkTypeText:
			if chunk.Message != nil {
				for _, p := range chunk.Message.Parts {
					if t, ok := p.(model.TextPart); ok {
						sb.WriteString(t.Text)
						_ = sc.emitTextDelta(ctx, itemID, t.Text)
					}
				}
			}
		case model.ChunkTypeToolCall:
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
		case model.ChunkTypeUsage:
			if chunk.UsageDelta != nil {
				tu.InputTokens += chunk.UsageDelta.InputTokens
				tu.OutputTokens += chunk.UsageDelta.OutputTokens
			}
		}
	}
	return turnResult{text: sb.String(), toolCalls: calls, usage: tu, provider: prov}, nil
}

func turnResultFromResponse(res *model.Response, prov provider.Provider) turnResult {
	var sb strings.Builder
	for _, msg := range res.Content {
		for _, p := range msg.Parts {
			switch part := p.(type) {
			case model.TextPart:
				sb.WriteString(part.Text)
			case model.CitationsPart:
				sb.WriteString(part.Text)
			}
		}
	}
	return turnResult{text: sb.String(), toolCalls: res.ToolCalls, usage: res.Usage, provider: prov}
}

// prepare hydrates the conversation/previous-response history (if any) and
// appends the request's own input items, returning both the wire Item
// sequence (for persistence and output) and the provider-facing
// model.Message transcript (§4.4 step 1).
func (e *Engine) prepare(ctx context.Context, req CreateResponseRequest) ([]Item, []*model.Message, error) {
	var items []Item

	switch {
	case req.ConversationID != nil:
		hist, err := e.store.ListConversationItems(ctx, *req.ConversationID)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, hist...)
	case req.PreviousResponseID != nil:
		prev, err := e.store.GetResponse(ctx, *req.PreviousResponseID)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, prev.OutputItems...)
	}

	systemPrompt := e.organizationSystemPrompt(ctx, req.OrganizationID)
	switch {
	case systemPrompt != "" && req.Instructions != "":
		items = append(items, &Message{Role: "system", Parts: []ContentPart{InputText{Text: systemPrompt + "\n\n" + req.Instructions}}})
	case systemPrompt != "":
		items = append(items, &Message{Role: "system", Parts: []ContentPart{InputText{Text: systemPrompt}}})
	case req.Instructions != "":
		items = append(items, &Message{Role: "system", Parts: []ContentPart{InputText{Text: req.Instructions}}})
	}
	items = append(items, req.Input...)

	return items, itemsToMessages(items), nil
}

// resolveMcpServers dials every distinct mcp ToolSpec and registers an
// Executor for it, returning both the server resolver used by the registry
// and the tools/list result per server (cached for the life of the
// response, §4.4 step 3). A server label already covered by an McpListTools
// item in the hydrated transcript (a prior turn in this same response, or a
// previous response this one continues) is not called again: its cached
// Tools are reused instead, so tools/list is called at most once per server
// label across the whole conversation, not once per response.
func (e *Engine) resolveMcpServers(ctx context.Context, sc *streamContext, specs []ToolSpec, transcriptItems []Item, resp *Response) (map[string]mcp.Caller, map[string][]mcp.ToolDescriptor, error) {
	callers := make(map[string]mcp.Caller)
	toolsByLabel := make(map[string][]mcp.ToolDescriptor)
	cached := cachedMcpListTools(transcriptItems)
	anyMcp := false
	for _, s := range specs {
		if s.Kind != "mcp" || e.mcpFactory == nil {
			continue
		}
		anyMcp = true
		caller, err := e.mcpFactory(ctx, s.ServerLabel, s.ServerURL)
		if err != nil {
			return nil, nil, gatewayerr.Wrap(gatewayerr.Internal, err, fmt.Sprintf("failed to dial mcp server %q", s.ServerLabel))
		}
		callers[s.ServerLabel] = caller

		if list, ok := cached[s.ServerLabel]; ok {
			toolsByLabel[s.ServerLabel] = list
			continue
		}

		list, err := caller.ListTools(ctx)
		if err != nil {
			return nil, nil, gatewayerr.Wrap(gatewayerr.ToolError, err, fmt.Sprintf("tools/list failed for %q", s.ServerLabel))
		}
		toolsByLabel[s.ServerLabel] = list

		item := &McpListTools{ServerLabel: s.ServerLabel, Tools: mcpToolSummaries(list)}
		e.appendItem(resp, item)
		_ = sc.emitOutputItemAdded(ctx, item)
		_ = sc.emitOutputItemDone(ctx, item)
	}
	if anyMcp {
		e.tools.Register(toolexec.NewMcpExecutor(
			func(label string) (mcp.Caller, bool) {
				c, ok := callers[label]
				return c, ok
			},
			func(label, tool string) (json.RawMessage, bool) {
				for _, td := range toolsByLabel[label] {
					if td.Name == tool {
						return td.InputSchema, len(td.InputSchema) > 0
					}
				}
				return nil, false
			},
		))
	}
	return callers, toolsByLabel, nil
}

// cachedMcpListTools scans the hydrated transcript for McpListTools items
// and returns each server label's cached tools, converted back into
// mcp.ToolDescriptor so resolveMcpServers can treat a cache hit identically
// to a live tools/list response.
func cachedMcpListTools(transcriptItems []Item) map[string][]mcp.ToolDescriptor {
	out := make(map[string][]mcp.ToolDescriptor)
	for _, it := range transcriptItems {
		lt, ok := it.(*McpListTools)
		if !ok {
			continue
		}
		descs := make([]mcp.ToolDescriptor, len(lt.Tools))
		for i, t := range lt.Tools {
			descs[i] = mcp.ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
		}
		out[lt.ServerLabel] = descs
	}
	return out
}

func mcpToolSummaries(list []mcp.ToolDescriptor) []McpToolSummary {
	out := make([]McpToolSummary, len(list))
	for i, td := range list {
		out[i] = McpToolSummary{Name: td.Name, Description: td.Description, InputSchema: td.InputSchema}
	}
	return out
}

// toolDefinitions builds the model-facing tool declarations for web_search,
// file_search, and every discovered mcp tool, namespaced "<label>:<tool>" so
// a returned tool call's Name doubles as the toolexec dispatch key.
func (e *Engine) toolDefinitions(specs []ToolSpec, mcpTools map[string][]mcp.ToolDescriptor) []*model.ToolDefinition {
	var defs []*model.ToolDefinition
	for _, s := range specs {
		switch s.Kind {
		case "web_search":
			defs = append(defs, &model.ToolDefinition{Name: string(toolexec.WebSearchToolName), Description: "Search the web for up to date information."})
		case "file_search":
			defs = append(defs, &model.ToolDefinition{Name: string(toolexec.FileSearchToolName), Description: "Search the configured vector stores."})
		case "mcp":
			for _, td := range mcpTools[s.ServerLabel] {
				defs = append(defs, &model.ToolDefinition{
					Name:        fmt.Sprintf("%s:%s", s.ServerLabel, td.Name),
					Description: td.Description,
					InputSchema: td.InputSchema,
				})
			}
		}
	}
	return defs
}

func (e *Engine) appendItem(resp *Response, item Item) Item {
	if item.ItemID() == "" {
		item.setID(uuid.NewString())
	}
	item.setOutputIndex(len(resp.OutputItems))
	resp.OutputItems = append(resp.OutputItems, item)
	return item
}

func itemsToMessages(items []Item) []*model.Message {
	var out []*model.Message
	for _, it := range items {
		switch v := it.(type) {
		case *Message:
			out = append(out, &model.Message{Role: model.ConversationRole(v.Role), Parts: contentPartsToModelParts(v.Parts)})
		case *FunctionCall:
			out = append(out, functionCallMessage(v))
		case *FunctionCallOutput:
			out = append(out, functionResultMessage(v))
		case *McpCall:
			out = append(out, &model.Message{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.ToolUsePart{ID: v.ID, Name: fmt.Sprintf("%s:%s", v.ServerLabel, v.Name), Input: json.RawMessage(v.Arguments)}}})
			if v.Output != "" || v.Error != "" {
				content := v.Output
				if v.Error != "" {
					content = v.Error
				}
				out = append(out, &model.Message{Role: model.ConversationRoleUser, Parts: []model.Part{model.ToolResultPart{ToolUseID: v.ID, Content: content, IsError: v.Error != ""}}})
			}
		}
		// WebSearchCall/FileSearchCall carry no standalone text to replay;
		// their effect already lives in the OutputText annotations of the
		// assistant Message that followed them in the same turn.
	}
	return out
}

func functionCallMessage(fc *FunctionCall) *model.Message {
	return &model.Message{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.ToolUsePart{ID: fc.CallID, Name: fc.Name, Input: json.RawMessage(fc.Arguments)}}}
}

func functionResultMessage(fco *FunctionCallOutput) *model.Message {
	return &model.Message{Role: model.ConversationRoleUser, Parts: []model.Part{model.ToolResultPart{ToolUseID: fco.CallID, Content: fco.Output}}}
}

func contentPartsToModelParts(parts []ContentPart) []model.Part {
	out := make([]model.Part, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case InputText:
			out = append(out, model.TextPart{Text: v.Text})
		case OutputText:
			out = append(out, model.TextPart{Text: v.Text})
		case Refusal:
			out = append(out, model.TextPart{Text: v.Text})
		}
	}
	return out
}

// renderToolError builds the FunctionCallOutput text for a non-fatal tool
// failure: a plain message chain built through toolerrors.ToolError rather
// than gatewayerr.Error's Error() string, so the model sees "search failed:
// caused by: connection reset" instead of the gateway's internal
// error-kind taxonomy prefix ("tool_error: search failed: connection reset").
func renderToolError(err error) string {
	te := gatewayToolError(err)
	var parts []string
	for e := te; e != nil; e = e.Cause {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": caused by: ")
}

// gatewayToolError converts err into a toolerrors.ToolError chain, unwrapping
// one gatewayerr.Error layer (using its Message, not its composed Error()
// string, to avoid embedding the cause twice) before delegating the rest of
// the chain to toolerrors.FromError.
func gatewayToolError(err error) *toolerrors.ToolError {
	if gwErr, ok := gatewayerr.As(err); ok {
		return &toolerrors.ToolError{Message: gwErr.Message, Cause: toolerrors.FromError(gwErr.Unwrap())}
	}
	return toolerrors.FromError(err)
}

func queryFromParams(params map[string]any) string {
	if q, ok := params["query"].(string); ok {
		return q
	}
	return ""
}

func callID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func splitToolName(name string) (label, tool string, ok bool) {
	i := strings.IndexByte(name, ':')
	if i <= 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

func toolFamily(toolType string) string {
	switch {
	case toolType == string(toolexec.WebSearchToolName):
		return "web_search_call"
	case toolType == string(toolexec.FileSearchToolName):
		return "file_search_call"
	default:
		return "mcp_call"
	}
}

func requiresApproval(specs []ToolSpec, label string) bool {
	for _, s := range specs {
		if s.Kind == "mcp" && s.ServerLabel == label {
			return s.RequireApproval == "always"
		}
	}
	return false
}

func hasApproval(items []Item, callID string) bool {
	for _, it := range items {
		if ar, ok := it.(*McpApprovalResponse); ok && ar.ApprovalRequestID == callID && ar.Approve {
			return true
		}
	}
	return false
}

func webSearchSourcesToCitationSources(in []toolexec.WebSearchSource) []citation.Source {
	out := make([]citation.Source, 0, len(in))
	for _, s := range in {
		out = append(out, citation.Source{Title: s.Title, URL: s.URL})
	}
	return out
}

func conversationIDString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// sinkFromContext and resIDFromContext are small seams kept separate so
// transport packages can thread a request-scoped stream.Sink and run id
// through context rather than widening CreateResponse's signature; the
// default (nil sink, empty run id) is correct for synchronous, non-streaming
// callers such as tests.
func sinkFromContext(ctx context.Context) stream.Sink {
	if s, ok := ctx.Value(sinkContextKey{}).(stream.Sink); ok {
		return s
	}
	return nil
}

func resIDFromContext(sc *streamContext) string {
	return sc.responseID
}

type sinkContextKey struct{}

// WithSink returns a context carrying sink so a subsequent CreateResponse
// call streams events to it.
func WithSink(ctx context.Context, sink stream.Sink) context.Context {
	return context.WithValue(ctx, sinkContextKey{}, sink)
}
