package responses

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/gatewayerr"
	"github.com/modelgateway/core/provider"
	"github.com/modelgateway/core/runtime/agent/model"
	"github.com/modelgateway/core/runtime/agent/tools"
	"github.com/modelgateway/core/toolexec"
	"github.com/modelgateway/core/usage"
)

// scriptedUsageStore reports an active limit with no prior balance, the
// CheckAllowed branch (§4.6), so CreateResponse's admission check always
// passes without a database.
type scriptedUsageStore struct{}

func (scriptedUsageStore) GetBalance(context.Context, uuid.UUID) (*usage.Balance, error) {
	return nil, nil
}

func (scriptedUsageStore) ActiveLimitsTotal(context.Context, uuid.UUID) (catalog.Nano, bool, error) {
	return 1_000_000_000_000, true, nil
}

func (scriptedUsageStore) RecordUsage(ctx context.Context, req usage.RecordRequest, cost usage.CostBreakdown) (*usage.Log, error) {
	return &usage.Log{OrganizationID: req.OrganizationID, ModelName: req.ModelName}, nil
}

func (scriptedUsageStore) UpsertLimitsRow(context.Context, uuid.UUID, usage.CreditType, string, catalog.Nano) (*usage.LimitsHistoryRow, error) {
	return &usage.LimitsHistoryRow{}, nil
}

// scriptedProvider hands back a queue of *provider.ChatResult in order, one
// per ChatCompletion call, so a test can drive a multi-turn conversation
// deterministically.
type scriptedProvider struct {
	kind    catalog.ProviderKind
	maxLen  int
	results []*provider.ChatResult
	calls   int
}

func (p *scriptedProvider) Kind() catalog.ProviderKind { return p.kind }
func (p *scriptedProvider) MaxModelLen() int           { return p.maxLen }

func (p *scriptedProvider) Models(context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{ID: "test-model", MaxModelLen: &p.maxLen}}, nil
}

func (p *scriptedProvider) TokenizeChat(context.Context, string, []*model.Message) (provider.TokenizeResult, error) {
	return provider.TokenizeResult{Count: 10, MaxModelLen: p.maxLen}, nil
}

func (p *scriptedProvider) ChatCompletion(context.Context, provider.ChatParams, string) (*provider.ChatResult, error) {
	res := p.results[p.calls]
	p.calls++
	return res, nil
}

func (p *scriptedProvider) ChatCompletionStream(context.Context, provider.ChatParams, string) (model.Streamer, error) {
	return nil, gatewayerr.New(gatewayerr.Unsupported, "not used in this test")
}

func (p *scriptedProvider) GetSignature(context.Context, string) (provider.Signature, error) {
	return provider.Signature{}, gatewayerr.New(gatewayerr.Unsupported, "not supported")
}

func (p *scriptedProvider) GetAttestationReport(context.Context, []byte) (provider.AttestationReport, error) {
	return provider.AttestationReport{}, gatewayerr.New(gatewayerr.Unsupported, "not supported")
}

func newTestEngine(t *testing.T, prov *scriptedProvider) *Engine {
	t.Helper()
	cat := catalog.New()
	require.NoError(t, cat.Register(&catalog.Model{
		Name:               "test-model",
		InputCostPerToken:  1,
		OutputCostPerToken: 1,
		ContextLength:      prov.maxLen,
		InputModalities:    map[catalog.Modality]struct{}{catalog.ModalityText: {}},
		OutputModalities:   map[catalog.Modality]struct{}{catalog.ModalityText: {}},
		Capabilities:       catalog.Capabilities{SupportsTools: true},
	}))

	pool := provider.NewPool()
	pool.Register("test-model", prov)

	usageSvc := usage.New(cat, scriptedUsageStore{})
	registry := toolexec.NewRegistry()
	store := NewMemoryStore()
	return NewEngine(cat, pool, usageSvc, registry, store, nil, nil)
}

func newTestRequest(model string) CreateResponseRequest {
	return CreateResponseRequest{
		Model:          model,
		Input:          []Item{&Message{Role: "user", Parts: []ContentPart{InputText{Text: "hi"}}}},
		OrganizationID: uuid.New(),
		WorkspaceID:    uuid.New(),
		ApiKeyID:       uuid.New(),
	}
}

// TestCreateResponse_MalformedToolArguments_RejectsWithoutCrashing exercises
// §4.4 step 4's "reject with InvalidToolArguments on syntactic failure": a
// tool call whose arguments are not valid JSON must not panic on a nil
// params map, and must surface as a rejected function_call_output rather
// than silently proceeding.
func TestCreateResponse_MalformedToolArguments_RejectsWithoutCrashing(t *testing.T) {
	prov := &scriptedProvider{
		kind:   catalog.ProviderKindOpenAICompatible,
		maxLen: 100_000,
		results: []*provider.ChatResult{
			{Response: &model.Response{
				ToolCalls: []model.ToolCall{
					{Name: tools.Ident("lookup"), ID: "call-1", Payload: []byte(`{not valid json`)},
				},
			}},
			{Response: &model.Response{
				Content: []model.Message{
					{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: "done"}}},
				},
			}},
		},
	}

	engine := newTestEngine(t, prov)
	resp, err := engine.CreateResponse(context.Background(), newTestRequest("test-model"))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)

	var fco *FunctionCallOutput
	for _, item := range resp.OutputItems {
		if f, ok := item.(*FunctionCallOutput); ok {
			fco = f
		}
	}
	require.NotNil(t, fco, "expected a function_call_output for the malformed tool call")
	assert.Contains(t, fco.Output, "arguments are not valid JSON")
	assert.Equal(t, 2, prov.calls, "engine must re-generate after rejecting the malformed call")
}

// TestCreateResponse_TwoProviderFailover exercises §4.2's context-aware
// selection plus failover (E2E scenario 1): two providers registered for the
// same model, the first transiently fails, and the pool retries the second
// without surfacing an error to the caller.
func TestCreateResponse_TwoProviderFailover(t *testing.T) {
	cat := catalog.New()
	require.NoError(t, cat.Register(&catalog.Model{
		Name:               "test-model",
		InputCostPerToken:  1,
		OutputCostPerToken: 1,
		ContextLength:      100_000,
		InputModalities:    map[catalog.Modality]struct{}{catalog.ModalityText: {}},
		OutputModalities:   map[catalog.Modality]struct{}{catalog.ModalityText: {}},
		Capabilities:       catalog.Capabilities{SupportsTools: true},
	}))

	failing := &scriptedProvider{kind: catalog.ProviderKindOpenAICompatible, maxLen: 100_000}
	ok := &scriptedProvider{
		kind:   catalog.ProviderKindAnthropic,
		maxLen: 100_000,
		results: []*provider.ChatResult{
			{Response: &model.Response{
				Content: []model.Message{
					{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: "hello from the second provider"}}},
				},
			}},
		},
	}

	pool := provider.NewPool()
	pool.Register("test-model", &failoverProvider{scriptedProvider: failing})
	pool.Register("test-model", ok)

	usageSvc := usage.New(cat, scriptedUsageStore{})
	registry := toolexec.NewRegistry()
	store := NewMemoryStore()
	engine := NewEngine(cat, pool, usageSvc, registry, store, nil, nil)

	resp, err := engine.CreateResponse(context.Background(), newTestRequest("test-model"))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, 1, ok.calls, "second provider must be tried exactly once after failover")
}

// failoverProvider wraps a scriptedProvider to always return a
// gatewayerr.UpstreamTransient error, the classification that makes
// Pool.ChatCompletion retry the next candidate (§4.2 "Failover").
type failoverProvider struct {
	*scriptedProvider
}

func (f *failoverProvider) ChatCompletion(ctx context.Context, params provider.ChatParams, hash string) (*provider.ChatResult, error) {
	f.calls++
	return nil, gatewayerr.New(gatewayerr.UpstreamTransient, "connection reset")
}
