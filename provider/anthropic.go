package provider

import (
	"context"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/runtime/agent/model"
)

// Anthropic wraps a model.Client backed by features/model/anthropic into the
// uniform Provider surface. Anthropic's capability differences
// (temperature/top_p mutual exclusion, mandatory max_tokens) are handled
// inside that adapter, not here; this wrapper only adds what §4.1 asks of
// every Provider and the adapter itself has no reason to know about (model
// discovery, tokenize, TEE-only operations). It depends on model.Client
// rather than the concrete *anthropic.Client so tests can substitute a stub.
type Anthropic struct {
	client  model.Client
	binding catalog.ProviderBinding
	models  []string
}

// NewAnthropic builds a Provider backed by an Anthropic Messages client.
// modelIDs lists the model identifiers this binding is registered to serve
// (typically the catalog Model names mapped to this binding).
func NewAnthropic(client model.Client, binding catalog.ProviderBinding, modelIDs []string) *Anthropic {
	return &Anthropic{client: client, binding: binding, models: modelIDs}
}

func (p *Anthropic) Kind() catalog.ProviderKind { return catalog.ProviderKindAnthropic }

func (p *Anthropic) MaxModelLen() int { return declaredMaxModelLen(p.binding) }

func (p *Anthropic) Models(context.Context) ([]ModelInfo, error) {
	return staticModels(p.models, p.MaxModelLen()), nil
}

func (p *Anthropic) TokenizeChat(_ context.Context, _ string, messages []*model.Message) (TokenizeResult, error) {
	return TokenizeResult{Count: estimateTokens(messages), MaxModelLen: p.MaxModelLen()}, nil
}

func (p *Anthropic) ChatCompletion(ctx context.Context, params ChatParams, _ string) (*ChatResult, error) {
	return chatCompletion(ctx, p.client, params)
}

func (p *Anthropic) ChatCompletionStream(ctx context.Context, params ChatParams, _ string) (model.Streamer, error) {
	return chatCompletionStream(ctx, p.client, params)
}

func (p *Anthropic) GetSignature(context.Context, string) (Signature, error) {
	return unsupportedSignature("anthropic")
}

func (p *Anthropic) GetAttestationReport(context.Context, []byte) (AttestationReport, error) {
	return unsupportedAttestation("anthropic")
}
