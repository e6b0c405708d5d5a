package provider

import (
	"context"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/features/model/openai"
	"github.com/modelgateway/core/runtime/agent/model"
)

// OpenAICompatible wraps a features/model/openai.Client into the uniform
// Provider surface. The same adapter serves three catalog.ProviderKind
// values — plain OpenAI, a vLLM endpoint, and any other OpenAI-wire-format
// backend — since all three speak the Chat Completions schema; what differs
// is only the base URL and auth material baked into the wrapped client, and
// the declared Kind/MaxModelLen this wrapper carries from the binding.
type OpenAICompatible struct {
	client  *openai.Client
	binding catalog.ProviderBinding
	models  []string
}

// NewOpenAICompatible builds a Provider backed by an OpenAI Chat Completions
// client (or a wire-compatible vLLM endpoint reached through a custom base
// URL). binding.Kind determines what Kind() reports.
func NewOpenAICompatible(client *openai.Client, binding catalog.ProviderBinding, modelIDs []string) *OpenAICompatible {
	return &OpenAICompatible{client: client, binding: binding, models: modelIDs}
}

func (p *OpenAICompatible) Kind() catalog.ProviderKind { return p.binding.Kind }

func (p *OpenAICompatible) MaxModelLen() int { return declaredMaxModelLen(p.binding) }

func (p *OpenAICompatible) Models(context.Context) ([]ModelInfo, error) {
	return staticModels(p.models, p.MaxModelLen()), nil
}

func (p *OpenAICompatible) TokenizeChat(_ context.Context, _ string, messages []*model.Message) (TokenizeResult, error) {
	return TokenizeResult{Count: estimateTokens(messages), MaxModelLen: p.MaxModelLen()}, nil
}

func (p *OpenAICompatible) ChatCompletion(ctx context.Context, params ChatParams, _ string) (*ChatResult, error) {
	return chatCompletion(ctx, p.client, params)
}

func (p *OpenAICompatible) ChatCompletionStream(ctx context.Context, params ChatParams, _ string) (model.Streamer, error) {
	return chatCompletionStream(ctx, p.client, params)
}

// GetSignature is unsupported for plain OpenAI and generic
// openai_compatible bindings. A vLLM binding hosted inside a TEE would be
// the one case this could return real proof, but attestation plumbing is a
// Non-goal here, so every Kind this wrapper covers returns Unsupported.
func (p *OpenAICompatible) GetSignature(context.Context, string) (Signature, error) {
	return unsupportedSignature(string(p.binding.Kind))
}

func (p *OpenAICompatible) GetAttestationReport(context.Context, []byte) (AttestationReport, error) {
	return unsupportedAttestation(string(p.binding.Kind))
}
