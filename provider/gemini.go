package provider

import (
	"context"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/features/model/gemini"
	"github.com/modelgateway/core/runtime/agent/model"
)

// Gemini wraps a features/model/gemini.Client into the uniform Provider
// surface.
type Gemini struct {
	client  *gemini.Client
	binding catalog.ProviderBinding
	models  []string
}

// NewGemini builds a Provider backed by a Gemini Generative Language client.
func NewGemini(client *gemini.Client, binding catalog.ProviderBinding, modelIDs []string) *Gemini {
	return &Gemini{client: client, binding: binding, models: modelIDs}
}

func (p *Gemini) Kind() catalog.ProviderKind { return catalog.ProviderKindGemini }

func (p *Gemini) MaxModelLen() int { return declaredMaxModelLen(p.binding) }

func (p *Gemini) Models(context.Context) ([]ModelInfo, error) {
	return staticModels(p.models, p.MaxModelLen()), nil
}

func (p *Gemini) TokenizeChat(_ context.Context, _ string, messages []*model.Message) (TokenizeResult, error) {
	return TokenizeResult{Count: estimateTokens(messages), MaxModelLen: p.MaxModelLen()}, nil
}

func (p *Gemini) ChatCompletion(ctx context.Context, params ChatParams, _ string) (*ChatResult, error) {
	return chatCompletion(ctx, p.client, params)
}

func (p *Gemini) ChatCompletionStream(ctx context.Context, params ChatParams, _ string) (model.Streamer, error) {
	return chatCompletionStream(ctx, p.client, params)
}

func (p *Gemini) GetSignature(context.Context, string) (Signature, error) {
	return unsupportedSignature("gemini")
}

func (p *Gemini) GetAttestationReport(context.Context, []byte) (AttestationReport, error) {
	return unsupportedAttestation("gemini")
}
