package provider

import (
	"context"
	"encoding/json"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/runtime/agent/model"
)

// withCommon folds provider.ChatParams onto a model.Request, applying the
// fields §4.1 names that runtime/agent/model.Request already carries
// (top_p, stop, seed). Modalities/ResponseFormat/Extra have no adapter-level
// translation yet; they pass through ChatParams untouched for a future
// translator to consume.
func withCommon(params ChatParams) *model.Request {
	req := params.Request
	if req == nil {
		req = &model.Request{}
	}
	clone := *req
	if params.TopP > 0 {
		clone.TopP = params.TopP
	}
	if len(params.Stop) > 0 {
		clone.Stop = params.Stop
	}
	if params.Seed != nil {
		clone.Seed = params.Seed
	}
	return &clone
}

// chatCompletion drives a wrapped model.Client through a non-streaming call
// and packages the result the way every Provider implementation in this
// package needs: translate, then best-effort re-marshal for RawBytes.
func chatCompletion(ctx context.Context, client model.Client, params ChatParams) (*ChatResult, error) {
	resp, err := client.Complete(ctx, withCommon(params))
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(resp)
	return &ChatResult{Response: resp, RawBytes: raw}, nil
}

// chatCompletionStream drives a wrapped model.Client through a streaming
// call; the canonical model.Streamer it returns is handed straight back,
// since the wire-format differences streaming callers care about are
// already normalized by the underlying adapter.
func chatCompletionStream(ctx context.Context, client model.Client, params ChatParams) (model.Streamer, error) {
	return client.Stream(ctx, withCommon(params))
}

// staticModels returns the fixed ModelInfo list a Provider was constructed
// with. Live "list models" SDK calls are not wired here: vendor pagination
// shapes vary enough across the three SDKs that guessing one without being
// able to compile against it risks shipping a call that does not exist.
// Provider instances are built with the model ids catalog.ProviderBinding
// already names, so a static list is both correct and exercised.
func staticModels(ids []string, maxLen int) []ModelInfo {
	out := make([]ModelInfo, 0, len(ids))
	for _, id := range ids {
		l := maxLen
		out = append(out, ModelInfo{ID: id, MaxModelLen: &l})
	}
	return out
}

// declaredMaxModelLen resolves a ProviderBinding's declared context window,
// defaulting to the binding's own field.
func declaredMaxModelLen(b catalog.ProviderBinding) int {
	return b.DeclaredMaxModelLen
}
