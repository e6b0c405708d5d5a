// Package provider defines the Inference Provider capability surface (§4.1):
// a uniform interface over one backend instance — a vLLM endpoint, an
// OpenAI-compatible endpoint, Anthropic, or Gemini — that the provider pool
// selects between and the response state machine drives. Each concrete
// provider wraps one of the runtime/agent/model.Client adapters
// (features/model/{anthropic,openai,gemini}) and adds the capabilities that
// contract does not carry: model discovery, tokenization, raw-bytes capture,
// and the TEE-only signature/attestation operations external backends never
// implement.
package provider

import (
	"context"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/gatewayerr"
	"github.com/modelgateway/core/runtime/agent/model"
)

type (
	// ModelInfo describes one model a provider instance can serve.
	ModelInfo struct {
		ID          string
		MaxModelLen *int
	}

	// TokenizeResult reports the token count tokenize_chat computed for a
	// message transcript, alongside the provider's declared context window.
	TokenizeResult struct {
		Count       int
		MaxModelLen int
	}

	// ChatParams carries the canonical request parameters §4.1 specifies:
	// everything a translator needs to build a provider wire request.
	// model.Request carries the subset already needed by the three existing
	// adapters (messages, tools, tool choice, temperature, max tokens,
	// thinking, cache); the fields below extend it with the parameters those
	// adapters do not yet translate (top_p, stop, seed, modalities, response
	// format, and a provider-specific escape hatch).
	ChatParams struct {
		Request        *model.Request
		TopP           float32
		Stop           []string
		Seed           *int64
		Modalities     []string
		ResponseFormat any
		Extra          map[string]any
	}

	// ChatResult is the output of a non-streaming chat_completion call.
	//
	// RawBytes is best-effort: adapters built on typed SDK response structs
	// (as all three provider implementations here are) do not have access to
	// the literal wire bytes, so RawBytes is the canonical Response
	// re-marshaled to JSON rather than the provider's original payload. This
	// is enough for audit logging and idempotent-replay comparisons; it is
	// not a byte-exact capture of what the upstream sent.
	ChatResult struct {
		Response *model.Response
		RawBytes []byte
	}

	// Signature is the result of get_signature: proof that a specific
	// response was produced by the backend that claims to have produced it.
	// Only a TEE-hosted vLLM backend can support this; external backends
	// return gatewayerr.Unsupported per §4.1.
	Signature struct {
		Algorithm string
		Value     []byte
	}

	// AttestationReport is the result of get_attestation_report. Like
	// Signature, only a TEE-hosted backend can produce one; this repo does
	// not implement the attestation subsystem itself (Non-goal, see §1), so
	// every provider in this package returns gatewayerr.Unsupported.
	AttestationReport struct {
		Evidence []byte
	}

	// Provider is the uniform capability surface of one backend instance
	// (§4.1). The provider pool holds an ordered seq<Provider> per model
	// name and selects among them; translators live inside each
	// implementation, not in the pool.
	Provider interface {
		// Kind identifies which wire protocol this instance speaks.
		Kind() catalog.ProviderKind

		// MaxModelLen is the backend's declared context window, used by the
		// pool's context-aware filtering (§4.2 step 3).
		MaxModelLen() int

		// Models lists the model identifiers this instance can serve.
		Models(ctx context.Context) ([]ModelInfo, error)

		// TokenizeChat counts tokens for a transcript against this
		// instance's tokenizer, or the 4-chars-per-token estimate when the
		// backend has none (§4.2 step 2).
		TokenizeChat(ctx context.Context, modelName string, messages []*model.Message) (TokenizeResult, error)

		// ChatCompletion performs a non-streaming call. requestHash is an
		// opaque caller-supplied idempotency/audit key; it is not
		// interpreted here but is threaded through so a future replay cache
		// can key on it.
		ChatCompletion(ctx context.Context, params ChatParams, requestHash string) (*ChatResult, error)

		// ChatCompletionStream performs a streaming call, returning a
		// model.Streamer the caller drains until io.EOF.
		ChatCompletionStream(ctx context.Context, params ChatParams, requestHash string) (model.Streamer, error)

		// GetSignature is unsupported by every backend this module wires;
		// it exists so the interface matches §4.1's table in full.
		GetSignature(ctx context.Context, chatID string) (Signature, error)

		// GetAttestationReport is unsupported by every backend this module
		// wires, for the same reason as GetSignature.
		GetAttestationReport(ctx context.Context, nonce []byte) (AttestationReport, error)
	}
)

// estimateTokens implements the 4-chars-per-token fallback §4.2 names for
// backends without a native tokenizer.
func estimateTokens(messages []*model.Message) int {
	chars := 0
	for _, m := range messages {
		if m == nil {
			continue
		}
		for _, p := range m.Parts {
			if t, ok := p.(model.TextPart); ok {
				chars += len(t.Text)
			}
		}
	}
	count := chars / 4
	if count == 0 && chars > 0 {
		count = 1
	}
	return count
}

func unsupportedSignature(backend string) (Signature, error) {
	return Signature{}, gatewayerr.Errorf(gatewayerr.Unsupported, "%s: signatures are not supported", backend)
}

func unsupportedAttestation(backend string) (AttestationReport, error) {
	return AttestationReport{}, gatewayerr.Errorf(gatewayerr.Unsupported, "%s: attestation is not supported", backend)
}
