// Package catalog defines the gateway's Model Catalog: model pricing,
// capability flags, and the ordered list of upstream providers registered for
// each model name. It is a read-mostly lookup table; registration happens at
// startup (or via the admin surface, out of scope here) and every request
// path only reads from it.
package catalog

import (
	"sync"

	"github.com/google/uuid"

	"github.com/modelgateway/core/gatewayerr"
)

type (
	// Modality identifies a content modality a model can accept or produce.
	Modality string

	// ProviderKind is the closed set of upstream backend families the
	// gateway speaks. Adding a fifth kind (e.g. Bedrock) requires a spec
	// change; it is not something a translator can improvise.
	ProviderKind string

	// Nano is a fixed-point USD amount at scale 9: $0.01 == 10_000_000.
	Nano int64

	// ProviderBinding is one upstream endpoint registered to serve a model.
	ProviderBinding struct {
		Kind                ProviderKind
		EndpointURL         string
		AuthMaterial        string
		DeclaredMaxModelLen int
	}

	// Capabilities are closed boolean flags on a Model.
	Capabilities struct {
		Verifiable    bool
		SupportsTools bool
	}

	// Model is the catalog entry for one model name: pricing, context
	// length, modality support, capability flags, and the ordered list of
	// provider bindings that can serve it.
	Model struct {
		ID                 uuid.UUID
		Name               string
		InputCostPerToken  Nano
		OutputCostPerToken Nano
		CostPerImage       Nano
		ContextLength      int
		InputModalities    map[Modality]struct{}
		OutputModalities   map[Modality]struct{}
		Capabilities       Capabilities
		ProviderBindings   []ProviderBinding
	}

	// Catalog is the process-wide model name -> Model lookup table. It is
	// safe for concurrent reads; Register takes a write lock, which
	// in steady state is only exercised by startup and the (out-of-scope)
	// admin CRUD surface.
	Catalog struct {
		mu     sync.RWMutex
		models map[string]*Model
	}
)

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

const (
	ProviderKindVLLM             ProviderKind = "vllm"
	ProviderKindOpenAICompatible ProviderKind = "openai_compatible"
	ProviderKindAnthropic        ProviderKind = "anthropic"
	ProviderKindGemini           ProviderKind = "gemini"
)

// New returns an empty Catalog.
func New() *Catalog {
	return &Catalog{models: make(map[string]*Model)}
}

// Register adds or replaces the catalog entry for m.Name. It validates the
// §3 invariants (non-negative prices, positive context length) before
// installing the entry.
func (c *Catalog) Register(m *Model) error {
	if m == nil || m.Name == "" {
		return gatewayerr.New(gatewayerr.InvalidParams, "model name is required")
	}
	if m.InputCostPerToken < 0 || m.OutputCostPerToken < 0 || m.CostPerImage < 0 {
		return gatewayerr.New(gatewayerr.InvalidParams, "model prices must not be negative")
	}
	if m.ContextLength <= 0 {
		return gatewayerr.New(gatewayerr.InvalidParams, "model context_length must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[m.Name] = m
	return nil
}

// Lookup returns the Model registered under name, or ModelNotFound.
func (c *Catalog) Lookup(name string) (*Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[name]
	if !ok {
		return nil, gatewayerr.Errorf(gatewayerr.ModelNotFound, "model %q is not registered", name)
	}
	return m, nil
}

// LookupByID returns the Model with the given id, or ModelNotFound.
func (c *Catalog) LookupByID(id uuid.UUID) (*Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, gatewayerr.Errorf(gatewayerr.ModelNotFound, "model %s is not registered", id)
}

// Names returns the registered model names in no particular order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.models))
	for name := range c.models {
		out = append(out, name)
	}
	return out
}

// CostNano computes the nano-dollar cost of billing a chat/completion call
// against m's per-token prices.
func (m *Model) CostNano(inputTokens, outputTokens int) (input, output, total Nano) {
	input = m.InputCostPerToken * Nano(inputTokens)
	output = m.OutputCostPerToken * Nano(outputTokens)
	return input, output, input + output
}
