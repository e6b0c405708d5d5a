package provider

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"

	"github.com/modelgateway/core/gatewayerr"
	"github.com/modelgateway/core/runtime/agent/model"
)

const (
	// defaultOutputHeadroom is the token headroom reserved for output when
	// a request does not specify MaxTokens (§4.2 step 3).
	defaultOutputHeadroom = 1024

	// defaultConcurrentLimit is the per-organization concurrency cap used
	// when Organization.ConcurrentLimit is unset (§4.2, ratified by §9's
	// Open Questions: "not centrally defined; ratify this as the default").
	defaultConcurrentLimit = 64
)

type (
	// Pool is the Inference Provider Pool (§4.2): for each model name, an
	// ordered list of Provider instances, plus per-organization concurrency
	// admission. Registration is write-locked and expected only at startup
	// or via the (out-of-scope) admin surface; every request path only
	// reads.
	Pool struct {
		mu        sync.RWMutex
		providers map[string][]Provider

		limitersMu sync.Mutex
		limiters   map[uuid.UUID]*semaphore.Weighted
	}

	// SelectionResult is what context-aware selection (§4.2 steps 1-5)
	// hands back to the caller: the ordered, filtered candidate list plus
	// the token count computed against the cheapest/first provider.
	SelectionResult struct {
		Candidates []Provider
		TokenCount int
	}
)

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{
		providers: make(map[string][]Provider),
		limiters:  make(map[uuid.UUID]*semaphore.Weighted),
	}
}

// Register appends a Provider to the ordered list for modelName. Call order
// is registration order, which step 4 of Select uses as the final tiebreak.
func (p *Pool) Register(modelName string, prov Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providers[modelName] = append(p.providers[modelName], prov)
}

// Select performs §4.2's context-aware selection: tokenize against the
// first registered provider (any provider works; all expose a tokenizer or
// the 4-chars-per-token estimate), filter by declared context length plus
// output headroom, then sort survivors by MaxModelLen ascending (smallest
// sufficient context first) with registration order as the tiebreak.
func (p *Pool) Select(ctx context.Context, modelName string, messages []*model.Message, maxTokens int) (SelectionResult, error) {
	p.mu.RLock()
	candidates := append([]Provider(nil), p.providers[modelName]...)
	p.mu.RUnlock()

	if len(candidates) == 0 {
		return SelectionResult{}, gatewayerr.Errorf(gatewayerr.ModelNotFound, "model %q is not registered", modelName)
	}

	tok, err := candidates[0].TokenizeChat(ctx, modelName, messages)
	if err != nil {
		return SelectionResult{}, gatewayerr.Wrap(gatewayerr.Internal, err, "tokenize_chat failed")
	}

	headroom := maxTokens
	if headroom <= 0 {
		headroom = defaultOutputHeadroom
	}
	needed := tok.Count + headroom

	type ranked struct {
		prov  Provider
		order int
	}
	var survivors []ranked
	for i, c := range candidates {
		if c.MaxModelLen() >= needed {
			survivors = append(survivors, ranked{prov: c, order: i})
		}
	}
	if len(survivors) == 0 {
		return SelectionResult{}, gatewayerr.Errorf(gatewayerr.NoProviderCapacity,
			"no provider has sufficient context for %d tokens (model %q)", needed, modelName)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].prov.MaxModelLen() != survivors[j].prov.MaxModelLen() {
			return survivors[i].prov.MaxModelLen() < survivors[j].prov.MaxModelLen()
		}
		return survivors[i].order < survivors[j].order
	})

	out := make([]Provider, len(survivors))
	for i, s := range survivors {
		out[i] = s.prov
	}
	return SelectionResult{Candidates: out, TokenCount: tok.Count}, nil
}

// ChatCompletionStream drives the ordered candidate list with failover
// (§4.2 "Failover"): a connect/timeout/5xx-classified error tries the next
// candidate, a 4xx-classified error (UpstreamFatal, InvalidParams) surfaces
// immediately.
func (p *Pool) ChatCompletionStream(ctx context.Context, candidates []Provider, params ChatParams, requestHash string) (model.Streamer, Provider, error) {
	var lastErr error
	for _, c := range candidates {
		stream, err := c.ChatCompletionStream(ctx, params, requestHash)
		if err == nil {
			return stream, c, nil
		}
		if !isFailoverEligible(err) {
			return nil, nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = gatewayerr.New(gatewayerr.NoProviderCapacity, "no candidates to try")
	}
	return nil, nil, gatewayerr.Wrap(gatewayerr.UpstreamTransient, lastErr, "all providers failed")
}

// ChatCompletion is the non-streaming counterpart of ChatCompletionStream.
func (p *Pool) ChatCompletion(ctx context.Context, candidates []Provider, params ChatParams, requestHash string) (*ChatResult, Provider, error) {
	var lastErr error
	for _, c := range candidates {
		res, err := c.ChatCompletion(ctx, params, requestHash)
		if err == nil {
			return res, c, nil
		}
		if !isFailoverEligible(err) {
			return nil, nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = gatewayerr.New(gatewayerr.NoProviderCapacity, "no candidates to try")
	}
	return nil, nil, gatewayerr.Wrap(gatewayerr.UpstreamTransient, lastErr, "all providers failed")
}

// isFailoverEligible reports whether err should trigger trying the next
// provider rather than surfacing immediately. Transport-classified errors
// (UpstreamTransient, Internal — e.g. connection refused, deadline
// exceeded) are eligible; anything already classified as an upstream 4xx
// (UpstreamFatal) or a validation failure (InvalidParams) is not.
func isFailoverEligible(err error) bool {
	ge, ok := gatewayerr.As(err)
	if !ok {
		// An unclassified error (e.g. a raw network error bubbling straight
		// out of an adapter) is treated as transient and worth a retry on
		// the next candidate.
		return true
	}
	switch ge.Kind {
	case gatewayerr.UpstreamFatal, gatewayerr.InvalidParams:
		return false
	default:
		return true
	}
}

// Acquire implements §4.2's per-organization concurrency admission: a
// semaphore with `limit` permits (organization.concurrent_limit, or
// defaultConcurrentLimit when unset/zero). It returns a release func the
// caller must invoke on stream end or error, and ConcurrencyLimit when the
// organization is already at capacity.
func (p *Pool) Acquire(ctx context.Context, orgID uuid.UUID, limit int) (release func(), err error) {
	if limit <= 0 {
		limit = defaultConcurrentLimit
	}
	sem := p.limiterFor(orgID, limit)
	if !sem.TryAcquire(1) {
		return nil, gatewayerr.Errorf(gatewayerr.ConcurrencyLimit,
			"organization %s has reached its concurrent request limit (%d)", orgID, limit)
	}
	return func() { sem.Release(1) }, nil
}

func (p *Pool) limiterFor(orgID uuid.UUID, limit int) *semaphore.Weighted {
	p.limitersMu.Lock()
	defer p.limitersMu.Unlock()
	sem, ok := p.limiters[orgID]
	if !ok {
		sem = semaphore.NewWeighted(int64(limit))
		p.limiters[orgID] = sem
	}
	return sem
}
