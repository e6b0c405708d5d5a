package httpapi

import (
	"context"
	"sync"

	"github.com/modelgateway/core/gatewayerr"
)

// MemoryKeyResolver is a process-local KeyResolver for deployments that
// have not wired a real key/session store. §1 names the database schema
// proper and OAuth mechanics as out of scope ("interfaces, not contracts"),
// so this is a usable default rather than a stub a caller is forced to
// replace before the server can start.
type MemoryKeyResolver struct {
	mu       sync.RWMutex
	apiKeys  map[string]Principal
	sessions map[string]Principal
}

// NewMemoryKeyResolver returns an empty resolver. Register entries with
// AddAPIKey/AddSession before serving traffic.
func NewMemoryKeyResolver() *MemoryKeyResolver {
	return &MemoryKeyResolver{apiKeys: make(map[string]Principal), sessions: make(map[string]Principal)}
}

// AddAPIKey registers a raw API key (hashed internally) against a Principal.
func (r *MemoryKeyResolver) AddAPIKey(rawKey string, p Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiKeys[hashAPIKey(rawKey)] = p
}

// AddSession registers a session or bearer token against a Principal.
func (r *MemoryKeyResolver) AddSession(token string, p Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = p
}

func (r *MemoryKeyResolver) ResolveAPIKey(ctx context.Context, keyHash string) (*Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.apiKeys[keyHash]
	if !ok {
		return nil, gatewayerr.New(gatewayerr.Unauthorized, "unknown api key")
	}
	return &p, nil
}

func (r *MemoryKeyResolver) ResolveSession(ctx context.Context, sessionID string) (*Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.sessions[sessionID]
	if !ok {
		return nil, gatewayerr.New(gatewayerr.Unauthorized, "unknown session")
	}
	return &p, nil
}
