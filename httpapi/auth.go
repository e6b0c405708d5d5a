package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/modelgateway/core/gatewayerr"
)

// Principal is what §6's authentication step resolves a request to: the
// workspace/organization/api-key triple every downstream call (the
// Response State Machine, the Usage Service) is scoped by.
type Principal struct {
	WorkspaceID    uuid.UUID
	OrganizationID uuid.UUID
	ApiKeyID       uuid.UUID
}

// KeyResolver looks up the Principal an API key hash belongs to. OAuth
// session/database-backed resolution is explicitly out of scope (§1: "OAuth
// authorization-code dance mechanics... the database schema proper" are
// named interfaces only) — this is the interface a real deployment backs
// with its key store.
type KeyResolver interface {
	ResolveAPIKey(ctx context.Context, keyHash string) (*Principal, error)
	ResolveSession(ctx context.Context, sessionID string) (*Principal, error)
}

// authenticate implements §6's "exactly one must resolve" rule: a bearer
// API key (sk_ prefix, hashed and looked up), a bearer session token, or a
// session cookie. Anything else, or no match, is Unauthorized.
func authenticate(ctx context.Context, resolver KeyResolver, authHeader, cookie string) (*Principal, error) {
	if authHeader != "" {
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return nil, gatewayerr.New(gatewayerr.Unauthorized, "malformed Authorization header")
		}
		if strings.HasPrefix(token, "sk_") {
			return resolver.ResolveAPIKey(ctx, hashAPIKey(token))
		}
		return resolver.ResolveSession(ctx, token)
	}
	if cookie != "" {
		return resolver.ResolveSession(ctx, cookie)
	}
	return nil, gatewayerr.New(gatewayerr.Unauthorized, "missing credentials")
}

// hashAPIKey computes the SHA-256 hash §6 says API keys are looked up by,
// never the raw secret.
func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
