package httpapi

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgateway/core/gatewayerr"
)

func TestAuthenticate_APIKey(t *testing.T) {
	resolver := NewMemoryKeyResolver()
	want := Principal{WorkspaceID: uuid.New(), OrganizationID: uuid.New(), ApiKeyID: uuid.New()}
	resolver.AddAPIKey("sk_live_abc123", want)

	got, err := authenticate(context.Background(), resolver, "Bearer sk_live_abc123", "")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestAuthenticate_BearerSession(t *testing.T) {
	resolver := NewMemoryKeyResolver()
	want := Principal{WorkspaceID: uuid.New()}
	resolver.AddSession("opaque-session-token", want)

	got, err := authenticate(context.Background(), resolver, "Bearer opaque-session-token", "")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestAuthenticate_Cookie(t *testing.T) {
	resolver := NewMemoryKeyResolver()
	want := Principal{WorkspaceID: uuid.New()}
	resolver.AddSession("cookie-session-id", want)

	got, err := authenticate(context.Background(), resolver, "", "cookie-session-id")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	resolver := NewMemoryKeyResolver()
	_, err := authenticate(context.Background(), resolver, "", "")
	require.Error(t, err)
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.Unauthorized, gwErr.Kind)
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	resolver := NewMemoryKeyResolver()
	_, err := authenticate(context.Background(), resolver, "Basic abc123", "")
	require.Error(t, err)
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.Unauthorized, gwErr.Kind)
}

func TestAuthenticate_UnknownAPIKey(t *testing.T) {
	resolver := NewMemoryKeyResolver()
	_, err := authenticate(context.Background(), resolver, "Bearer sk_unknown", "")
	require.Error(t, err)
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.Unauthorized, gwErr.Kind)
}

func TestHashAPIKey_Deterministic(t *testing.T) {
	assert.Equal(t, hashAPIKey("sk_live_abc"), hashAPIKey("sk_live_abc"))
	assert.NotEqual(t, hashAPIKey("sk_live_abc"), hashAPIKey("sk_live_xyz"))
}
