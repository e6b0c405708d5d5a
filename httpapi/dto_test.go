package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgateway/core/ids"
	"github.com/modelgateway/core/responses"
)

func TestToCreateResponseRequest_StringInput(t *testing.T) {
	body := createResponseBody{Model: "claude-sonnet-4", Input: json.RawMessage(`"hello there"`)}
	principal := Principal{WorkspaceID: uuid.New(), OrganizationID: uuid.New(), ApiKeyID: uuid.New()}

	req, err := toCreateResponseRequest(body, principal)
	require.NoError(t, err)
	require.Len(t, req.Input, 1)
	msg, ok := req.Input[0].(*responses.Message)
	require.True(t, ok)
	assert.Equal(t, "user", msg.Role)
	require.Len(t, msg.Parts, 1)
	text, ok := msg.Parts[0].(responses.InputText)
	require.True(t, ok)
	assert.Equal(t, "hello there", text.Text)
	assert.Equal(t, principal.WorkspaceID, req.WorkspaceID)
}

func TestToCreateResponseRequest_MessageArrayInput(t *testing.T) {
	body := createResponseBody{
		Model: "gpt-4.1",
		Input: json.RawMessage(`[{"role":"user","content":[{"type":"input_text","text":"hi"}]}]`),
	}
	req, err := toCreateResponseRequest(body, Principal{})
	require.NoError(t, err)
	require.Len(t, req.Input, 1)
	msg := req.Input[0].(*responses.Message)
	assert.Equal(t, "user", msg.Role)
	assert.Equal(t, "hi", msg.Parts[0].(responses.InputText).Text)
}

func TestToCreateResponseRequest_MissingModel(t *testing.T) {
	body := createResponseBody{Input: json.RawMessage(`"hi"`)}
	_, err := toCreateResponseRequest(body, Principal{})
	require.Error(t, err)
}

func TestToCreateResponseRequest_MissingInput(t *testing.T) {
	body := createResponseBody{Model: "gpt-4.1"}
	_, err := toCreateResponseRequest(body, Principal{})
	require.Error(t, err)
}

func TestToCreateResponseRequest_ConversationID(t *testing.T) {
	id := uuid.New()
	body := createResponseBody{
		Model:        "gpt-4.1",
		Input:        json.RawMessage(`"hi"`),
		Conversation: ids.Render(ids.PrefixConversation, id),
	}
	req, err := toCreateResponseRequest(body, Principal{})
	require.NoError(t, err)
	require.NotNil(t, req.ConversationID)
	assert.Equal(t, id, *req.ConversationID)
}

func TestToCreateResponseRequest_InvalidConversationID(t *testing.T) {
	body := createResponseBody{
		Model:        "gpt-4.1",
		Input:        json.RawMessage(`"hi"`),
		Conversation: "resp_notaconversation",
	}
	_, err := toCreateResponseRequest(body, Principal{})
	require.Error(t, err)
}

func TestToCreateResponseRequest_Tools(t *testing.T) {
	body := createResponseBody{
		Model: "gpt-4.1",
		Input: json.RawMessage(`"hi"`),
		Tools: []toolSpecDTO{{Type: "mcp", ServerLabel: "github", ServerURL: "https://mcp.example.com", RequireApproval: "never"}},
	}
	req, err := toCreateResponseRequest(body, Principal{})
	require.NoError(t, err)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "mcp", req.Tools[0].Kind)
	assert.Equal(t, "github", req.Tools[0].ServerLabel)
}

func TestToResponseEnvelope(t *testing.T) {
	id := uuid.New()
	r := &responses.Response{ID: id, Status: responses.StatusCompleted, Model: "gpt-4.1"}
	env := toResponseEnvelope(r)
	assert.Equal(t, ids.Render(ids.PrefixResponse, id), env.ID)
	assert.Equal(t, responses.StatusCompleted, env.Status)
}
