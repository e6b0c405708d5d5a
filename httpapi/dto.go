package httpapi

import (
	"encoding/json"

	"github.com/modelgateway/core/gatewayerr"
	"github.com/modelgateway/core/ids"
	"github.com/modelgateway/core/responses"
)

// createResponseBody is the wire shape of POST /v1/responses's JSON body,
// the HTTP encoding of §6's canonical CreateResponseRequest. Unknown fields
// are rejected per §6 ("unknown fields on input are rejected") via
// json.Decoder.DisallowUnknownFields in the handler.
type createResponseBody struct {
	Model              string          `json:"model"`
	Input              json.RawMessage `json:"input"`
	Instructions       string          `json:"instructions,omitempty"`
	Conversation       string          `json:"conversation,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	Tools              []toolSpecDTO   `json:"tools,omitempty"`
	ToolChoice         string          `json:"tool_choice,omitempty"`
	Stream             bool            `json:"stream,omitempty"`
	MaxOutputTokens    int             `json:"max_output_tokens,omitempty"`
	MaxToolCalls       *int            `json:"max_tool_calls,omitempty"`
}

type toolSpecDTO struct {
	Type            string   `json:"type"`
	ServerLabel     string   `json:"server_label,omitempty"`
	ServerURL       string   `json:"server_url,omitempty"`
	RequireApproval string   `json:"require_approval,omitempty"`
	VectorStoreIDs  []string `json:"vector_store_ids,omitempty"`
}

type messageDTO struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentPartDTO struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toCreateResponseRequest converts the wire body into the core
// CreateResponseRequest, resolving Input's two accepted shapes: a bare
// string (shorthand for one user message) or a full item/message array.
func toCreateResponseRequest(body createResponseBody, principal Principal) (responses.CreateResponseRequest, error) {
	if body.Model == "" {
		return responses.CreateResponseRequest{}, gatewayerr.New(gatewayerr.InvalidParams, "model is required")
	}

	items, err := parseInput(body.Input)
	if err != nil {
		return responses.CreateResponseRequest{}, err
	}

	req := responses.CreateResponseRequest{
		Model:           body.Model,
		Input:           items,
		Instructions:    body.Instructions,
		ToolChoice:      body.ToolChoice,
		Stream:          body.Stream,
		MaxOutputTokens: body.MaxOutputTokens,
		MaxToolCalls:    body.MaxToolCalls,
		WorkspaceID:     principal.WorkspaceID,
		ApiKeyID:        principal.ApiKeyID,
		OrganizationID:  principal.OrganizationID,
	}

	if body.Conversation != "" {
		id, ok := ids.ParseExpect(body.Conversation, ids.PrefixConversation)
		if !ok {
			return responses.CreateResponseRequest{}, gatewayerr.Errorf(gatewayerr.InvalidParams, "invalid_id: conversation %q", body.Conversation)
		}
		req.ConversationID = &id
	}
	if body.PreviousResponseID != "" {
		id, ok := ids.ParseExpect(body.PreviousResponseID, ids.PrefixResponse)
		if !ok {
			return responses.CreateResponseRequest{}, gatewayerr.Errorf(gatewayerr.InvalidParams, "invalid_id: previous_response_id %q", body.PreviousResponseID)
		}
		req.PreviousResponseID = &id
	}
	for _, t := range body.Tools {
		req.Tools = append(req.Tools, responses.ToolSpec{
			Kind:            t.Type,
			ServerLabel:     t.ServerLabel,
			ServerURL:       t.ServerURL,
			RequireApproval: t.RequireApproval,
			VectorStoreIDs:  t.VectorStoreIDs,
		})
	}
	return req, nil
}

func parseInput(raw json.RawMessage) ([]responses.Item, error) {
	if len(raw) == 0 {
		return nil, gatewayerr.New(gatewayerr.InvalidParams, "input is required")
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []responses.Item{userTextMessage(asString)}, nil
	}

	var msgs []messageDTO
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.InvalidParams, err, "input must be a string or an array of messages")
	}
	items := make([]responses.Item, 0, len(msgs))
	for _, m := range msgs {
		parts, err := parseContentParts(m.Content)
		if err != nil {
			return nil, err
		}
		items = append(items, &responses.Message{Role: m.Role, Parts: parts})
	}
	return items, nil
}

func parseContentParts(raw json.RawMessage) ([]responses.ContentPart, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []responses.ContentPart{responses.InputText{Text: asString}}, nil
	}
	var dtos []contentPartDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.InvalidParams, err, "message content must be a string or an array of content parts")
	}
	parts := make([]responses.ContentPart, 0, len(dtos))
	for _, d := range dtos {
		switch d.Type {
		case "input_text", "":
			parts = append(parts, responses.InputText{Text: d.Text})
		default:
			return nil, gatewayerr.Errorf(gatewayerr.InvalidParams, "unsupported content part type %q", d.Type)
		}
	}
	return parts, nil
}

func userTextMessage(text string) responses.Item {
	return &responses.Message{Role: "user", Parts: []responses.ContentPart{responses.InputText{Text: text}}}
}

// responseEnvelope is the non-streaming JSON response shape: the same
// Response object §6's SSE events carry inline, returned directly when
// stream is false.
type responseEnvelope struct {
	ID     string            `json:"id"`
	Status responses.Status  `json:"status"`
	Model  string            `json:"model"`
	Output []responses.Item  `json:"output"`
	Usage  *responses.UsageSummary `json:"usage,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func toResponseEnvelope(r *responses.Response) responseEnvelope {
	return responseEnvelope{
		ID:     ids.Render(ids.PrefixResponse, r.ID),
		Status: r.Status,
		Model:  r.Model,
		Output: r.OutputItems,
		Usage:  r.Usage,
		Error:  r.Error,
	}
}
