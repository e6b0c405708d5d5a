// Package responses implements the Response State Machine (§4.4), the
// centerpiece of the gateway: the iterative loop that injects instructions,
// calls the provider pool, detects and executes tool calls, accumulates
// citations, and persists the terminal Response.
package responses

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type (
	// Status is the closed Response lifecycle (§3).
	Status string

	// Conversation mirrors §3's Conversation entity: a persisted ordered
	// collection of responses, referenced but not owned by its members.
	Conversation struct {
		ID          uuid.UUID
		WorkspaceID uuid.UUID
		ApiKeyID    uuid.UUID
		Metadata    map[string]any
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// UsageSummary is the per-response rollup attached once a Response
	// completes (§3's Response.usage).
	UsageSummary struct {
		InputTokens  int64
		OutputTokens int64
		TotalTokens  int64
	}

	// Response mirrors §3's Response entity.
	Response struct {
		ID                 uuid.UUID
		WorkspaceID        uuid.UUID
		ApiKeyID           uuid.UUID
		ConversationID     *uuid.UUID
		PreviousResponseID *uuid.UUID
		Model              string
		Status             Status
		InputSnapshot      json.RawMessage
		OutputItems        []Item
		Usage              *UsageSummary
		IncompleteReason    string
		Error               string
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}

	// ToolSpec is one entry of CreateResponseRequest.Tools (§4.4, §4.5): the
	// request-level declaration of an intrinsic or MCP tool the model may
	// call.
	ToolSpec struct {
		Kind            string // "web_search", "file_search", "mcp"
		ServerLabel     string // mcp only
		ServerURL       string // mcp only
		RequireApproval string // mcp only: "always" | "never"
		VectorStoreIDs  []string
	}

	// CreateResponseRequest is the canonical request shape §6 names.
	CreateResponseRequest struct {
		Model              string
		Input              []Item // pre-parsed: either a single user Message or a full item sequence
		Instructions       string
		ConversationID     *uuid.UUID
		PreviousResponseID *uuid.UUID
		Tools              []ToolSpec
		ToolChoice         string
		Stream             bool
		MaxOutputTokens    int
		MaxToolCalls       *int
		WorkspaceID        uuid.UUID
		ApiKeyID           uuid.UUID
		OrganizationID     uuid.UUID
		ExternalID         string
	}
)

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusIncomplete Status = "incomplete"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// NewResponse builds a freshly queued Response for req.
func NewResponse(req CreateResponseRequest, snapshot json.RawMessage) *Response {
	now := time.Now()
	return &Response{
		ID:                 uuid.New(),
		WorkspaceID:        req.WorkspaceID,
		ApiKeyID:           req.ApiKeyID,
		ConversationID:     req.ConversationID,
		PreviousResponseID: req.PreviousResponseID,
		Model:              req.Model,
		Status:             StatusQueued,
		InputSnapshot:      snapshot,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// usageSummary converts a provider-reported token count into the
// UsageSummary §4.4's Complete step persists.
func usageSummary(input, output int64) *UsageSummary {
	return &UsageSummary{InputTokens: input, OutputTokens: output, TotalTokens: input + output}
}
