package responses

import (
	"encoding/json"

	"github.com/modelgateway/core/citation"
)

type (
	// Item is the tagged-variant ResponseItem (§3): a closed enumeration of
	// the 10 output item kinds, discriminated by ItemType() for serialization.
	// Per §9's design note, this is a concrete closed set, not open
	// polymorphism.
	Item interface {
		ItemID() string
		ItemType() string
		OutputIndex() int
		setOutputIndex(int)
		setID(string)
	}

	itemBase struct {
		ID     string `json:"id"`
		Index  int    `json:"output_index"`
		Status string `json:"status,omitempty"`
	}

	// Message is an input or output chat message (role + ordered content
	// parts).
	Message struct {
		itemBase
		Role  string        `json:"role"`
		Parts []ContentPart `json:"content"`
	}

	// FunctionCall is a model-emitted tool invocation request.
	FunctionCall struct {
		itemBase
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
		CallID    string `json:"call_id"`
	}

	// FunctionCallOutput carries the executed result for a FunctionCall,
	// appended both to the response output and to the next turn's input.
	FunctionCallOutput struct {
		itemBase
		CallID string `json:"call_id"`
		Output string `json:"output"`
	}

	// WebSearchCall records the lifecycle and query of one web_search
	// invocation.
	WebSearchCall struct {
		itemBase
		Query  string `json:"query"`
		Action string `json:"action"`
	}

	// FileSearchCall records the lifecycle, query, and results of one
	// file_search invocation.
	FileSearchCall struct {
		itemBase
		Query   string             `json:"query"`
		Results []FileSearchResult `json:"results,omitempty"`
	}

	// FileSearchResult is one row of a FileSearchCall's results.
	FileSearchResult struct {
		FileID   string  `json:"file_id"`
		Filename string  `json:"filename"`
		Score    float64 `json:"score"`
		Text     string  `json:"text"`
	}

	// McpListTools caches one MCP server's tools/list result for the
	// duration of a response (§4.4 step 3).
	McpListTools struct {
		itemBase
		ServerLabel string           `json:"server_label"`
		Tools       []McpToolSummary `json:"tools"`
	}

	// McpToolSummary is one tool descriptor inside an McpListTools item.
	McpToolSummary struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"input_schema,omitempty"`
	}

	// McpApprovalRequest is emitted when an MCP tool call requires approval
	// and none has been granted yet in the input (§4.4 Detect tool calls).
	McpApprovalRequest struct {
		itemBase
		ServerLabel string `json:"server_label"`
		Name        string `json:"name"`
		Arguments   string `json:"arguments"`
	}

	// McpApprovalResponse is a caller-supplied input item granting or
	// denying a pending McpApprovalRequest by id.
	McpApprovalResponse struct {
		itemBase
		ApprovalRequestID string `json:"approval_request_id"`
		Approve           bool   `json:"approve"`
	}

	// McpCall records the lifecycle, arguments, and output/error of one MCP
	// tool invocation.
	McpCall struct {
		itemBase
		ServerLabel string `json:"server_label"`
		Name        string `json:"name"`
		Arguments   string `json:"arguments"`
		Output      string `json:"output,omitempty"`
		Error       string `json:"error,omitempty"`
	}

	// Reasoning carries model "thinking" content when the provider surfaces
	// it as a first-class output item rather than inline with Message.
	Reasoning struct {
		itemBase
		Summary string `json:"summary,omitempty"`
		Text    string `json:"text,omitempty"`
	}

	// ContentPart is the tagged-variant content block inside a Message item
	// (§3).
	ContentPart interface {
		PartType() string
	}

	// InputText is a plain user-supplied text block.
	InputText struct {
		Text string `json:"text"`
	}

	// OutputText is assistant-generated text plus any citation annotations
	// attached by the Citation Tracker.
	OutputText struct {
		Text        string       `json:"text"`
		Annotations []Annotation `json:"annotations,omitempty"`
	}

	// InputImage is a user-supplied image reference.
	InputImage struct {
		URL    string `json:"url,omitempty"`
		FileID string `json:"file_id,omitempty"`
		Detail string `json:"detail,omitempty"`
	}

	// Refusal is a model-issued refusal-to-answer content block.
	Refusal struct {
		Text string `json:"text"`
	}

	// Annotation is the tagged-variant citation attached to an OutputText
	// part (§3).
	Annotation interface {
		AnnotationType() string
	}

	// UrlCitation is a byte-offset reference into OutputText.Text pointing
	// at an external URL, produced by the Citation Tracker (§4.7).
	UrlCitation struct {
		StartIndex int    `json:"start_index"`
		EndIndex   int    `json:"end_index"`
		URL        string `json:"url"`
		Title      string `json:"title"`
	}

	// FileCitation references a vector-store file instead of a URL.
	FileCitation struct {
		StartIndex int    `json:"start_index"`
		EndIndex   int    `json:"end_index"`
		FileID     string `json:"file_id"`
		Filename   string `json:"filename"`
	}
)

func (b itemBase) ItemID() string        { return b.ID }
func (b *itemBase) setOutputIndex(i int) { b.Index = i }
func (b itemBase) OutputIndex() int      { return b.Index }
func (b *itemBase) setID(id string)      { b.ID = id }

func (m *Message) ItemType() string              { return "message" }
func (f *FunctionCall) ItemType() string         { return "function_call" }
func (f *FunctionCallOutput) ItemType() string   { return "function_call_output" }
func (w *WebSearchCall) ItemType() string        { return "web_search_call" }
func (f *FileSearchCall) ItemType() string       { return "file_search_call" }
func (m *McpListTools) ItemType() string         { return "mcp_list_tools" }
func (m *McpApprovalRequest) ItemType() string   { return "mcp_approval_request" }
func (m *McpApprovalResponse) ItemType() string  { return "mcp_approval_response" }
func (m *McpCall) ItemType() string              { return "mcp_call" }
func (r *Reasoning) ItemType() string            { return "reasoning" }

func (InputText) PartType() string  { return "input_text" }
func (OutputText) PartType() string { return "output_text" }
func (InputImage) PartType() string { return "input_image" }
func (Refusal) PartType() string    { return "refusal" }

func (UrlCitation) AnnotationType() string  { return "url_citation" }
func (FileCitation) AnnotationType() string { return "file_citation" }

// taggedJSON marshals v (a type alias of the receiver, to avoid recursing
// back into MarshalJSON) and injects a "type" discriminator field, the wire
// shape every Item, ContentPart, and Annotation variant needs to round-trip
// through the public API and the SSE event stream.
func taggedJSON(v any, typ string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	tag, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	m["type"] = tag
	return json.Marshal(m)
}

func (m *Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return taggedJSON((*alias)(m), m.ItemType())
}

func (f *FunctionCall) MarshalJSON() ([]byte, error) {
	type alias FunctionCall
	return taggedJSON((*alias)(f), f.ItemType())
}

func (f *FunctionCallOutput) MarshalJSON() ([]byte, error) {
	type alias FunctionCallOutput
	return taggedJSON((*alias)(f), f.ItemType())
}

func (w *WebSearchCall) MarshalJSON() ([]byte, error) {
	type alias WebSearchCall
	return taggedJSON((*alias)(w), w.ItemType())
}

func (f *FileSearchCall) MarshalJSON() ([]byte, error) {
	type alias FileSearchCall
	return taggedJSON((*alias)(f), f.ItemType())
}

func (m *McpListTools) MarshalJSON() ([]byte, error) {
	type alias McpListTools
	return taggedJSON((*alias)(m), m.ItemType())
}

func (m *McpApprovalRequest) MarshalJSON() ([]byte, error) {
	type alias McpApprovalRequest
	return taggedJSON((*alias)(m), m.ItemType())
}

func (m *McpApprovalResponse) MarshalJSON() ([]byte, error) {
	type alias McpApprovalResponse
	return taggedJSON((*alias)(m), m.ItemType())
}

func (m *McpCall) MarshalJSON() ([]byte, error) {
	type alias McpCall
	return taggedJSON((*alias)(m), m.ItemType())
}

func (r *Reasoning) MarshalJSON() ([]byte, error) {
	type alias Reasoning
	return taggedJSON((*alias)(r), r.ItemType())
}

func (t InputText) MarshalJSON() ([]byte, error) {
	type alias InputText
	return taggedJSON(alias(t), t.PartType())
}

func (t OutputText) MarshalJSON() ([]byte, error) {
	type alias OutputText
	return taggedJSON(alias(t), t.PartType())
}

func (t InputImage) MarshalJSON() ([]byte, error) {
	type alias InputImage
	return taggedJSON(alias(t), t.PartType())
}

func (t Refusal) MarshalJSON() ([]byte, error) {
	type alias Refusal
	return taggedJSON(alias(t), t.PartType())
}

func (c UrlCitation) MarshalJSON() ([]byte, error) {
	type alias UrlCitation
	return taggedJSON(alias(c), c.AnnotationType())
}

func (c FileCitation) MarshalJSON() ([]byte, error) {
	type alias FileCitation
	return taggedJSON(alias(c), c.AnnotationType())
}

// annotationsFromCitations converts citation.Tracker annotations into the
// wire Annotation variant, preserving the sorted, non-overlapping order
// §4.7/§8 require.
func annotationsFromCitations(anns []citation.Annotation) []Annotation {
	out := make([]Annotation, 0, len(anns))
	for _, a := range anns {
		out = append(out, UrlCitation{StartIndex: a.StartIndex, EndIndex: a.EndIndex, URL: a.URL, Title: a.Title})
	}
	return out
}
