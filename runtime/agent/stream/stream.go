// Package stream defines the canonical Server-Sent Events vocabulary emitted
// by the Response State Machine to HTTP clients (and, optionally, fanned out
// through a durable Sink such as Pulse for multi-replica delivery).
//
// Every event belongs to exactly one response (identified by RunID, which
// callers populate with the response id) and carries a SequenceNumber that is
// strictly increasing and starts at 0 for a given response. Implementations
// of Sink are responsible for delivering events in the order they are sent;
// the response task is the only producer for its own event stream.
package stream

import "context"

type (
	// Sink delivers streaming response events to a transport (HTTP SSE,
	// WebSocket, or a durable bus like Pulse). Implementations must be
	// thread-safe: a response task may be one of several concurrently
	// publishing through a shared Sink.
	Sink interface {
		// Send publishes an event. An error aborts the response task.
		Send(ctx context.Context, event Event) error

		// Close releases sink resources. Idempotent.
		Close(ctx context.Context) error
	}

	// Event is a single SSE frame in the canonical vocabulary (§6). Sinks
	// marshal Payload() generically; HTTP transports additionally prefix the
	// wire frame with "event: <Type>\ndata: ".
	Event interface {
		// Type returns the dotted canonical event name, e.g. "response.created".
		Type() EventType

		// RunID returns the response id this event belongs to.
		RunID() string

		// SessionID returns the conversation id associated with the response,
		// when the request was scoped to one. Empty otherwise.
		SessionID() string

		// SequenceNumber returns this event's position in its response's
		// event stream. Strictly increasing per response, starting at 0.
		SequenceNumber() int64

		// Payload returns the event-specific, JSON-serializable data.
		Payload() any
	}

	// Base implements the bookkeeping common to every Event. Concrete event
	// types embed Base and add a typed Data payload field.
	Base struct {
		t   EventType
		r   string
		s   string
		seq int64
		p   any
	}

	// ResponseCreated is emitted immediately after a CreateResponseRequest is
	// accepted, before any upstream call is made.
	ResponseCreated struct {
		Base
		Data ResponsePayload
	}

	// ResponseInProgress is emitted by the state machine at the start of
	// every Generate step, before the provider is called; it is not tied to
	// the first upstream byte and may occur more than once per response.
	ResponseInProgress struct {
		Base
		Data ResponsePayload
	}

	// OutputItemAdded is emitted when a new output item (message, tool call,
	// McpListTools snapshot) begins accumulating.
	OutputItemAdded struct {
		Base
		Data OutputItemPayload
	}

	// ContentPartAdded is emitted when a new content part begins within an
	// output item (for example the start of a text block).
	ContentPartAdded struct {
		Base
		Data ContentPartPayload
	}

	// OutputTextDelta streams an incremental fragment of assistant text.
	OutputTextDelta struct {
		Base
		Data OutputTextDeltaPayload
	}

	// OutputTextDone is emitted once an assistant text content part has
	// finished streaming, after citation rewriting has been applied.
	OutputTextDone struct {
		Base
		Data OutputTextDonePayload
	}

	// ContentPartDone is emitted once a content part has finished.
	ContentPartDone struct {
		Base
		Data ContentPartPayload
	}

	// OutputItemDone is emitted once an output item has finished.
	OutputItemDone struct {
		Base
		Data OutputItemPayload
	}

	// ToolCallLifecycle reports a lifecycle transition for an intrinsic tool
	// call (web_search, file_search) or an MCP tool call. The concrete Type
	// distinguishes the tool family and phase, e.g.
	// "response.web_search_call.searching" or "response.mcp_call.completed".
	ToolCallLifecycle struct {
		Base
		Data ToolCallLifecyclePayload
	}

	// ResponseCompleted is the terminal success event, carrying the full
	// persisted response object.
	ResponseCompleted struct {
		Base
		Data ResponsePayload
	}

	// ResponseIncomplete is emitted when a response terminates early, for
	// example pending MCP approval or an exhausted tool-call budget.
	ResponseIncomplete struct {
		Base
		Data ResponseIncompletePayload
	}

	// ResponseFailed is the terminal error event.
	ResponseFailed struct {
		Base
		Data ErrorPayload
	}

	// StreamError is a non-terminal stream error (for example a transient
	// tool failure that does not abort the response).
	StreamError struct {
		Base
		Data ErrorPayload
	}

	// ResponsePayload wraps a full response snapshot. Response is left
	// loosely typed to avoid an import cycle with the responses package,
	// which constructs these events; it is always JSON-serializable.
	ResponsePayload struct {
		Response any `json:"response"`
	}

	// OutputItemPayload describes an output item transition.
	OutputItemPayload struct {
		OutputIndex int `json:"output_index"`
		Item        any `json:"item"`
	}

	// ContentPartPayload describes a content part transition.
	ContentPartPayload struct {
		ItemID string `json:"item_id"`
		Part   any    `json:"part"`
	}

	// OutputTextDeltaPayload carries one streamed text fragment.
	OutputTextDeltaPayload struct {
		ItemID string `json:"item_id"`
		Delta  string `json:"delta"`
	}

	// OutputTextDonePayload carries the finished, citation-rewritten text.
	OutputTextDonePayload struct {
		ItemID string `json:"item_id"`
		Text   string `json:"text"`
	}

	// ToolCallLifecyclePayload identifies the output item a tool-call
	// lifecycle event refers to.
	ToolCallLifecyclePayload struct {
		ItemID string `json:"item_id"`
	}

	// ResponseIncompletePayload carries the response snapshot plus the
	// reason generation stopped short of Complete.
	ResponseIncompletePayload struct {
		Response any    `json:"response"`
		Reason   string `json:"reason"`
	}

	// ErrorPayload carries a structured, user-safe error description.
	ErrorPayload struct {
		Error any `json:"error"`
	}
)

// EventType enumerates the canonical SSE event names (§6).
type EventType string

const (
	EventResponseCreated    EventType = "response.created"
	EventResponseInProgress EventType = "response.in_progress"

	EventOutputItemAdded  EventType = "response.output_item.added"
	EventContentPartAdded EventType = "response.content_part.added"
	EventOutputTextDelta  EventType = "response.output_text.delta"
	EventOutputTextDone   EventType = "response.output_text.done"
	EventContentPartDone  EventType = "response.content_part.done"
	EventOutputItemDone   EventType = "response.output_item.done"

	EventWebSearchCallInProgress EventType = "response.web_search_call.in_progress"
	EventWebSearchCallSearching  EventType = "response.web_search_call.searching"
	EventWebSearchCallCompleted  EventType = "response.web_search_call.completed"

	EventFileSearchCallInProgress EventType = "response.file_search_call.in_progress"
	EventFileSearchCallSearching  EventType = "response.file_search_call.searching"
	EventFileSearchCallCompleted  EventType = "response.file_search_call.completed"

	EventMcpCallInProgress EventType = "response.mcp_call.in_progress"
	EventMcpCallCompleted  EventType = "response.mcp_call.completed"

	EventResponseCompleted  EventType = "response.completed"
	EventResponseIncomplete EventType = "response.incomplete"
	EventResponseFailed     EventType = "response.failed"
	EventError              EventType = "error"
)

// NewBase constructs a Base event with the given type, response id, optional
// conversation id, sequence number, and payload.
func NewBase(t EventType, responseID, sessionID string, seq int64, payload any) Base {
	return Base{t: t, r: responseID, s: sessionID, seq: seq, p: payload}
}

// Type implements Event.
func (b Base) Type() EventType { return b.t }

// RunID implements Event.
func (b Base) RunID() string { return b.r }

// SessionID implements Event.
func (b Base) SessionID() string { return b.s }

// SequenceNumber implements Event.
func (b Base) SequenceNumber() int64 { return b.seq }

// Payload implements Event.
func (b Base) Payload() any { return b.p }
