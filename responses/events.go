package responses

import (
	"context"
	"fmt"

	"github.com/modelgateway/core/runtime/agent/stream"
	"github.com/modelgateway/core/toolexec"
)

// streamContext threads the per-response sequence number and output-item
// index through event emission, grounded on the original implementation's
// ResponseStreamContext/EventEmitter (§C.1): a small mutable context object
// rather than recomputed state.
type streamContext struct {
	sink           stream.Sink
	responseID     string
	conversationID string
	seq            int64
	outputIndex    int
}

func newStreamContext(sink stream.Sink, responseID, conversationID string) *streamContext {
	return &streamContext{sink: sink, responseID: responseID, conversationID: conversationID}
}

func (c *streamContext) nextSeq() int64 {
	n := c.seq
	c.seq++
	return n
}

func (c *streamContext) base(t stream.EventType, payload any) stream.Base {
	return stream.NewBase(t, c.responseID, c.conversationID, c.nextSeq(), payload)
}

func (c *streamContext) send(ctx context.Context, e stream.Event) error {
	if c.sink == nil {
		return nil
	}
	return c.sink.Send(ctx, e)
}

func (c *streamContext) emitCreated(ctx context.Context, resp any) error {
	data := stream.ResponsePayload{Response: resp}
	return c.send(ctx, stream.ResponseCreated{Base: c.base(stream.EventResponseCreated, data), Data: data})
}

func (c *streamContext) emitInProgress(ctx context.Context, resp any) error {
	data := stream.ResponsePayload{Response: resp}
	return c.send(ctx, stream.ResponseInProgress{Base: c.base(stream.EventResponseInProgress, data), Data: data})
}

func (c *streamContext) emitOutputItemAdded(ctx context.Context, item any) error {
	data := stream.OutputItemPayload{OutputIndex: c.outputIndex, Item: item}
	return c.send(ctx, stream.OutputItemAdded{Base: c.base(stream.EventOutputItemAdded, data), Data: data})
}

func (c *streamContext) emitOutputItemDone(ctx context.Context, item any) error {
	data := stream.OutputItemPayload{OutputIndex: c.outputIndex, Item: item}
	c.outputIndex++
	return c.send(ctx, stream.OutputItemDone{Base: c.base(stream.EventOutputItemDone, data), Data: data})
}

func (c *streamContext) emitContentPartAdded(ctx context.Context, itemID string, part any) error {
	data := stream.ContentPartPayload{ItemID: itemID, Part: part}
	return c.send(ctx, stream.ContentPartAdded{Base: c.base(stream.EventContentPartAdded, data), Data: data})
}

func (c *streamContext) emitContentPartDone(ctx context.Context, itemID string, part any) error {
	data := stream.ContentPartPayload{ItemID: itemID, Part: part}
	return c.send(ctx, stream.ContentPartDone{Base: c.base(stream.EventContentPartDone, data), Data: data})
}

func (c *streamContext) emitTextDelta(ctx context.Context, itemID, delta string) error {
	data := stream.OutputTextDeltaPayload{ItemID: itemID, Delta: delta}
	return c.send(ctx, stream.OutputTextDelta{Base: c.base(stream.EventOutputTextDelta, data), Data: data})
}

func (c *streamContext) emitTextDone(ctx context.Context, itemID, text string) error {
	data := stream.OutputTextDonePayload{ItemID: itemID, Text: text}
	return c.send(ctx, stream.OutputTextDone{Base: c.base(stream.EventOutputTextDone, data), Data: data})
}

func (c *streamContext) emitToolLifecycle(ctx context.Context, t stream.EventType, itemID string) error {
	data := stream.ToolCallLifecyclePayload{ItemID: itemID}
	return c.send(ctx, stream.ToolCallLifecycle{Base: c.base(t, data), Data: data})
}

func (c *streamContext) emitCompleted(ctx context.Context, resp any) error {
	data := stream.ResponsePayload{Response: resp}
	return c.send(ctx, stream.ResponseCompleted{Base: c.base(stream.EventResponseCompleted, data), Data: data})
}

func (c *streamContext) emitIncomplete(ctx context.Context, resp any, reason string) error {
	data := stream.ResponseIncompletePayload{Response: resp, Reason: reason}
	return c.send(ctx, stream.ResponseIncomplete{Base: c.base(stream.EventResponseIncomplete, data), Data: data})
}

func (c *streamContext) emitFailed(ctx context.Context, errObj any) error {
	data := stream.ErrorPayload{Error: errObj}
	return c.send(ctx, stream.ResponseFailed{Base: c.base(stream.EventResponseFailed, data), Data: data})
}

func (c *streamContext) emitStreamError(ctx context.Context, errObj any) error {
	data := stream.ErrorPayload{Error: errObj}
	return c.send(ctx, stream.StreamError{Base: c.base(stream.EventError, data), Data: data})
}

// toolEventSink bridges toolexec.EventSink to this response's streamContext
// for one active tool call, translating generic "emit a lifecycle suffix"
// calls into the concrete response.<family>_call.<phase> event type and
// wrapping item snapshots from toolexec into the output item shape the
// wire expects.
type toolEventSink struct {
	sc     *streamContext
	family string // "web_search_call", "file_search_call", "mcp_call"
	callID string
}

func (t *toolEventSink) EmitLifecycle(ctx context.Context, phase string) error {
	return t.sc.emitToolLifecycle(ctx, stream.EventType(fmt.Sprintf("response.%s.%s", t.family, phase)), t.callID)
}

func (t *toolEventSink) EmitItemAdded(ctx context.Context, item any) error {
	return t.sc.emitOutputItemAdded(ctx, wireItemFromSnapshot(item))
}

func (t *toolEventSink) EmitItemDone(ctx context.Context, item any) error {
	return t.sc.emitOutputItemDone(ctx, wireItemFromSnapshot(item))
}

// wireItemFromSnapshot converts a toolexec lifecycle snapshot into the
// corresponding responses.Item so the wire representation matches §3
// exactly instead of leaking toolexec's internal snapshot shape.
func wireItemFromSnapshot(snap any) Item {
	switch s := snap.(type) {
	case toolexec.WebSearchCallSnapshot:
		item := &WebSearchCall{Query: s.Query, Action: "search"}
		item.ID, item.Status = s.ID, s.Status
		return item
	case toolexec.FileSearchCallSnapshot:
		item := &FileSearchCall{Query: s.Query, Results: convertFileResults(s.Results)}
		item.ID, item.Status = s.ID, s.Status
		return item
	case toolexec.McpCallSnapshot:
		item := &McpCall{ServerLabel: s.ServerLabel, Name: s.Tool, Output: s.Output, Error: s.Error}
		item.ID, item.Status = s.ID, s.Status
		return item
	default:
		return nil
	}
}

func convertFileResults(in []toolexec.FileSearchResult) []FileSearchResult {
	out := make([]FileSearchResult, 0, len(in))
	for _, r := range in {
		out = append(out, FileSearchResult{FileID: r.FileID, Filename: r.Filename, Score: r.Score, Text: r.Text})
	}
	return out
}
