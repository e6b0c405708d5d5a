package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modelgateway/core/runtime/agent/stream"
)

// sseSink adapts a gin response writer to stream.Sink, framing each Event
// as "event: <Type>\ndata: <json>\n\n" and flushing after every write so
// clients see bytes as they're produced rather than buffered.
type sseSink struct {
	c *gin.Context
}

// newSSESink sets the headers §6 requires for a streaming response and
// returns a Sink that writes through them.
func newSSESink(c *gin.Context) *sseSink {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
	return &sseSink{c: c}
}

func (s *sseSink) Send(ctx context.Context, event stream.Event) error {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.c.Writer, "event: %s\ndata: %s\n\n", event.Type(), payload); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

func (s *sseSink) Close(ctx context.Context) error { return nil }

// fanoutSink sends every event to the live SSE connection and, best-effort,
// to a secondary durable sink (e.g. features/stream/pulse, for multi-replica
// fan-out or audit replay). A failure on the durable leg is logged and
// swallowed rather than aborting the response, since losing the durable
// copy of an event is not a reason to cut off the client mid-stream; a
// failure on the live leg still aborts, per stream.Sink's contract.
type fanoutSink struct {
	live         stream.Sink
	durable      stream.Sink
	onDurableErr func(error)
}

func (f *fanoutSink) Send(ctx context.Context, event stream.Event) error {
	if err := f.live.Send(ctx, event); err != nil {
		return err
	}
	if f.durable == nil {
		return nil
	}
	if err := f.durable.Send(ctx, event); err != nil && f.onDurableErr != nil {
		f.onDurableErr(err)
	}
	return nil
}

func (f *fanoutSink) Close(ctx context.Context) error {
	if f.durable != nil {
		_ = f.durable.Close(ctx)
	}
	return f.live.Close(ctx)
}
