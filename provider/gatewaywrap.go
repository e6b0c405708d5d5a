package provider

import (
	"context"
	"io"
	"time"

	"github.com/modelgateway/core/features/model/gateway"
	"github.com/modelgateway/core/runtime/agent/model"
	"github.com/modelgateway/core/runtime/agent/telemetry"
)

// WrapWithTelemetry wraps a model.Client in a features/model/gateway.Server
// configured with logging and metrics middleware, so every provider call
// made through the pool picks up request/duration telemetry regardless of
// which vendor adapter it is backed by. Returns the original client
// unchanged if gateway.NewServer fails to construct (only possible if
// client is nil).
func WrapWithTelemetry(client model.Client, logger telemetry.Logger, metrics telemetry.Metrics) model.Client {
	srv, err := gateway.NewServer(
		gateway.WithProvider(client),
		gateway.WithUnary(loggingUnaryMiddleware(logger, metrics)),
		gateway.WithStream(loggingStreamMiddleware(logger, metrics)),
	)
	if err != nil {
		return client
	}
	return &gatewayClient{srv: srv}
}

// loggingUnaryMiddleware logs and times a non-streaming completion,
// grounded on the AdaptiveRateLimiter's own before/after call-accounting
// shape (features/model/middleware).
func loggingUnaryMiddleware(logger telemetry.Logger, metrics telemetry.Metrics) gateway.UnaryMiddleware {
	return func(next gateway.UnaryHandler) gateway.UnaryHandler {
		return func(ctx context.Context, req *model.Request) (*model.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			metrics.RecordTimer("model.chat_completion.duration", time.Since(start), "model", req.Model)
			if err != nil {
				logger.Error(ctx, "chat completion failed", "model", req.Model, "error", err)
				metrics.IncCounter("model.chat_completion.errors", 1, "model", req.Model)
				return resp, err
			}
			logger.Debug(ctx, "chat completion ok", "model", req.Model)
			return resp, nil
		}
	}
}

func loggingStreamMiddleware(logger telemetry.Logger, metrics telemetry.Metrics) gateway.StreamMiddleware {
	return func(next gateway.StreamHandler) gateway.StreamHandler {
		return func(ctx context.Context, req *model.Request, send func(model.Chunk) error) error {
			start := time.Now()
			err := next(ctx, req, send)
			metrics.RecordTimer("model.chat_completion_stream.duration", time.Since(start), "model", req.Model)
			if err != nil && err != io.EOF {
				logger.Error(ctx, "chat completion stream failed", "model", req.Model, "error", err)
				metrics.IncCounter("model.chat_completion_stream.errors", 1, "model", req.Model)
			}
			return err
		}
	}
}

// gatewayClient adapts a gateway.Server's push-based Stream back into the
// pull-based model.Streamer every Provider implementation expects,
// following the e2e test harness's serverStreamWrapper pattern
// (features/model/gateway/e2e_test.go): a buffered channel fed by a
// goroutine draining the middleware chain.
type gatewayClient struct {
	srv *gateway.Server
}

func (c *gatewayClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return c.srv.Complete(ctx, req)
}

func (c *gatewayClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	w := &gatewayStreamer{ch: make(chan model.Chunk, 16), done: make(chan error, 1)}
	go func() {
		err := c.srv.Stream(ctx, req, func(ch model.Chunk) error {
			select {
			case w.ch <- ch:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(w.ch)
		w.done <- err
	}()
	return w, nil
}

type gatewayStreamer struct {
	ch   chan model.Chunk
	done chan error
}

func (w *gatewayStreamer) Recv() (model.Chunk, error) {
	ch, ok := <-w.ch
	if !ok {
		if err := <-w.done; err != nil && err != io.EOF {
			return model.Chunk{}, err
		}
		return model.Chunk{}, io.EOF
	}
	return ch, nil
}

func (w *gatewayStreamer) Close() error { return nil }

func (w *gatewayStreamer) Metadata() map[string]any { return nil }
