// Package httpapi exposes the Response State Machine over HTTP: a gin
// engine wiring §6's authentication rule, the /v1/responses and
// /v1/conversations endpoints, and the canonical SSE event stream.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modelgateway/core/gatewayerr"
	"github.com/modelgateway/core/ids"
	"github.com/modelgateway/core/responses"
	"github.com/modelgateway/core/runtime/agent/stream"
)

const principalKey = "httpapi.principal"

// Server wraps a configured gin.Engine around an Engine.
type Server struct {
	engine   *gin.Engine
	core     *responses.Engine
	resolver KeyResolver
	logger   *slog.Logger
	durable  stream.Sink
}

// NewServer builds the gin engine and registers every route. logger may be
// nil, falling back to slog.Default(). durable, if non-nil, receives a copy
// of every streamed event alongside the live SSE connection (e.g. a
// features/stream/pulse sink for multi-replica fan-out or audit replay); it
// is variadic so existing callers that only want the live connection are
// unaffected.
func NewServer(core *responses.Engine, resolver KeyResolver, logger *slog.Logger, durable ...stream.Sink) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{core: core, resolver: resolver, logger: logger}
	if len(durable) > 0 {
		s.durable = durable[0]
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.authMiddleware())

	v1 := r.Group("/v1")
	{
		v1.POST("/responses", s.createResponse)
		v1.GET("/responses/:id", s.getResponse)
		v1.GET("/conversations/:id/items", s.listConversationItems)
	}
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	s.engine = r
	return s
}

// Handler returns the underlying http.Handler for use with http.Server or
// httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

// authMiddleware implements §6's auth resolution and stashes the resolved
// Principal in the gin context for handlers to read.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		cookie, _ := c.Cookie("session_id")
		principal, err := authenticate(c.Request.Context(), s.resolver, c.GetHeader("Authorization"), cookie)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, *principal)
		c.Next()
	}
}

func principalFromContext(c *gin.Context) Principal {
	v, _ := c.Get(principalKey)
	p, _ := v.(Principal)
	return p
}

func (s *Server) createResponse(c *gin.Context) {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	var body createResponseBody
	if err := dec.Decode(&body); err != nil {
		writeError(c, gatewayerr.Wrap(gatewayerr.InvalidParams, err, "malformed request body"))
		return
	}

	req, err := toCreateResponseRequest(body, principalFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.Stream {
		var sink stream.Sink = newSSESink(c)
		if s.durable != nil {
			sink = &fanoutSink{
				live:    sink,
				durable: s.durable,
				onDurableErr: func(err error) {
					s.logger.ErrorContext(ctx, "durable sink publish failed", "error", err)
				},
			}
		}
		ctx = responses.WithSink(ctx, sink)
		resp, err := s.core.CreateResponse(ctx, req)
		if err != nil {
			s.writeStreamError(c, err)
			return
		}
		_ = sink.Close(ctx)
		_ = resp
		return
	}

	resp, err := s.core.CreateResponse(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponseEnvelope(resp))
}

// writeStreamError emits a final error SSE event rather than an HTTP status,
// since headers are already flushed by the time generation can fail.
func (s *Server) writeStreamError(c *gin.Context, err error) {
	gwErr, _ := gatewayerr.As(err)
	message := err.Error()
	if gwErr != nil {
		message = gwErr.Message
	}
	payload, _ := json.Marshal(map[string]any{"error": message})
	_, _ = io.WriteString(c.Writer, "event: error\ndata: "+string(payload)+"\n\n")
	c.Writer.Flush()
}

func (s *Server) getResponse(c *gin.Context) {
	id, ok := ids.ParseExpect(c.Param("id"), ids.PrefixResponse)
	if !ok {
		writeError(c, gatewayerr.Errorf(gatewayerr.InvalidParams, "invalid_id: %q", c.Param("id")))
		return
	}
	resp, err := s.core.Store().GetResponse(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponseEnvelope(resp))
}

func (s *Server) listConversationItems(c *gin.Context) {
	id, ok := ids.ParseExpect(c.Param("id"), ids.PrefixConversation)
	if !ok {
		writeError(c, gatewayerr.Errorf(gatewayerr.InvalidParams, "invalid_id: %q", c.Param("id")))
		return
	}
	items, err := s.core.Store().ListConversationItems(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// writeError maps a gatewayerr.Error onto its configured HTTP status; any
// other error is an unmapped 500, which should not happen for errors
// returned along paths this package controls.
func writeError(c *gin.Context, err error) {
	var gwErr *gatewayerr.Error
	if !errors.As(err, &gwErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": map[string]any{"message": err.Error()}})
		return
	}
	status := gwErr.HTTP
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": map[string]any{
		"message":   gwErr.Message,
		"kind":      gwErr.Kind,
		"retryable": gwErr.Retryable,
	}})
}
