// Command gateway runs the multi-tenant inference gateway: it loads
// configuration, wires the provider pool, usage ledger, tool executors, and
// the Response State Machine, then serves the HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/config"
	"github.com/modelgateway/core/features/model/anthropic"
	"github.com/modelgateway/core/features/model/gemini"
	"github.com/modelgateway/core/features/model/middleware"
	"github.com/modelgateway/core/features/model/openai"
	pulsesink "github.com/modelgateway/core/features/stream/pulse"
	pulseclient "github.com/modelgateway/core/features/stream/pulse/clients/pulse"
	"github.com/modelgateway/core/httpapi"
	"github.com/modelgateway/core/organization"
	"github.com/modelgateway/core/provider"
	"github.com/modelgateway/core/responses"
	"github.com/modelgateway/core/runtime/agent/stream"
	"github.com/modelgateway/core/runtime/agent/telemetry"
	"github.com/modelgateway/core/runtime/mcp"
	"github.com/modelgateway/core/toolexec"
	"github.com/modelgateway/core/usage"
	"github.com/modelgateway/core/usage/pgstore"
)

func main() {
	envPath := flag.String("env", ".env", "path to a .env file (missing file is not an error)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	cat := catalog.New()
	registerModels(cat, cfg, logger)

	providerPool := provider.NewPool()
	registerProviders(providerPool, cat, cfg, logger)

	usageStore := pgstore.New(pool)
	usageSvc := usage.New(cat, usageStore)

	registry := toolexec.NewRegistry()
	registry.Register(toolexec.NewWebSearchExecutor(nil))
	registry.Register(toolexec.NewFileSearchExecutor(nil))

	store := responses.NewMemoryStore()
	orgStore := organization.NewMemoryStore()
	engine := responses.NewEngine(cat, providerPool, usageSvc, registry, store, orgStore, mcpFactory)

	durableSink := newDurableSink(cfg, logger)

	resolver := httpapi.NewMemoryKeyResolver()
	var server *httpapi.Server
	if durableSink != nil {
		server = httpapi.NewServer(engine, resolver, logger, durableSink)
	} else {
		server = httpapi.NewServer(engine, resolver, logger)
	}

	gin.SetMode(cfg.GinMode)
	logger.Info("listening", "addr", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, server.Handler()); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// registerModels installs catalog entries for every provider the
// configuration enables. A real deployment would load pricing and context
// lengths from the database; here they're seeded with the documented
// defaults for each provider's flagship model, matching what the catalog's
// own Register validates.
func registerModels(cat *catalog.Catalog, cfg *config.Config, logger *slog.Logger) {
	if cfg.AnthropicAPIKey != "" {
		if err := cat.Register(&catalog.Model{
			Name:               "claude-sonnet-4",
			InputCostPerToken:  3_000_000,
			OutputCostPerToken: 15_000_000,
			ContextLength:      200_000,
			InputModalities:    map[catalog.Modality]struct{}{catalog.ModalityText: {}, catalog.ModalityImage: {}},
			OutputModalities:   map[catalog.Modality]struct{}{catalog.ModalityText: {}},
			Capabilities:       catalog.Capabilities{SupportsTools: true},
			ProviderBindings:   []catalog.ProviderBinding{{Kind: catalog.ProviderKindAnthropic, DeclaredMaxModelLen: 200_000}},
		}); err != nil {
			logger.Error("register model", "model", "claude-sonnet-4", "error", err)
		}
	}
	if cfg.OpenAIAPIKey != "" {
		if err := cat.Register(&catalog.Model{
			Name:               "gpt-4.1",
			InputCostPerToken:  2_000_000,
			OutputCostPerToken: 8_000_000,
			ContextLength:      128_000,
			InputModalities:    map[catalog.Modality]struct{}{catalog.ModalityText: {}, catalog.ModalityImage: {}},
			OutputModalities:   map[catalog.Modality]struct{}{catalog.ModalityText: {}},
			Capabilities:       catalog.Capabilities{SupportsTools: true},
			ProviderBindings:   []catalog.ProviderBinding{{Kind: catalog.ProviderKindOpenAICompatible, DeclaredMaxModelLen: 128_000}},
		}); err != nil {
			logger.Error("register model", "model", "gpt-4.1", "error", err)
		}
	}
	if cfg.GeminiAPIKey != "" {
		if err := cat.Register(&catalog.Model{
			Name:               "gemini-2.5-pro",
			InputCostPerToken:  1_250_000,
			OutputCostPerToken: 10_000_000,
			ContextLength:      1_000_000,
			InputModalities:    map[catalog.Modality]struct{}{catalog.ModalityText: {}, catalog.ModalityImage: {}},
			OutputModalities:   map[catalog.Modality]struct{}{catalog.ModalityText: {}},
			Capabilities:       catalog.Capabilities{SupportsTools: true},
			ProviderBindings:   []catalog.ProviderBinding{{Kind: catalog.ProviderKindGemini, DeclaredMaxModelLen: 1_000_000}},
		}); err != nil {
			logger.Error("register model", "model", "gemini-2.5-pro", "error", err)
		}
	}
}

func registerProviders(pool *provider.Pool, cat *catalog.Catalog, cfg *config.Config, logger *slog.Logger) {
	metrics := telemetry.NewOtelMetrics()
	slogLogger := telemetry.NewSlogLogger(logger)

	if cfg.AnthropicAPIKey != "" {
		client, err := anthropic.NewFromAPIKey(cfg.AnthropicAPIKey, "claude-sonnet-4", 4096)
		if err != nil {
			logger.Error("init anthropic client", "error", err)
		} else {
			limiter := middleware.NewAdaptiveRateLimiter(context.Background(), nil, "anthropic:claude-sonnet-4", 60_000, 600_000)
			wrapped := limiter.Middleware()(provider.WrapWithTelemetry(client, slogLogger, metrics))
			m, _ := cat.Lookup("claude-sonnet-4")
			if m != nil {
				pool.Register("claude-sonnet-4", provider.NewAnthropic(wrapped, m.ProviderBindings[0], []string{"claude-sonnet-4"}))
			}
		}
	}
	if cfg.OpenAIAPIKey != "" {
		client, err := openai.NewFromAPIKey(cfg.OpenAIAPIKey, "gpt-4.1")
		if err != nil {
			logger.Error("init openai client", "error", err)
		} else {
			m, _ := cat.Lookup("gpt-4.1")
			if m != nil {
				pool.Register("gpt-4.1", provider.NewOpenAICompatible(client, m.ProviderBindings[0], []string{"gpt-4.1"}))
			}
		}
	}
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewFromAPIKey(context.Background(), cfg.GeminiAPIKey, "gemini-2.5-pro")
		if err != nil {
			logger.Error("init gemini client", "error", err)
		} else {
			m, _ := cat.Lookup("gemini-2.5-pro")
			if m != nil {
				pool.Register("gemini-2.5-pro", provider.NewGemini(client, m.ProviderBindings[0], []string{"gemini-2.5-pro"}))
			}
		}
	}
}

// mcpFactory dials a caller-declared MCP server over HTTP, the transport
// every tools[].type=="mcp" entry in a CreateResponseRequest names via its
// server_url.
func mcpFactory(ctx context.Context, serverLabel, serverURL string) (mcp.Caller, error) {
	return mcp.NewHTTPCaller(ctx, mcp.HTTPOptions{
		Endpoint:        serverURL,
		ProtocolVersion: mcp.DefaultProtocolVersion,
		ClientName:      "modelgateway",
		ClientVersion:   "0.1.0",
		InitTimeout:     10 * time.Second,
	})
}

// newDurableSink builds the optional features/stream/pulse sink that fans
// streamed response events out to Redis alongside the live SSE connection,
// for replay and multi-replica delivery. Setting REDIS_ADDR to the empty
// string opts a deployment out entirely; any other construction failure is
// logged and treated the same way, since losing the durable copy is never a
// reason to refuse to serve the live stream.
func newDurableSink(cfg *config.Config, logger *slog.Logger) stream.Sink {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	client, err := pulseclient.New(pulseclient.Options{Redis: rdb})
	if err != nil {
		logger.Error("init pulse client", "error", err)
		return nil
	}
	sink, err := pulsesink.NewSink(pulsesink.Options{Client: client})
	if err != nil {
		logger.Error("init pulse sink", "error", err)
		return nil
	}
	return sink
}
