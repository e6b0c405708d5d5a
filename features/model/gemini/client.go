// Package gemini provides a model.Client implementation backed by Google's
// Generative Language API. It translates goa-ai requests into genai chat
// sessions using github.com/google/generative-ai-go/genai and maps responses
// (text, function calls, usage) back into the generic planner structures.
//
// Gemini's SDK shape differs from Anthropic/OpenAI in three ways this adapter
// has to bridge: the system prompt is a dedicated SystemInstruction field
// rather than a message, turn roles are "user"/"model" rather than
// "user"/"assistant", and conversation history is carried on a ChatSession
// rather than replayed as part of every call's message list.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/modelgateway/core/runtime/agent/model"
	"github.com/modelgateway/core/runtime/agent/tools"
)

type (
	// GenaiStream is the subset of *genai.GenerateContentResponseIterator used
	// by the adapter's streamer. Satisfied by the real iterator; stubs in
	// tests provide canned responses.
	GenaiStream interface {
		Next() (*genai.GenerateContentResponse, error)
	}

	// ChatHandle is the subset of a configured Gemini chat session used by the
	// adapter. Satisfied by *chatSession (wrapping *genai.ChatSession) so
	// tests can substitute a stub without a live genai.Client.
	ChatHandle interface {
		SetHistory(history []*genai.Content)
		SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
		SendMessageStream(ctx context.Context, parts ...genai.Part) GenaiStream
	}

	// ModelConfig carries the per-request parameters applied to a Gemini
	// generative model before starting a chat session.
	ModelConfig struct {
		SystemInstruction string
		Temperature       *float32
		TopP              *float32
		MaxOutputTokens   *int32
		StopSequences     []string
		Tools             []*genai.Tool
		ToolConfig        *genai.ToolConfig
	}

	// ModelFactory builds a configured chat session for a Gemini model
	// identifier. Implemented by the real client via *genai.Client and by
	// stubs in tests.
	ModelFactory func(modelID string, cfg ModelConfig) (ChatHandle, error)

	// Options configures optional Gemini adapter behavior. Mirrors
	// features/model/anthropic.Options and features/model/openai.Options.
	Options struct {
		// DefaultModel is the default Gemini model identifier used when
		// model.Request.Model is empty.
		DefaultModel string

		// HighModel is used when Request.ModelClass is ModelClassHighReasoning
		// and Model is empty.
		HighModel string

		// SmallModel is used when Request.ModelClass is ModelClassSmall and
		// Model is empty.
		SmallModel string

		// MaxTokens sets the default completion cap when a request does not
		// specify MaxTokens.
		MaxTokens int

		// Temperature is used when a request does not specify Temperature.
		Temperature float64
	}

	// Client implements model.Client on top of the Gemini Generative Language
	// API.
	Client struct {
		newChat      ModelFactory
		defaultModel string
		highModel    string
		smallModel   string
		maxTok       int
		temp         float64
	}
)

// New builds a Gemini-backed model client from the provided chat factory and
// configuration options.
func New(factory ModelFactory, opts Options) (*Client, error) {
	if factory == nil {
		return nil, errors.New("gemini model factory is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{
		newChat:      factory,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default Generative Language API
// client, authenticated with an API key.
func NewFromAPIKey(ctx context.Context, apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return New(realFactory(cl), Options{DefaultModel: defaultModel})
}

// realFactory adapts a live *genai.Client into a ModelFactory, applying
// per-request configuration to the generative model before starting its chat
// session.
func realFactory(cl *genai.Client) ModelFactory {
	return func(modelID string, cfg ModelConfig) (ChatHandle, error) {
		m := cl.GenerativeModel(modelID)
		if cfg.SystemInstruction != "" {
			m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(cfg.SystemInstruction)}}
		}
		if cfg.Temperature != nil {
			m.SetTemperature(*cfg.Temperature)
		}
		if cfg.TopP != nil {
			m.SetTopP(*cfg.TopP)
		}
		if cfg.MaxOutputTokens != nil {
			m.SetMaxOutputTokens(*cfg.MaxOutputTokens)
		}
		if len(cfg.StopSequences) > 0 {
			m.StopSequences = cfg.StopSequences
		}
		if len(cfg.Tools) > 0 {
			m.Tools = cfg.Tools
		}
		if cfg.ToolConfig != nil {
			m.ToolConfig = cfg.ToolConfig
		}
		return &chatSession{cs: m.StartChat()}, nil
	}
}

type chatSession struct{ cs *genai.ChatSession }

func (c *chatSession) SetHistory(h []*genai.Content) { c.cs.History = h }

func (c *chatSession) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	return c.cs.SendMessage(ctx, parts...)
}

func (c *chatSession) SendMessageStream(ctx context.Context, parts ...genai.Part) GenaiStream {
	return c.cs.SendMessageStream(ctx, parts...)
}

// Complete issues a non-streaming SendMessage call and translates the
// response into planner-friendly structures (assistant messages + tool calls).
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	chat, lastParts, provToCanon, err := c.prepareRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := chat.SendMessage(ctx, lastParts...)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("gemini generateContent: %w", err)
	}
	return translateResponse(resp, provToCanon)
}

// Stream invokes SendMessageStream and adapts incremental candidates into
// model.Chunks so planners can surface partial responses.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	chat, lastParts, provToCanon, err := c.prepareRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	iter := chat.SendMessageStream(ctx, lastParts...)
	return newGeminiStreamer(iter, provToCanon), nil
}

func (c *Client) prepareRequest(ctx context.Context, req *model.Request) (ChatHandle, []genai.Part, map[string]string, error) {
	if len(req.Messages) == 0 {
		return nil, nil, nil, errors.New("gemini: messages are required")
	}
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return nil, nil, nil, errors.New("gemini: model identifier is required")
	}
	toolList, canonToProv, provToCanon, err := encodeTools(ctx, req.Tools)
	if err != nil {
		return nil, nil, nil, err
	}
	history, lastParts, system, err := encodeMessages(req.Messages, canonToProv)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := ModelConfig{SystemInstruction: system}
	if len(toolList) > 0 {
		cfg.Tools = toolList
	}
	if req.ToolChoice != nil {
		tc, err := encodeToolChoice(req.ToolChoice, canonToProv, req.Tools)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg.ToolConfig = tc
	}
	if t := c.effectiveTemperature(req.Temperature); t > 0 {
		tf := float32(t)
		cfg.Temperature = &tf
	}
	if req.TopP > 0 {
		tp := req.TopP
		cfg.TopP = &tp
	}
	if len(req.Stop) > 0 {
		cfg.StopSequences = req.Stop
	}
	if maxTokens := c.effectiveMaxTokens(req.MaxTokens); maxTokens > 0 {
		mt := int32(maxTokens)
		cfg.MaxOutputTokens = &mt
	}
	chat, err := c.newChat(modelID, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("gemini: start chat: %w", err)
	}
	chat.SetHistory(history)
	return chat, lastParts, provToCanon, nil
}

// resolveModelID decides which concrete model ID to use based on
// Request.Model and Request.ModelClass. Request.Model takes precedence; when
// empty, the class is mapped to the configured identifiers, falling back to
// the default model.
func (c *Client) resolveModelID(req *model.Request) string {
	if s := req.Model; s != "" {
		return s
	}
	switch string(req.ModelClass) {
	case string(model.ModelClassHighReasoning):
		if c.highModel != "" {
			return c.highModel
		}
	case string(model.ModelClassSmall):
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func (c *Client) effectiveMaxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	return c.maxTok
}

func (c *Client) effectiveTemperature(requested float32) float64 {
	if requested > 0 {
		return float64(requested)
	}
	return c.temp
}

// encodeMessages splits a canonical transcript into Gemini chat history plus
// the final turn's parts, which are sent as the live SendMessage/
// SendMessageStream call. System messages are pulled out and joined into a
// single system instruction string rather than appearing in history, since
// Gemini has no "system" role.
func encodeMessages(msgs []*model.Message, nameMap map[string]string) ([]*genai.Content, []genai.Part, string, error) {
	var system []string
	var turns []*model.Message
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == model.ConversationRoleSystem {
			for _, p := range m.Parts {
				if v, ok := p.(model.TextPart); ok && v.Text != "" {
					system = append(system, v.Text)
				}
			}
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return nil, nil, "", errors.New("gemini: at least one user/assistant message is required")
	}
	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		content, err := encodeContent(m, nameMap)
		if err != nil {
			return nil, nil, "", err
		}
		if content != nil {
			history = append(history, content)
		}
	}
	last := turns[len(turns)-1]
	lastContent, err := encodeContent(last, nameMap)
	if err != nil {
		return nil, nil, "", err
	}
	var lastParts []genai.Part
	if lastContent != nil {
		lastParts = lastContent.Parts
	}
	return history, lastParts, strings.Join(system, "\n\n"), nil
}

func encodeContent(m *model.Message, nameMap map[string]string) (*genai.Content, error) {
	role, err := encodeRole(m.Role)
	if err != nil {
		return nil, err
	}
	parts := make([]genai.Part, 0, len(m.Parts))
	for _, part := range m.Parts {
		switch v := part.(type) {
		case model.TextPart:
			if v.Text != "" {
				parts = append(parts, genai.Text(v.Text))
			}
		case model.ToolUsePart:
			if v.Name == "" {
				return nil, errors.New("gemini: tool_use part missing name")
			}
			name := v.Name
			if sanitized, ok := nameMap[name]; ok && sanitized != "" {
				name = sanitized
			}
			args, err := toArgsMap(v.Input)
			if err != nil {
				return nil, fmt.Errorf("gemini: tool_use %q args: %w", v.Name, err)
			}
			parts = append(parts, genai.FunctionCall{Name: name, Args: args})
		case model.ToolResultPart:
			args, err := toArgsMap(v.Content)
			if err != nil {
				return nil, fmt.Errorf("gemini: tool_result args: %w", err)
			}
			if v.IsError {
				args = map[string]any{"error": args}
			}
			name := v.ToolUseID
			if sanitized, ok := nameMap[name]; ok && sanitized != "" {
				name = sanitized
			}
			parts = append(parts, genai.FunctionResponse{Name: name, Response: args})
		}
		// Thinking and cache checkpoint parts are provider-specific and are
		// not re-encoded for Gemini here.
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return &genai.Content{Role: role, Parts: parts}, nil
}

func encodeRole(role model.ConversationRole) (string, error) {
	switch role { //nolint:exhaustive
	case model.ConversationRoleUser:
		return "user", nil
	case model.ConversationRoleAssistant:
		return "model", nil
	default:
		return "", fmt.Errorf("gemini: unsupported message role %q", role)
	}
}

// toArgsMap coerces a JSON-compatible value into the map[string]any shape the
// genai SDK requires for function call arguments and responses.
func toArgsMap(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case string:
		raw = []byte(t)
	case []byte:
		raw = t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"value": string(raw)}, nil //nolint:nilerr
	}
	return out, nil
}

func encodeTools(_ context.Context, defs []*model.ToolDefinition) ([]*genai.Tool, map[string]string, map[string]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	canonToSan := make(map[string]string, len(defs))
	sanToCanon := make(map[string]string, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		if def.Description == "" {
			return nil, nil, nil, fmt.Errorf("gemini: tool %q is missing description", def.Name)
		}
		sanitized := sanitizeToolName(def.Name)
		if prev, ok := sanToCanon[sanitized]; ok && prev != def.Name {
			return nil, nil, nil, fmt.Errorf(
				"gemini: tool name %q sanitizes to %q which collides with %q",
				def.Name, sanitized, prev,
			)
		}
		sanToCanon[sanitized] = def.Name
		canonToSan[def.Name] = sanitized
		schema, err := toSchema(def.InputSchema)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("gemini: tool %q schema: %w", def.Name, err)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        sanitized,
			Description: def.Description,
			Parameters:  schema,
		})
	}
	if len(decls) == 0 {
		return nil, nil, nil, nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, canonToSan, sanToCanon, nil
}

// toSchema converts a JSON Schema document (as stored on ToolDefinition) into
// the genai.Schema shape. Gemini's function-calling schema is a constrained
// subset of JSON Schema; only the fields it documents are translated, and
// anything else is dropped rather than rejected so tool definitions authored
// against the broader JSON Schema vocabulary still register.
func toSchema(raw any) (*genai.Schema, error) {
	if raw == nil {
		return &genai.Schema{Type: genai.TypeObject}, nil
	}
	var data []byte
	switch v := raw.(type) {
	case json.RawMessage:
		data = v
	default:
		d, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = d
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return schemaFromMap(doc), nil
}

func schemaFromMap(doc map[string]any) *genai.Schema {
	s := &genai.Schema{Type: schemaType(doc["type"])}
	if desc, ok := doc["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = schemaFromMap(pm)
			}
		}
	}
	if req, ok := doc["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if items, ok := doc["items"].(map[string]any); ok {
		s.Items = schemaFromMap(items)
	}
	return s
}

func schemaType(v any) genai.Type {
	s, _ := v.(string)
	switch s {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeObject
	}
}

func encodeToolChoice(choice *model.ToolChoice, canonToProv map[string]string, defs []*model.ToolDefinition) (*genai.ToolConfig, error) {
	if choice == nil {
		return nil, nil
	}
	switch choice.Mode {
	case "", model.ToolChoiceModeAuto:
		return nil, nil
	case model.ToolChoiceModeNone:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingNone}}, nil
	case model.ToolChoiceModeAny:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingAny}}, nil
	case model.ToolChoiceModeTool:
		if choice.Name == "" {
			return nil, fmt.Errorf("gemini: tool choice mode %q requires a tool name", choice.Mode)
		}
		if !hasToolDefinition(defs, choice.Name) {
			return nil, fmt.Errorf("gemini: tool choice name %q does not match any tool", choice.Name)
		}
		sanitized, ok := canonToProv[choice.Name]
		if !ok || sanitized == "" {
			return nil, fmt.Errorf("gemini: tool choice name %q does not match any tool", choice.Name)
		}
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingAny,
			AllowedFunctionNames: []string{sanitized},
		}}, nil
	default:
		return nil, fmt.Errorf("gemini: unsupported tool choice mode %q", choice.Mode)
	}
}

func hasToolDefinition(defs []*model.ToolDefinition, name string) bool {
	for _, def := range defs {
		if def != nil && def.Name == name {
			return true
		}
	}
	return false
}

// sanitizeToolName maps a canonical tool identifier to the character set
// Gemini function names allow, mirroring features/model/anthropic's
// sanitizeToolName: derive the base name from the segment after the final
// '.' and replace any other disallowed rune with '_'.
func sanitizeToolName(in string) string {
	if in == "" {
		return in
	}
	base := in
	if idx := strings.LastIndex(in, "."); idx >= 0 && idx+1 < len(in) {
		base = in[idx+1:]
	}
	out := make([]rune, 0, len(base))
	for _, r := range base {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '_' || r == '-' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

func isRateLimited(err error) bool {
	return err != nil && errors.Is(err, model.ErrRateLimited)
}

// mapStopReason maps Gemini finish reasons to the canonical vocabulary shared
// with the Anthropic and OpenAI translators (§4.3).
func mapStopReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop:
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	default:
		return "stop"
	}
}

func translateResponse(resp *genai.GenerateContentResponse, nameMap map[string]string) (*model.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, errors.New("gemini: response has no candidates")
	}
	out := &model.Response{}
	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				if string(v) == "" {
					continue
				}
				out.Content = append(out.Content, model.Message{
					Role:  model.ConversationRoleAssistant,
					Parts: []model.Part{model.TextPart{Text: string(v)}},
				})
			case genai.FunctionCall:
				payload, err := json.Marshal(v.Args)
				if err != nil {
					return nil, fmt.Errorf("gemini: marshal function call args: %w", err)
				}
				name := v.Name
				if canonical, ok := nameMap[v.Name]; ok {
					name = canonical
				}
				out.ToolCalls = append(out.ToolCalls, model.ToolCall{
					Name:    tools.Ident(name),
					Payload: payload,
				})
			}
		}
	}
	if candidate.FinishReason != genai.FinishReasonUnspecified {
		out.StopReason = mapStopReason(candidate.FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = model.TokenUsage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}
