package responses

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemMarshalJSON_IncludesTypeDiscriminator(t *testing.T) {
	cases := []struct {
		name string
		item Item
		want string
	}{
		{"message", &Message{Role: "user", Parts: []ContentPart{InputText{Text: "hi"}}}, "message"},
		{"function_call", &FunctionCall{Name: "lookup", Arguments: "{}", CallID: "call_1"}, "function_call"},
		{"function_call_output", &FunctionCallOutput{CallID: "call_1", Output: "42"}, "function_call_output"},
		{"web_search_call", &WebSearchCall{Query: "weather", Action: "search"}, "web_search_call"},
		{"file_search_call", &FileSearchCall{Query: "invoice"}, "file_search_call"},
		{"mcp_list_tools", &McpListTools{ServerLabel: "files"}, "mcp_list_tools"},
		{"mcp_approval_request", &McpApprovalRequest{}, "mcp_approval_request"},
		{"mcp_approval_response", &McpApprovalResponse{}, "mcp_approval_response"},
		{"mcp_call", &McpCall{}, "mcp_call"},
		{"reasoning", &Reasoning{}, "reasoning"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.item)
			require.NoError(t, err)

			var m map[string]any
			require.NoError(t, json.Unmarshal(b, &m))
			assert.Equal(t, tc.want, m["type"])
			assert.Equal(t, tc.item.ItemType(), tc.want)
		})
	}
}

func TestContentPartMarshalJSON_IncludesTypeDiscriminator(t *testing.T) {
	cases := []struct {
		name string
		part ContentPart
		want string
	}{
		{"input_text", InputText{Text: "hi"}, "input_text"},
		{"output_text", OutputText{Text: "hi"}, "output_text"},
		{"input_image", InputImage{}, "input_image"},
		{"refusal", Refusal{}, "refusal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.part)
			require.NoError(t, err)

			var m map[string]any
			require.NoError(t, json.Unmarshal(b, &m))
			assert.Equal(t, tc.want, m["type"])
		})
	}
}

func TestAnnotationMarshalJSON_IncludesTypeDiscriminator(t *testing.T) {
	cases := []struct {
		name string
		ann  Annotation
		want string
	}{
		{"url_citation", UrlCitation{URL: "https://example.com"}, "url_citation"},
		{"file_citation", FileCitation{FileID: "file_1"}, "file_citation"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.ann)
			require.NoError(t, err)

			var m map[string]any
			require.NoError(t, json.Unmarshal(b, &m))
			assert.Equal(t, tc.want, m["type"])
		})
	}
}

func TestMessageMarshalJSON_PreservesFields(t *testing.T) {
	msg := &Message{Role: "assistant", Parts: []ContentPart{OutputText{Text: "hello"}}}
	msg.setID("msg_1")
	msg.setOutputIndex(2)

	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "message", m["type"])
	assert.Equal(t, "assistant", m["role"])
	assert.Equal(t, "msg_1", m["id"])
	assert.Equal(t, float64(2), m["output_index"])
}
