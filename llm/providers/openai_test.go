package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/c360studio/uiaudit/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Name(t *testing.T) {
	p := &OpenAIProvider{}
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "OPENAI_API_KEY", p.APIKeyEnv())
}

func TestOpenAIProvider_BuildURL(t *testing.T) {
	p := &OpenAIProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses default",
			baseURL: "",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "custom base URL (OpenRouter)",
			baseURL: "https://openrouter.ai/api/v1",
			want:    "https://openrouter.ai/api/v1/chat/completions",
		},
		{
			name:    "trailing slash handled",
			baseURL: "https://api.openai.com/v1/",
			want:    "https://api.openai.com/v1/chat/completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL, "gpt-3.5-turbo"))
		})
	}
}

func TestOpenAIProvider_SetHeaders(t *testing.T) {
	p := &OpenAIProvider{}

	t.Run("sets authorization header", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "https://api.openai.com/v1/chat/completions", nil)
		p.SetHeaders(req, "test-api-key")
		assert.Equal(t, "Bearer test-api-key", req.Header.Get("Authorization"))
	})

	t.Run("sets OpenRouter headers when env vars present", func(t *testing.T) {
		t.Setenv("OPENROUTER_SITE_URL", "https://myapp.com")
		t.Setenv("OPENROUTER_SITE_NAME", "My App")

		req, _ := http.NewRequest("POST", "https://openrouter.ai/api/v1/chat/completions", nil)
		p.SetHeaders(req, "")

		assert.Empty(t, req.Header.Get("Authorization"))
		assert.Equal(t, "https://myapp.com", req.Header.Get("HTTP-Referer"))
		assert.Equal(t, "My App", req.Header.Get("X-Title"))
	})
}

func TestOpenAIProvider_BuildRequestBody(t *testing.T) {
	p := &OpenAIProvider{}

	body, err := p.BuildRequestBody("gpt-3.5-turbo", llm.Request{Prompt: "Check this", MaxTokens: 512})
	require.NoError(t, err)

	var decoded chatRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "gpt-3.5-turbo", decoded.Model)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "You are a helpful assistant."}, decoded.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "Check this"}, decoded.Messages[1])
	require.NotNil(t, decoded.MaxTokens)
	assert.Equal(t, 512, *decoded.MaxTokens)
	assert.Nil(t, decoded.Temperature)
}

func TestOpenAIProvider_BuildRequestBody_CustomSystem(t *testing.T) {
	p := &OpenAIProvider{}

	body, err := p.BuildRequestBody("m", llm.Request{Prompt: "x", System: "You audit UIs."})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"content":"You audit UIs."`)
	assert.NotContains(t, string(body), "max_tokens")
}

func TestOpenAIProvider_ParseResponse(t *testing.T) {
	p := &OpenAIProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"id": "chatcmpl-1",
		"model": "gpt-3.5-turbo",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Reason: fine"}, "finish_reason": "stop"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Reason: fine", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)

	_, err = p.ParseResponse([]byte(`{"choices": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
