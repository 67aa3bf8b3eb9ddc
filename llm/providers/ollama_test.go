package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/c360studio/uiaudit/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_BuildURL(t *testing.T) {
	p := &OllamaProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses default",
			baseURL: "",
			want:    "http://localhost:11434/api/generate",
		},
		{
			name:    "custom base URL",
			baseURL: "http://myserver:8080",
			want:    "http://myserver:8080/api/generate",
		},
		{
			name:    "trailing slash handled",
			baseURL: "http://localhost:11434/",
			want:    "http://localhost:11434/api/generate",
		},
		{
			name:    "already has endpoint",
			baseURL: "http://localhost:11434/api/generate",
			want:    "http://localhost:11434/api/generate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL, "llama3.2"))
		})
	}
}

func TestOllamaProvider_BuildRequestBody(t *testing.T) {
	p := &OllamaProvider{}

	body, err := p.BuildRequestBody("llama3.2", llm.Request{Prompt: "Check this"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "llama3.2", decoded["model"])
	assert.Equal(t, "Check this", decoded["prompt"])
	assert.Equal(t, false, decoded["stream"])
	assert.NotContains(t, decoded, "options")
	assert.NotContains(t, decoded, "system")
}

func TestOllamaProvider_BuildRequestBody_Options(t *testing.T) {
	p := &OllamaProvider{}

	temp := 0.0
	body, err := p.BuildRequestBody("llama3.2", llm.Request{Prompt: "x", Temperature: &temp, MaxTokens: 512})
	require.NoError(t, err)

	assert.Contains(t, string(body), `"options":{"temperature":0,"num_predict":512}`)
}

func TestOllamaProvider_ParseResponse(t *testing.T) {
	p := &OllamaProvider{}

	t.Run("response text", func(t *testing.T) {
		resp, err := p.ParseResponse([]byte(`{"model":"llama3.2","response":"Compliance Status: Compliant","done":true,"done_reason":"stop"}`))
		require.NoError(t, err)
		assert.Equal(t, "Compliance Status: Compliant", resp.Content)
		assert.Equal(t, "llama3.2", resp.Model)
		assert.Equal(t, "stop", resp.FinishReason)
	})

	t.Run("error field", func(t *testing.T) {
		_, err := p.ParseResponse([]byte(`{"error":"model not found"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not found")
	})

	t.Run("missing response", func(t *testing.T) {
		_, err := p.ParseResponse([]byte(`{"done":true}`))
		require.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := p.ParseResponse([]byte(`not json`))
		require.Error(t, err)
	})
}

func TestOllamaProvider_SetHeaders(t *testing.T) {
	p := &OllamaProvider{}

	req, _ := http.NewRequest("POST", "http://localhost:11434/api/generate", nil)
	p.SetHeaders(req, "")
	assert.Empty(t, req.Header.Get("Authorization"))

	p.SetHeaders(req, "proxy-token")
	assert.Equal(t, "Bearer proxy-token", req.Header.Get("Authorization"))
}
