package providers

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/uiaudit/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuggingFaceProvider_BuildURL(t *testing.T) {
	p := &HuggingFaceProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses hosted inference with model",
			baseURL: "",
			want:    "https://api-inference.huggingface.co/models/HuggingFaceH4/zephyr-7b-beta",
		},
		{
			name:    "models base gets model appended",
			baseURL: "http://localhost:8080/models/",
			want:    "http://localhost:8080/models/HuggingFaceH4/zephyr-7b-beta",
		},
		{
			name:    "dedicated endpoint used as is",
			baseURL: "https://xyz.endpoints.huggingface.cloud",
			want:    "https://xyz.endpoints.huggingface.cloud",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL, "HuggingFaceH4/zephyr-7b-beta"))
		})
	}
}

func TestHuggingFaceProvider_BuildRequestBody(t *testing.T) {
	p := &HuggingFaceProvider{}

	body, err := p.BuildRequestBody("ignored", llm.Request{Prompt: "Check this", MaxTokens: 512})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "Check this", decoded["inputs"])
	assert.Equal(t, map[string]any{"max_new_tokens": float64(512), "return_full_text": false}, decoded["parameters"])
}

func TestHuggingFaceProvider_BuildRequestBody_FoldsSystem(t *testing.T) {
	p := &HuggingFaceProvider{}

	body, err := p.BuildRequestBody("m", llm.Request{Prompt: "Check", System: "Be brief."})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"inputs":"Be brief.\n\nCheck"`)
}

func TestHuggingFaceProvider_ParseResponse(t *testing.T) {
	p := &HuggingFaceProvider{}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{
			name: "list of generations",
			body: `[{"generated_text": "Compliance Status: Compliant"}]`,
			want: "Compliance Status: Compliant",
		},
		{
			name: "single object",
			body: `{"generated_text": "Reason: ok"}`,
			want: "Reason: ok",
		},
		{
			name:    "error object",
			body:    `{"error": "Model is currently loading"}`,
			wantErr: "Model is currently loading",
		},
		{
			name:    "empty list",
			body:    `[]`,
			wantErr: "no generated_text",
		},
		{
			name:    "list without generated_text",
			body:    `[{"summary_text": "x"}]`,
			wantErr: "no generated_text",
		},
		{
			name:    "malformed",
			body:    `<html>`,
			wantErr: "parse huggingface response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := p.ParseResponse([]byte(tt.body))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Content)
		})
	}
}
