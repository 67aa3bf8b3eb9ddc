package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/uiaudit/llm"
)

// OllamaProvider implements the native generate API of a local Ollama server.
type OllamaProvider struct{}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// APIKeyEnv returns "" since a local server needs no credential.
func (o *OllamaProvider) APIKeyEnv() string {
	return ""
}

// BuildURL constructs the generate endpoint.
func (o *OllamaProvider) BuildURL(baseURL, _ string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/api/generate") {
		return baseURL
	}
	return baseURL + "/api/generate"
}

// SetHeaders adds a bearer token when the server sits behind an auth proxy.
func (o *OllamaProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

// BuildRequestBody creates a non-streaming generate request.
func (o *OllamaProvider) BuildRequestBody(model string, req llm.Request) ([]byte, error) {
	body := ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.Options = &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		}
	}
	return json.Marshal(body)
}

type ollamaResponse struct {
	Model      string  `json:"model"`
	Response   *string `json:"response"`
	Done       bool    `json:"done"`
	DoneReason string  `json:"done_reason"`
	Error      string  `json:"error"`
}

// ParseResponse extracts the response text.
func (o *OllamaProvider) ParseResponse(body []byte) (*llm.Response, error) {
	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", resp.Error)
	}
	if resp.Response == nil {
		return nil, fmt.Errorf("no response field in ollama response")
	}

	return &llm.Response{
		Content:      *resp.Response,
		Model:        resp.Model,
		FinishReason: resp.DoneReason,
	}, nil
}
