package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/uiaudit/llm"
)

const huggingFaceBaseURL = "https://api-inference.huggingface.co/models"

// HuggingFaceProvider implements the hosted inference text-generation API.
type HuggingFaceProvider struct{}

func init() {
	llm.RegisterProvider(&HuggingFaceProvider{})
}

// Name returns the provider identifier.
func (h *HuggingFaceProvider) Name() string {
	return "huggingface"
}

// APIKeyEnv names the conventional credential variable.
func (h *HuggingFaceProvider) APIKeyEnv() string {
	return "HF_API_TOKEN"
}

// BuildURL appends the model to a ".../models" base. Any other base URL is
// taken to be a dedicated endpoint and used as is.
func (h *HuggingFaceProvider) BuildURL(baseURL, model string) string {
	if baseURL == "" {
		baseURL = huggingFaceBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/models") {
		return baseURL + "/" + model
	}
	return baseURL
}

// SetHeaders adds bearer authentication.
func (h *HuggingFaceProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

// BuildRequestBody creates the inference request. The model travels in the
// URL, and System is folded into the prompt since the API has no slot for it.
// The prompt is not echoed back: its instructions name the reply markers and
// would otherwise be matched before the model's own answer.
func (h *HuggingFaceProvider) BuildRequestBody(_ string, req llm.Request) ([]byte, error) {
	inputs := req.Prompt
	if req.System != "" {
		inputs = req.System + "\n\n" + req.Prompt
	}

	return json.Marshal(hfRequest{
		Inputs: inputs,
		Parameters: hfParameters{
			MaxNewTokens: req.MaxTokens,
			Temperature:  req.Temperature,
		},
	})
}

type hfGeneration struct {
	GeneratedText *string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// ParseResponse reads generated_text from the first result. The API answers
// with a list on success and an object carrying "error" otherwise.
func (h *HuggingFaceProvider) ParseResponse(body []byte) (*llm.Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var e hfError
		if err := json.Unmarshal(trimmed, &e); err == nil && e.Error != "" {
			return nil, fmt.Errorf("huggingface error: %s", e.Error)
		}
		var single hfGeneration
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("parse huggingface response: %w", err)
		}
		if single.GeneratedText == nil {
			return nil, fmt.Errorf("no generated_text in response")
		}
		return &llm.Response{Content: *single.GeneratedText}, nil
	}

	var results []hfGeneration
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil, fmt.Errorf("parse huggingface response: %w", err)
	}
	if len(results) == 0 || results[0].GeneratedText == nil {
		return nil, fmt.Errorf("no generated_text in response")
	}

	return &llm.Response{Content: *results[0].GeneratedText}, nil
}
