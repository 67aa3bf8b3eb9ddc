// Package main implements a mock text-generation server for offline runs of
// uiaudit. It answers all three backend wire shapes:
//
//   - POST /api/generate            local model server ({model, prompt} → {response})
//   - POST /v1/chat/completions     chat API ({model, messages} → choices[0].message.content)
//   - POST /models/{model...}       hosted inference ({inputs} → [{generated_text}])
//
// Usage:
//
//	mock-llm -port 11434 [-fixtures /path/to/fixtures]
//
// Fixture files are plain text named by model (e.g., "llama3.2.txt" maps to
// model "llama3.2"); the file content is returned as the reply. Numbered
// files ("llama3.2@1.txt", "llama3.2@2.txt") are returned in call order,
// then the base file repeats. A "/" in a model name is spelled "_" in its
// fixture file name. Models without fixtures get a rule-based verdict
// computed from the prompt.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- Wire types ---

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

type inferenceResult struct {
	GeneratedText string `json:"generated_text"`
}

// --- Server ---

// capturedRequest stores the key fields of an incoming request for test verification.
type capturedRequest struct {
	Model     string `json:"model"`
	API       string `json:"api"`
	Prompt    string `json:"prompt"`
	CallIndex int    `json:"call_index"` // 1-indexed per-model call number
	Timestamp int64  `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string // model name → ordered fixture contents (sequential)
	calls    atomic.Int64        // total calls served

	// Per-model call counters for sequential fixture selection.
	modelCalls   map[string]*atomic.Int64
	modelCallsMu sync.Mutex // protects lazy init of modelCalls entries

	// Per-model request capture for prompt verification.
	modelRequests   map[string][]capturedRequest
	modelRequestsMu sync.Mutex
}

func newServer(fixtures map[string][]string) *server {
	if fixtures == nil {
		fixtures = make(map[string][]string)
	}
	return &server{
		fixtures:      fixtures,
		modelCalls:    make(map[string]*atomic.Int64),
		modelRequests: make(map[string][]capturedRequest),
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("POST /models/{model...}", s.handleInference)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /requests", s.handleRequests)
	return mux
}

// getModelCounter returns the call counter for a model, creating it lazily.
func (s *server) getModelCounter(model string) *atomic.Int64 {
	s.modelCallsMu.Lock()
	defer s.modelCallsMu.Unlock()
	if c, ok := s.modelCalls[model]; ok {
		return c
	}
	c := &atomic.Int64{}
	s.modelCalls[model] = c
	return c
}

// reply selects the fixture for this call, or judges the prompt when the
// model has none, and records the request.
func (s *server) reply(api, model, prompt string) string {
	callNum := s.calls.Add(1)
	callIndex := int(s.getModelCounter(model).Add(1) - 1) // 0-indexed

	s.modelRequestsMu.Lock()
	s.modelRequests[model] = append(s.modelRequests[model], capturedRequest{
		Model:     model,
		API:       api,
		Prompt:    prompt,
		CallIndex: callIndex + 1,
		Timestamp: time.Now().UnixMilli(),
	})
	s.modelRequestsMu.Unlock()

	seq, ok := s.fixtures[strings.ReplaceAll(model, "/", "_")]
	if !ok {
		log.Printf("[call %d] api=%s model=%s judged from prompt", callNum, api, model)
		return judge(prompt)
	}

	log.Printf("[call %d] api=%s model=%s call_index=%d/%d", callNum, api, model, callIndex+1, len(seq))
	if callIndex < len(seq) {
		return seq[callIndex]
	}
	return seq[len(seq)-1] // repeat last fixture
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, `{"error":"prompt is required"}`, http.StatusBadRequest)
		return
	}

	writeJSON(w, generateResponse{
		Model:    req.Model,
		Response: s.reply("generate", req.Model, req.Prompt),
		Done:     true,
	})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	var prompt string
	for _, m := range req.Messages {
		if m.Role == "user" {
			prompt = m.Content
		}
	}
	if prompt == "" {
		http.Error(w, "no user message", http.StatusBadRequest)
		return
	}

	content := s.reply("chat", req.Model, prompt)
	writeJSON(w, chatResponse{
		ID:      fmt.Sprintf("mock-%d", s.calls.Load()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	})
}

func (s *server) handleInference(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")

	var req inferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Inputs == "" {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": "inputs is required"})
		return
	}

	writeJSON(w, []inferenceResult{{GeneratedText: s.reply("inference", model, req.Inputs)}})
}

// handleStats returns call counts for test assertions.
// Returns total_calls and per-model calls_by_model breakdown.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.modelCallsMu.Lock()
	callsByModel := make(map[string]int64, len(s.modelCalls))
	for model, counter := range s.modelCalls {
		callsByModel[model] = counter.Load()
	}
	s.modelCallsMu.Unlock()

	writeJSON(w, map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_model": callsByModel,
	})
}

// handleRequests returns captured requests for test assertions.
// Query params:
//   - model: filter by model name (optional, returns all models if omitted)
//   - call: filter by call index, 1-indexed (optional)
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	callIdx, callErr := strconv.Atoi(r.URL.Query().Get("call"))

	s.modelRequestsMu.Lock()
	result := make(map[string][]capturedRequest)
	for model, reqs := range s.modelRequests {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		for _, req := range reqs {
			if callErr == nil && req.CallIndex != callIdx {
				continue
			}
			result[model] = append(result[model], req)
		}
	}
	s.modelRequestsMu.Unlock()

	writeJSON(w, map[string]any{"requests_by_model": result})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// numberedFileRe matches files like "llama3.2@1.txt", "gpt-3.5-turbo@2.txt".
var numberedFileRe = regexp.MustCompile(`^(.+)@(\d+)\.txt$`)

// loadFixtures reads .txt files from dir and returns a map of model→reply sequence.
//
// For each model, fixtures are ordered:
//  1. Numbered files (model@1.txt, model@2.txt, ...) in numeric order
//  2. Base file (model.txt) appended as the final fallback
func loadFixtures(dir string) (map[string][]string, error) {
	baseFiles := make(map[string]string)             // model → content
	numberedFiles := make(map[string]map[int]string) // model → {index → content}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		content := strings.TrimRight(string(data), "\n")

		// Check for numbered pattern: model@N.txt
		if matches := numberedFileRe.FindStringSubmatch(entry.Name()); matches != nil {
			model := matches[1]
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[model] == nil {
				numberedFiles[model] = make(map[int]string)
			}
			numberedFiles[model][index] = content
			continue
		}

		baseFiles[strings.TrimSuffix(entry.Name(), ".txt")] = content
	}

	fixtures := make(map[string][]string)
	for model, numbered := range numberedFiles {
		indices := make([]int, 0, len(numbered))
		for idx := range numbered {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		for _, idx := range indices {
			fixtures[model] = append(fixtures[model], numbered[idx])
		}
	}
	for model, base := range baseFiles {
		fixtures[model] = append(fixtures[model], base)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture reply files")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	// Allow env var override
	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}

	var fixtures map[string][]string
	if *fixtureDir != "" {
		loaded, err := loadFixtures(*fixtureDir)
		if err != nil {
			log.Fatalf("Failed to load fixtures from %s: %v", *fixtureDir, err)
		}
		fixtures = loaded
		log.Printf("Loaded %d model(s) from %s", len(fixtures), *fixtureDir)
	}

	s := newServer(fixtures)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock LLM server listening on %s", addr)
	if err := http.ListenAndServe(addr, s.routes()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
