// Package testutil provides test utilities for code that depends on a text
// generation backend.
package testutil

import (
	"context"
	"sync"
	"time"
)

// MockGenerator is a thread-safe scripted generator for tests.
//
// Usage:
//
//	// Same reply for every prompt
//	mock := &MockGenerator{Default: "Compliance Status: Compliant"}
//
//	// Replies in call order, then Default
//	mock := &MockGenerator{Responses: []string{"first", "second"}}
//
//	// Reply chosen by prompt content
//	mock := &MockGenerator{Reply: func(prompt string) (string, error) { ... }}
type MockGenerator struct {
	mu        sync.Mutex
	Responses []string                            // Replies returned in sequence
	Default   string                              // Reply once Responses are exhausted
	Err       error                               // Error to return (takes precedence)
	Reply     func(prompt string) (string, error) // Optional prompt-driven reply
	Delay     func(prompt string) time.Duration   // Optional per-call latency
	prompts   []string
	index     int
}

// Generate returns the next scripted reply and records the prompt.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	delay := m.Delay
	m.mu.Unlock()

	if delay != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay(prompt)):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply != nil {
		return m.Reply(prompt)
	}
	if m.index < len(m.Responses) {
		resp := m.Responses[m.index]
		m.index++
		return resp, nil
	}
	return m.Default, nil
}

// Prompts returns every prompt received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
