package adjudicator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/uiaudit/extract"
	"github.com/c360studio/uiaudit/llm/testutil"
	"github.com/c360studio/uiaudit/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []error
}

func (r *recordingObserver) ObserveAdjudication(_ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, err)
}

func TestBuildPrompt(t *testing.T) {
	el := extract.Element{Type: "button", Text: "Submit Now"}
	prompt := BuildPrompt(el, policy.Default())

	sections := []string{
		"You are a UI compliance auditor.",
		"Element Type: button\n",
		"Element Text: Submit Now\n",
		`- Prohibited terms: ["Superuser", "Submit Now"]`,
		`- Required phrases: ["Email Address", "User Role"]`,
		`- Accessibility guidelines: ["Use alt text", "Ensure contrast ratio"]`,
		"- Compliance Status: Compliant / Needs Review / Non-Compliant",
		"- Reason",
		"- Suggested Correction (if any)",
	}
	for _, section := range sections {
		assert.Contains(t, prompt, section)
	}

	assert.NotContains(t, prompt, "Line Number:")
	assert.NotContains(t, prompt, "Parent Tag:")
}

func TestBuildPrompt_PositionFields(t *testing.T) {
	el := extract.Element{Type: "option", Text: "Superuser", LineNumber: 12, ParentTag: "select"}
	prompt := BuildPrompt(el, policy.New(nil, nil, nil))

	assert.Contains(t, prompt, "Line Number: 12\n")
	assert.Contains(t, prompt, "Parent Tag: select\n")
	assert.Contains(t, prompt, "- Prohibited terms: []")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	el := extract.Element{Type: "label", Text: "Email Address"}
	assert.Equal(t, BuildPrompt(el, policy.Default()), BuildPrompt(el, policy.Default()))
}

func TestAdjudicate_ReturnsReply(t *testing.T) {
	gen := &testutil.MockGenerator{Default: "Compliance Status: Compliant"}
	obs := &recordingObserver{}
	a := New(gen, WithObserver(obs))

	el := extract.Element{Type: "label", Text: "Email Address"}
	reply := a.Adjudicate(context.Background(), el, policy.Default())

	assert.Equal(t, "Compliance Status: Compliant", reply)
	require.Len(t, gen.Prompts(), 1)
	assert.True(t, strings.Contains(gen.Prompts()[0], "Element Text: Email Address"))
	require.Len(t, obs.calls, 1)
	assert.NoError(t, obs.calls[0])
}

func TestAdjudicate_FailureYieldsEmptyReply(t *testing.T) {
	gen := &testutil.MockGenerator{Err: errors.New("backend error (status 500)")}
	obs := &recordingObserver{}
	a := New(gen, WithObserver(obs))

	reply := a.Adjudicate(context.Background(), extract.Element{Type: "button", Text: "Go"}, policy.Default())

	assert.Equal(t, "", reply)
	require.Len(t, obs.calls, 1)
	assert.Error(t, obs.calls[0])
}

func TestAdjudicate_CancelledContext(t *testing.T) {
	gen := &testutil.MockGenerator{
		Default: "late",
		Delay:   func(string) time.Duration { return time.Second },
	}
	a := New(gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, "", a.Adjudicate(ctx, extract.Element{Type: "button", Text: "Go"}, policy.Default()))
}
