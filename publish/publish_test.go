package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/uiaudit/report"
)

type message struct {
	subject string
	data    []byte
}

type recordingConn struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (c *recordingConn) Publish(subj string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, message{subject: subj, data: data})
	return nil
}

func TestPublishRow_SubjectByStatusClass(t *testing.T) {
	conn := &recordingConn{}
	p := New(conn, "audit")

	ctx := context.Background()
	require.NoError(t, p.PublishRow(ctx, "run-1", "input_ui.html", 0,
		report.Row{ElementType: "button", ElementText: "Submit Now", Status: "Non-Compliant", StatusClass: "non-compliant"}))
	require.NoError(t, p.PublishRow(ctx, "run-1", "input_ui.html", 1,
		report.Row{ElementType: "label", ElementText: "Email Address", Status: "Unknown"}))

	require.Len(t, conn.messages, 2)
	assert.Equal(t, "audit.non-compliant", conn.messages[0].subject)
	assert.Equal(t, "audit.unknown", conn.messages[1].subject)

	var event RowEvent
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &event))
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "input_ui.html", event.Input)
	assert.Equal(t, 0, event.Index)
	assert.Equal(t, "Submit Now", event.Row.ElementText)
}

func TestPublishSummary(t *testing.T) {
	conn := &recordingConn{}
	p := New(conn, "")
	assert.Equal(t, DefaultSubject, p.Subject())

	summary := report.Summary{Total: 2, Compliant: 1, Other: 1}
	require.NoError(t, p.PublishSummary(context.Background(), "run-2", "a.html", "a.report.html", summary))

	require.Len(t, conn.messages, 1)
	assert.Equal(t, DefaultSubject+".summary", conn.messages[0].subject)

	var event SummaryEvent
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &event))
	assert.Equal(t, summary, event.Summary)
	assert.Equal(t, "a.report.html", event.Output)
}

func TestPublish_ConnError(t *testing.T) {
	conn := &recordingConn{err: errors.New("nats: connection closed")}
	p := New(conn, "audit")

	err := p.PublishRow(context.Background(), "run", "x.html", 0, report.Row{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit.unknown")
	assert.Contains(t, err.Error(), "connection closed")
}

func TestPublish_CancelledContext(t *testing.T) {
	conn := &recordingConn{}
	p := New(conn, "audit")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PublishRow(ctx, "run", "x.html", 0, report.Row{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.messages)
}

func TestClose_NonNATSConnIsNoop(t *testing.T) {
	p := New(&recordingConn{}, "audit")
	assert.NotPanics(t, p.Close)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "audit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to NATS")
}
