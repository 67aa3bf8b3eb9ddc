// Package publish emits audit results as NATS messages.
//
// Each report row goes to "<subject>.<status class>" (an empty class is sent
// as "unknown") and the per-page summary to "<subject>.summary". Payloads
// are JSON.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/uiaudit/report"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "uiaudit.verdicts"

// Conn is the part of a NATS connection the publisher needs.
// *nats.Conn satisfies it.
type Conn interface {
	Publish(subj string, data []byte) error
}

// RowEvent is published for every report row.
type RowEvent struct {
	RunID string     `json:"run_id"`
	Input string     `json:"input"`
	Index int        `json:"index"`
	Row   report.Row `json:"row"`
}

// SummaryEvent is published once per audited page.
type SummaryEvent struct {
	RunID   string         `json:"run_id"`
	Input   string         `json:"input"`
	Output  string         `json:"output"`
	Summary report.Summary `json:"summary"`
}

// Publisher sends events on a subject prefix.
type Publisher struct {
	conn    Conn
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Publisher on an existing connection.
func New(conn Conn, subject string, opts ...Option) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	p := &Publisher{
		conn:    conn,
		subject: subject,
		logger:  slog.Default(),
	}
	if nc, ok := conn.(*nats.Conn); ok {
		p.nc = nc
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials the NATS server at url and returns a Publisher that owns
// the connection.
func Connect(url, subject string, opts ...Option) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("uiaudit"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return New(conn, subject, opts...), nil
}

// Subject returns the subject prefix.
func (p *Publisher) Subject() string {
	return p.subject
}

// PublishRow publishes one report row.
func (p *Publisher) PublishRow(ctx context.Context, runID, input string, index int, row report.Row) error {
	class := row.StatusClass
	if class == "" {
		class = "unknown"
	}
	return p.publish(ctx, p.subject+"."+class, RowEvent{
		RunID: runID,
		Input: input,
		Index: index,
		Row:   row,
	})
}

// PublishSummary publishes the summary for one page.
func (p *Publisher) PublishSummary(ctx context.Context, runID, input, output string, summary report.Summary) error {
	return p.publish(ctx, p.subject+".summary", SummaryEvent{
		RunID:   runID,
		Input:   input,
		Output:  output,
		Summary: summary,
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	p.logger.Debug("Published event", "subject", subject, "bytes", len(data))
	return nil
}

// Close flushes pending messages and closes an owned NATS connection.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("NATS drain failed", "error", err)
	}
	p.nc.Close()
}
