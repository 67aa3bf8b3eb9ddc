// Package adjudicator asks a text-generation backend to judge one UI element
// against the policy.
//
// Backend failures never escape: they are logged and reported as an empty
// reply, which the verdict parser turns into an Unknown status. Retries and
// timeouts belong to the backend client.
package adjudicator

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360studio/uiaudit/extract"
	"github.com/c360studio/uiaudit/policy"
)

// Generator is the backend capability: prompt in, text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Observer is notified after every backend call.
type Observer interface {
	ObserveAdjudication(duration time.Duration, err error)
}

// Adjudicator judges elements one request at a time.
type Adjudicator struct {
	gen      Generator
	logger   *slog.Logger
	observer Observer
}

// Option configures an Adjudicator.
type Option func(*Adjudicator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adjudicator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithObserver registers an observer for backend calls.
func WithObserver(o Observer) Option {
	return func(a *Adjudicator) {
		a.observer = o
	}
}

// New creates an Adjudicator backed by gen.
func New(gen Generator, opts ...Option) *Adjudicator {
	a := &Adjudicator{
		gen:    gen,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Adjudicate returns the backend's raw reply for el, or "" if the call failed.
func (a *Adjudicator) Adjudicate(ctx context.Context, el extract.Element, p policy.Policy) string {
	prompt := BuildPrompt(el, p)

	start := time.Now()
	reply, err := a.gen.Generate(ctx, prompt)
	elapsed := time.Since(start)

	if a.observer != nil {
		a.observer.ObserveAdjudication(elapsed, err)
	}

	if err != nil {
		a.logger.Warn("Adjudication failed, marking element Unknown",
			"element_type", el.Type,
			"element_text", el.Text,
			"duration", elapsed,
			"error", err)
		return ""
	}

	a.logger.Debug("Adjudication completed",
		"element_type", el.Type,
		"element_text", el.Text,
		"duration", elapsed,
		"reply_len", len(reply))
	return reply
}
