package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/c360studio/uiaudit/adjudicator"
	"github.com/c360studio/uiaudit/config"
	"github.com/c360studio/uiaudit/llm"
	"github.com/c360studio/uiaudit/metrics"
	"github.com/c360studio/uiaudit/pipeline"
	"github.com/c360studio/uiaudit/policy"
	"github.com/c360studio/uiaudit/publish"
	"github.com/c360studio/uiaudit/report"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// app holds the components of one configured audit.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	pipeline  *pipeline.Pipeline
	metrics   *metrics.Recorder
	publisher *publish.Publisher
}

// loadConfig layers config files, then applies flag overrides on top.
func loadConfig(g *globalFlags, override *config.Config) (*config.Config, error) {
	cfg, err := config.NewLoader(slog.Default()).Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newClient builds the backend client described by cfg.
func newClient(cfg *config.Config, logger *slog.Logger) (*llm.Client, error) {
	ep := llm.Endpoint{
		Provider: cfg.Backend.Provider,
		URL:      cfg.Backend.URL,
		Model:    cfg.Backend.ResolvedModel(),
	}
	if cfg.Backend.APIKeyEnv != "" {
		ep.APIKey = os.Getenv(cfg.Backend.APIKeyEnv)
	}

	return llm.NewClient(ep,
		llm.WithTimeout(cfg.Backend.Timeout),
		llm.WithRetryConfig(cfg.Retry),
		llm.WithMaxTokens(cfg.Backend.MaxTokens),
		llm.WithTemperature(cfg.Backend.Temperature),
		llm.WithLogger(logger),
	)
}

// loadPolicy reads the configured policy file, or returns the built-in
// sample policy when none is set.
func loadPolicy(cfg *config.Config) (policy.Policy, error) {
	if cfg.Policy == "" {
		return policy.Default(), nil
	}
	return policy.LoadFromFile(cfg.Policy)
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	renderer, err := report.NewRenderer(format, cfg.Template)
	if err != nil {
		return nil, err
	}

	rec := metrics.NewRecorder()
	adj := adjudicator.New(client,
		adjudicator.WithLogger(logger),
		adjudicator.WithObserver(rec),
	)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
	}

	opts := []pipeline.Option{
		pipeline.WithExtractOptions(cfg.Extract),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithFetcher(cfg.Fetcher()),
		pipeline.WithObserver(rec),
		pipeline.WithLogger(logger),
	}
	if cfg.NATS.URL != "" {
		pub, err := publish.Connect(cfg.NATS.URL, cfg.NATS.Subject, publish.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		opts = append(opts, pipeline.WithPublisher(pub))
		logger.Info("Publishing verdicts", "url", cfg.NATS.URL, "subject", pub.Subject())
	}

	a.pipeline = pipeline.New(adj, renderer, opts...)
	return a, nil
}

// check audits every configured input and prints one line per report.
func (a *app) check(ctx context.Context, out io.Writer) ([]pipeline.Result, error) {
	pol, err := loadPolicy(a.cfg)
	if err != nil {
		return nil, err
	}

	results, runErr := a.pipeline.RunAll(ctx, a.cfg.Input, pol, a.cfg.Output)
	for _, res := range results {
		fmt.Fprintf(out, "✅ Compliance report generated: %s\n", res.Output)
		fmt.Fprintf(out, "   %s\n", summaryLine(res.Summary))
	}

	if a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Warn("Failed to write metrics", "path", a.cfg.Metrics.Textfile, "error", err)
		}
	}
	return results, runErr
}

func (a *app) close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
}

func summaryLine(s report.Summary) string {
	line := fmt.Sprintf("%d elements: %d compliant, %d needs review, %d non-compliant, %d unknown",
		s.Total, s.Compliant, s.NeedsReview, s.NonCompliant, s.Other)
	switch {
	case s.NonCompliant > 0:
		return failStyle.Render(line)
	case s.Total > 0 && s.Compliant == s.Total:
		return okStyle.Render(line)
	default:
		return dimStyle.Render(line)
	}
}
