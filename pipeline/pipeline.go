// Package pipeline drives an audit: extract elements, adjudicate each one,
// parse the replies and render the report.
//
// Adjudication is sequential unless a concurrency above one is configured.
// Either way, rows come back in extraction order. A failed adjudication
// yields an Unknown row and the run continues; input and render errors end
// the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360studio/uiaudit/extract"
	"github.com/c360studio/uiaudit/policy"
	"github.com/c360studio/uiaudit/report"
	"github.com/c360studio/uiaudit/source"
	"github.com/c360studio/uiaudit/verdict"
)

// Adjudicator returns the raw backend reply for one element, or "" when the
// backend failed.
type Adjudicator interface {
	Adjudicate(ctx context.Context, el extract.Element, p policy.Policy) string
}

// Observer is notified of verdicts and finished pages.
type Observer interface {
	ObserveVerdict(statusClass string)
	ObservePage()
}

// Publisher receives rows and page summaries after a report is written.
type Publisher interface {
	PublishRow(ctx context.Context, runID, input string, index int, row report.Row) error
	PublishSummary(ctx context.Context, runID, input, output string, summary report.Summary) error
}

// Result describes one written report.
type Result struct {
	RunID    string
	Input    string
	Output   string
	Summary  report.Summary
	Duration time.Duration
}

// Pipeline runs audits with a fixed adjudicator and renderer.
type Pipeline struct {
	adj         Adjudicator
	renderer    *report.Renderer
	extractOpts extract.Options
	concurrency int
	observer    Observer
	publisher   Publisher
	fetcher     *source.Fetcher
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtractOptions sets the element extraction options.
func WithExtractOptions(opts extract.Options) Option {
	return func(p *Pipeline) {
		p.extractOpts = opts
	}
}

// WithConcurrency bounds the number of in-flight adjudications. Values
// below one mean sequential.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.concurrency = n
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithPublisher registers a publisher for rows and summaries.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) {
		p.publisher = pub
	}
}

// WithFetcher sets how page sources are read. The default reads files and
// fetches public HTTPS URLs.
func WithFetcher(f *source.Fetcher) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.fetcher = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pipeline.
func New(adj Adjudicator, renderer *report.Renderer, opts ...Option) *Pipeline {
	p := &Pipeline{
		adj:         adj,
		renderer:    renderer,
		extractOpts: extract.DefaultOptions(),
		concurrency: 1,
		fetcher:     source.NewFetcher(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Check extracts and adjudicates every element of the page at inputPath,
// a file path or URL. Rows are returned in extraction order.
func (p *Pipeline) Check(ctx context.Context, inputPath string, pol policy.Policy) ([]report.Row, error) {
	page, err := p.fetcher.Read(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	elements, err := extract.Extract(page, p.extractOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inputPath, err)
	}

	p.logger.Info("Extracted elements", "input", inputPath, "count", len(elements))

	rows := make([]report.Row, len(elements))

	if p.concurrency == 1 {
		for i, el := range elements {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rows[i] = p.judge(ctx, el, pol)
		}
		return rows, nil
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, el := range elements {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rows[i] = p.judge(ctx, el, pol)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *Pipeline) judge(ctx context.Context, el extract.Element, pol policy.Policy) report.Row {
	v := verdict.Parse(p.adj.Adjudicate(ctx, el, pol))
	if p.observer != nil {
		p.observer.ObserveVerdict(v.StatusClass)
	}
	return report.NewRow(el, v)
}

// Run audits the page at inputPath and writes the report to outputPath,
// replacing any existing file.
func (p *Pipeline) Run(ctx context.Context, inputPath string, pol policy.Policy, outputPath string) error {
	_, err := p.audit(ctx, inputPath, pol, outputPath)
	return err
}

// RunAll audits every page matched by pattern. With a single match output
// is the report file; with several, output is a directory and each page is
// written to its own report inside it.
func (p *Pipeline) RunAll(ctx context.Context, pattern string, pol policy.Policy, output string) ([]Result, error) {
	inputs, err := source.Resolve(pattern)
	if err != nil {
		return nil, err
	}

	if len(inputs) == 1 {
		res, err := p.audit(ctx, inputs[0].Path, pol, output)
		if err != nil {
			return nil, err
		}
		return []Result{res}, nil
	}

	ext := p.renderer.Format().Extension()
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		res, err := p.audit(ctx, in.Path, pol, source.ReportPath(output, in, ext))
		if err != nil {
			return results, fmt.Errorf("audit %s: %w", in.Path, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Pipeline) audit(ctx context.Context, inputPath string, pol policy.Policy, outputPath string) (Result, error) {
	runID := uuid.New().String()
	start := time.Now()

	p.logger.Debug("Audit started", "run_id", runID, "input", inputPath)

	rows, err := p.Check(ctx, inputPath, pol)
	if err != nil {
		return Result{}, err
	}

	rep := report.New(inputPath, rows)
	if err := p.renderer.WriteFile(outputPath, rep); err != nil {
		return Result{}, err
	}

	if p.observer != nil {
		p.observer.ObservePage()
	}
	p.publish(ctx, runID, inputPath, outputPath, rep)

	res := Result{
		RunID:    runID,
		Input:    inputPath,
		Output:   outputPath,
		Summary:  rep.Summary,
		Duration: time.Since(start),
	}

	p.logger.Info("Audit completed",
		"run_id", runID,
		"input", inputPath,
		"output", outputPath,
		"elements", rep.Summary.Total,
		"non_compliant", rep.Summary.NonCompliant,
		"duration", res.Duration)

	return res, nil
}

// publish sends rows and the summary. Failures are logged; the report is
// already on disk.
func (p *Pipeline) publish(ctx context.Context, runID, input, output string, rep report.Report) {
	if p.publisher == nil {
		return
	}
	for i, row := range rep.Results {
		if err := p.publisher.PublishRow(ctx, runID, input, i, row); err != nil {
			p.logger.Warn("Failed to publish row", "run_id", runID, "index", i, "error", err)
			return
		}
	}
	if err := p.publisher.PublishSummary(ctx, runID, input, output, rep.Summary); err != nil {
		p.logger.Warn("Failed to publish summary", "run_id", runID, "error", err)
	}
}
