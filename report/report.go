// Package report renders audit results as an HTML dashboard, Markdown or JSON.
//
// Rows are rendered in the order given; nothing here sorts or deduplicates.
// Rendering is deterministic: the same rows always produce the same bytes.
package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360studio/uiaudit/extract"
	"github.com/c360studio/uiaudit/verdict"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

const (
	defaultTemplateName = "dashboard.html"
	bodyTemplateName    = "report-body"
	defaultTitle        = "UI Compliance Report"
)

// Format selects the output encoding.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates a format name. Empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown report format %q (expected html, markdown or json)", s)
}

// Extension returns the conventional file extension, with dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	}
	return ".html"
}

// Row joins one extracted element with its verdict.
type Row struct {
	ElementType string `json:"element_type"`
	ElementText string `json:"element_text"`
	LineNumber  int    `json:"line_number,omitempty"`
	ParentTag   string `json:"parent_tag,omitempty"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
	Suggestion  string `json:"suggestion"`
	StatusClass string `json:"status_class"`
}

// NewRow builds the report row for el and v.
func NewRow(el extract.Element, v verdict.Verdict) Row {
	return Row{
		ElementType: el.Type,
		ElementText: el.Text,
		LineNumber:  el.LineNumber,
		ParentTag:   el.ParentTag,
		Status:      string(v.Status),
		Reason:      v.Reason,
		Suggestion:  v.Suggestion,
		StatusClass: v.StatusClass,
	}
}

// Summary counts rows per status class.
type Summary struct {
	Total        int `json:"total"`
	Compliant    int `json:"compliant"`
	NeedsReview  int `json:"needs_review"`
	NonCompliant int `json:"non_compliant"`
	// Other counts Unknown and unrecognized statuses.
	Other int `json:"other"`
}

// Summarize counts rows by status class.
func Summarize(rows []Row) Summary {
	s := Summary{Total: len(rows)}
	for _, row := range rows {
		switch row.StatusClass {
		case verdict.ClassCompliant:
			s.Compliant++
		case verdict.ClassNeedsReview:
			s.NeedsReview++
		case verdict.ClassNonCompliant:
			s.NonCompliant++
		default:
			s.Other++
		}
	}
	return s
}

// Report is the data handed to templates.
type Report struct {
	Title   string  `json:"title"`
	Source  string  `json:"source"`
	Results []Row   `json:"results"`
	Summary Summary `json:"summary"`
}

// New assembles a Report for rows extracted from source.
func New(source string, rows []Row) Report {
	return Report{
		Title:   defaultTitle,
		Source:  source,
		Results: rows,
		Summary: Summarize(rows),
	}
}

// Renderer renders reports in one format.
type Renderer struct {
	format Format
	page   *template.Template
	body   *template.Template
}

// NewRenderer creates a renderer. templatePath overrides the built-in HTML
// dashboard; a configured template that cannot be loaded is an error.
func NewRenderer(format Format, templatePath string) (*Renderer, error) {
	builtin, err := template.ParseFS(templateFS, "templates/"+defaultTemplateName)
	if err != nil {
		return nil, fmt.Errorf("parse built-in template: %w", err)
	}

	r := &Renderer{format: format, page: builtin, body: builtin.Lookup(bodyTemplateName)}

	if templatePath != "" {
		custom, err := template.ParseFiles(templatePath)
		if err != nil {
			return nil, fmt.Errorf("load template: %w", err)
		}
		r.page = custom
	}

	return r, nil
}

// Format returns the renderer's output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render writes rep to w.
func (r *Renderer) Render(w io.Writer, rep Report) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatMarkdown:
		return r.renderMarkdown(w, rep)
	default:
		if err := r.page.Execute(w, rep); err != nil {
			return fmt.Errorf("render template: %w", err)
		}
		return nil
	}
}

// WriteFile renders rep and writes it to path, replacing any existing file.
// Nothing is written if rendering fails.
func (r *Renderer) WriteFile(path string, rep Report) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, rep); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
