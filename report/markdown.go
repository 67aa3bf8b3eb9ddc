package report

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// renderMarkdown renders the built-in report body as HTML and converts it
// with GitHub-flavored tables.
func (r *Renderer) renderMarkdown(w io.Writer, rep Report) error {
	var buf bytes.Buffer
	if err := r.body.Execute(&buf, rep); err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	markdown, err := converter.ConvertString(buf.String())
	if err != nil {
		return fmt.Errorf("convert report to markdown: %w", err)
	}

	_, err = io.WriteString(w, cleanMarkdown(markdown)+"\n")
	return err
}

// cleanMarkdown collapses blank runs and trailing spaces left by conversion.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
