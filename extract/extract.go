package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ErrDecode is returned when a document is not valid UTF-8.
var ErrDecode = errors.New("document is not valid UTF-8")

// Element is one interactive control scraped from a page.
type Element struct {
	// Type is the tag name (label, input, select, option, button).
	Type string `json:"element_type"`

	// Text is the trimmed visible text. Never empty.
	Text string `json:"element_text"`

	// LineNumber is the approximate 1-based source line, 0 when not computed
	// or when the element could not be located in the source.
	LineNumber int `json:"line_number,omitempty"`

	// ParentTag is the nearest ancestor element's tag name, empty if none.
	ParentTag string `json:"parent_tag,omitempty"`
}

// Options selects which tags are extracted and which optional fields are filled.
type Options struct {
	Tags        []string `yaml:"tags"`
	LineNumbers bool     `yaml:"line_numbers"`
	ParentTag   bool     `yaml:"parent_tag"`
}

// DefaultTags is the general-purpose inclusion set.
var DefaultTags = []string{"label", "input", "select", "option", "button"}

// DefaultOptions returns the general-purpose extraction: all form controls,
// no position information.
func DefaultOptions() Options {
	return Options{Tags: append([]string(nil), DefaultTags...)}
}

// LineAwareOptions returns the extraction that records line numbers and
// parent tags. It leaves select out; its options are reported individually.
func LineAwareOptions() Options {
	return Options{
		Tags:        []string{"label", "input", "button", "option"},
		LineNumbers: true,
		ParentTag:   true,
	}
}

// ExtractFile reads and extracts the HTML document at path.
func ExtractFile(path string, opts Options) ([]Element, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	elements, err := Extract(source, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return elements, nil
}

// Extract parses source leniently and returns the selected elements in
// document order. Elements whose trimmed text is empty are dropped.
func Extract(source []byte, opts Options) ([]Element, error) {
	if !utf8.Valid(source) {
		return nil, ErrDecode
	}

	doc, err := html.Parse(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	tags := opts.Tags
	if len(tags) == 0 {
		tags = DefaultTags
	}
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[strings.ToLower(strings.TrimSpace(tag))] = true
	}

	raw := string(source)
	var elements []Element

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && tagSet[n.Data] {
			if text := visibleText(n); text != "" {
				el := Element{Type: n.Data, Text: text}
				if opts.LineNumbers {
					el.LineNumber = lineNumber(raw, n, text)
				}
				if opts.ParentTag {
					el.ParentTag = parentTag(n)
				}
				elements = append(elements, el)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return elements, nil
}

// visibleText concatenates all descendant text nodes and trims the result.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.TrimSpace(sb.String())
}

// lineNumber approximates the source line of n by locating the first
// occurrence of its serialized markup, falling back to its text. Repeated
// markup earlier in the document yields the earlier line.
func lineNumber(raw string, n *html.Node, text string) int {
	idx := -1
	if markup := renderNode(n); markup != "" {
		idx = strings.Index(raw, markup)
	}
	if idx < 0 {
		idx = strings.Index(raw, text)
	}
	if idx < 0 {
		return 0
	}
	return strings.Count(raw[:idx], "\n") + 1
}

func parentTag(n *html.Node) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p.Data
		}
	}
	return ""
}

// renderNode renders a node and its children back to HTML.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}
