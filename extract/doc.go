// Package extract scrapes interactive UI elements from an HTML document.
//
// Parsing is lenient (HTML5 tree construction via golang.org/x/net/html), so
// malformed markup never fails extraction. Selected elements are emitted in
// document order with their trimmed visible text; elements without visible
// text, such as bare password inputs, are dropped.
//
// # Line numbers
//
// When requested, a line number is computed by finding the first occurrence
// of the element's re-serialized markup in the raw source (falling back to
// its text) and counting the newlines before it. This is an approximation:
// when identical markup appears earlier in the document, the earlier line
// is reported, and markup the serializer normalizes differently from the
// source is located by text only.
package extract
