package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	elementTextRe = regexp.MustCompile(`(?m)^Element Text: (.*)$`)
	prohibitedRe  = regexp.MustCompile(`(?m)^- Prohibited terms: (.*)$`)
	quotedRe      = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
)

// judge produces a deterministic compliance reply for an audit prompt: an
// element whose text contains a prohibited term (case-insensitive) is
// Non-Compliant, anything else is Compliant. Prompts it cannot read get a
// Needs Review reply.
func judge(prompt string) string {
	m := elementTextRe.FindStringSubmatch(prompt)
	if m == nil {
		return reply("Needs Review", "prompt did not name an element", "")
	}
	text := strings.ToLower(m[1])

	if pm := prohibitedRe.FindStringSubmatch(prompt); pm != nil {
		for _, term := range parseList(pm[1]) {
			if term != "" && strings.Contains(text, strings.ToLower(term)) {
				return reply("Non-Compliant",
					fmt.Sprintf("contains prohibited term '%s'", term),
					fmt.Sprintf("remove '%s' from the element text", term))
			}
		}
	}
	return reply("Compliant", "no prohibited terms found", "")
}

func reply(status, reason, suggestion string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Compliance Status: %s\n", status)
	fmt.Fprintf(&sb, "Reason: %s\n", reason)
	if suggestion != "" {
		fmt.Fprintf(&sb, "Suggested Correction: %s\n", suggestion)
	}
	return sb.String()
}

// parseList reads a bracketed list of Go-quoted strings.
func parseList(s string) []string {
	var items []string
	for _, q := range quotedRe.FindAllString(s, -1) {
		if v, err := strconv.Unquote(q); err == nil {
			items = append(items, v)
		}
	}
	return items
}
