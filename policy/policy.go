// Package policy loads the compliance policy a page is audited against.
//
// A policy is three ordered lists of strings. Their content is never
// interpreted here; the adjudicating model reads them as natural language.
package policy

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy is the immutable set of rules handed to every adjudication.
type Policy struct {
	ProhibitedTerms         []string `yaml:"prohibited_terms" json:"prohibited_terms"`
	RequiredPhrases         []string `yaml:"required_phrases" json:"required_phrases"`
	AccessibilityGuidelines []string `yaml:"accessibility_guidelines" json:"accessibility_guidelines"`
}

// filePolicy mirrors Policy with pointer fields so a missing key can be told
// apart from an empty list.
type filePolicy struct {
	ProhibitedTerms         *[]string `yaml:"prohibited_terms"`
	RequiredPhrases         *[]string `yaml:"required_phrases"`
	AccessibilityGuidelines *[]string `yaml:"accessibility_guidelines"`
}

// Default returns the built-in sample policy used when no policy file is configured.
func Default() Policy {
	return Policy{
		ProhibitedTerms:         []string{"Superuser", "Submit Now"},
		RequiredPhrases:         []string{"Email Address", "User Role"},
		AccessibilityGuidelines: []string{"Use alt text", "Ensure contrast ratio"},
	}
}

// New returns a Policy holding copies of the given lists.
// Nil lists become empty lists.
func New(prohibited, required, accessibility []string) Policy {
	return Policy{
		ProhibitedTerms:         clone(prohibited),
		RequiredPhrases:         clone(required),
		AccessibilityGuidelines: clone(accessibility),
	}
}

// LoadFromFile reads a policy from a JSON or YAML file. All three keys must
// be present; their lists may be empty.
func LoadFromFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return Policy{}, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a policy document. JSON input is accepted since it is valid YAML.
func Parse(data []byte) (Policy, error) {
	var raw filePolicy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}

	var missing []string
	if raw.ProhibitedTerms == nil {
		missing = append(missing, "prohibited_terms")
	}
	if raw.RequiredPhrases == nil {
		missing = append(missing, "required_phrases")
	}
	if raw.AccessibilityGuidelines == nil {
		missing = append(missing, "accessibility_guidelines")
	}
	if len(missing) > 0 {
		return Policy{}, fmt.Errorf("missing required keys: %s", strings.Join(missing, ", "))
	}

	return New(*raw.ProhibitedTerms, *raw.RequiredPhrases, *raw.AccessibilityGuidelines), nil
}

// FormatList renders a list the way it is embedded in prompts: a bracketed,
// comma-separated sequence of quoted strings.
func FormatList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func clone(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}
