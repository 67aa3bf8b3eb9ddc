package adjudicator

import (
	"fmt"
	"strings"

	"github.com/c360studio/uiaudit/extract"
	"github.com/c360studio/uiaudit/policy"
	"github.com/c360studio/uiaudit/verdict"
)

// BuildPrompt returns the natural-language prompt asking the model to judge
// one element against the policy. Line number and parent tag are included
// only when the element carries them.
func BuildPrompt(el extract.Element, p policy.Policy) string {
	var sb strings.Builder

	sb.WriteString("You are a UI compliance auditor. Check if the following UI element text complies with company policy.\n")
	fmt.Fprintf(&sb, "Check whether its text contains any prohibited terms from this list: %s.\n", policy.FormatList(p.ProhibitedTerms))
	fmt.Fprintf(&sb, "Also check whether it contains any required phrases from this list: %s.\n", policy.FormatList(p.RequiredPhrases))
	sb.WriteString("Also check the accessibility guidelines.\n\n")

	fmt.Fprintf(&sb, "Element Type: %s\n", el.Type)
	fmt.Fprintf(&sb, "Element Text: %s\n", el.Text)
	if el.LineNumber > 0 {
		fmt.Fprintf(&sb, "Line Number: %d\n", el.LineNumber)
	}
	if el.ParentTag != "" {
		fmt.Fprintf(&sb, "Parent Tag: %s\n", el.ParentTag)
	}

	sb.WriteString("\nPolicy:\n")
	fmt.Fprintf(&sb, "- Prohibited terms: %s\n", policy.FormatList(p.ProhibitedTerms))
	fmt.Fprintf(&sb, "- Required phrases: %s\n", policy.FormatList(p.RequiredPhrases))
	fmt.Fprintf(&sb, "- Accessibility guidelines: %s\n", policy.FormatList(p.AccessibilityGuidelines))

	sb.WriteString("\nRespond with:\n")
	fmt.Fprintf(&sb, "- %s %s / %s / %s\n", verdict.StatusMarker, verdict.Compliant, verdict.NeedsReview, verdict.NonCompliant)
	sb.WriteString("- Reason (always specify why if Non-Compliant, including which prohibited term or required phrase is missing)\n")
	sb.WriteString("- Suggested Correction (if any)\n")

	return sb.String()
}
