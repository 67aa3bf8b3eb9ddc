// Package verdict turns a free-text model reply into a structured compliance verdict.
//
// Parsing is best-effort: the first occurrence of each marker wins, the
// value runs to the end of that line, and anything outside the matched
// spans is ignored. A missing marker degrades to a default and never fails.
package verdict

import (
	"regexp"
	"strings"
)

// Status is the compliance status text reported for an element. The four
// constants are the recognized values, but a parsed Status keeps whatever
// text followed the marker.
type Status string

const (
	Compliant    Status = "Compliant"
	NeedsReview  Status = "Needs Review"
	NonCompliant Status = "Non-Compliant"
	// Unknown is used when the reply has no status marker, including the
	// empty reply of a failed adjudication.
	Unknown Status = "Unknown"
)

// Presentation classes for report styling.
const (
	ClassCompliant    = "compliant"
	ClassNonCompliant = "non-compliant"
	ClassNeedsReview  = "needs-review"
)

// Markers the model is asked to label its answer with.
const (
	StatusMarker     = "Compliance Status:"
	ReasonMarker     = "Reason:"
	SuggestionMarker = "Suggested Correction:"
)

var (
	statusRe     = markerPattern(StatusMarker)
	reasonRe     = markerPattern(ReasonMarker)
	suggestionRe = markerPattern(SuggestionMarker)
)

// markerPattern matches a marker and captures the rest of its line.
func markerPattern(marker string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(marker) + `[ \t]*(.*)`)
}

// Verdict is the structured outcome for one element.
type Verdict struct {
	Status      Status `json:"status"`
	Reason      string `json:"reason"`
	Suggestion  string `json:"suggestion"`
	StatusClass string `json:"status_class"`
}

// New builds a Verdict, deriving StatusClass from status.
func New(status Status, reason, suggestion string) Verdict {
	return Verdict{
		Status:      status,
		Reason:      reason,
		Suggestion:  suggestion,
		StatusClass: status.Class(),
	}
}

// Parse extracts a Verdict from reply. It never fails.
func Parse(reply string) Verdict {
	status := Unknown
	if v, ok := firstMatch(statusRe, reply); ok {
		status = Status(v)
	}
	reason, _ := firstMatch(reasonRe, reply)
	suggestion, _ := firstMatch(suggestionRe, reply)

	return New(status, reason, suggestion)
}

// Class maps a status to its presentation class. Anything other than the
// three exact recognized values, Unknown included, maps to "".
func (s Status) Class() string {
	switch s {
	case Compliant:
		return ClassCompliant
	case NonCompliant:
		return ClassNonCompliant
	case NeedsReview:
		return ClassNeedsReview
	}
	return ""
}

// Recognized reports whether s is one of the three statuses a model is asked for.
func (s Status) Recognized() bool {
	return s.Class() != ""
}

func firstMatch(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
