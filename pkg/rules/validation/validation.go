// Package validation checks rules models for structural consistency and
// extension-policy compliance. Findings are returned as a report of
// severity-tagged issues rather than raised, so a user can inspect and
// fix a workbook iteratively. Only malformed input (an unreadable file,
// a missing sheet) is a hard error, and that is the caller's concern.
package validation

// Severity indicates the importance of an issue.
type Severity int

// Severity levels for issues.
const (
	// SeverityError indicates the model cannot be exported as-is.
	SeverityError Severity = iota
	// SeverityWarning indicates a likely mistake that does not block export.
	SeverityWarning
	// SeverityInfo indicates informational feedback.
	SeverityInfo
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// ParseSeverity parses a severity name. Unknown names map to
// SeverityError so misconfiguration fails loudly.
func ParseSeverity(s string) Severity {
	switch s {
	case "warning":
		return SeverityWarning
	case "info":
		return SeverityInfo
	default:
		return SeverityError
	}
}

// Issue is a single validation finding.
type Issue struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	// Sheet is the workbook sheet the issue was found on
	// (Classes, Properties, Views, Containers, Metadata).
	Sheet string `json:"sheet,omitempty"`
	// Row is the 1-based workbook row, 0 when the issue has no row.
	Row int `json:"row,omitempty"`
	// Entity names the offending entity, e.g. "WindTurbine.ratedPower".
	Entity  string `json:"entity,omitempty"`
	Message string `json:"message"`
}

// Report is an ordered list of issues.
type Report []Issue

// HasErrors reports whether any issue has error severity.
func (r Report) HasErrors() bool {
	for _, issue := range r {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of issues at the given severity.
func (r Report) Count(s Severity) int {
	n := 0
	for _, issue := range r {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

// ByRule returns the issues produced by a single rule.
func (r Report) ByRule(ruleID string) Report {
	var out Report
	for _, issue := range r {
		if issue.RuleID == ruleID {
			out = append(out, issue)
		}
	}
	return out
}
