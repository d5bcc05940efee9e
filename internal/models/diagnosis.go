package models

import "fmt"

// Severity captures impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severity levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// DiagnosedIssue is a single problem identified by the diagnosis stage.
type DiagnosedIssue struct {
	Title              string   `json:"title" jsonschema:"description=Short description of the detected issue"`
	Description        string   `json:"description" jsonschema:"description=Detailed explanation of the issue"`
	PossibleCauses     []string `json:"possible_causes" jsonschema:"description=List of plausible root causes based on the evidence"`
	Impact             string   `json:"impact" jsonschema:"description=Potential impact on the system or users"`
	Severity           Severity `json:"severity" jsonschema:"enum=low,enum=medium,enum=high,enum=critical"`
	AffectedComponents []string `json:"affected_components" jsonschema:"description=List of components affected by the issue"`
}

// DiagnosisResult is the structured output of the diagnosis stage.
type DiagnosisResult struct {
	Issues            []DiagnosedIssue `json:"issues"`
	OverallAssessment string           `json:"overall_assessment" jsonschema:"description=High-level assessment of the system health"`
}

// Validate rejects issues carrying a severity outside the closed set.
func (d DiagnosisResult) Validate() error {
	for i, issue := range d.Issues {
		if !issue.Severity.Valid() {
			return fmt.Errorf("issues[%d]: invalid severity %q", i, issue.Severity)
		}
	}
	return nil
}
