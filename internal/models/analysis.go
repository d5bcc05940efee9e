package models

import (
	"errors"
	"fmt"
)

// ErrSummaryCountsExceedTotal reports a summary whose error and warning counts add up to
// more lines than were analysed.
var ErrSummaryCountsExceedTotal = errors.New("error_count + warning_count exceeds total_lines")

// LogAnalysisSummary holds the line counters reported by the log analyst.
type LogAnalysisSummary struct {
	TotalLines   int `json:"total_lines" jsonschema:"description=Total number of log lines analyzed,minimum=0"`
	ErrorCount   int `json:"error_count" jsonschema:"description=Total number of errors found in the logs,minimum=0"`
	WarningCount int `json:"warning_count" jsonschema:"description=Total number of warnings found in the logs,minimum=0"`
}

// Validate checks the counters are non-negative and consistent with the line total.
// The consistency failure wraps ErrSummaryCountsExceedTotal so callers can decide
// whether to tolerate it.
func (s LogAnalysisSummary) Validate() error {
	if s.TotalLines < 0 || s.ErrorCount < 0 || s.WarningCount < 0 {
		return fmt.Errorf("summary counts must be non-negative (total=%d errors=%d warnings=%d)", s.TotalLines, s.ErrorCount, s.WarningCount)
	}
	if s.ErrorCount+s.WarningCount > s.TotalLines {
		return fmt.Errorf("%w (total=%d errors=%d warnings=%d)", ErrSummaryCountsExceedTotal, s.TotalLines, s.ErrorCount, s.WarningCount)
	}
	return nil
}

// LogError groups occurrences of one error type.
type LogError struct {
	Type       string   `json:"type" jsonschema:"description=Type of the error"`
	Count      int      `json:"count" jsonschema:"description=Number of occurrences of this error type,minimum=0"`
	Components []string `json:"components" jsonschema:"description=List of affected components for this error type"`
}

// LogAnalysisResult is the structured output of the log analysis stage.
type LogAnalysisResult struct {
	Summary   LogAnalysisSummary `json:"summary"`
	Errors    []LogError         `json:"errors"`
	Anomalies []string           `json:"anomalies" jsonschema:"description=List of detected anomalies in the logs"`
}

// Validate checks the result beyond what the JSON schema enforces.
func (r LogAnalysisResult) Validate() error {
	for i, e := range r.Errors {
		if e.Count < 0 {
			return fmt.Errorf("errors[%d]: count must be non-negative, got %d", i, e.Count)
		}
	}
	return r.Summary.Validate()
}
