package engine

import (
	"errors"
	"fmt"
)

// Component names used in logs, metrics, spans and error messages.
const (
	ComponentLogAnalyst      = "LogAnalystAgent"
	ComponentDiagnosis       = "DiagnosisAgent"
	ComponentRetriever       = "RAGContextRetriever"
	ComponentSupervisor      = "SupervisorAgent"
	ComponentReportGenerator = "ReportGeneratorAgent"
)

var errNotConfigured = errors.New("not configured")

// ComponentError reports a failure inside one named pipeline component.
type ComponentError struct {
	Component string
	Err       error
}

func (e *ComponentError) Error() string {
	msg := "unknown error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s failed: %s", e.Component, msg)
}

func (e *ComponentError) Unwrap() error { return e.Err }

// AbortError is returned when the supervisor declines to continue.
type AbortError struct {
	Rationale  string
	Confidence float64
}

func (e *AbortError) Error() string {
	return "Pipeline aborted by supervisor: " + e.Rationale
}

// PipelineError is the only error type returned by Run, RunText and Execute.
// Its message is the message of the failure it wraps.
type PipelineError struct {
	Err error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return "pipeline failed"
	}
	return e.Err.Error()
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsAbort reports whether err carries a supervisor abort.
func IsAbort(err error) bool {
	var abort *AbortError
	return errors.As(err, &abort)
}

// FailedComponent returns the component named by err, or "" when no component failed.
func FailedComponent(err error) string {
	var ce *ComponentError
	if errors.As(err, &ce) {
		return ce.Component
	}
	return ""
}
