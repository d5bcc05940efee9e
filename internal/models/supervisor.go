package models

import "fmt"

// Decision is the supervisor's verdict on whether the report stage may run.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionAbort    Decision = "abort"
)

// SupervisorDecision is the structured output of the supervisory gate.
type SupervisorDecision struct {
	Decision   Decision `json:"decision" jsonschema:"description=Decision on whether the pipeline should continue,enum=continue,enum=abort"`
	Rationale  string   `json:"rationale" jsonschema:"description=Explanation for the decision"`
	Confidence float64  `json:"confidence" jsonschema:"description=Confidence level in the decision,minimum=0,maximum=1"`
}

// Validate checks the decision enum and the confidence range.
func (d SupervisorDecision) Validate() error {
	if d.Decision != DecisionContinue && d.Decision != DecisionAbort {
		return fmt.Errorf("invalid decision %q", d.Decision)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", d.Confidence)
	}
	return nil
}
