package agents

import (
	"context"
	"fmt"

	"github.com/miradorstack/mirador-triage/internal/llm"
	"github.com/miradorstack/mirador-triage/internal/models"
)

// Diagnoser derives issues and an overall assessment from a log analysis.
type Diagnoser struct {
	agent  modelAgent
	parser *OutputParser[models.DiagnosisResult]
}

func NewDiagnoser(client llm.Client, opts Options) (*Diagnoser, error) {
	agent, err := newModelAgent("DiagnosisAgent", client, opts, DiagnosisPrompt, "Log analysis result:\n{analysis}")
	if err != nil {
		return nil, err
	}
	parser, err := NewOutputParser[models.DiagnosisResult]()
	if err != nil {
		return nil, err
	}
	return &Diagnoser{agent: agent, parser: parser}, nil
}

// Diagnose sends the serialized analysis to the model.
func (d *Diagnoser) Diagnose(ctx context.Context, analysis models.LogAnalysisResult) (models.DiagnosisResult, error) {
	payload, err := toJSON(analysis)
	if err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("encode analysis: %w", err)
	}
	return invokeStructured(ctx, d.agent, d.parser, map[string]string{"analysis": payload})
}
