package agents

import (
	"context"
	"fmt"

	"github.com/miradorstack/mirador-triage/internal/llm"
	"github.com/miradorstack/mirador-triage/internal/models"
)

// Supervisor decides whether a diagnosis is sound enough to report on.
type Supervisor struct {
	agent  modelAgent
	parser *OutputParser[models.SupervisorDecision]
}

func NewSupervisor(client llm.Client, opts Options) (*Supervisor, error) {
	agent, err := newModelAgent("SupervisorAgent", client, opts, SupervisorPrompt, "Diagnosis:\n{diagnosis}")
	if err != nil {
		return nil, err
	}
	parser, err := NewOutputParser[models.SupervisorDecision]()
	if err != nil {
		return nil, err
	}
	return &Supervisor{agent: agent, parser: parser}, nil
}

// Supervise reviews the diagnosis against the retrieved context.
func (s *Supervisor) Supervise(ctx context.Context, diagnosis models.DiagnosisResult, entries []models.ContextEntry) (models.SupervisorDecision, error) {
	vars, err := diagnosisVars(diagnosis, entries)
	if err != nil {
		return models.SupervisorDecision{}, err
	}
	return invokeStructured(ctx, s.agent, s.parser, vars)
}

func diagnosisVars(diagnosis models.DiagnosisResult, entries []models.ContextEntry) (map[string]string, error) {
	d, err := toJSON(diagnosis)
	if err != nil {
		return nil, fmt.Errorf("encode diagnosis: %w", err)
	}
	if entries == nil {
		entries = []models.ContextEntry{}
	}
	c, err := toJSON(entries)
	if err != nil {
		return nil, fmt.Errorf("encode retrieved context: %w", err)
	}
	return map[string]string{"diagnosis": d, "retrieved_context": c}, nil
}
