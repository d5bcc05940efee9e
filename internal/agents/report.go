package agents

import (
	"context"

	"github.com/miradorstack/mirador-triage/internal/llm"
	"github.com/miradorstack/mirador-triage/internal/models"
)

// ReportGenerator writes the final incident report. Its output is free text.
type ReportGenerator struct {
	agent modelAgent
}

func NewReportGenerator(client llm.Client, opts Options) (*ReportGenerator, error) {
	agent, err := newModelAgent("ReportGeneratorAgent", client, opts, ReportGeneratorPrompt, "Diagnosis data:\n{diagnosis}")
	if err != nil {
		return nil, err
	}
	return &ReportGenerator{agent: agent}, nil
}

// Generate returns the model text unmodified.
func (r *ReportGenerator) Generate(ctx context.Context, diagnosis models.DiagnosisResult, entries []models.ContextEntry) (string, error) {
	vars, err := diagnosisVars(diagnosis, entries)
	if err != nil {
		return "", err
	}
	return r.agent.invoke(ctx, vars, false)
}

// Set bundles one agent per stage sharing a model client.
type Set struct {
	Analyst    *LogAnalyst
	Diagnoser  *Diagnoser
	Supervisor *Supervisor
	Reporter   *ReportGenerator
}

// NewSet builds all four agents; any prompt or schema failure aborts construction.
func NewSet(client llm.Client, opts Options) (*Set, error) {
	analyst, err := NewLogAnalyst(client, opts)
	if err != nil {
		return nil, err
	}
	diagnoser, err := NewDiagnoser(client, opts)
	if err != nil {
		return nil, err
	}
	supervisor, err := NewSupervisor(client, opts)
	if err != nil {
		return nil, err
	}
	reporter, err := NewReportGenerator(client, opts)
	if err != nil {
		return nil, err
	}
	return &Set{Analyst: analyst, Diagnoser: diagnoser, Supervisor: supervisor, Reporter: reporter}, nil
}
