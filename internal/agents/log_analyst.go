package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/miradorstack/mirador-triage/internal/llm"
	"github.com/miradorstack/mirador-triage/internal/models"
)

// LogAnalyst turns raw log text into a LogAnalysisResult.
type LogAnalyst struct {
	agent  modelAgent
	parser *OutputParser[models.LogAnalysisResult]
	strict bool
	logger *slog.Logger
}

// NewLogAnalyst loads the analyst prompt and prepares its output parser.
func NewLogAnalyst(client llm.Client, opts Options) (*LogAnalyst, error) {
	agent, err := newModelAgent("LogAnalystAgent", client, opts, LogAnalystPrompt, "Logs:\n{logs}")
	if err != nil {
		return nil, err
	}
	parser, err := NewOutputParser[models.LogAnalysisResult]()
	if err != nil {
		return nil, err
	}
	return &LogAnalyst{agent: agent, parser: parser, strict: opts.StrictSummaryCounts, logger: opts.logger()}, nil
}

// Analyze sends the logs to the model and validates the structured answer.
func (a *LogAnalyst) Analyze(ctx context.Context, logs string) (models.LogAnalysisResult, error) {
	text, err := a.agent.invoke(ctx, map[string]string{
		"logs":                logs,
		"format_instructions": a.parser.FormatInstructions(),
	}, true)
	if err != nil {
		return models.LogAnalysisResult{}, err
	}

	result, err := a.parser.Decode(text)
	if err != nil {
		return models.LogAnalysisResult{}, err
	}
	if err := result.Validate(); err != nil {
		if a.strict || !errors.Is(err, models.ErrSummaryCountsExceedTotal) {
			return models.LogAnalysisResult{}, fmt.Errorf("invalid model output: %w", err)
		}
		a.logger.Warn("log analysis summary is inconsistent", slog.String("detail", err.Error()))
	}
	return result, nil
}
