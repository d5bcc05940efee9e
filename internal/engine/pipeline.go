package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miradorstack/mirador-triage/internal/extractors"
	"github.com/miradorstack/mirador-triage/internal/metrics"
	"github.com/miradorstack/mirador-triage/internal/models"
)

// LogAnalyst turns raw logs into a structured analysis.
type LogAnalyst interface {
	Analyze(ctx context.Context, logs string) (models.LogAnalysisResult, error)
}

// Diagnoser turns an analysis into diagnosed issues.
type Diagnoser interface {
	Diagnose(ctx context.Context, analysis models.LogAnalysisResult) (models.DiagnosisResult, error)
}

// ContextRetriever finds knowledge-base documents for a diagnosis.
type ContextRetriever interface {
	BuildQuery(diagnosis models.DiagnosisResult) string
	Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error)
}

// Supervisor gates the report stage.
type Supervisor interface {
	Supervise(ctx context.Context, diagnosis models.DiagnosisResult, entries []models.ContextEntry) (models.SupervisorDecision, error)
}

// ReportGenerator writes the final report.
type ReportGenerator interface {
	Generate(ctx context.Context, diagnosis models.DiagnosisResult, entries []models.ContextEntry) (string, error)
}

// Result carries every intermediate value of a successful run.
type Result struct {
	RunID     string
	Analysis  models.LogAnalysisResult
	Diagnosis models.DiagnosisResult
	Context   []models.ContextEntry
	Decision  models.SupervisorDecision
	Report    string
	Duration  time.Duration
}

// Pipeline runs the analysis, diagnosis, retrieval, supervision and report stages in order.
// It holds no per-run state.
type Pipeline struct {
	logger     *slog.Logger
	analyst    LogAnalyst
	diagnoser  Diagnoser
	retriever  ContextRetriever
	supervisor Supervisor
	reporter   ReportGenerator

	topK     int
	observer StageObserver
	tracer   trace.Tracer
	scan     func(string) extractors.LogStats
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithTopK sets the number of documents retrieved per run. k <= 0 keeps the retriever default.
func WithTopK(k int) Option {
	return func(p *Pipeline) { p.topK = k }
}

// WithStageObserver registers a stage observer.
func WithStageObserver(o StageObserver) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithLogScanner replaces the raw-log scanner used to cross-check the analysis summary.
// nil disables the cross-check.
func WithLogScanner(scan func(string) extractors.LogStats) Option {
	return func(p *Pipeline) { p.scan = scan }
}

// NewPipeline constructs a pipeline from its collaborators.
func NewPipeline(
	logger *slog.Logger,
	analyst LogAnalyst,
	diagnoser Diagnoser,
	retriever ContextRetriever,
	supervisor Supervisor,
	reporter ReportGenerator,
	opts ...Option,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		logger:     logger,
		analyst:    analyst,
		diagnoser:  diagnoser,
		retriever:  retriever,
		supervisor: supervisor,
		reporter:   reporter,
		tracer:     otel.Tracer("github.com/miradorstack/mirador-triage/internal/engine"),
		scan:       extractors.ScanSeverities,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads the log file at path and runs the pipeline on its contents.
func (p *Pipeline) Run(ctx context.Context, path string) (string, error) {
	p.logger.Info("reading log file", slog.String("path", path))
	data, err := os.ReadFile(path)
	if err != nil {
		metrics.ObserveRun(0, metrics.OutcomeError)
		return "", &PipelineError{Err: fmt.Errorf("read log file %s: %w", path, err)}
	}
	return p.RunText(ctx, string(data))
}

// RunText runs the pipeline on raw log text and returns the report.
func (p *Pipeline) RunText(ctx context.Context, logs string) (string, error) {
	res, err := p.Execute(ctx, logs)
	if err != nil {
		return "", err
	}
	return res.Report, nil
}

// Execute runs every stage and returns the intermediate values along with the report.
// Every failure is a *PipelineError.
func (p *Pipeline) Execute(ctx context.Context, logs string) (res *Result, err error) {
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID))
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "triage.run", trace.WithAttributes(attribute.String("triage.run_id", runID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
		elapsed := time.Since(start)
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
			if IsAbort(err) {
				outcome = metrics.OutcomeAborted
			}
			if _, ok := err.(*PipelineError); !ok {
				err = &PipelineError{Err: err}
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("pipeline failed", slog.String("outcome", outcome), slog.Duration("duration", elapsed), slog.Any("error", err))
		} else {
			res.Duration = elapsed
			logger.Info("pipeline completed", slog.Duration("duration", elapsed), slog.Int("report_bytes", len(res.Report)))
		}
		metrics.ObserveRun(elapsed, outcome)
	}()

	return p.execute(ctx, logger, runID, logs)
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, runID, logs string) (*Result, error) {
	res := &Result{RunID: runID}
	var err error

	res.Analysis, err = runStage(ctx, p, logger, ComponentLogAnalyst, func(ctx context.Context) (models.LogAnalysisResult, error) {
		if p.analyst == nil {
			return models.LogAnalysisResult{}, errNotConfigured
		}
		return p.analyst.Analyze(ctx, logs)
	})
	if err != nil {
		return nil, err
	}
	p.crossCheck(logger, logs, res.Analysis.Summary)

	res.Diagnosis, err = runStage(ctx, p, logger, ComponentDiagnosis, func(ctx context.Context) (models.DiagnosisResult, error) {
		if p.diagnoser == nil {
			return models.DiagnosisResult{}, errNotConfigured
		}
		return p.diagnoser.Diagnose(ctx, res.Analysis)
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("diagnosis produced", slog.Int("issues", len(res.Diagnosis.Issues)))

	docs, err := runStage(ctx, p, logger, ComponentRetriever, func(ctx context.Context) ([]models.RetrievedDocument, error) {
		if p.retriever == nil {
			return nil, errNotConfigured
		}
		query := p.retriever.BuildQuery(res.Diagnosis)
		logger.Info("retrieving context", slog.String("query", query))
		return p.retriever.Retrieve(ctx, query, p.topK)
	})
	if err != nil {
		return nil, err
	}
	res.Context = models.ContextFromDocuments(docs)
	logger.Debug("context retrieved", slog.String("sources", sources(res.Context)))

	res.Decision, err = runStage(ctx, p, logger, ComponentSupervisor, func(ctx context.Context) (models.SupervisorDecision, error) {
		if p.supervisor == nil {
			return models.SupervisorDecision{}, errNotConfigured
		}
		return p.supervisor.Supervise(ctx, res.Diagnosis, res.Context)
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveDecision(string(res.Decision.Decision))

	if res.Decision.Decision != models.DecisionContinue {
		logger.Warn("supervisor aborted the run",
			slog.String("rationale", res.Decision.Rationale),
			slog.Float64("confidence", res.Decision.Confidence),
		)
		return nil, &AbortError{Rationale: res.Decision.Rationale, Confidence: res.Decision.Confidence}
	}

	res.Report, err = runStage(ctx, p, logger, ComponentReportGenerator, func(ctx context.Context) (string, error) {
		if p.reporter == nil {
			return "", errNotConfigured
		}
		return p.reporter.Generate(ctx, res.Diagnosis, res.Context)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) crossCheck(logger *slog.Logger, logs string, summary models.LogAnalysisSummary) {
	if p.scan == nil {
		return
	}
	stats := p.scan(logs)
	if diff := stats.Discrepancies(summary); len(diff) > 0 {
		logger.Warn("log analysis summary disagrees with severity scan", slog.String("differences", strings.Join(diff, "; ")))
	}
}

func sources(entries []models.ContextEntry) string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Source
	}
	return strings.Join(names, ",")
}
