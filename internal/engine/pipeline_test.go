package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/miradorstack/mirador-triage/internal/models"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

type fakeAnalyst struct {
	rec    *recorder
	result models.LogAnalysisResult
	err    error
	panic  bool
}

func (f *fakeAnalyst) Analyze(_ context.Context, logs string) (models.LogAnalysisResult, error) {
	f.rec.add("analyze")
	if f.panic {
		panic("analyst exploded")
	}
	return f.result, f.err
}

type fakeDiagnoser struct {
	rec    *recorder
	result models.DiagnosisResult
	err    error
	got    models.LogAnalysisResult
}

func (f *fakeDiagnoser) Diagnose(_ context.Context, analysis models.LogAnalysisResult) (models.DiagnosisResult, error) {
	f.rec.add("diagnose")
	f.got = analysis
	return f.result, f.err
}

type fakeRetriever struct {
	rec   *recorder
	docs  []models.RetrievedDocument
	err   error
	query string
	k     int
}

func (f *fakeRetriever) BuildQuery(d models.DiagnosisResult) string {
	titles := make([]string, 0, len(d.Issues))
	for _, i := range d.Issues {
		titles = append(titles, i.Title)
	}
	return strings.Join(titles, " | ")
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, k int) ([]models.RetrievedDocument, error) {
	f.rec.add("retrieve")
	f.query, f.k = query, k
	return f.docs, f.err
}

type fakeSupervisor struct {
	rec      *recorder
	decision models.SupervisorDecision
	err      error
	context  []models.ContextEntry
}

func (f *fakeSupervisor) Supervise(_ context.Context, _ models.DiagnosisResult, entries []models.ContextEntry) (models.SupervisorDecision, error) {
	f.rec.add("supervise")
	f.context = entries
	return f.decision, f.err
}

type fakeReporter struct {
	rec    *recorder
	report string
	err    error
}

func (f *fakeReporter) Generate(_ context.Context, _ models.DiagnosisResult, _ []models.ContextEntry) (string, error) {
	f.rec.add("report")
	return f.report, f.err
}

type fixture struct {
	rec        *recorder
	analyst    *fakeAnalyst
	diagnoser  *fakeDiagnoser
	retriever  *fakeRetriever
	supervisor *fakeSupervisor
	reporter   *fakeReporter
}

func newFixture() *fixture {
	rec := &recorder{}
	return &fixture{
		rec: rec,
		analyst: &fakeAnalyst{rec: rec, result: models.LogAnalysisResult{
			Summary: models.LogAnalysisSummary{TotalLines: 4, ErrorCount: 3, WarningCount: 1},
		}},
		diagnoser: &fakeDiagnoser{rec: rec, result: models.DiagnosisResult{
			Issues: []models.DiagnosedIssue{{Title: "A", Severity: models.SeverityHigh}, {Title: "B", Severity: models.SeverityLow}},
		}},
		retriever: &fakeRetriever{rec: rec, docs: []models.RetrievedDocument{
			{Source: "db.txt", Content: "check pool", Score: 0.9},
			{Source: "disk.txt", Content: "free space", Score: 0.4},
		}},
		supervisor: &fakeSupervisor{rec: rec, decision: models.SupervisorDecision{Decision: models.DecisionContinue, Rationale: "ok", Confidence: 0.9}},
		reporter:   &fakeReporter{rec: rec, report: "# Report\n"},
	}
}

func (f *fixture) pipeline(opts ...Option) *Pipeline {
	return NewPipeline(nil, f.analyst, f.diagnoser, f.retriever, f.supervisor, f.reporter, opts...)
}

func TestRunTextSuccess(t *testing.T) {
	f := newFixture()
	report, err := f.pipeline(WithTopK(2)).RunText(context.Background(), "ERROR a\nERROR b\nERROR c\nWARNING d")
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", report)

	assert.Equal(t, []string{"analyze", "diagnose", "retrieve", "supervise", "report"}, f.rec.calls)
	assert.Equal(t, 3, f.diagnoser.got.Summary.ErrorCount)
	assert.Equal(t, "A | B", f.retriever.query)
	assert.Equal(t, 2, f.retriever.k)
	assert.Equal(t, []models.ContextEntry{{Source: "db.txt", Content: "check pool"}, {Source: "disk.txt", Content: "free space"}}, f.supervisor.context)
}

func TestExecuteReturnsIntermediateResults(t *testing.T) {
	f := newFixture()
	res, err := f.pipeline().Execute(context.Background(), "logs")
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, models.DecisionContinue, res.Decision.Decision)
	assert.Len(t, res.Context, 2)
	assert.Equal(t, "# Report\n", res.Report)
}

func TestStageFailuresNameTheComponent(t *testing.T) {
	cases := []struct {
		component string
		inject    func(*fixture)
		calls     []string
	}{
		{ComponentLogAnalyst, func(f *fixture) { f.analyst.err = errors.New("boom") }, []string{"analyze"}},
		{ComponentDiagnosis, func(f *fixture) { f.diagnoser.err = errors.New("boom") }, []string{"analyze", "diagnose"}},
		{ComponentRetriever, func(f *fixture) { f.retriever.err = errors.New("boom") }, []string{"analyze", "diagnose", "retrieve"}},
		{ComponentSupervisor, func(f *fixture) { f.supervisor.err = errors.New("boom") }, []string{"analyze", "diagnose", "retrieve", "supervise"}},
		{ComponentReportGenerator, func(f *fixture) { f.reporter.err = errors.New("boom") }, []string{"analyze", "diagnose", "retrieve", "supervise", "report"}},
	}
	for _, tc := range cases {
		t.Run(tc.component, func(t *testing.T) {
			f := newFixture()
			tc.inject(f)

			report, err := f.pipeline().RunText(context.Background(), "logs")
			require.Error(t, err)
			assert.Empty(t, report)
			assert.Equal(t, tc.component+" failed: boom", err.Error())

			var pe *PipelineError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.component, FailedComponent(err))
			assert.False(t, IsAbort(err))
			assert.Equal(t, tc.calls, f.rec.calls)
		})
	}
}

func TestSupervisorAbortStopsBeforeReport(t *testing.T) {
	f := newFixture()
	f.supervisor.decision = models.SupervisorDecision{Decision: models.DecisionAbort, Rationale: "insufficient evidence", Confidence: 0.3}

	_, err := f.pipeline().RunText(context.Background(), "logs")
	require.Error(t, err)
	assert.Equal(t, "Pipeline aborted by supervisor: insufficient evidence", err.Error())
	assert.True(t, IsAbort(err))
	assert.Empty(t, FailedComponent(err))

	var pe *PipelineError
	assert.True(t, errors.As(err, &pe))
	assert.NotContains(t, f.rec.calls, "report")
}

func TestNestedPipelineErrorIsWrappedAtTopLevel(t *testing.T) {
	f := newFixture()
	f.reporter.err = fmt.Errorf("nested: %w", &PipelineError{Err: errors.New("inner")})

	_, err := f.pipeline().RunText(context.Background(), "logs")
	require.Error(t, err)

	pe, ok := err.(*PipelineError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, "ReportGeneratorAgent failed: nested: inner", pe.Error())
	assert.Equal(t, ComponentReportGenerator, FailedComponent(err))
}

func TestPanicsBecomeComponentErrors(t *testing.T) {
	f := newFixture()
	f.analyst.panic = true

	_, err := f.pipeline().RunText(context.Background(), "logs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogAnalystAgent failed: panic: analyst exploded")
}

func TestMissingCollaborator(t *testing.T) {
	f := newFixture()
	p := NewPipeline(nil, f.analyst, nil, f.retriever, f.supervisor, f.reporter)

	_, err := p.RunText(context.Background(), "logs")
	require.Error(t, err)
	assert.Equal(t, "DiagnosisAgent failed: not configured", err.Error())
}

func TestRunReadsFile(t *testing.T) {
	f := newFixture()
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("ERROR x"), 0o600))

	report, err := f.pipeline().Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", report)

	_, err = f.pipeline().Run(context.Background(), filepath.Join(t.TempDir(), "missing.log"))
	require.Error(t, err)
	var pe *PipelineError
	assert.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

type observerStub struct {
	events []string
}

func (o *observerStub) StageStarted(component string) { o.events = append(o.events, "start:"+component) }

func (o *observerStub) StageFinished(component string, _ time.Duration, err error) {
	state := "ok"
	if err != nil {
		state = "err"
	}
	o.events = append(o.events, state+":"+component)
}

func TestObserverAndSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	obs := &observerStub{}

	f := newFixture()
	f.supervisor.err = errors.New("model unavailable")
	_, err := f.pipeline(WithStageObserver(obs), WithTracer(tp.Tracer("test"))).RunText(context.Background(), "logs")
	require.Error(t, err)

	assert.Equal(t, []string{
		"start:" + ComponentLogAnalyst, "ok:" + ComponentLogAnalyst,
		"start:" + ComponentDiagnosis, "ok:" + ComponentDiagnosis,
		"start:" + ComponentRetriever, "ok:" + ComponentRetriever,
		"start:" + ComponentSupervisor, "err:" + ComponentSupervisor,
	}, obs.events)

	statuses := map[string]otelcodes.Code{}
	for _, s := range sr.Ended() {
		statuses[s.Name()] = s.Status().Code
	}
	assert.Equal(t, otelcodes.Error, statuses[ComponentSupervisor])
	assert.Equal(t, otelcodes.Error, statuses["triage.run"])
	assert.NotEqual(t, otelcodes.Error, statuses[ComponentDiagnosis])
	_, reported := statuses[ComponentReportGenerator]
	assert.False(t, reported)
}

func TestRunsAreIndependent(t *testing.T) {
	f := newFixture()
	p := f.pipeline()

	first, err := p.RunText(context.Background(), "logs")
	require.NoError(t, err)
	second, err := p.RunText(context.Background(), "logs")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
