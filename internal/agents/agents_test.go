package agents

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-triage/internal/llm"
	"github.com/miradorstack/mirador-triage/internal/models"
)

type scriptedClient struct {
	replies []string
	err     error
	usage   llm.Usage
	reqs    []llm.Request
}

func (c *scriptedClient) Name() string  { return "scripted" }
func (c *scriptedClient) Model() string { return "scripted-1" }

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	c.reqs = append(c.reqs, req)
	if c.err != nil {
		return llm.Response{}, c.err
	}
	if len(c.replies) == 0 {
		return llm.Response{}, errors.New("no reply scripted")
	}
	text := c.replies[0]
	c.replies = c.replies[1:]
	return llm.Response{Text: text, Model: c.Model(), Usage: c.usage}, nil
}

func TestRenderIsSinglePass(t *testing.T) {
	out := render("{a} and {b} and {missing}", map[string]string{"a": "{b}", "b": "x"})
	assert.Equal(t, "{b} and x and {missing}", out)
}

func TestExtractJSON(t *testing.T) {
	got, err := extractJSON("Here you go:\n```json\n{\"a\": 1}\n```\nThanks")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, got)

	got, err = extractJSON(`Sure. {"a": {"b": 2}} done`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 2}}`, got)

	_, err = extractJSON("no json here")
	assert.Error(t, err)
}

func TestOutputParserEnforcesSchema(t *testing.T) {
	parser, err := NewOutputParser[models.SupervisorDecision]()
	require.NoError(t, err)

	instructions := parser.FormatInstructions()
	assert.Contains(t, instructions, `"confidence"`)
	assert.Contains(t, instructions, `"abort"`)

	decision, err := parser.Parse(`{"decision":"continue","rationale":"fine","confidence":0.75}`)
	require.NoError(t, err)
	assert.Equal(t, models.SupervisorDecision{Decision: models.DecisionContinue, Rationale: "fine", Confidence: 0.75}, decision)

	bad := map[string]string{
		"confidence above range": `{"decision":"continue","rationale":"x","confidence":1.5}`,
		"unknown decision":       `{"decision":"maybe","rationale":"x","confidence":0.5}`,
		"missing rationale":      `{"decision":"abort","confidence":0.5}`,
		"wrong type":             `{"decision":"abort","rationale":"x","confidence":"high"}`,
		"not json":               `{"decision": continue}`,
	}
	for name, text := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := parser.Parse(text)
			assert.Error(t, err)
		})
	}
}

func TestLogAnalystRendersPromptAndParses(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"summary":{"total_lines":4,"error_count":3,"warning_count":1},"errors":[{"type":"Timeout","count":3,"components":["api"]}],"anomalies":[]}`,
	}}
	analyst, err := NewLogAnalyst(client, Options{})
	require.NoError(t, err)

	res, err := analyst.Analyze(context.Background(), "ERROR a\nERROR b\nERROR c\nWARNING d")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.ErrorCount)
	assert.Equal(t, "Timeout", res.Errors[0].Type)

	require.Len(t, client.reqs, 1)
	req := client.reqs[0]
	assert.Equal(t, "Logs:\nERROR a\nERROR b\nERROR c\nWARNING d", req.Prompt)
	assert.True(t, req.JSON)
	assert.NotContains(t, req.System, "{format_instructions}")
	assert.Contains(t, req.System, `"total_lines"`)
}

func TestLogAnalystSummaryCountPolicy(t *testing.T) {
	inconsistent := `{"summary":{"total_lines":2,"error_count":3,"warning_count":1},"errors":[],"anomalies":[]}`

	lenient, err := NewLogAnalyst(&scriptedClient{replies: []string{inconsistent}}, Options{})
	require.NoError(t, err)
	res, err := lenient.Analyze(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.TotalLines)

	strict, err := NewLogAnalyst(&scriptedClient{replies: []string{inconsistent}}, Options{StrictSummaryCounts: true})
	require.NoError(t, err)
	_, err = strict.Analyze(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSummaryCountsExceedTotal))
}

func TestDiagnoserRejectsUnknownSeverity(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"issues":[{"title":"Disk full","description":"d","possible_causes":[],"impact":"i","severity":"urgent","affected_components":[]}],"overall_assessment":"bad"}`,
	}}
	diagnoser, err := NewDiagnoser(client, Options{})
	require.NoError(t, err)

	_, err = diagnoser.Diagnose(context.Background(), models.LogAnalysisResult{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(client.reqs[0].Prompt, "Log analysis result:\n{"))
}

func TestSupervisorSeesRetrievedContext(t *testing.T) {
	client := &scriptedClient{replies: []string{"```json\n{\"decision\":\"abort\",\"rationale\":\"thin evidence\",\"confidence\":0.4}\n```"}}
	supervisor, err := NewSupervisor(client, Options{})
	require.NoError(t, err)

	diagnosis := models.DiagnosisResult{Issues: []models.DiagnosedIssue{{Title: "Disk full", Severity: models.SeverityHigh}}}
	decision, err := supervisor.Supervise(context.Background(), diagnosis, []models.ContextEntry{{Source: "disk_runbook.txt", Content: "free space"}})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAbort, decision.Decision)
	assert.Equal(t, "thin evidence", decision.Rationale)

	req := client.reqs[0]
	assert.Contains(t, req.System, `"source": "disk_runbook.txt"`)
	assert.True(t, strings.HasPrefix(req.Prompt, "Diagnosis:\n{"))
	assert.Contains(t, req.Prompt, "Disk full")
}

func TestReportGeneratorReturnsTextUnmodified(t *testing.T) {
	report := "  # Report\n\nBody with {braces}\n"
	client := &scriptedClient{replies: []string{report}}
	reporter, err := NewReportGenerator(client, Options{})
	require.NoError(t, err)

	got, err := reporter.Generate(context.Background(), models.DiagnosisResult{}, nil)
	require.NoError(t, err)
	assert.Equal(t, report, got)

	req := client.reqs[0]
	assert.False(t, req.JSON)
	assert.True(t, strings.HasPrefix(req.Prompt, "Diagnosis data:\n"))
	assert.Contains(t, req.System, "[]")
}

func TestModelErrorsPropagate(t *testing.T) {
	client := &scriptedClient{err: errors.New("upstream timeout")}
	set, err := NewSet(client, Options{})
	require.NoError(t, err)

	_, err = set.Analyst.Analyze(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream timeout")

	_, err = set.Reporter.Generate(context.Background(), models.DiagnosisResult{}, nil)
	assert.Error(t, err)
}

func TestPromptOverridesFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SupervisorPrompt), []byte("custom: {retrieved_context} {format_instructions}"), 0o600))

	custom, err := LoadPrompt(dir, SupervisorPrompt)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(custom, "custom: "))

	fallback, err := LoadPrompt(dir, ReportGeneratorPrompt)
	require.NoError(t, err)
	assert.Contains(t, fallback, "{retrieved_context}")
}

func TestNewAgentRequiresClient(t *testing.T) {
	_, err := NewSupervisor(nil, Options{})
	assert.Error(t, err)
}

func TestModelCallLogsTokenUsage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := &scriptedClient{replies: []string{"# Report"}, usage: llm.Usage{InputTokens: 812, OutputTokens: 96}}

	reporter, err := NewReportGenerator(client, Options{Logger: logger})
	require.NoError(t, err)
	_, err = reporter.Generate(context.Background(), models.DiagnosisResult{}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "model call completed")
	assert.Contains(t, out, "agent=ReportGeneratorAgent")
	assert.Contains(t, out, "input_tokens=812")
	assert.Contains(t, out, "output_tokens=96")
}
