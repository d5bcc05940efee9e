// Package agents binds prompt templates to a model client, one agent per pipeline stage.
package agents

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/miradorstack/mirador-triage/internal/llm"
	"github.com/miradorstack/mirador-triage/internal/metrics"
)

//go:embed prompts/*.txt
var defaultPrompts embed.FS

// Prompt file names, also used when overriding from a directory.
const (
	LogAnalystPrompt      = "log_analyst_prompt.txt"
	DiagnosisPrompt       = "diagnosis_prompt.txt"
	SupervisorPrompt      = "supervisor_prompt.txt"
	ReportGeneratorPrompt = "report_generator_prompt.txt"
)

// Options configure agent construction.
type Options struct {
	// PromptsDir holds prompt files that replace the embedded defaults. Files absent
	// from the directory fall back to the defaults.
	PromptsDir string
	// StrictSummaryCounts rejects an analysis whose error and warning counts exceed
	// its line total instead of logging a warning.
	StrictSummaryCounts bool
	Logger              *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// LoadPrompt returns the named system prompt, preferring dir when it has the file.
func LoadPrompt(dir, name string) (string, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read prompt %s: %w", name, err)
		}
	}
	data, err := defaultPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("read embedded prompt %s: %w", name, err)
	}
	return string(data), nil
}

// modelAgent is the shared core: a named prompt pair bound to one model client.
type modelAgent struct {
	name   string
	client llm.Client
	system string
	human  string
	logger *slog.Logger
}

func newModelAgent(name string, client llm.Client, opts Options, promptFile, human string) (modelAgent, error) {
	if client == nil {
		return modelAgent{}, fmt.Errorf("%s: model client is required", name)
	}
	system, err := LoadPrompt(opts.PromptsDir, promptFile)
	if err != nil {
		return modelAgent{}, err
	}
	return modelAgent{name: name, client: client, system: system, human: human, logger: opts.logger()}, nil
}

// invoke renders both templates with vars and sends one request.
func (a modelAgent) invoke(ctx context.Context, vars map[string]string, wantJSON bool) (string, error) {
	resp, err := a.client.Complete(ctx, llm.Request{
		System: render(a.system, vars),
		Prompt: render(a.human, vars),
		JSON:   wantJSON,
	})
	if err != nil {
		return "", err
	}
	metrics.ObserveTokens(a.name, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	a.logger.Debug("model call completed",
		slog.String("agent", a.name),
		slog.String("model", resp.Model),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
	)
	return resp.Text, nil
}

func invokeStructured[T any](ctx context.Context, a modelAgent, parser *OutputParser[T], vars map[string]string) (T, error) {
	vars["format_instructions"] = parser.FormatInstructions()
	text, err := a.invoke(ctx, vars, true)
	if err != nil {
		var zero T
		return zero, err
	}
	return parser.Parse(text)
}

// render replaces {name} placeholders in one pass; substituted values are not re-expanded.
func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
