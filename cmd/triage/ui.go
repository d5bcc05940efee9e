package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/miradorstack/mirador-triage/internal/engine"
)

var stageLabels = map[string]string{
	engine.ComponentLogAnalyst:      "Analyzing logs",
	engine.ComponentDiagnosis:       "Diagnosing issues",
	engine.ComponentRetriever:       "Retrieving knowledge-base context",
	engine.ComponentSupervisor:      "Reviewing diagnosis",
	engine.ComponentReportGenerator: "Writing report",
}

// spinnerObserver shows stage progress on a terminal.
type spinnerObserver struct {
	s   *spinner.Spinner
	out io.Writer
}

func newSpinnerObserver(w io.Writer) *spinnerObserver {
	return &spinnerObserver{
		s:   spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(w)),
		out: w,
	}
}

func (o *spinnerObserver) StageStarted(component string) {
	o.s.Suffix = " " + stageLabel(component) + "..."
	o.s.Start()
}

func (o *spinnerObserver) StageFinished(component string, elapsed time.Duration, err error) {
	o.s.Stop()
	if err != nil {
		fmt.Fprintf(o.out, "%s %s\n", color.RedString("✗"), stageLabel(component))
		return
	}
	fmt.Fprintf(o.out, "%s %s %s\n", color.GreenString("✓"), stageLabel(component), color.HiBlackString("(%s)", elapsed.Round(time.Millisecond)))
}

func stageLabel(component string) string {
	if label, ok := stageLabels[component]; ok {
		return label
	}
	return component
}

func renderMarkdown(report string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(report)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func terminalWidth(f *os.File) int {
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
		return w - 4
	}
	return 80
}
