package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/miradorstack/mirador-triage/internal/engine"
)

var version = "dev" // Overwritten at build time

const (
	exitOK         = 0
	exitPipeline   = 1
	exitUnexpected = 2
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	code := exitCode(err)
	switch code {
	case exitPipeline:
		fmt.Fprintf(stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("[PIPELINE ERROR]"), err)
	case exitUnexpected:
		fmt.Fprintf(stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("[UNEXPECTED ERROR]"), err)
	}
	return code
}

// exitCode maps pipeline failures to 1 and anything else to 2.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var pe *engine.PipelineError
	if errors.As(err, &pe) {
		return exitPipeline
	}
	return exitUnexpected
}
