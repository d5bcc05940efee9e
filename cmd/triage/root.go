package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-triage/internal/config"
	"github.com/miradorstack/mirador-triage/internal/engine"
	"github.com/miradorstack/mirador-triage/internal/tracing"
	"github.com/miradorstack/mirador-triage/internal/utils"
)

type rootOptions struct {
	configPath string
	reportPath string
	logLevel   string
	render     bool
	quiet      bool

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "triage LOGFILE",
		Short: "Multi-agent log analysis pipeline",
		Long: `triage feeds a log file through a chain of model-backed agents (log analysis,
diagnosis, knowledge-base retrieval, supervisory review) and writes an incident
report in Markdown.

Examples:
  # Analyse a log file with the default configuration
  triage logs/app.log

  # Use a config file and print the rendered report
  triage --config configs/triage.yaml --render logs/app.log`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), opts, args[0])
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (default $TRIAGE_CONFIG)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.Flags().StringVarP(&opts.reportPath, "output", "o", "", "Report path override")
	rootCmd.Flags().BoolVar(&opts.render, "render", false, "Render the report to the terminal after writing it")
	rootCmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Disable the progress spinner")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSubmitCmd(opts),
		newVersionCmd(opts),
	)
	return rootCmd
}

// loadConfig reads the config and applies command-line overrides.
func (o *rootOptions) loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.reportPath != "" {
		cfg.Output.ReportPath = o.reportPath
	}
	return cfg, utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON, o.stderr), nil
}

func runReport(parent context.Context, opts *rootOptions, logPath string) error {
	cfg, logger, err := opts.loadConfig()
	if err != nil {
		return err
	}

	if err := checkLogFile(logPath); err != nil {
		return err
	}

	ctx, stop := signalContext(parent)
	defer stop()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
	}, version, logger)
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pipelineOpts := []engine.Option{engine.WithTracer(tp.Tracer("github.com/miradorstack/mirador-triage"))}
	if !opts.quiet && isTerminal(os.Stderr) {
		pipelineOpts = append(pipelineOpts, engine.WithStageObserver(newSpinnerObserver(os.Stderr)))
	}

	pipeline, cleanup, err := buildPipeline(ctx, cfg, logger, pipelineOpts...)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := pipeline.Run(ctx, logPath)
	if err != nil {
		return err
	}

	if err := writeReport(cfg.Output.ReportPath, report); err != nil {
		return err
	}
	fmt.Fprintf(opts.stdout, "Report successfully generated at: %s\n", cfg.Output.ReportPath)

	if opts.render {
		rendered, err := renderMarkdown(report, terminalWidth(os.Stdout))
		if err != nil {
			logger.Warn("report rendering failed", slog.Any("error", err))
			return nil
		}
		fmt.Fprint(opts.stdout, rendered)
	}
	return nil
}

// checkLogFile separates a missing input from one that exists but cannot be read.
func checkLogFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("Log file not found: %s", path)
	case err != nil:
		return fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return fmt.Errorf("log file %s is a directory", path)
	}
	return nil
}

func writeReport(path, report string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
