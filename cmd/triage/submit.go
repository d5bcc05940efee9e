package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-triage/internal/api"
	"github.com/miradorstack/mirador-triage/internal/engine"
)

type submitOptions struct {
	server  string
	timeout time.Duration
}

func newSubmitCmd(root *rootOptions) *cobra.Command {
	opts := submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit LOGFILE",
		Short: "Send a log file to a running triage server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "localhost:50061", "Address of the triage gRPC server")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Request timeout")
	cmd.Flags().StringVarP(&root.reportPath, "output", "o", "", "Report path override")
	return cmd
}

func runSubmit(parent context.Context, root *rootOptions, opts submitOptions, logPath string) error {
	cfg, _, err := root.loadConfig()
	if err != nil {
		return err
	}

	if err := checkLogFile(logPath); err != nil {
		return err
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("read log file: %w", err)
	}

	client, err := api.NewClient(opts.server)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signalContext(parent)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	report, err := client.GenerateReport(ctx, string(data), grpc.MaxCallSendMsgSize(maxLogPayload))
	if err != nil {
		return remoteError(err)
	}

	if err := writeReport(cfg.Output.ReportPath, report); err != nil {
		return err
	}
	fmt.Fprintf(root.stdout, "Report successfully generated at: %s\n", cfg.Output.ReportPath)
	return nil
}

// remoteError reports server-side pipeline failures the same way as local ones.
func remoteError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.FailedPrecondition, codes.Internal:
		return &engine.PipelineError{Err: fmt.Errorf("%s", st.Message())}
	default:
		return fmt.Errorf("%s: %s", st.Code(), st.Message())
	}
}
