package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/miradorstack/mirador-triage/internal/engine"
	"github.com/miradorstack/mirador-triage/internal/utils"
)

// Runner executes one pipeline run over raw log text.
type Runner interface {
	Execute(ctx context.Context, logs string) (*engine.Result, error)
}

// ReportService implements the gRPC TriageService. Runs are serialized: the
// pipeline shares one set of agents and one retriever.
type ReportService struct {
	logger    *slog.Logger
	runner    Runner
	mu        sync.Mutex
	latencies *utils.LatencyTracker
}

// NewReportService constructs the report service facade.
func NewReportService(logger *slog.Logger, runner Runner) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		logger:    logger,
		runner:    runner,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// GenerateReport runs the pipeline on the request's log text and returns the report.
func (s *ReportService) GenerateReport(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if req == nil || strings.TrimSpace(req.GetValue()) == "" {
		return nil, status.Error(codes.InvalidArgument, "log text cannot be empty")
	}
	if s.runner == nil {
		return nil, status.Error(codes.FailedPrecondition, "pipeline not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("GenerateReport called", slog.Int("log_bytes", len(req.GetValue())))

	start := time.Now()
	result, err := s.runner.Execute(ctx, req.GetValue())
	if err != nil {
		s.logger.Warn("report generation failed",
			slog.String("component", engine.FailedComponent(err)),
			slog.Bool("aborted", engine.IsAbort(err)),
			slog.Any("error", err),
		)
		return nil, toStatus(err)
	}

	duration := time.Since(start)
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("report latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	return wrapperspb.String(result.Report), nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case engine.IsAbort(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
