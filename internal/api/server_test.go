package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/miradorstack/mirador-triage/internal/config"
)

type echoServer struct{}

func (echoServer) GenerateReport(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if req.GetValue() == "fail" {
		return nil, status.Error(codes.FailedPrecondition, "Pipeline aborted by supervisor: no")
	}
	return wrapperspb.String("report for " + req.GetValue()), nil
}

func startServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0", GracefulTimeout: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)), echoServer{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := startServer(t)

	client, err := NewClient(srv.Address())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report, err := client.GenerateReport(ctx, "ERROR x")
	if err != nil {
		t.Fatalf("generate report: %v", err)
	}
	if report != "report for ERROR x" {
		t.Fatalf("unexpected report %q", report)
	}

	_, err = client.GenerateReport(ctx, "fail")
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
}

func TestHealthService(t *testing.T) {
	srv := startServer(t)

	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected status %v", resp.GetStatus())
	}
	if srv.GracefulTimeout() != time.Second {
		t.Fatalf("unexpected graceful timeout %v", srv.GracefulTimeout())
	}
}
