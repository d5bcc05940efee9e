package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a remote TriageService.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient creates a client for addr. Without options the connection is plaintext.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// GenerateReport sends logs and returns the report text.
func (c *Client) GenerateReport(ctx context.Context, logs string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, generateReportMethod, wrapperspb.String(logs), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
