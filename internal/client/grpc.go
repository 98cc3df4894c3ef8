package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

// HealthClient queries the daemon's gRPC health service.
type HealthClient struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
	token  string
}

// NewHealthClient connects to the given gRPC address.
func NewHealthClient(addr, token string) (*HealthClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &HealthClient{
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
		token:  token,
	}, nil
}

func (c *HealthClient) Close() error {
	return c.conn.Close()
}

// Check returns the serving status of service ("" for the daemon itself),
// e.g. "SERVING".
func (c *HealthClient) Check(ctx context.Context, service string) (string, error) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check %q: %w", service, err)
	}
	return resp.GetStatus().String(), nil
}
