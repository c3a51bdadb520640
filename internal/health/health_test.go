package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func check(t *testing.T, addr string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///"+addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: Service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServer_ReportsServingState(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.Start(), "second start must fail")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s.Addr()))

	s.SetServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s.Addr()))

	s.SetServing(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s.Addr()))
}

func TestServer_StopIsIdempotent(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	s.Stop()
	require.NoError(t, s.Start())
	s.Stop()
	s.Stop()
}
